package model

import (
	"errors"
	"strings"
)

var (
	ErrInvalidCorrectAnswer = errors.New("correct answer must match an option label or its prefix token")
	ErrNotMultipleChoice    = errors.New("correct answer only applies to multiple choice questions")
)

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeFreeText       QuestionType = "FREE_TEXT"
)

// Question represents a single exam question.
//
// Options are presented in order. For multiple choice questions CorrectOption
// holds the token a student must submit, e.g. "B" for the option
// "B. Programming Language".
type Question struct {
	ID            string       `json:"id"`
	ExamID        string       `json:"exam_id"`
	QuestionText  string       `json:"question_text"`
	QuestionType  QuestionType `json:"question_type"`
	Options       []string     `json:"options"`
	CorrectOption string       `json:"correct_option,omitempty"`
	Points        float64      `json:"points,omitempty"`
	OrderNum      int          `json:"order_num"`

	// published is set by the owning exam; it freezes CorrectOption.
	published bool
}

// NewQuestion creates a question with no options.
func NewQuestion(id, text string, kind QuestionType) *Question {
	return &Question{
		ID:           id,
		QuestionText: text,
		QuestionType: kind,
		Options:      []string{},
	}
}

// AddOption appends an option label.
func (q *Question) AddOption(option string) {
	q.Options = append(q.Options, option)
}

// SetCorrectAnswer assigns the accepted token of a multiple choice question.
func (q *Question) SetCorrectAnswer(token string) error {
	if q.published {
		return ErrExamPublished
	}
	if q.QuestionType != QuestionTypeMultipleChoice {
		return ErrNotMultipleChoice
	}
	if token == "" {
		return ErrInvalidCorrectAnswer
	}
	for _, opt := range q.Options {
		if token == opt || token == OptionToken(opt) {
			q.CorrectOption = token
			return nil
		}
	}
	return ErrInvalidCorrectAnswer
}

// Validate reports whether content is an accepted response to the question.
// Multiple choice compares exactly against the correct token; any other kind
// only requires non-blank content.
func (q *Question) Validate(content string) bool {
	if q.QuestionType == QuestionTypeMultipleChoice {
		return content != "" && content == q.CorrectOption
	}
	return strings.TrimSpace(content) != ""
}

// OptionToken returns the prefix token of an option label: the text before
// the first "." or ")". Labels without such a prefix have no token.
func OptionToken(option string) string {
	idx := strings.IndexAny(option, ".)")
	if idx <= 0 {
		return ""
	}
	return strings.TrimSpace(option[:idx])
}

// AddQuestionRequest is the payload for adding a question to an exam.
type AddQuestionRequest struct {
	ID            string   `json:"id" binding:"required,min=1,max=64"`
	QuestionText  string   `json:"question_text" binding:"required,min=1,max=2000"`
	QuestionType  string   `json:"question_type" binding:"required,oneof=MULTIPLE_CHOICE FREE_TEXT"`
	Options       []string `json:"options" binding:"required_if=QuestionType MULTIPLE_CHOICE,dive,min=1,max=500"`
	CorrectOption string   `json:"correct_option" binding:"required_if=QuestionType MULTIPLE_CHOICE,max=500"`
	Points        float64  `json:"points" binding:"min=0"`
}

// SetCorrectAnswerRequest is the payload for changing a question's answer key.
type SetCorrectAnswerRequest struct {
	CorrectOption string `json:"correct_option" binding:"required,max=500"`
}
