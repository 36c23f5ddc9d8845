package model

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Domain errors raised by exam authoring.
var (
	ErrNoQuestions       = errors.New("exam has no questions, cannot publish")
	ErrExamPublished     = errors.New("exam is already published")
	ErrDuplicateQuestion = errors.New("question id already exists in exam")
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
)

// SubmissionHistory answers whether a student already handed in an answer
// set for an exam.
type SubmissionHistory interface {
	HasPriorSubmission(ctx context.Context, studentID, examID string) (bool, error)
}

// Exam is an ordered collection of questions plus its publication state.
// Question order is insertion order.
type Exam struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	AuthorID          string     `json:"author_id"`
	Status            ExamStatus `json:"status"`
	PointsPerQuestion float64    `json:"points_per_question,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`

	questions []*Question
}

// NewExam returns an unpublished exam without questions.
func NewExam(id, title string) *Exam {
	return &Exam{
		ID:     id,
		Title:  title,
		Status: ExamStatusDraft,
	}
}

// AddQuestion appends q. Questions cannot be added once published.
func (e *Exam) AddQuestion(q *Question) error {
	if e.IsPublished() {
		return ErrExamPublished
	}
	if e.Question(q.ID) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateQuestion, q.ID)
	}
	q.ExamID = e.ID
	q.OrderNum = len(e.questions) + 1
	e.questions = append(e.questions, q)
	return nil
}

// Publish makes the exam available to students. It fails with ErrNoQuestions
// and leaves the exam untouched when there is nothing to answer.
func (e *Exam) Publish() error {
	if e.IsPublished() {
		return nil
	}
	if len(e.questions) == 0 {
		return ErrNoQuestions
	}
	e.Status = ExamStatusPublished
	for _, q := range e.questions {
		q.published = true
	}
	return nil
}

func (e *Exam) IsPublished() bool {
	return e.Status == ExamStatusPublished
}

// IsEligible reports whether the student may start the exam: it must be
// published and the student must have no prior submission for it.
func (e *Exam) IsEligible(ctx context.Context, studentID string, history SubmissionHistory) (bool, error) {
	if !e.IsPublished() {
		return false, nil
	}
	if history == nil {
		return true, nil
	}
	prior, err := history.HasPriorSubmission(ctx, studentID, e.ID)
	if err != nil {
		return false, fmt.Errorf("check prior submission: %w", err)
	}
	return !prior, nil
}

// Question looks a question up by id. Returns nil if absent.
func (e *Exam) Question(id string) *Question {
	for _, q := range e.questions {
		if q.ID == id {
			return q
		}
	}
	return nil
}

// Questions returns a copy of the question list in presentation order.
func (e *Exam) Questions() []*Question {
	out := make([]*Question, len(e.questions))
	copy(out, e.questions)
	return out
}

// ExamPayload is the Redis-cached representation of an exam.
type ExamPayload struct {
	Exam      Exam        `json:"exam"`
	Questions []*Question `json:"questions"`
}

// ToPayload snapshots the exam for caching.
func (e *Exam) ToPayload() ExamPayload {
	return ExamPayload{Exam: *e, Questions: e.Questions()}
}

// FromPayload rebuilds an exam from a cached payload, re-applying the
// publication state after the questions are attached.
func FromPayload(p ExamPayload) (*Exam, error) {
	exam := p.Exam
	status := exam.Status
	exam.Status = ExamStatusDraft
	exam.questions = nil
	for _, q := range p.Questions {
		if err := exam.AddQuestion(q); err != nil {
			return nil, err
		}
	}
	if status == ExamStatusPublished {
		if err := exam.Publish(); err != nil {
			return nil, err
		}
	}
	return &exam, nil
}

// StudentView strips correct answers for delivery to students.
func (e *Exam) StudentView() ExamPayload {
	qs := make([]*Question, len(e.questions))
	for i, q := range e.questions {
		cp := *q
		cp.CorrectOption = ""
		qs[i] = &cp
	}
	return ExamPayload{Exam: *e, Questions: qs}
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	ID                string  `json:"id" binding:"required,min=1,max=64"`
	Title             string  `json:"title" binding:"required,min=3,max=255"`
	PointsPerQuestion float64 `json:"points_per_question" binding:"min=0"`
}
