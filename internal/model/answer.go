package model

import (
	"fmt"
	"strings"
	"time"
)

// Answer is one student's response to one question of one exam.
// TotalScore has no meaning until Graded is set.
type Answer struct {
	ExamID     string  `json:"exam_id"`
	QuestionID string  `json:"question_id"`
	StudentID  string  `json:"student_id"`
	Content    string  `json:"content"`
	Graded     bool    `json:"graded"`
	TotalScore float64 `json:"total_score"`
}

// NewAnswer creates an ungraded answer.
func NewAnswer(studentID, examID, questionID, content string) *Answer {
	return &Answer{
		ExamID:     examID,
		QuestionID: questionID,
		StudentID:  studentID,
		Content:    content,
	}
}

// Validate reports whether the answer carries any content at all.
// Blank answers are dropped at submission time.
func (a *Answer) Validate() bool {
	return strings.TrimSpace(a.Content) != ""
}

// SetScore stamps a score and marks the answer graded.
func (a *Answer) SetScore(score float64) {
	a.TotalScore = score
	a.Graded = true
}

// DisplayScore renders the score, or "Ungraded" while no score is assigned.
func (a *Answer) DisplayScore() string {
	if !a.Graded {
		return "Ungraded"
	}
	return fmt.Sprintf("%.1f", a.TotalScore)
}

// ScoreSource tells whether a result came from auto-grading or a grader.
type ScoreSource string

const (
	ScoreSourceAuto   ScoreSource = "AUTO"
	ScoreSourceManual ScoreSource = "MANUAL"
)

// ExamResult is the persisted total of a student's answer set.
type ExamResult struct {
	ExamID    string      `json:"exam_id"`
	StudentID string      `json:"student_id"`
	Score     float64     `json:"score"`
	Graded    bool        `json:"graded"`
	Source    ScoreSource `json:"source"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SubmittedAnswer is one entry of a submission request.
type SubmittedAnswer struct {
	QuestionID string `json:"question_id" binding:"required,max=64"`
	Content    string `json:"content" binding:"max=10000"`
}

// SubmitAnswersRequest is the payload for handing in an answer set.
type SubmitAnswersRequest struct {
	StudentID string            `json:"student_id" binding:"required,max=64"`
	Answers   []SubmittedAnswer `json:"answers" binding:"dive"`
}

// OverrideScoreRequest is the payload for a manual grade.
type OverrideScoreRequest struct {
	Score *float64 `json:"score" binding:"required"`
}

// StudentSubmitRequest is the payload for a student handing in their own
// answer set.
type StudentSubmitRequest struct {
	Answers []SubmittedAnswer `json:"answers" binding:"dive"`
}
