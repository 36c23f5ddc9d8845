package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// The interfaces below are satisfied by the pgx repositories and the Redis
// stores in internal/repository, and by in-memory fakes in tests.

// ExamStore persists exams and questions.
type ExamStore interface {
	Create(ctx context.Context, e *model.Exam) error
	Load(ctx context.Context, id string) (*model.Exam, error)
	AddQuestion(ctx context.Context, q *model.Question) error
	UpdateCorrectOption(ctx context.Context, examID, questionID, token string) error
	MarkPublished(ctx context.Context, id string) error
	List(ctx context.Context, status model.ExamStatus) ([]model.Exam, error)
}

// ExamCache is the read-through cache of published exams.
type ExamCache interface {
	Get(ctx context.Context, examID string) (*model.Exam, error)
	Set(ctx context.Context, exam *model.Exam) error
}

// SessionStore mirrors proctored sessions.
type SessionStore interface {
	Create(ctx context.Context, s *model.ExamSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.SessionStatus, at time.Time) error
	AddStudent(ctx context.Context, id uuid.UUID, studentID string) error
	List(ctx context.Context, examID string) ([]model.ExamSession, error)
	ListOpen(ctx context.Context) ([]model.ExamSession, error)
}

// ActivityStore reads persisted activity logs.
type ActivityStore interface {
	ListByStudent(ctx context.Context, sessionID uuid.UUID, studentID string) ([]model.ActivityLogEntry, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) (map[string][]model.ActivityLogEntry, error)
}

// AnswerStore reads submitted answer sets.
type AnswerStore interface {
	ListByStudent(ctx context.Context, examID, studentID string) ([]*model.Answer, error)
	HasSubmission(ctx context.Context, examID, studentID string) (bool, error)
	ListSubmittedStudents(ctx context.Context, examID string) ([]string, error)
}

// ResultStore reads exam totals.
type ResultStore interface {
	Get(ctx context.Context, examID, studentID string) (*model.ExamResult, error)
	ListByExam(ctx context.Context, examID string, limit, offset int) ([]model.ExamResult, int, error)
}

// SubmittedSet is the fast-path index of students who handed in an exam.
type SubmittedSet interface {
	Contains(ctx context.Context, examID, studentID string) (bool, error)
	Add(ctx context.Context, examID string, studentIDs ...string) (bool, error)
	Remove(ctx context.Context, examID, studentID string) error
}

// DraftStore holds autosaved answers.
type DraftStore interface {
	Save(ctx context.Context, examID, studentID, questionID, content string) error
	Load(ctx context.Context, examID, studentID string) (map[string]string, error)
}

// Producer feeds the persistence queues and the live monitor channel.
type Producer interface {
	Enqueue(ctx context.Context, queue string, v any) error
	Publish(ctx context.Context, sessionID string, v any) error
}

// ExamReader resolves exams with their answer keys.
type ExamReader interface {
	GetExam(ctx context.Context, examID string) (*model.Exam, error)
}
