package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusCreated SessionStatus = "CREATED"
	SessionStatusActive  SessionStatus = "ACTIVE"
	SessionStatusEnded   SessionStatus = "ENDED"
)

// ActivityLogEntry is one suspicious action recorded for a student.
type ActivityLogEntry struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// ExamSession is the persisted record of a proctored sitting.
type ExamSession struct {
	ID             uuid.UUID     `json:"id"`
	ExamID         string        `json:"exam_id"`
	Status         SessionStatus `json:"status"`
	EntryTokenHash string        `json:"-"`
	CreatedBy      string        `json:"created_by"`
	CreatedAt      time.Time     `json:"created_at"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	EndedAt        *time.Time    `json:"ended_at,omitempty"`
	Students       []string      `json:"students,omitempty"`
}

// StudentActivity is a row of the persisted activity log.
type StudentActivity struct {
	SessionID uuid.UUID `json:"session_id"`
	StudentID string    `json:"student_id"`
	ActivityLogEntry
}

// CreateSessionRequest is the payload for opening a session on an exam.
type CreateSessionRequest struct {
	ExamID     string `json:"exam_id" binding:"required,max=64"`
	EntryToken string `json:"entry_token" binding:"omitempty,min=4,max=20"`
}

// RegisterStudentRequest is the payload for an admin enrolling a student.
type RegisterStudentRequest struct {
	StudentID string `json:"student_id" binding:"required,max=64"`
}

// JoinSessionRequest is the payload for a student joining a session.
type JoinSessionRequest struct {
	EntryToken string `json:"entry_token" binding:"omitempty,min=4,max=20"`
}
