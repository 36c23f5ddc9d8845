package websocket

import (
	"time"

	"github.com/stemsi/exstem-proctor/internal/proctor"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionKey       Action = "key"
	ActionFocusLost Action = "focus_lost"
	ActionAutosave  Action = "autosave"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// KeyRequest reports a key press observed by the exam client.
type KeyRequest struct {
	Action    Action            `json:"action"`
	Code      string            `json:"code" binding:"required,max=32"`
	Modifiers proctor.Modifiers `json:"modifiers"`
	Timestamp int64             `json:"ts" binding:"min=0"` // unix milliseconds, 0 means now
}

// FocusLostRequest reports that the exam window lost focus.
type FocusLostRequest struct {
	Action    Action `json:"action"`
	Timestamp int64  `json:"ts" binding:"min=0"`
}

// AutosaveRequest is sent by the client to save a single answer.
type AutosaveRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id" binding:"required,max=64"`
	Answer string `json:"ans" binding:"max=10000"`
}

// SubmitRequest is sent by the client to finish and grade the exam.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// At resolves a client timestamp, falling back to the server clock.
func At(ms int64, now time.Time) time.Time {
	if ms <= 0 {
		return now
	}
	return time.UnixMilli(ms)
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventAck      Event = "ack"
	EventRecorded Event = "recorded"
	EventResult   Event = "result"
	EventPong     Event = "pong"
)

type AckResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

// RecordedResponse echoes a suspicious action that made it into the log.
type RecordedResponse struct {
	Event     Event     `json:"event"`
	Label     string    `json:"label"`
	Timestamp time.Time `json:"timestamp"`
}

type ResultResponse struct {
	Event   Event   `json:"event"`
	Status  string  `json:"status"`
	Score   float64 `json:"score"`
	Display string  `json:"display_score"`
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
