package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

// SessionAPI is the session registry surface of service.ProctorService.
type SessionAPI interface {
	CreateSession(ctx context.Context, req model.CreateSessionRequest, createdBy string) (model.ExamSession, error)
	Get(ctx context.Context, id uuid.UUID) (model.ExamSession, error)
	List(ctx context.Context, examID string) ([]model.ExamSession, error)
	Start(ctx context.Context, id uuid.UUID) (model.ExamSession, error)
	End(ctx context.Context, id uuid.UUID) (model.ExamSession, error)
	RegisterStudent(ctx context.Context, id uuid.UUID, studentID string) error
	Join(ctx context.Context, id uuid.UUID, studentID, entryToken string) (model.ExamSession, error)
	Record(ctx context.Context, id uuid.UUID, studentID string, n proctor.Notification) (model.ActivityLogEntry, bool, error)
	Log(ctx context.Context, id uuid.UUID, studentID string) ([]model.ActivityLogEntry, error)
	Monitor(ctx context.Context, id uuid.UUID) (*service.MonitorSnapshot, error)
}

// SessionHandler handles proctored session endpoints.
type SessionHandler struct {
	sessions SessionAPI
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions SessionAPI, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// sessionID parses the :session_id path param, writing the error response
// itself when it is malformed.
func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// CreateSession godoc
// POST /api/v1/admin/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessions.CreateSession(c.Request.Context(), req, claims.UserID())
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": sess})
}

// ListSessions godoc
// GET /api/v1/admin/sessions?exam_id=E001
func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions, err := h.sessions.List(c.Request.Context(), c.Query("exam_id"))
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession godoc
// GET /api/v1/admin/sessions/:session_id
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	sess, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// StartSession godoc
// POST /api/v1/admin/sessions/:session_id/start
func (h *SessionHandler) StartSession(c *gin.Context) {
	h.transition(c, h.sessions.Start)
}

// EndSession godoc
// POST /api/v1/admin/sessions/:session_id/end
func (h *SessionHandler) EndSession(c *gin.Context) {
	h.transition(c, h.sessions.End)
}

func (h *SessionHandler) transition(c *gin.Context, fn func(context.Context, uuid.UUID) (model.ExamSession, error)) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	sess, err := fn(c.Request.Context(), id)
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// RegisterStudent godoc
// POST /api/v1/admin/sessions/:session_id/students
func (h *SessionHandler) RegisterStudent(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req model.RegisterStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessions.RegisterStudent(c.Request.Context(), id, req.StudentID); err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"student_id": req.StudentID})
}

// StudentLog godoc
// GET /api/v1/admin/sessions/:session_id/students/:student_id/log
func (h *SessionHandler) StudentLog(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	entries, err := h.sessions.Log(c.Request.Context(), id, c.Param("student_id"))
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"entries": entries})
}

// MonitorSnapshot godoc
// GET /api/v1/admin/sessions/:session_id/snapshot
func (h *SessionHandler) MonitorSnapshot(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	snap, err := h.sessions.Monitor(c.Request.Context(), id)
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, snap)
}

// JoinSession godoc
// POST /api/v1/student/sessions/:session_id/join
// Enrolls the calling student, checking the entry token when the session has one.
func (h *SessionHandler) JoinSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req model.JoinSessionRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	sess, err := h.sessions.Join(c.Request.Context(), id, claims.UserID(), req.EntryToken)
	if err != nil {
		failErr(c, h.log, err)
		return
	}

	h.log.Info().
		Str("session_id", id.String()).
		Str("student_id", claims.UserID()).
		Msg("Student joined session")
	response.Success(c, http.StatusOK, gin.H{
		"session_id": sess.ID,
		"exam_id":    sess.ExamID,
		"status":     sess.Status,
	})
}
