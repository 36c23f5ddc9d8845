package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/validator"
	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a student's input notifications and answers during a
// proctored sitting.
type WSHandler struct {
	sessions SessionAPI
	grading  GradingAPI
	log      zerolog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions SessionAPI, grading GradingAPI, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		grading:  grading,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
		now:      time.Now,
	}
}

// streamConn carries the per-connection state of one student stream.
type streamConn struct {
	conn      *websocket.Conn
	sessionID uuid.UUID
	examID    string
	studentID string
	log       zerolog.Logger
}

// SessionStream godoc
// WS /ws/v1/student/sessions/:session_id/stream?token=...
// The student must have joined the session and the session must be active.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := sessionID(c)
	if !ok {
		return
	}

	sess, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	studentID := claims.UserID()
	if !contains(sess.Students, studentID) {
		response.Fail(c, http.StatusForbidden, response.ErrNotRegistered)
		return
	}
	switch sess.Status {
	case model.SessionStatusEnded:
		response.Fail(c, http.StatusConflict, response.ErrSessionEnded)
		return
	case model.SessionStatusCreated:
		response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sc := &streamConn{
		conn:      conn,
		sessionID: id,
		examID:    sess.ExamID,
		studentID: studentID,
		log: h.log.With().
			Str("session_id", id.String()).
			Str("student_id", studentID).
			Logger(),
	}
	sc.log.Info().Msg("Student connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		action, raw, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sc.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				sc.log.Debug().Msg("Connection closed")
			}
			return
		}

		var done bool
		switch action {
		case ws.ActionKey:
			done = h.handleKey(ctx, sc, raw)
		case ws.ActionFocusLost:
			done = h.handleFocusLost(ctx, sc, raw)
		case ws.ActionAutosave:
			h.handleAutosave(ctx, sc, raw)
		case ws.ActionSubmit:
			done = h.handleSubmit(ctx, sc)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		case "":
			ws.WriteError(conn, "malformed message")
		default:
			sc.log.Warn().Str("action", string(action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(action))
		}
		if done {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// decode unmarshals and validates a request, reporting problems to the client.
func decode(sc *streamConn, raw []byte, dst interface{}) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		ws.WriteError(sc.conn, "malformed message")
		return false
	}
	if fields := validator.Struct(dst); fields != nil {
		ws.WriteFieldErrors(sc.conn, fields)
		return false
	}
	return true
}

func (h *WSHandler) handleKey(ctx context.Context, sc *streamConn, raw []byte) bool {
	var req ws.KeyRequest
	if !decode(sc, raw, &req) {
		return false
	}
	n := proctor.KeyPress(proctor.KeyCode(req.Code), req.Modifiers, ws.At(req.Timestamp, h.now()))
	return h.record(ctx, sc, n)
}

func (h *WSHandler) handleFocusLost(ctx context.Context, sc *streamConn, raw []byte) bool {
	var req ws.FocusLostRequest
	if !decode(sc, raw, &req) {
		return false
	}
	return h.record(ctx, sc, proctor.FocusLost(ws.At(req.Timestamp, h.now())))
}

// record reports whether the stream should close.
func (h *WSHandler) record(ctx context.Context, sc *streamConn, n proctor.Notification) bool {
	entry, recorded, err := h.sessions.Record(ctx, sc.sessionID, sc.studentID, n)
	if err != nil {
		_, code := classify(err)
		ws.WriteError(sc.conn, response.GetMessage(code))
		return code == response.ErrSessionEnded || code == response.ErrSessionNotFound
	}
	if !recorded {
		ws.WriteTyped(sc.conn, ws.AckResponse{Event: ws.EventAck, Status: "ignored"})
		return false
	}
	ws.WriteTyped(sc.conn, ws.RecordedResponse{Event: ws.EventRecorded, Label: entry.Action, Timestamp: entry.Timestamp})
	return false
}

func (h *WSHandler) handleAutosave(ctx context.Context, sc *streamConn, raw []byte) {
	var req ws.AutosaveRequest
	if !decode(sc, raw, &req) {
		return
	}
	if err := h.grading.Autosave(ctx, sc.examID, sc.studentID, req.QID, req.Answer); err != nil {
		status, code := classify(err)
		if status == http.StatusInternalServerError {
			sc.log.Error().Err(err).Msg("Autosave failed")
		}
		ws.WriteError(sc.conn, response.GetMessage(code))
		return
	}
	ws.WriteTyped(sc.conn, ws.AckResponse{Event: ws.EventAck, Status: "saved"})
}

// handleSubmit reports whether the stream is finished.
func (h *WSHandler) handleSubmit(ctx context.Context, sc *streamConn) bool {
	res, err := h.grading.SubmitDraft(ctx, sc.examID, sc.studentID)
	if err != nil {
		status, code := classify(err)
		if status == http.StatusInternalServerError {
			sc.log.Error().Err(err).Msg("Submit failed")
		}
		ws.WriteError(sc.conn, response.GetMessage(code))
		return code == response.ErrAlreadySubmitted
	}

	sc.log.Info().Float64("score", res.Result.Score).Msg("Exam submitted over stream")
	ws.WriteTyped(sc.conn, ws.ResultResponse{
		Event:   ws.EventResult,
		Status:  "completed",
		Score:   res.Result.Score,
		Display: res.Display,
	})
	return true
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
