package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/response"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams a session's live activity to proctors over SSE.
type MonitorHandler struct {
	rdb      *redis.Client
	sessions SessionAPI
	log      zerolog.Logger
}

func NewMonitorHandler(rdb *redis.Client, sessions SessionAPI, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb:      rdb,
		sessions: sessions,
		log:      log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorSessionSSE godoc
// GET /api/v1/admin/sessions/:session_id/monitor
// Sends a snapshot, then forwards every event published for the session.
func (h *MonitorHandler) MonitorSessionSSE(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	reqCtx := c.Request.Context()

	// Resolve before switching to a stream so unknown sessions get a JSON error.
	if _, err := h.sessions.Get(reqCtx, id); err != nil {
		failErr(c, h.log, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Request-ID", response.RequestID(c))
	c.Status(http.StatusOK)

	h.sendSnapshot(c, reqCtx, id)

	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.SessionMonitorChannel(id.String()))
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Skip refreshes while nothing happens in the session.
	dirty := false

	h.log.Info().Str("session_id", id.String()).Msg("Proctor attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("session_id", id.String()).Msg("Proctor disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Forward the published JSON as is.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			dirty = true

		case <-refreshTicker.C:
			if !dirty {
				continue
			}
			h.sendSnapshot(c, reqCtx, id)
			dirty = false

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: {\"type\":\"ping\"}\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendSnapshot writes the full per-student summary as one SSE event.
func (h *MonitorHandler) sendSnapshot(c *gin.Context, parentCtx context.Context, id uuid.UUID) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	snap, err := h.sessions.Monitor(ctx, id)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", id.String()).Msg("Failed to build monitor snapshot")
		return
	}
	c.SSEvent("message", gin.H{"type": "snapshot", "data": snap})
	c.Writer.Flush()
}
