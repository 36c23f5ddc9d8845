package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/response"
)

const healthTimeout = 2 * time.Second

// Pinger checks that a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// QueueInspector reports persistence queue backlogs.
type QueueInspector interface {
	Depths(ctx context.Context) (map[string]int64, error)
}

// SystemHandler reports process health and worker queue backlogs.
type SystemHandler struct {
	postgres  Pinger
	redis     Pinger
	queues    QueueInspector
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(postgres, redis Pinger, queues QueueInspector, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		postgres:  postgres,
		redis:     redis,
		queues:    queues,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// Returns 503 when Postgres or Redis is unreachable.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := gin.H{"postgres": "ok", "redis": "ok"}
	status := http.StatusOK
	if err := h.postgres.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Postgres health check failed")
		checks["postgres"] = "down"
		status = http.StatusServiceUnavailable
	}
	if err := h.redis.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Redis health check failed")
		checks["redis"] = "down"
		status = http.StatusServiceUnavailable
	}

	response.Success(c, status, gin.H{"status": checks})
}

// Metrics godoc
// GET /api/v1/admin/system/metrics
func (h *SystemHandler) Metrics(c *gin.Context) {
	depths, err := h.queues.Depths(c.Request.Context())
	if err != nil {
		failErr(c, h.log, err)
		return
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	response.Success(c, http.StatusOK, gin.H{
		"uptime":     formatDuration(time.Since(h.startTime)),
		"goroutines": runtime.NumGoroutine(),
		"heap_alloc": ms.HeapAlloc,
		"num_gc":     ms.NumGC,
		"go_version": runtime.Version(),
		"queues":     depths,
	})
}

func formatDuration(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
