package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Redis rejects BLPOP timeouts under 1s
)

// ActivityWorker drains persist_activity_queue into activity_logs.
type ActivityWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewActivityWorker creates a new ActivityWorker.
func NewActivityWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ActivityWorker {
	return &ActivityWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "activity_worker").Logger(),
	}
}

// Start runs the worker loop until ctx is cancelled. Call in a goroutine.
func (w *ActivityWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ActivityWorker started")

	buffer := make([]*ActivityPayload, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistActivityQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var payload ActivityPayload
		if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}
		buffer = append(buffer, &payload)
	}
}

// flushSafe tries a COPY of the whole batch, then row-by-row inserts.
func (w *ActivityWorker) flushSafe(ctx context.Context, batch []*ActivityPayload) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
		return
	}
	w.log.Debug().Int("count", len(batch)).Msg("Activity batch persisted")
}

func (w *ActivityWorker) bulkInsert(ctx context.Context, batch []*ActivityPayload) error {
	rows, err := activityRows(batch)
	if err != nil {
		return err
	}

	_, err = w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"activity_logs"},
		[]string{"session_id", "student_id", "action", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// activityRows converts payloads to COPY rows. Any malformed session id
// fails the whole batch so the fallback can drop it individually.
func activityRows(batch []*ActivityPayload) ([][]any, error) {
	rows := make([][]any, 0, len(batch))
	for _, p := range batch {
		sessionID, err := uuid.Parse(p.SessionID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []any{sessionID, p.StudentID, p.Action, time.UnixMilli(p.Timestamp).UTC()})
	}
	return rows, nil
}

func (w *ActivityWorker) fallbackInsert(ctx context.Context, batch []*ActivityPayload) {
	var requeue []*ActivityPayload

	for _, p := range batch {
		sessionID, err := uuid.Parse(p.SessionID)
		if err != nil {
			w.log.Error().Str("session_id", p.SessionID).Msg("Dropping activity with invalid session id")
			continue
		}

		_, err = w.pool.Exec(ctx,
			`INSERT INTO activity_logs (session_id, student_id, action, recorded_at)
			 VALUES ($1, $2, $3, $4)`,
			sessionID, p.StudentID, p.Action, time.UnixMilli(p.Timestamp).UTC(),
		)
		if err != nil {
			w.log.Error().Err(err).
				Str("session_id", p.SessionID).
				Str("student_id", p.StudentID).
				Msg("Insert failed, requeueing")
			requeue = append(requeue, p)
		}
	}

	if len(requeue) > 0 {
		w.requeue(ctx, requeue)
	}
}

func (w *ActivityWorker) requeue(ctx context.Context, items []*ActivityPayload) {
	pipe := w.rdb.Pipeline()
	for _, p := range items {
		data, _ := json.Marshal(p)
		pipe.RPush(ctx, config.WorkerKey.PersistActivityQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue activity. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed activity back to Redis")
	time.Sleep(2 * time.Second)
}

func (w *ActivityWorker) shutdown(buffer []*ActivityPayload) {
	w.log.Info().Int("buffered", len(buffer)).Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
	w.log.Info().Msg("ActivityWorker stopped")
}
