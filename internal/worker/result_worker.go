package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
)

// ResultWorker consumes persist_results_queue and upserts exam_results.
type ResultWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewResultWorker creates a new ResultWorker.
func NewResultWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start runs the worker loop until ctx is cancelled. Call in a goroutine.
func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]*ResultPayload, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 && (len(batch) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("buffered", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.flushSafe(shutdownCtx, batch)
			cancel()
			return

		default:
			item, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					time.Sleep(time.Second)
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			var p ResultPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			batch = append(batch, &p)
		}
	}
}

// ----------------------------------------------------------------
// Batch upsert wrapper
// ----------------------------------------------------------------

func (w *ResultWorker) flushSafe(ctx context.Context, batch []*ResultPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkUpsert(ctx, collapseResults(batch)); err != nil {
		w.log.Warn().Err(err).Msg("Bulk result upsert failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).
					Str("exam_id", p.ExamID).
					Str("student_id", p.StudentID).
					Msg("persistSingle failed, requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(context.Background(), config.WorkerKey.PersistResultsQueue, raw)
			}
		}
	}
}

// collapseResults keeps the last payload per (exam, student) in queue order.
// A single INSERT ... ON CONFLICT cannot touch the same row twice.
func collapseResults(batch []*ResultPayload) []*ResultPayload {
	type key struct{ exam, student string }
	index := make(map[key]int, len(batch))
	out := make([]*ResultPayload, 0, len(batch))
	for _, p := range batch {
		k := key{p.ExamID, p.StudentID}
		if i, ok := index[k]; ok {
			out[i] = p
			continue
		}
		index[k] = len(out)
		out = append(out, p)
	}
	return out
}

// ----------------------------------------------------------------
// Bulk PostgreSQL upsert using UNNEST
// ----------------------------------------------------------------

func (w *ResultWorker) bulkUpsert(ctx context.Context, batch []*ResultPayload) error {
	n := len(batch)
	examIDs := make([]string, 0, n)
	students := make([]string, 0, n)
	scores := make([]float64, 0, n)
	sources := make([]string, 0, n)
	ats := make([]time.Time, 0, n)

	for _, p := range batch {
		examIDs = append(examIDs, p.ExamID)
		students = append(students, p.StudentID)
		scores = append(scores, p.Score)
		sources = append(sources, string(p.Source))
		ats = append(ats, time.UnixMilli(p.At).UTC())
	}

	_, err := w.pool.Exec(ctx, `
		INSERT INTO exam_results (exam_id, student_id, score, graded, source, updated_at)
		SELECT u.exam_id, u.student_id, u.score, TRUE, u.source, u.updated_at
		FROM UNNEST(
			$1::varchar[],
			$2::varchar[],
			$3::float8[],
			$4::varchar[],
			$5::timestamptz[]
		) AS u (exam_id, student_id, score, source, updated_at)
		ON CONFLICT (exam_id, student_id) DO UPDATE
		SET score = EXCLUDED.score,
		    graded = TRUE,
		    source = EXCLUDED.source,
		    updated_at = EXCLUDED.updated_at
		WHERE exam_results.updated_at <= EXCLUDED.updated_at`,
		examIDs, students, scores, sources, ats)
	return err
}

// ----------------------------------------------------------------
// Fallback single upsert
// ----------------------------------------------------------------

func (w *ResultWorker) persistSingle(ctx context.Context, p *ResultPayload) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO exam_results (exam_id, student_id, score, graded, source, updated_at)
		 VALUES ($1, $2, $3, TRUE, $4, $5)
		 ON CONFLICT (exam_id, student_id) DO UPDATE
		 SET score = EXCLUDED.score,
		     graded = TRUE,
		     source = EXCLUDED.source,
		     updated_at = EXCLUDED.updated_at
		 WHERE exam_results.updated_at <= EXCLUDED.updated_at`,
		p.ExamID, p.StudentID, p.Score, string(p.Source), time.UnixMilli(p.At).UTC(),
	)
	return err
}
