package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
)

// AnswerWorker consumes persist_answers_queue and writes each submitted
// answer set to student_answers in one transaction.
type AnswerWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger

	retryDelay time.Duration
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		pool:       pool,
		rdb:        rdb,
		log:        log.With().Str("component", "answer_worker").Logger(),
		retryDelay: 5 * time.Second,
	}
}

// Start runs the worker loop until ctx is cancelled. Call in a goroutine.
func (w *AnswerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AnswerWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.drain(drainCtx)
			cancel()
			w.log.Info().Msg("AnswerWorker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AnswerWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			time.Sleep(time.Second)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	var payload AnswerSetPayload
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
		return
	}

	if err := w.persist(ctx, &payload); err != nil {
		w.log.Error().Err(err).
			Str("student_id", payload.StudentID).
			Str("exam_id", payload.ExamID).
			Dur("retry_in", w.retryDelay).
			Msg("Persist error, requeueing")
		w.rdb.RPush(context.Background(), config.WorkerKey.PersistAnswersQueue, result[1])
		time.Sleep(w.retryDelay)
	}
}

// persist inserts the whole answer set. A question answered twice keeps
// its first answer, matching how the set was graded.
func (w *AnswerWorker) persist(ctx context.Context, p *AnswerSetPayload) error {
	submittedAt := time.UnixMilli(p.SubmittedAt).UTC()

	batch := &pgx.Batch{}
	for _, a := range p.Answers {
		batch.Queue(
			`INSERT INTO student_answers (exam_id, student_id, question_id, content, submitted_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (exam_id, student_id, question_id) DO NOTHING`,
			p.ExamID, p.StudentID, a.QuestionID, a.Content, submittedAt,
		)
	}

	if batch.Len() > 0 {
		err := pgx.BeginFunc(ctx, w.pool, func(tx pgx.Tx) error {
			return tx.SendBatch(ctx, batch).Close()
		})
		if err != nil {
			return fmt.Errorf("insert answer set: %w", err)
		}
	}

	// The autosave draft is obsolete once the set is stored.
	if err := w.rdb.Del(ctx, config.CacheKey.StudentAnswersKey(p.ExamID, p.StudentID)).Err(); err != nil {
		w.log.Warn().Err(err).Str("student_id", p.StudentID).Msg("Failed to clear autosave draft")
	}
	return nil
}

// drain persists whatever is still queued before shutdown.
func (w *AnswerWorker) drain(ctx context.Context) {
	drained := 0
	for ctx.Err() == nil {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}

		var payload AnswerSetPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persist(ctx, &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(context.Background(), config.WorkerKey.PersistAnswersQueue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining answer sets")
	}
}
