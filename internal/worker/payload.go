package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ActivityPayload is one recorded suspicious action awaiting persistence.
type ActivityPayload struct {
	SessionID string `json:"session_id"`
	StudentID string `json:"student_id"`
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// NewActivityPayload converts a recorded entry for the activity queue.
func NewActivityPayload(a model.StudentActivity) ActivityPayload {
	return ActivityPayload{
		SessionID: a.SessionID.String(),
		StudentID: a.StudentID,
		Action:    a.Action,
		Timestamp: a.Timestamp.UnixMilli(),
	}
}

// AnswerSetPayload is a submitted answer set awaiting persistence.
type AnswerSetPayload struct {
	ExamID      string                  `json:"exam_id"`
	StudentID   string                  `json:"student_id"`
	Answers     []model.SubmittedAnswer `json:"answers"`
	SubmittedAt int64                   `json:"submitted_at"` // unix milliseconds
}

// NewAnswerSetPayload converts a graded answer set for the answers queue.
func NewAnswerSetPayload(examID, studentID string, answers []*model.Answer, at time.Time) AnswerSetPayload {
	p := AnswerSetPayload{
		ExamID:      examID,
		StudentID:   studentID,
		Answers:     make([]model.SubmittedAnswer, 0, len(answers)),
		SubmittedAt: at.UnixMilli(),
	}
	for _, a := range answers {
		p.Answers = append(p.Answers, model.SubmittedAnswer{QuestionID: a.QuestionID, Content: a.Content})
	}
	return p
}

// ResultPayload is an exam total awaiting upsert.
type ResultPayload struct {
	ExamID    string            `json:"exam_id"`
	StudentID string            `json:"student_id"`
	Score     float64           `json:"score"`
	Source    model.ScoreSource `json:"source"`
	At        int64             `json:"at"` // unix milliseconds
}

// NewResultPayload converts a result for the results queue.
func NewResultPayload(r model.ExamResult) ResultPayload {
	return ResultPayload{
		ExamID:    r.ExamID,
		StudentID: r.StudentID,
		Score:     r.Score,
		Source:    r.Source,
		At:        r.UpdatedAt.UnixMilli(),
	}
}

// Producer pushes work onto the Redis queues the workers consume and
// publishes live monitor events.
type Producer struct {
	rdb *redis.Client
}

// NewProducer creates a new Producer.
func NewProducer(rdb *redis.Client) *Producer {
	return &Producer{rdb: rdb}
}

// Enqueue RPUSHes v as JSON onto queue.
func (p *Producer) Enqueue(ctx context.Context, queue string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", queue, err)
	}
	if err := p.rdb.RPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("push %s: %w", queue, err)
	}
	return nil
}

// Publish sends v as JSON to a session's monitor channel.
func (p *Producer) Publish(ctx context.Context, sessionID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal monitor event: %w", err)
	}
	return p.rdb.Publish(ctx, config.CacheKey.SessionMonitorChannel(sessionID), data).Err()
}

// Depths reports the backlog of each persistence queue.
func (p *Producer) Depths(ctx context.Context) (map[string]int64, error) {
	queues := []string{
		config.WorkerKey.PersistActivityQueue,
		config.WorkerKey.PersistAnswersQueue,
		config.WorkerKey.PersistResultsQueue,
	}

	pipe := p.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(queues))
	for i, q := range queues {
		cmds[i] = pipe.LLen(ctx, q)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("queue depths: %w", err)
	}

	out := make(map[string]int64, len(queues))
	for i, q := range queues {
		out[q] = cmds[i].Val()
	}
	return out, nil
}
