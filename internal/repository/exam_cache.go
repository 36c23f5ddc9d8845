package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ErrCacheMiss is returned when a key is absent from Redis.
var ErrCacheMiss = errors.New("cache miss")

// ExamCache keeps published exams, answer keys included, in Redis so
// grading and eligibility checks avoid Postgres.
type ExamCache struct {
	rdb *redis.Client
}

// NewExamCache creates a new ExamCache.
func NewExamCache(rdb *redis.Client) *ExamCache {
	return &ExamCache{rdb: rdb}
}

// Get returns the cached exam or ErrCacheMiss.
func (c *ExamCache) Get(ctx context.Context, examID string) (*model.Exam, error) {
	data, err := c.rdb.Get(ctx, config.CacheKey.ExamPayloadKey(examID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get payload: %w", err)
	}

	var payload model.ExamPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return model.FromPayload(payload)
}

// Set stores the exam without expiry. Published exams never change.
func (c *ExamCache) Set(ctx context.Context, exam *model.Exam) error {
	data, err := json.Marshal(exam.ToPayload())
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := c.rdb.Set(ctx, config.CacheKey.ExamPayloadKey(exam.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}
	return nil
}
