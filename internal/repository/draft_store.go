package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
)

// draftTTL bounds how long an abandoned autosave draft lingers.
const draftTTL = 24 * time.Hour

// DraftStore holds autosaved, not yet submitted answers in a Redis hash per
// student and exam.
type DraftStore struct {
	rdb *redis.Client
}

// NewDraftStore creates a new DraftStore.
func NewDraftStore(rdb *redis.Client) *DraftStore {
	return &DraftStore{rdb: rdb}
}

// Save stores the latest content for one question.
func (d *DraftStore) Save(ctx context.Context, examID, studentID, questionID, content string) error {
	key := config.CacheKey.StudentAnswersKey(examID, studentID)
	pipe := d.rdb.TxPipeline()
	pipe.HSet(ctx, key, questionID, content)
	pipe.Expire(ctx, key, draftTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Load returns question id -> content for the student's draft.
func (d *DraftStore) Load(ctx context.Context, examID, studentID string) (map[string]string, error) {
	return d.rdb.HGetAll(ctx, config.CacheKey.StudentAnswersKey(examID, studentID)).Result()
}
