package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
)

// SubmissionSet is the Redis set of students that handed in an exam.
type SubmissionSet struct {
	rdb *redis.Client
}

// NewSubmissionSet creates a new SubmissionSet.
func NewSubmissionSet(rdb *redis.Client) *SubmissionSet {
	return &SubmissionSet{rdb: rdb}
}

// Contains reports whether studentID is in the exam's set.
func (s *SubmissionSet) Contains(ctx context.Context, examID, studentID string) (bool, error) {
	return s.rdb.SIsMember(ctx, config.CacheKey.ExamSubmittedKey(examID), studentID).Result()
}

// Add inserts studentIDs into the exam's set. It reports whether the first
// id was newly added, which makes a single Add usable as a claim.
func (s *SubmissionSet) Add(ctx context.Context, examID string, studentIDs ...string) (bool, error) {
	if len(studentIDs) == 0 {
		return false, nil
	}
	members := make([]any, len(studentIDs))
	for i, id := range studentIDs {
		members[i] = id
	}
	added, err := s.rdb.SAdd(ctx, config.CacheKey.ExamSubmittedKey(examID), members...).Result()
	return added > 0, err
}

// Remove deletes studentID from the exam's set, releasing a failed claim.
func (s *SubmissionSet) Remove(ctx context.Context, examID, studentID string) error {
	return s.rdb.SRem(ctx, config.CacheKey.ExamSubmittedKey(examID), studentID).Err()
}
