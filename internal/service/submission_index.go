package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// SubmissionIndex answers "has this student already submitted this exam?".
// Redis holds the fast path; Postgres is the source of truth and repairs
// Redis whenever the two disagree.
type SubmissionIndex struct {
	set     SubmittedSet
	answers AnswerStore
	log     zerolog.Logger
}

// NewSubmissionIndex creates a new SubmissionIndex.
func NewSubmissionIndex(set SubmittedSet, answers AnswerStore, log zerolog.Logger) *SubmissionIndex {
	return &SubmissionIndex{
		set:     set,
		answers: answers,
		log:     log.With().Str("component", "submission_index").Logger(),
	}
}

// HasPriorSubmission implements model.SubmissionHistory.
func (i *SubmissionIndex) HasPriorSubmission(ctx context.Context, studentID, examID string) (bool, error) {
	found, err := i.set.Contains(ctx, examID, studentID)
	if err == nil && found {
		return true, nil
	}
	if err != nil {
		i.log.Warn().Err(err).Str("exam_id", examID).Msg("Submission set unavailable, using database")
	}

	stored, err := i.answers.HasSubmission(ctx, examID, studentID)
	if err != nil {
		return false, fmt.Errorf("check stored submission: %w", err)
	}
	if stored {
		if _, err := i.set.Add(ctx, examID, studentID); err != nil {
			i.log.Warn().Err(err).Str("exam_id", examID).Str("student_id", studentID).Msg("Failed to repair submission set")
		}
	}
	return stored, nil
}

// Claim atomically marks the student as submitted. It returns false when
// another submission got there first.
func (i *SubmissionIndex) Claim(ctx context.Context, examID, studentID string) (bool, error) {
	added, err := i.set.Add(ctx, examID, studentID)
	if err != nil {
		return false, fmt.Errorf("claim submission: %w", err)
	}
	return added, nil
}

// Release undoes a claim whose submission could not be queued.
func (i *SubmissionIndex) Release(ctx context.Context, examID, studentID string) {
	if err := i.set.Remove(ctx, examID, studentID); err != nil {
		i.log.Error().Err(err).
			Str("exam_id", examID).
			Str("student_id", studentID).
			Msg("Failed to release submission claim")
	}
}

// Warm copies the stored submitters of an exam into Redis.
func (i *SubmissionIndex) Warm(ctx context.Context, examID string) (int, error) {
	ids, err := i.answers.ListSubmittedStudents(ctx, examID)
	if err != nil {
		return 0, fmt.Errorf("list submitters: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if _, err := i.set.Add(ctx, examID, ids...); err != nil {
		return 0, fmt.Errorf("warm submission set: %w", err)
	}
	return len(ids), nil
}
