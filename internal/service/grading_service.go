package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/scoring"
	"github.com/stemsi/exstem-proctor/internal/worker"
)

// Grading errors
var (
	ErrAlreadySubmitted = errors.New("answers already submitted for this exam")
	ErrNoSubmission     = errors.New("no submission for this student")
)

// SubmissionClaims is the submission history plus the claim used to make a
// submission happen at most once.
type SubmissionClaims interface {
	model.SubmissionHistory
	Claim(ctx context.Context, examID, studentID string) (bool, error)
	Release(ctx context.Context, examID, studentID string)
}

// StudentResult is a student's total together with the answers behind it.
type StudentResult struct {
	Result  model.ExamResult `json:"result"`
	Answers []*model.Answer  `json:"answers"`
	Display string           `json:"display_score"`
}

// GradingService accepts answer sets, grades them and records manual
// overrides.
type GradingService struct {
	exams    ExamReader
	claims   SubmissionClaims
	answers  AnswerStore
	results  ResultStore
	drafts   DraftStore
	producer Producer
	engine   *scoring.Engine
	now      func() time.Time
	log      zerolog.Logger
}

// NewGradingService creates a new GradingService.
func NewGradingService(
	exams ExamReader,
	claims SubmissionClaims,
	answers AnswerStore,
	results ResultStore,
	drafts DraftStore,
	producer Producer,
	engine *scoring.Engine,
	log zerolog.Logger,
) *GradingService {
	return &GradingService{
		exams:    exams,
		claims:   claims,
		answers:  answers,
		results:  results,
		drafts:   drafts,
		producer: producer,
		engine:   engine,
		now:      time.Now,
		log:      log.With().Str("component", "grading_service").Logger(),
	}
}

// Submit grades and records a student's answer set. Blank answers are
// dropped before grading. A student submits an exam at most once.
func (s *GradingService) Submit(ctx context.Context, examID, studentID string, submitted []model.SubmittedAnswer) (*StudentResult, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !exam.IsPublished() {
		return nil, ErrExamNotPublished
	}
	eligible, err := exam.IsEligible(ctx, studentID, s.claims)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, ErrAlreadySubmitted
	}

	answers := make([]*model.Answer, 0, len(submitted))
	for _, sa := range submitted {
		a := model.NewAnswer(studentID, examID, sa.QuestionID, sa.Content)
		if a.Validate() {
			answers = append(answers, a)
		}
	}

	claimed, err := s.claims.Claim(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrAlreadySubmitted
	}

	total := s.engine.Grade(exam, answers)
	now := s.now()
	result := model.ExamResult{
		ExamID:    examID,
		StudentID: studentID,
		Score:     total,
		Graded:    true,
		Source:    model.ScoreSourceAuto,
		UpdatedAt: now,
	}

	payload := worker.NewAnswerSetPayload(examID, studentID, answers, now)
	if err := s.producer.Enqueue(ctx, config.WorkerKey.PersistAnswersQueue, payload); err != nil {
		s.claims.Release(ctx, examID, studentID)
		return nil, fmt.Errorf("queue answers: %w", err)
	}
	if err := s.producer.Enqueue(ctx, config.WorkerKey.PersistResultsQueue, worker.NewResultPayload(result)); err != nil {
		// Answers are queued; Result recomputes the total until one is stored.
		s.log.Error().Err(err).Str("exam_id", examID).Str("student_id", studentID).Msg("Failed to queue result")
	}

	s.log.Info().
		Str("exam_id", examID).
		Str("student_id", studentID).
		Int("answers", len(answers)).
		Float64("score", total).
		Msg("Answer set graded")

	return &StudentResult{Result: result, Answers: answers, Display: displayScore(answers, result)}, nil
}

// Eligible reports whether the student may still sit the exam.
func (s *GradingService) Eligible(ctx context.Context, examID, studentID string) (bool, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return false, err
	}
	return exam.IsEligible(ctx, studentID, s.claims)
}

// SubmitDraft submits whatever the student autosaved.
func (s *GradingService) SubmitDraft(ctx context.Context, examID, studentID string) (*StudentResult, error) {
	draft, err := s.drafts.Load(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}

	ids := make([]string, 0, len(draft))
	for qid := range draft {
		ids = append(ids, qid)
	}
	sort.Strings(ids)

	submitted := make([]model.SubmittedAnswer, 0, len(ids))
	for _, qid := range ids {
		submitted = append(submitted, model.SubmittedAnswer{QuestionID: qid, Content: draft[qid]})
	}
	return s.Submit(ctx, examID, studentID, submitted)
}

// Autosave stores a draft answer while the student is still working.
func (s *GradingService) Autosave(ctx context.Context, examID, studentID, questionID, content string) error {
	prior, err := s.claims.HasPriorSubmission(ctx, studentID, examID)
	if err != nil {
		return err
	}
	if prior {
		return ErrAlreadySubmitted
	}
	return s.drafts.Save(ctx, examID, studentID, questionID, content)
}

// Override assigns a manual total to a submitted answer set. Values outside
// [0, ScaleMax] fail with scoring.ErrScoreOutOfRange and change nothing.
func (s *GradingService) Override(ctx context.Context, examID, studentID string, value float64) (*StudentResult, error) {
	answers, err := s.answers.ListByStudent(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	if len(answers) == 0 {
		// An all-blank submission stores a result but no answers.
		if _, err := s.results.Get(ctx, examID, studentID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrNoSubmission
			}
			return nil, fmt.Errorf("load result: %w", err)
		}
	}

	if err := s.engine.OverrideAll(answers, value); err != nil {
		return nil, err
	}

	result := model.ExamResult{
		ExamID:    examID,
		StudentID: studentID,
		Score:     value,
		Graded:    true,
		Source:    model.ScoreSourceManual,
		UpdatedAt: s.now(),
	}
	if err := s.producer.Enqueue(ctx, config.WorkerKey.PersistResultsQueue, worker.NewResultPayload(result)); err != nil {
		return nil, fmt.Errorf("queue result: %w", err)
	}

	s.log.Info().
		Str("exam_id", examID).
		Str("student_id", studentID).
		Float64("score", value).
		Msg("Score overridden")

	return &StudentResult{Result: result, Answers: answers, Display: displayScore(answers, result)}, nil
}

// Result returns a student's stored total and answers. When the total has
// not been persisted yet it is recomputed from the stored answers.
func (s *GradingService) Result(ctx context.Context, examID, studentID string) (*StudentResult, error) {
	answers, err := s.answers.ListByStudent(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}

	stored, err := s.results.Get(ctx, examID, studentID)
	switch {
	case err == nil:
		return &StudentResult{Result: *stored, Answers: answers, Display: displayScore(answers, *stored)}, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("load result: %w", err)
	case len(answers) == 0:
		return nil, ErrNoSubmission
	}

	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	total := s.engine.Grade(exam, answers)
	result := model.ExamResult{
		ExamID:    examID,
		StudentID: studentID,
		Score:     total,
		Graded:    true,
		Source:    model.ScoreSourceAuto,
		UpdatedAt: s.now(),
	}
	return &StudentResult{Result: result, Answers: answers, Display: displayScore(answers, result)}, nil
}

// Results lists an exam's stored totals.
func (s *GradingService) Results(ctx context.Context, examID string, page, perPage int) ([]model.ExamResult, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	results, total, err := s.results.ListByExam(ctx, examID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	return results, response.NewPagination(page, perPage, total), nil
}

// MaxScore is the best total an exam can yield.
func (s *GradingService) MaxScore(ctx context.Context, examID string) (float64, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return 0, err
	}
	return s.engine.MaxScore(exam), nil
}

func displayScore(answers []*model.Answer, result model.ExamResult) string {
	if len(answers) > 0 {
		return answers[0].DisplayScore()
	}
	a := model.Answer{Graded: result.Graded, TotalScore: result.Score}
	return a.DisplayScore()
}
