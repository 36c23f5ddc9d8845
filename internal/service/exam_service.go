package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// Domain errors
var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrExamExists       = errors.New("exam id already exists")
	ErrExamNotPublished = errors.New("exam is not published")
	ErrQuestionNotFound = errors.New("question not found in exam")
)

// ExamService handles exam authoring, publication and the published-exam cache.
type ExamService struct {
	store ExamStore
	cache ExamCache
	log   zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(store ExamStore, cache ExamCache, log zerolog.Logger) *ExamService {
	return &ExamService{
		store: store,
		cache: cache,
		log:   log.With().Str("component", "exam_service").Logger(),
	}
}

// Create inserts a new draft exam.
func (s *ExamService) Create(ctx context.Context, req model.CreateExamRequest, authorID string) (*model.Exam, error) {
	exam := model.NewExam(req.ID, req.Title)
	exam.AuthorID = authorID
	exam.PointsPerQuestion = req.PointsPerQuestion

	if err := s.store.Create(ctx, exam); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrExamExists
		}
		return nil, fmt.Errorf("create exam: %w", err)
	}

	s.log.Info().Str("exam_id", exam.ID).Str("author_id", authorID).Msg("Exam created")
	return exam, nil
}

// AddQuestion appends a question to a draft exam.
func (s *ExamService) AddQuestion(ctx context.Context, examID string, req model.AddQuestionRequest) (*model.Question, error) {
	exam, err := s.load(ctx, examID)
	if err != nil {
		return nil, err
	}

	q := model.NewQuestion(req.ID, req.QuestionText, model.QuestionType(req.QuestionType))
	q.Points = req.Points
	for _, opt := range req.Options {
		q.AddOption(opt)
	}
	if q.QuestionType == model.QuestionTypeMultipleChoice {
		if err := q.SetCorrectAnswer(req.CorrectOption); err != nil {
			return nil, err
		}
	}

	if err := exam.AddQuestion(q); err != nil {
		return nil, err
	}
	if err := s.store.AddQuestion(ctx, q); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.ErrDuplicateQuestion
		}
		if errors.Is(err, model.ErrExamPublished) {
			// Published between load and insert.
			return nil, model.ErrExamPublished
		}
		return nil, fmt.Errorf("add question: %w", err)
	}

	s.log.Debug().
		Str("exam_id", examID).
		Str("question_id", q.ID).
		Int("order", q.OrderNum).
		Msg("Question added")
	return q, nil
}

// SetCorrectAnswer changes the answer key of a multiple choice question
// while its exam is still a draft.
func (s *ExamService) SetCorrectAnswer(ctx context.Context, examID, questionID, token string) (*model.Question, error) {
	exam, err := s.load(ctx, examID)
	if err != nil {
		return nil, err
	}
	q := exam.Question(questionID)
	if q == nil {
		return nil, ErrQuestionNotFound
	}
	if err := q.SetCorrectAnswer(token); err != nil {
		return nil, err
	}
	if err := s.store.UpdateCorrectOption(ctx, examID, questionID, token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Published between load and update.
			return nil, model.ErrExamPublished
		}
		return nil, fmt.Errorf("update correct option: %w", err)
	}
	return q, nil
}

// Publish makes an exam available to students and warms its cache entry.
// Publishing an exam without questions fails with model.ErrNoQuestions.
func (s *ExamService) Publish(ctx context.Context, examID string) (*model.Exam, error) {
	exam, err := s.load(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.IsPublished() {
		return exam, nil
	}
	if err := exam.Publish(); err != nil {
		return nil, err
	}

	if err := s.store.MarkPublished(ctx, examID); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if err := s.cache.Set(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("Failed to warm exam cache")
	}

	s.log.Info().
		Str("exam_id", examID).
		Int("questions", len(exam.Questions())).
		Msg("Exam published")
	return exam, nil
}

// GetExam returns an exam with its answer key. Published exams are served
// from the cache and re-cached on a miss.
func (s *ExamService) GetExam(ctx context.Context, examID string) (*model.Exam, error) {
	exam, err := s.cache.Get(ctx, examID)
	if err == nil {
		return exam, nil
	}
	if !errors.Is(err, repository.ErrCacheMiss) {
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("Exam cache read failed, using database")
	}

	exam, err = s.load(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.IsPublished() {
		if err := s.cache.Set(ctx, exam); err != nil {
			s.log.Warn().Err(err).Str("exam_id", examID).Msg("Failed to cache exam")
		}
	}
	return exam, nil
}

// StudentView returns a published exam without its answer key.
func (s *ExamService) StudentView(ctx context.Context, examID string) (model.ExamPayload, error) {
	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return model.ExamPayload{}, err
	}
	if !exam.IsPublished() {
		return model.ExamPayload{}, ErrExamNotPublished
	}
	return exam.StudentView(), nil
}

// List returns exam headers, optionally filtered by status.
func (s *ExamService) List(ctx context.Context, status model.ExamStatus) ([]model.Exam, error) {
	exams, err := s.store.List(ctx, status)
	if err != nil {
		return nil, err
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return exams, nil
}

// PrewarmAllCaches loads every published exam into Redis before traffic
// arrives so the first submissions do not stampede Postgres.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.store.List(ctx, model.ExamStatusPublished)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}
	if len(exams) == 0 {
		s.log.Info().Msg("No published exams to prewarm")
		return nil
	}

	warmed := 0
	for _, header := range exams {
		exam, err := s.load(ctx, header.ID)
		if err == nil {
			err = s.cache.Set(ctx, exam)
		}
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", header.ID).Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

func (s *ExamService) load(ctx context.Context, examID string) (*model.Exam, error) {
	exam, err := s.store.Load(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}
	return exam, nil
}
