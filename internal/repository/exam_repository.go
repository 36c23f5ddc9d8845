package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// Create inserts a new draft exam. Returns ErrDuplicate if the id is taken.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exams (id, title, author_id, status, points_per_question)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		e.ID, e.Title, e.AuthorID, e.Status, e.PointsPerQuestion,
	).Scan(&e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// Load retrieves an exam with its questions in presentation order.
// Returns pgx.ErrNoRows if the exam does not exist.
func (r *ExamRepository) Load(ctx context.Context, id string) (*model.Exam, error) {
	var p model.ExamPayload
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, author_id, status, points_per_question, created_at
		 FROM exams WHERE id = $1`, id,
	).Scan(&p.Exam.ID, &p.Exam.Title, &p.Exam.AuthorID, &p.Exam.Status,
		&p.Exam.PointsPerQuestion, &p.Exam.CreatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, question_text, question_type, options, correct_option, points, order_num
		 FROM questions WHERE exam_id = $1
		 ORDER BY order_num`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		q := &model.Question{}
		if err := rows.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.QuestionType,
			&q.Options, &q.CorrectOption, &q.Points, &q.OrderNum); err != nil {
			return nil, err
		}
		p.Questions = append(p.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	exam, err := model.FromPayload(p)
	if err != nil {
		return nil, fmt.Errorf("rebuild exam %s: %w", id, err)
	}
	return exam, nil
}

// AddQuestion inserts a question into a draft exam. Its OrderNum must
// already be assigned. Returns model.ErrExamPublished when the exam is no
// longer a draft.
func (r *ExamRepository) AddQuestion(ctx context.Context, q *model.Question) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO questions (exam_id, id, question_text, question_type, options, correct_option, points, order_num)
		 SELECT e.id, $2, $3, $4, $5, $6, $7, $8
		 FROM exams e WHERE e.id = $1 AND e.status = $9`,
		q.ExamID, q.ID, q.QuestionText, q.QuestionType, q.Options, q.CorrectOption, q.Points, q.OrderNum,
		model.ExamStatusDraft,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrExamPublished
	}
	return nil
}

// UpdateCorrectOption changes the answer key of a draft question.
func (r *ExamRepository) UpdateCorrectOption(ctx context.Context, examID, questionID, token string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE questions q SET correct_option = $1
		 FROM exams e
		 WHERE q.exam_id = e.id AND e.status = $2 AND q.exam_id = $3 AND q.id = $4`,
		token, model.ExamStatusDraft, examID, questionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MarkPublished flips a draft exam to PUBLISHED.
func (r *ExamRepository) MarkPublished(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW() WHERE id = $2`,
		model.ExamStatusPublished, id)
	return err
}

// List returns exam headers, newest first. Questions are not loaded.
func (r *ExamRepository) List(ctx context.Context, status model.ExamStatus) ([]model.Exam, error) {
	query := `SELECT id, title, author_id, status, points_per_question, created_at FROM exams`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.AuthorID, &e.Status, &e.PointsPerQuestion, &e.CreatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}
