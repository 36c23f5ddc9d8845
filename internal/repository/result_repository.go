package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ResultRepository reads per-student exam totals. Upserts go through the
// result worker.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Get returns one student's result. Returns pgx.ErrNoRows if absent.
func (r *ResultRepository) Get(ctx context.Context, examID, studentID string) (*model.ExamResult, error) {
	res := &model.ExamResult{}
	err := r.pool.QueryRow(ctx,
		`SELECT exam_id, student_id, score, graded, source, updated_at
		 FROM exam_results WHERE exam_id = $1 AND student_id = $2`,
		examID, studentID,
	).Scan(&res.ExamID, &res.StudentID, &res.Score, &res.Graded, &res.Source, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListByExam returns a page of results ordered by student id, plus the total.
func (r *ResultRepository) ListByExam(ctx context.Context, examID string, limit, offset int) ([]model.ExamResult, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_results WHERE exam_id = $1`, examID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT exam_id, student_id, score, graded, source, updated_at
		 FROM exam_results
		 WHERE exam_id = $1
		 ORDER BY student_id
		 LIMIT $2 OFFSET $3`,
		examID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results := []model.ExamResult{}
	for rows.Next() {
		var res model.ExamResult
		if err := rows.Scan(&res.ExamID, &res.StudentID, &res.Score, &res.Graded, &res.Source, &res.UpdatedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, res)
	}
	return results, total, rows.Err()
}
