package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// AnswerRepository reads submitted answer sets. Inserts go through the
// answer worker.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// ListByStudent returns a student's answer set, each answer stamped with the
// stored result when one exists.
func (r *AnswerRepository) ListByStudent(ctx context.Context, examID, studentID string) ([]*model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.exam_id, a.question_id, a.student_id, a.content,
		        COALESCE(res.graded, FALSE), COALESCE(res.score, 0)
		 FROM student_answers a
		 LEFT JOIN exam_results res
		        ON res.exam_id = a.exam_id AND res.student_id = a.student_id
		 WHERE a.exam_id = $1 AND a.student_id = $2
		 ORDER BY a.submitted_at, a.question_id`,
		examID, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []*model.Answer
	for rows.Next() {
		a := &model.Answer{}
		if err := rows.Scan(&a.ExamID, &a.QuestionID, &a.StudentID, &a.Content, &a.Graded, &a.TotalScore); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// HasSubmission reports whether any answer or result is stored for the student.
func (r *AnswerRepository) HasSubmission(ctx context.Context, examID, studentID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM student_answers WHERE exam_id = $1 AND student_id = $2)
		     OR EXISTS (SELECT 1 FROM exam_results WHERE exam_id = $1 AND student_id = $2)`,
		examID, studentID,
	).Scan(&exists)
	return exists, err
}

// ListSubmittedStudents returns every student with a stored result for the exam.
func (r *AnswerRepository) ListSubmittedStudents(ctx context.Context, examID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id FROM exam_results WHERE exam_id = $1`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		ids = append(ids, sid)
	}
	return ids, rows.Err()
}
