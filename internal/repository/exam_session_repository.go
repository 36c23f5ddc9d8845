package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ExamSessionRepository mirrors proctored sessions and their rosters.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

const sessionColumns = `id, exam_id, status, entry_token_hash, created_by, created_at, started_at, ended_at`

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(&s.ID, &s.ExamID, &s.Status, &s.EntryTokenHash, &s.CreatedBy,
		&s.CreatedAt, &s.StartedAt, &s.EndedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new session in CREATED state.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (id, exam_id, status, entry_token_hash, created_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		s.ID, s.ExamID, s.Status, s.EntryTokenHash, s.CreatedBy,
	).Scan(&s.CreatedAt)
}

// GetByID retrieves a session with its roster.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	s.Students, err = r.listStudents(ctx, id)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateStatus records a lifecycle transition. An ended session is never
// reactivated, so a late ACTIVE write after END leaves the row untouched.
func (r *ExamSessionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.SessionStatus, at time.Time) error {
	var query string
	args := []any{status, at, id}
	switch status {
	case model.SessionStatusActive:
		query = `UPDATE exam_sessions SET status = $1, started_at = COALESCE(started_at, $2)
		 WHERE id = $3 AND status = $4`
		args = append(args, model.SessionStatusCreated)
	case model.SessionStatusEnded:
		query = `UPDATE exam_sessions SET status = $1, ended_at = COALESCE(ended_at, $2) WHERE id = $3`
	default:
		return fmt.Errorf("unsupported session status %q", status)
	}
	_, err := r.pool.Exec(ctx, query, args...)
	return err
}

// AddStudent enrolls a student. Enrolling twice is a no-op.
func (r *ExamSessionRepository) AddStudent(ctx context.Context, id uuid.UUID, studentID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_students (session_id, student_id)
		 VALUES ($1, $2)
		 ON CONFLICT (session_id, student_id) DO NOTHING`,
		id, studentID)
	return err
}

// List returns sessions newest first, optionally filtered by exam.
func (r *ExamSessionRepository) List(ctx context.Context, examID string) ([]model.ExamSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM exam_sessions`
	var args []any
	if examID != "" {
		query += ` WHERE exam_id = $1`
		args = append(args, examID)
	}
	query += ` ORDER BY created_at DESC`
	return r.query(ctx, query, args...)
}

// ListOpen returns every session that has not ended, with rosters.
func (r *ExamSessionRepository) ListOpen(ctx context.Context) ([]model.ExamSession, error) {
	sessions, err := r.query(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE status <> $1 ORDER BY created_at`,
		model.SessionStatusEnded)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		sessions[i].Students, err = r.listStudents(ctx, sessions[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

func (r *ExamSessionRepository) query(ctx context.Context, query string, args ...any) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *ExamSessionRepository) listStudents(ctx context.Context, id uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id FROM session_students WHERE session_id = $1 ORDER BY student_id`, id)
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
