package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ActivityRepository reads persisted suspicious-activity logs. Rows are
// written in batches by the activity worker.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// ListByStudent returns a student's log in a session, oldest first.
func (r *ActivityRepository) ListByStudent(ctx context.Context, sessionID uuid.UUID, studentID string) ([]model.ActivityLogEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT action, recorded_at
		 FROM activity_logs
		 WHERE session_id = $1 AND student_id = $2
		 ORDER BY recorded_at, id`,
		sessionID, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.ActivityLogEntry{}
	for rows.Next() {
		var e model.ActivityLogEntry
		if err := rows.Scan(&e.Action, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListBySession returns every student's log in a session, keyed by student.
func (r *ActivityRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) (map[string][]model.ActivityLogEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, action, recorded_at
		 FROM activity_logs
		 WHERE session_id = $1
		 ORDER BY student_id, recorded_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make(map[string][]model.ActivityLogEntry)
	for rows.Next() {
		var sid string
		var e model.ActivityLogEntry
		if err := rows.Scan(&sid, &e.Action, &e.Timestamp); err != nil {
			return nil, err
		}
		logs[sid] = append(logs[sid], e)
	}
	return logs, rows.Err()
}
