package activity

import (
	"context"
	"database/sql"
)

// Repository persists the activity feed in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// AppendActivity writes an entry. Re-delivered entries with the same id are ignored.
func (r *Repository) AppendActivity(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, teacher_id, kind, summary, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.TeacherID, e.Kind, e.Summary, e.OccurredAt)
	return err
}

// RecentActivity returns the newest entries first.
func (r *Repository) RecentActivity(ctx context.Context, teacherID int64, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id::text, teacher_id, kind, summary, occurred_at
		FROM activity_log
		WHERE teacher_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, teacherID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TeacherID, &e.Kind, &e.Summary, &e.OccurredAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
