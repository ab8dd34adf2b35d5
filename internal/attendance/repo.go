package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertAttendance writes the presence flag for (student, date). The unique
// index on (student_id, date) turns a second submission into an in-place
// update that keeps the original id. xmax is zero only for freshly inserted rows.
func (r *Repository) UpsertAttendance(ctx context.Context, rec Record) (Record, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance (student_id, date, present, teacher_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, date) DO UPDATE SET present = EXCLUDED.present
		RETURNING id, student_id, date::text, present, teacher_id, (xmax = 0) AS inserted
	`, rec.StudentID, rec.Date, rec.Present, rec.TeacherID)
	var out Record
	var inserted bool
	if err := row.Scan(&out.ID, &out.StudentID, &out.Date, &out.Present, &out.TeacherID, &inserted); err != nil {
		return Record{}, false, fmt.Errorf("upsert attendance: %w", err)
	}
	return out, inserted, nil
}

// ListAttendance returns the teacher's records matching the filter, oldest date first.
func (r *Repository) ListAttendance(ctx context.Context, teacherID int64, f Filter) ([]Record, error) {
	query := `SELECT id, student_id, date::text, present, teacher_id FROM attendance`
	args := []any{teacherID}
	clauses := []string{"teacher_id = $1"}
	if f.Date != "" {
		args = append(args, f.Date)
		clauses = append(clauses, fmt.Sprintf("date = $%d", len(args)))
	}
	if f.From != "" {
		args = append(args, f.From)
		clauses = append(clauses, fmt.Sprintf("date >= $%d", len(args)))
	}
	if f.To != "" {
		args = append(args, f.To)
		clauses = append(clauses, fmt.Sprintf("date < $%d", len(args)))
	}
	query += " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY date, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.Date, &rec.Present, &rec.TeacherID); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
