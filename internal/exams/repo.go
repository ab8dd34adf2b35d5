package exams

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository persists exam records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateExam inserts an exam record.
func (r *Repository) CreateExam(ctx context.Context, rec Record) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO exams (student_id, subject, score, max_score, exam_date, teacher_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, rec.StudentID, rec.Subject, rec.Score, rec.MaxScore, rec.ExamDate, rec.TeacherID)
	if err := row.Scan(&rec.ID); err != nil {
		return Record{}, fmt.Errorf("insert exam: %w", err)
	}
	return rec, nil
}

// ListExams returns the teacher's exams, newest exam date first.
func (r *Repository) ListExams(ctx context.Context, teacherID int64) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, subject, score, max_score, exam_date::text, teacher_id
		FROM exams
		WHERE teacher_id = $1
		ORDER BY exam_date DESC, id DESC
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.Subject, &rec.Score, &rec.MaxScore, &rec.ExamDate, &rec.TeacherID); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
