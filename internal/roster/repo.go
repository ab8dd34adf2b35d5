package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Repository persists students in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const studentColumns = `id, name, roll_number, teacher_id, active, photo_url`

func scanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var st Student
	var roll sql.NullString
	if err := row.Scan(&st.ID, &st.Name, &roll, &st.TeacherID, &st.Active, &st.PhotoURL); err != nil {
		return Student{}, err
	}
	if roll.Valid {
		st.RollNumber = &roll.String
	}
	return st, nil
}

// CreateStudent inserts a student and returns it with its id.
func (r *Repository) CreateStudent(ctx context.Context, st Student) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (name, roll_number, teacher_id, active)
		VALUES ($1, $2, $3, $4)
		RETURNING `+studentColumns,
		st.Name, st.RollNumber, st.TeacherID, st.Active)
	created, err := scanStudent(row)
	if err != nil {
		return Student{}, fmt.Errorf("insert student: %w", err)
	}
	return created, nil
}

// ListStudents returns the teacher's active students.
func (r *Repository) ListStudents(ctx context.Context, teacherID int64) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+studentColumns+`
		FROM students
		WHERE teacher_id = $1 AND active
		ORDER BY id
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}

// GetStudent returns a student of the teacher, active or not. A missing row yields nil, nil.
func (r *Repository) GetStudent(ctx context.Context, teacherID, id int64) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+studentColumns+` FROM students WHERE id = $1 AND teacher_id = $2
	`, id, teacherID)
	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// DeactivateStudent clears the active flag and reports whether a row changed.
func (r *Repository) DeactivateStudent(ctx context.Context, teacherID, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE students SET active = FALSE WHERE id = $1 AND teacher_id = $2 AND active
	`, id, teacherID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountActiveStudents counts the teacher's active students.
func (r *Repository) CountActiveStudents(ctx context.Context, teacherID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM students WHERE teacher_id = $1 AND active
	`, teacherID).Scan(&n)
	return n, err
}

// ActiveStudentIDs returns which of ids are active students of the teacher.
func (r *Repository) ActiveStudentIDs(ctx context.Context, teacherID int64, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, teacherID)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM students
		WHERE teacher_id = $1 AND active AND id IN (`+strings.Join(placeholders, ", ")+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// SetStudentPhoto stores the photo URL of a student.
func (r *Repository) SetStudentPhoto(ctx context.Context, teacherID, id int64, photoURL string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE students SET photo_url = $3 WHERE id = $1 AND teacher_id = $2
	`, id, teacherID, photoURL)
	return err
}
