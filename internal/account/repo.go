package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Repository persists teachers and refresh tokens in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const teacherColumns = `id, username, password_hash, full_name, class_code, teacher_unique_id, is_admin, created_at`

func scanTeacher(row *sql.Row) (*Teacher, error) {
	var t Teacher
	err := row.Scan(&t.ID, &t.Username, &t.PasswordHash, &t.FullName, &t.ClassCode, &t.TeacherUniqueID, &t.IsAdmin, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// CreateTeacher inserts a teacher. A duplicate username yields ErrUsernameTaken.
func (r *Repository) CreateTeacher(ctx context.Context, t Teacher) (Teacher, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO teachers (username, password_hash, full_name, class_code, teacher_unique_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_admin, created_at
	`, t.Username, t.PasswordHash, t.FullName, t.ClassCode, t.TeacherUniqueID)
	if err := row.Scan(&t.ID, &t.IsAdmin, &t.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Teacher{}, ErrUsernameTaken
		}
		return Teacher{}, fmt.Errorf("insert teacher: %w", err)
	}
	return t, nil
}

// TeacherByUsername returns nil, nil when no teacher matches.
func (r *Repository) TeacherByUsername(ctx context.Context, username string) (*Teacher, error) {
	return scanTeacher(r.db.QueryRowContext(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE username = $1`, username))
}

// TeacherByID returns nil, nil when no teacher matches.
func (r *Repository) TeacherByID(ctx context.Context, id int64) (*Teacher, error) {
	return scanTeacher(r.db.QueryRowContext(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE id = $1`, id))
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, teacherID int64, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (teacher_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, teacherID, token, expiresAt)
	return err
}

// ConsumeRefreshToken revokes the token only if it belongs to the teacher and
// is still live. The single conditional UPDATE lets exactly one caller win.
func (r *Repository) ConsumeRefreshToken(ctx context.Context, teacherID int64, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE
		WHERE token = $1 AND teacher_id = $2 AND NOT revoked AND expires_at > NOW()
	`, token, teacherID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}
