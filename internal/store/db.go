package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB opens a Postgres pool and verifies it with a ping.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{Client: db}, nil
}

// Healthy pings the database.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// Migrate creates the schema if it does not exist. Statements are idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	tx, err := d.Client.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS teachers (
		id                BIGSERIAL PRIMARY KEY,
		username          TEXT NOT NULL UNIQUE,
		password_hash     TEXT NOT NULL,
		full_name         TEXT NOT NULL,
		class_code        TEXT NOT NULL,
		teacher_unique_id TEXT NOT NULL,
		is_admin          BOOLEAN NOT NULL DEFAULT FALSE,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		token      TEXT PRIMARY KEY,
		teacher_id BIGINT NOT NULL REFERENCES teachers(id),
		expires_at TIMESTAMPTZ NOT NULL,
		revoked    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		roll_number TEXT,
		teacher_id  BIGINT NOT NULL REFERENCES teachers(id),
		active      BOOLEAN NOT NULL DEFAULT TRUE,
		photo_url   TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_students_teacher ON students(teacher_id) WHERE active`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id         BIGSERIAL PRIMARY KEY,
		student_id BIGINT NOT NULL REFERENCES students(id),
		date       DATE NOT NULL,
		present    BOOLEAN NOT NULL,
		teacher_id BIGINT NOT NULL REFERENCES teachers(id),
		UNIQUE (student_id, date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_teacher_date ON attendance(teacher_id, date)`,
	`CREATE TABLE IF NOT EXISTS exams (
		id         BIGSERIAL PRIMARY KEY,
		student_id BIGINT NOT NULL REFERENCES students(id),
		subject    TEXT NOT NULL,
		score      INTEGER NOT NULL CHECK (score >= 0),
		max_score  INTEGER NOT NULL CHECK (max_score >= 1),
		exam_date  DATE NOT NULL,
		teacher_id BIGINT NOT NULL REFERENCES teachers(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_exams_teacher ON exams(teacher_id)`,
	`CREATE TABLE IF NOT EXISTS activity_log (
		id          UUID PRIMARY KEY,
		teacher_id  BIGINT NOT NULL REFERENCES teachers(id),
		kind        TEXT NOT NULL,
		summary     TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_teacher_time ON activity_log(teacher_id, occurred_at DESC)`,
}
