package exams

import (
	"context"
	"math"
	"strings"
	"time"

	"classroom/internal/apperr"
	"classroom/internal/metrics"
)

// Record is an immutable exam result.
type Record struct {
	ID        int64  `json:"id"`
	StudentID int64  `json:"studentId"`
	Subject   string `json:"subject"`
	Score     int    `json:"score"`
	MaxScore  int    `json:"maxScore"`
	ExamDate  string `json:"examDate"`
	TeacherID int64  `json:"teacherId"`
}

// Percentage returns score / maxScore * 100.
func (r Record) Percentage() float64 {
	if r.MaxScore <= 0 {
		return 0
	}
	return float64(r.Score) * 100 / float64(r.MaxScore)
}

// AtMost reports whether the percentage is <= pct, using exact integer math.
func (r Record) AtMost(pct int) bool {
	return r.Score*100 <= pct*r.MaxScore
}

// New is the input of Service.Record.
type New struct {
	StudentID int64
	Subject   string
	Score     int
	MaxScore  int
	ExamDate  string
}

// Store persists exam records.
type Store interface {
	CreateExam(ctx context.Context, rec Record) (Record, error)
	ListExams(ctx context.Context, teacherID int64) ([]Record, error)
}

// Service validates and stores exam results.
type Service struct {
	store Store
}

// NewService creates an exam service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Validate checks field ranges and returns the normalized record.
func Validate(teacherID int64, in New) (Record, error) {
	if in.StudentID <= 0 {
		return Record{}, apperr.Invalid("studentId", "studentId must be a positive id")
	}
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return Record{}, apperr.Invalid("subject", "subject is required")
	}
	if in.MaxScore < 1 {
		return Record{}, apperr.Invalid("maxScore", "maxScore must be at least 1")
	}
	// scores are stored as INTEGER; this also keeps AtMost from overflowing
	if in.MaxScore > math.MaxInt32 {
		return Record{}, apperr.Invalid("maxScore", "maxScore is too large")
	}
	if in.Score < 0 {
		return Record{}, apperr.Invalid("score", "score must not be negative")
	}
	if in.Score > in.MaxScore {
		return Record{}, apperr.Invalid("score", "score must not exceed maxScore")
	}
	d, err := time.Parse("2006-01-02", in.ExamDate)
	if err != nil {
		return Record{}, apperr.Invalid("examDate", "must be a date in YYYY-MM-DD format")
	}
	return Record{
		StudentID: in.StudentID,
		Subject:   subject,
		Score:     in.Score,
		MaxScore:  in.MaxScore,
		ExamDate:  d.Format("2006-01-02"),
		TeacherID: teacherID,
	}, nil
}

// Record validates and stores a new exam result.
func (s *Service) Record(ctx context.Context, teacherID int64, in New) (Record, error) {
	rec, err := Validate(teacherID, in)
	if err != nil {
		return Record{}, err
	}
	created, err := s.store.CreateExam(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	metrics.ExamsRecorded.Inc()
	return created, nil
}

// List returns the teacher's exam records.
func (s *Service) List(ctx context.Context, teacherID int64) ([]Record, error) {
	recs, err := s.store.ListExams(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []Record{}
	}
	return recs, nil
}
