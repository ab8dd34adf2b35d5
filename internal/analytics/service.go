package analytics

import (
	"context"
	"time"

	"classroom/internal/attendance"
	"classroom/internal/exams"
	"classroom/internal/metrics"
)

// StudentCounter counts a teacher's active students.
type StudentCounter interface {
	CountActiveStudents(ctx context.Context, teacherID int64) (int, error)
}

// AttendanceSource lists a teacher's attendance records.
type AttendanceSource interface {
	ListAttendance(ctx context.Context, teacherID int64, f attendance.Filter) ([]attendance.Record, error)
}

// ExamSource lists a teacher's exam records.
type ExamSource interface {
	ListExams(ctx context.Context, teacherID int64) ([]exams.Record, error)
}

// Service recomputes class analytics from a full scan on every call.
type Service struct {
	students   StudentCounter
	attendance AttendanceSource
	exams      ExamSource
}

// NewService wires the aggregator to its record sources.
func NewService(students StudentCounter, att AttendanceSource, ex ExamSource) *Service {
	return &Service{students: students, attendance: att, exams: ex}
}

// Get returns the analytics for a teacher. Store errors are returned as is
// and no partial result is produced.
func (s *Service) Get(ctx context.Context, teacherID int64) (ClassAnalytics, error) {
	start := time.Now()
	defer func() { metrics.AnalyticsCompute.Observe(time.Since(start).Seconds()) }()

	total, err := s.students.CountActiveStudents(ctx, teacherID)
	if err != nil {
		return ClassAnalytics{}, err
	}
	if total == 0 {
		return Empty(), nil
	}
	records, err := s.attendance.ListAttendance(ctx, teacherID, attendance.Filter{})
	if err != nil {
		return ClassAnalytics{}, err
	}
	results, err := s.exams.ListExams(ctx, teacherID)
	if err != nil {
		return ClassAnalytics{}, err
	}
	return Compute(total, records, results), nil
}
