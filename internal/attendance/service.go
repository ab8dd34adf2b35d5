package attendance

import (
	"context"
	"fmt"
	"strings"

	"classroom/internal/metrics"
)

// Record is the presence state of one student on one calendar date.
// There is at most one Record per (StudentID, Date).
type Record struct {
	ID        int64  `json:"id"`
	StudentID int64  `json:"studentId"`
	Date      string `json:"date"`
	Present   bool   `json:"present"`
	TeacherID int64  `json:"teacherId"`
}

// Mark is one entry of a batch submission.
type Mark struct {
	StudentID int64
	Present   bool
}

// Filter narrows a listing. Date selects a single day; From/To select the
// half-open range [From, To). An empty filter returns everything.
type Filter struct {
	Date string
	From string
	To   string
}

// Store persists attendance records. UpsertAttendance must insert or update
// atomically on (StudentID, Date) and report whether a new row was created.
type Store interface {
	UpsertAttendance(ctx context.Context, rec Record) (Record, bool, error)
	ListAttendance(ctx context.Context, teacherID int64, f Filter) ([]Record, error)
}

// MarkError is the failure of a single pair in a batch.
type MarkError struct {
	Index     int
	StudentID int64
	Err       error
}

// BatchError collects per-pair failures of a reconciliation. Pairs not listed
// were stored successfully.
type BatchError struct {
	Total  int
	Failed []MarkError
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("records[%d] (student %d): %v", f.Index, f.StudentID, f.Err))
	}
	return fmt.Sprintf("%d of %d attendance records failed: %s", len(e.Failed), e.Total, strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f.Err
	}
	return errs
}

// Reconciler applies attendance batches idempotently.
type Reconciler struct {
	store Store
}

// NewReconciler creates a reconciler backed by a store.
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile upserts one record per mark for the given date and returns them
// in input order. Every mark is attempted even when earlier ones fail; on
// partial failure the stored records are returned with a *BatchError.
func (r *Reconciler) Reconcile(ctx context.Context, teacherID int64, date string, marks []Mark) ([]Record, error) {
	day, err := ParseDate("date", date)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(marks))
	var failed []MarkError
	for i, m := range marks {
		rec, inserted, err := r.store.UpsertAttendance(ctx, Record{
			StudentID: m.StudentID,
			Date:      day,
			Present:   m.Present,
			TeacherID: teacherID,
		})
		if err != nil {
			metrics.AttendanceReconciled.WithLabelValues("failed").Inc()
			failed = append(failed, MarkError{Index: i, StudentID: m.StudentID, Err: err})
			continue
		}
		if inserted {
			metrics.AttendanceReconciled.WithLabelValues("inserted").Inc()
		} else {
			metrics.AttendanceReconciled.WithLabelValues("updated").Inc()
		}
		out = append(out, rec)
	}
	if len(failed) > 0 {
		return out, &BatchError{Total: len(marks), Failed: failed}
	}
	return out, nil
}

// List returns the teacher's records, optionally narrowed to one date or one
// YYYY-MM month. Date wins when both are given.
func (r *Reconciler) List(ctx context.Context, teacherID int64, date, month string) ([]Record, error) {
	var f Filter
	switch {
	case date != "":
		day, err := ParseDate("date", date)
		if err != nil {
			return nil, err
		}
		f.Date = day
	case month != "":
		from, to, err := MonthRange("month", month)
		if err != nil {
			return nil, err
		}
		f.From, f.To = from, to
	}
	recs, err := r.store.ListAttendance(ctx, teacherID, f)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []Record{}
	}
	return recs, nil
}

// Summary tallies a reconciled batch for activity reporting.
func Summary(recs []Record) (present, absent int) {
	for _, r := range recs {
		if r.Present {
			present++
		} else {
			absent++
		}
	}
	return present, absent
}
