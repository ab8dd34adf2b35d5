package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classroom/internal/metrics"
	"classroom/internal/queue"
)

// Event kinds published by the API.
const (
	KindAttendanceMarked = "attendance.marked"
	KindExamRecorded     = "exam.recorded"
	KindStudentAdded     = "student.added"
	KindStudentRemoved   = "student.removed"
)

// Event is the body of a queued activity message. Only the fields relevant
// to its kind are set.
type Event struct {
	TeacherID int64     `json:"teacherId"`
	At        time.Time `json:"at"`
	StudentID int64     `json:"studentId,omitempty"`
	Name      string    `json:"name,omitempty"`
	Date      string    `json:"date,omitempty"`
	Present   int       `json:"present,omitempty"`
	Absent    int       `json:"absent,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Score     int       `json:"score,omitempty"`
	MaxScore  int       `json:"maxScore,omitempty"`
}

// Entry is one line of a teacher's activity feed.
type Entry struct {
	ID         string    `json:"id"`
	TeacherID  int64     `json:"teacherId"`
	Kind       string    `json:"kind"`
	Summary    string    `json:"summary"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Store persists activity entries.
type Store interface {
	AppendActivity(ctx context.Context, e Entry) error
	RecentActivity(ctx context.Context, teacherID int64, limit int) ([]Entry, error)
}

// Publish encodes ev and enqueues it under kind.
func Publish(ctx context.Context, q queue.Queue, kind string, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	msg, err := queue.NewMessage(kind, ev)
	if err != nil {
		return err
	}
	return q.Publish(ctx, msg)
}

// Describe renders the human readable summary of an event.
func Describe(kind string, ev Event) (string, bool) {
	switch kind {
	case KindAttendanceMarked:
		return fmt.Sprintf("Marked attendance for %s: %d present, %d absent", ev.Date, ev.Present, ev.Absent), true
	case KindExamRecorded:
		return fmt.Sprintf("Recorded %s exam for student %d: %d/%d", ev.Subject, ev.StudentID, ev.Score, ev.MaxScore), true
	case KindStudentAdded:
		return fmt.Sprintf("Added %s to the roster", ev.Name), true
	case KindStudentRemoved:
		return fmt.Sprintf("Removed student %d from the roster", ev.StudentID), true
	}
	return "", false
}

// Recorder turns queued events into feed entries.
type Recorder struct {
	store Store
	log   *zap.Logger
}

// NewRecorder creates a recorder.
func NewRecorder(store Store, log *zap.Logger) *Recorder {
	return &Recorder{store: store, log: log}
}

// Handle records a single message. Unknown kinds are ignored.
func (r *Recorder) Handle(ctx context.Context, msg queue.Message) error {
	var ev Event
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		return fmt.Errorf("decode %s event: %w", msg.Type, err)
	}
	summary, ok := Describe(msg.Type, ev)
	if !ok {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	err := r.store.AppendActivity(ctx, Entry{
		ID:         uuid.NewString(),
		TeacherID:  ev.TeacherID,
		Kind:       msg.Type,
		Summary:    summary,
		OccurredAt: ev.At,
	})
	if err != nil {
		return err
	}
	metrics.ActivityRecorded.WithLabelValues(msg.Type).Inc()
	return nil
}

// Run consumes q until ctx is done or the queue closes.
func (r *Recorder) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if err := r.Handle(ctx, msg); err != nil {
			r.log.Warn("activity not recorded", zap.String("type", msg.Type), zap.Error(err))
		}
	}
	return ctx.Err()
}
