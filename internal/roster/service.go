package roster

import (
	"context"
	"strings"

	"classroom/internal/apperr"
)

// Student is a roster entry owned by one teacher. Removing a student only
// clears Active so attendance and exam history stay linked.
type Student struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	RollNumber *string `json:"rollNumber"`
	TeacherID  int64   `json:"teacherId"`
	Active     bool    `json:"active"`
	PhotoURL   string  `json:"photoUrl,omitempty"`
}

// Store persists students.
type Store interface {
	CreateStudent(ctx context.Context, st Student) (Student, error)
	ListStudents(ctx context.Context, teacherID int64) ([]Student, error)
	GetStudent(ctx context.Context, teacherID, id int64) (*Student, error)
	DeactivateStudent(ctx context.Context, teacherID, id int64) (bool, error)
	CountActiveStudents(ctx context.Context, teacherID int64) (int, error)
	ActiveStudentIDs(ctx context.Context, teacherID int64, ids []int64) (map[int64]bool, error)
	SetStudentPhoto(ctx context.Context, teacherID, id int64, photoURL string) error
}

// Service manages a teacher's roster.
type Service struct {
	store Store
}

// NewService creates a roster service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Add creates an active student for the teacher.
func (s *Service) Add(ctx context.Context, teacherID int64, name string, rollNumber *string) (Student, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Student{}, apperr.Invalid("name", "name is required")
	}
	if len(name) > 200 {
		return Student{}, apperr.Invalid("name", "name must be at most 200 characters")
	}
	var roll *string
	if rollNumber != nil {
		if r := strings.TrimSpace(*rollNumber); r != "" {
			roll = &r
		}
	}
	return s.store.CreateStudent(ctx, Student{
		Name:       name,
		RollNumber: roll,
		TeacherID:  teacherID,
		Active:     true,
	})
}

// List returns the teacher's active students.
func (s *Service) List(ctx context.Context, teacherID int64) ([]Student, error) {
	students, err := s.store.ListStudents(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if students == nil {
		students = []Student{}
	}
	return students, nil
}

// Remove soft-deletes a student. It returns apperr.ErrNotFound when the
// teacher has no active student with that id.
func (s *Service) Remove(ctx context.Context, teacherID, id int64) error {
	ok, err := s.store.DeactivateStudent(ctx, teacherID, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNotFound
	}
	return nil
}

// Get returns one active student of the teacher.
func (s *Service) Get(ctx context.Context, teacherID, id int64) (Student, error) {
	st, err := s.store.GetStudent(ctx, teacherID, id)
	if err != nil {
		return Student{}, err
	}
	if st == nil || !st.Active {
		return Student{}, apperr.ErrNotFound
	}
	return *st, nil
}

// Count returns the number of active students.
func (s *Service) Count(ctx context.Context, teacherID int64) (int, error) {
	return s.store.CountActiveStudents(ctx, teacherID)
}

// Unowned returns the ids from the list that are not active students of
// the teacher, preserving input order and duplicates.
func (s *Service) Unowned(ctx context.Context, teacherID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	owned, err := s.store.ActiveStudentIDs(ctx, teacherID, ids)
	if err != nil {
		return nil, err
	}
	var missing []int64
	for _, id := range ids {
		if !owned[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// SetPhoto records the photo URL for an active student.
func (s *Service) SetPhoto(ctx context.Context, teacherID, id int64, photoURL string) (Student, error) {
	st, err := s.Get(ctx, teacherID, id)
	if err != nil {
		return Student{}, err
	}
	if err := s.store.SetStudentPhoto(ctx, teacherID, id, photoURL); err != nil {
		return Student{}, err
	}
	st.PhotoURL = photoURL
	return st, nil
}
