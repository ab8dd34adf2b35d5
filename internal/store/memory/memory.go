// Package memory is an in-process record store. It backs STORE_BACKEND=memory
// and serves as the test double for every repository interface.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"classroom/internal/account"
	"classroom/internal/activity"
	"classroom/internal/attendance"
	"classroom/internal/exams"
	"classroom/internal/roster"
)

type refreshToken struct {
	teacherID int64
	expiresAt time.Time
	revoked   bool
}

type attendanceKey struct {
	studentID int64
	date      string
}

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	nextID      int64
	teachers    map[int64]account.Teacher
	usernames   map[string]int64
	refresh     map[string]refreshToken
	students    map[int64]roster.Student
	attendance  []attendance.Record
	attendIndex map[attendanceKey]int
	exams       []exams.Record
	activity    []activity.Entry
	activityIDs map[string]bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:         time.Now,
		teachers:    make(map[int64]account.Teacher),
		usernames:   make(map[string]int64),
		refresh:     make(map[string]refreshToken),
		students:    make(map[int64]roster.Student),
		attendIndex: make(map[attendanceKey]int),
		activityIDs: make(map[string]bool),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Teachers

func (s *Store) CreateTeacher(_ context.Context, t account.Teacher) (account.Teacher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.usernames[t.Username]; taken {
		return account.Teacher{}, account.ErrUsernameTaken
	}
	t.ID = s.id()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}
	s.teachers[t.ID] = t
	s.usernames[t.Username] = t.ID
	return t, nil
}

func (s *Store) TeacherByUsername(_ context.Context, username string) (*account.Teacher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.usernames[username]
	if !ok {
		return nil, nil
	}
	t := s.teachers[id]
	return &t, nil
}

func (s *Store) TeacherByID(_ context.Context, id int64) (*account.Teacher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teachers[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) SaveRefreshToken(_ context.Context, teacherID int64, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[token] = refreshToken{teacherID: teacherID, expiresAt: expiresAt}
	return nil
}

func (s *Store) ConsumeRefreshToken(_ context.Context, teacherID int64, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.refresh[token]
	if !ok || rt.teacherID != teacherID || rt.revoked || !s.now().Before(rt.expiresAt) {
		return false, nil
	}
	rt.revoked = true
	s.refresh[token] = rt
	return true, nil
}

func (s *Store) RevokeRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rt, ok := s.refresh[token]; ok {
		rt.revoked = true
		s.refresh[token] = rt
	}
	return nil
}

// Students

func (s *Store) CreateStudent(_ context.Context, st roster.Student) (roster.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.ID = s.id()
	s.students[st.ID] = st
	return st, nil
}

func (s *Store) ListStudents(_ context.Context, teacherID int64) ([]roster.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []roster.Student
	for _, st := range s.students {
		if st.TeacherID == teacherID && st.Active {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetStudent(_ context.Context, teacherID, id int64) (*roster.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok || st.TeacherID != teacherID {
		return nil, nil
	}
	return &st, nil
}

func (s *Store) DeactivateStudent(_ context.Context, teacherID, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok || st.TeacherID != teacherID || !st.Active {
		return false, nil
	}
	st.Active = false
	s.students[id] = st
	return true, nil
}

func (s *Store) CountActiveStudents(_ context.Context, teacherID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, st := range s.students {
		if st.TeacherID == teacherID && st.Active {
			n++
		}
	}
	return n, nil
}

func (s *Store) ActiveStudentIDs(_ context.Context, teacherID int64, ids []int64) (map[int64]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if st, ok := s.students[id]; ok && st.TeacherID == teacherID && st.Active {
			out[id] = true
		}
	}
	return out, nil
}

func (s *Store) SetStudentPhoto(_ context.Context, teacherID, id int64, photoURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.students[id]; ok && st.TeacherID == teacherID {
		st.PhotoURL = photoURL
		s.students[id] = st
	}
	return nil
}

// Attendance

func (s *Store) UpsertAttendance(_ context.Context, rec attendance.Record) (attendance.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attendanceKey{studentID: rec.StudentID, date: rec.Date}
	if i, ok := s.attendIndex[key]; ok {
		s.attendance[i].Present = rec.Present
		return s.attendance[i], false, nil
	}
	rec.ID = s.id()
	s.attendIndex[key] = len(s.attendance)
	s.attendance = append(s.attendance, rec)
	return rec, true, nil
}

func (s *Store) ListAttendance(_ context.Context, teacherID int64, f attendance.Filter) ([]attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []attendance.Record
	for _, r := range s.attendance {
		if r.TeacherID != teacherID {
			continue
		}
		if f.Date != "" && r.Date != f.Date {
			continue
		}
		if f.From != "" && r.Date < f.From {
			continue
		}
		if f.To != "" && r.Date >= f.To {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Exams

func (s *Store) CreateExam(_ context.Context, rec exams.Record) (exams.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.id()
	s.exams = append(s.exams, rec)
	return rec, nil
}

func (s *Store) ListExams(_ context.Context, teacherID int64) ([]exams.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []exams.Record
	for _, r := range s.exams {
		if r.TeacherID == teacherID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ExamDate != out[j].ExamDate {
			return out[i].ExamDate > out[j].ExamDate
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Activity

func (s *Store) AppendActivity(_ context.Context, e activity.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activityIDs[e.ID] {
		return nil
	}
	s.activityIDs[e.ID] = true
	s.activity = append(s.activity, e)
	return nil
}

func (s *Store) RecentActivity(_ context.Context, teacherID int64, limit int) ([]activity.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []activity.Entry
	for _, e := range s.activity {
		if e.TeacherID == teacherID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ account.Store    = (*Store)(nil)
	_ roster.Store     = (*Store)(nil)
	_ attendance.Store = (*Store)(nil)
	_ exams.Store      = (*Store)(nil)
	_ activity.Store   = (*Store)(nil)
)
