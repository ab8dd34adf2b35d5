package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"classroom/internal/apperr"
)

// ErrUsernameTaken is returned by stores when the login handle already exists.
var ErrUsernameTaken = errors.New("username already taken")

// Teacher is an authenticated account and the owner of a class.
type Teacher struct {
	ID              int64     `json:"id"`
	Username        string    `json:"username"`
	PasswordHash    string    `json:"-"`
	FullName        string    `json:"fullName"`
	ClassCode       string    `json:"classCode"`
	TeacherUniqueID string    `json:"teacherUniqueId"`
	IsAdmin         bool      `json:"isAdmin"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Registration is the input of Service.Register.
type Registration struct {
	Username        string
	Password        string
	FullName        string
	ClassCode       string
	TeacherUniqueID string
}

// Store persists teachers and their refresh tokens.
type Store interface {
	CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
	TeacherByUsername(ctx context.Context, username string) (*Teacher, error)
	TeacherByID(ctx context.Context, id int64) (*Teacher, error)
	SaveRefreshToken(ctx context.Context, teacherID int64, token string, expiresAt time.Time) error
	ConsumeRefreshToken(ctx context.Context, teacherID int64, token string) (bool, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}

// Service registers and authenticates teachers.
type Service struct {
	store      Store
	bcryptCost int
}

// NewService creates an account service. A non-positive cost uses bcrypt.DefaultCost.
func NewService(store Store, bcryptCost int) *Service {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{store: store, bcryptCost: bcryptCost}
}

// Register validates the registration and creates the teacher.
func (s *Service) Register(ctx context.Context, reg Registration) (Teacher, error) {
	username := strings.TrimSpace(reg.Username)
	switch {
	case len(username) < 3 || len(username) > 64:
		return Teacher{}, apperr.Invalid("username", "username must be 3 to 64 characters")
	case len(reg.Password) < 6:
		return Teacher{}, apperr.Invalid("password", "password must be at least 6 characters")
	case strings.TrimSpace(reg.FullName) == "":
		return Teacher{}, apperr.Invalid("fullName", "fullName is required")
	case strings.TrimSpace(reg.ClassCode) == "":
		return Teacher{}, apperr.Invalid("classCode", "classCode is required")
	case strings.TrimSpace(reg.TeacherUniqueID) == "":
		return Teacher{}, apperr.Invalid("teacherUniqueId", "teacherUniqueId is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.bcryptCost)
	if err != nil {
		return Teacher{}, err
	}
	t, err := s.store.CreateTeacher(ctx, Teacher{
		Username:        username,
		PasswordHash:    string(hash),
		FullName:        strings.TrimSpace(reg.FullName),
		ClassCode:       strings.TrimSpace(reg.ClassCode),
		TeacherUniqueID: strings.TrimSpace(reg.TeacherUniqueID),
		CreatedAt:       time.Now().UTC(),
	})
	if errors.Is(err, ErrUsernameTaken) {
		return Teacher{}, apperr.Invalid("username", "username already taken")
	}
	return t, err
}

// Authenticate checks credentials. Unknown users and wrong passwords both
// yield apperr.ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Teacher, error) {
	t, err := s.store.TeacherByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return Teacher{}, err
	}
	if t == nil {
		return Teacher{}, apperr.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(t.PasswordHash), []byte(password)); err != nil {
		return Teacher{}, apperr.ErrUnauthorized
	}
	return *t, nil
}

// Get returns a teacher by id.
func (s *Service) Get(ctx context.Context, id int64) (Teacher, error) {
	t, err := s.store.TeacherByID(ctx, id)
	if err != nil {
		return Teacher{}, err
	}
	if t == nil {
		return Teacher{}, apperr.ErrNotFound
	}
	return *t, nil
}

// RememberRefresh stores an issued refresh token.
func (s *Service) RememberRefresh(ctx context.Context, teacherID int64, token string, expiresAt time.Time) error {
	return s.store.SaveRefreshToken(ctx, teacherID, token, expiresAt)
}

// Rotate revokes a live refresh token so it can be replaced. Unknown,
// expired or already revoked tokens yield apperr.ErrUnauthorized.
func (s *Service) Rotate(ctx context.Context, teacherID int64, token string) error {
	ok, err := s.store.ConsumeRefreshToken(ctx, teacherID, token)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrUnauthorized
	}
	return nil
}

// Revoke invalidates a refresh token.
func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.store.RevokeRefreshToken(ctx, token)
}
