package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"classroom/internal/account"
	"classroom/internal/analytics"
	"classroom/internal/attendance"
	"classroom/internal/auth"
	"classroom/internal/cloudinary"
	"classroom/internal/exams"
	"classroom/internal/handler"
	"classroom/internal/queue"
	"classroom/internal/roster"
	"classroom/internal/store/memory"
)

type testServer struct {
	router *gin.Engine
	store  *memory.Store
	queue  *queue.InMemory
}

type serverOption func(*handler.Deps)

func withCloud(c *cloudinary.Client) serverOption {
	return func(d *handler.Deps) { d.Cloud = c }
}

func withChecks(checks map[string]handler.HealthCheck) serverOption {
	return func(d *handler.Deps) { d.Checks = checks }
}

func newServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := memory.New()
	q := queue.NewInMemory(64)
	students := roster.NewService(st)
	deps := handler.Deps{
		Log:        zap.NewNop(),
		Accounts:   account.NewService(st, bcrypt.MinCost),
		Tokens:     auth.NewIssuer("classroom-test", "test-signing-key", 15*time.Minute, 24*time.Hour),
		Denylist:   auth.NewMemoryDenylist(),
		Roster:     students,
		Attendance: attendance.NewReconciler(st),
		Exams:      exams.NewService(st),
		Analytics:  analytics.NewService(st, st, st),
		Activity:   st,
		Queue:      q,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	r := gin.New()
	handler.New(deps).Mount(r)
	return &testServer{router: r, store: st, queue: q}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type session struct {
	Teacher account.Teacher `json:"teacher"`
	Tokens  auth.TokenPair  `json:"tokens"`
}

func (s *testServer) register(t *testing.T, username string) session {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username":        username,
		"password":        "secret123",
		"fullName":        "Teacher " + username,
		"classCode":       "7B",
		"teacherUniqueId": "T-" + username,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.Tokens.AccessToken)
	return out
}

func (s *testServer) addStudent(t *testing.T, token, name string) roster.Student {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/students", token, gin.H{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var st roster.Student
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Message string `json:"message"`
	Field   string `json:"field"`
}

func TestHealthz(t *testing.T) {
	srv := newServer(t, withChecks(map[string]handler.HealthCheck{
		"db":    func(context.Context) bool { return true },
		"redis": func(context.Context) bool { return false },
	}))
	rec := srv.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, map[string]string{"status": "degraded", "db": "ok", "redis": "down"}, body)

	rec = newServer(t).do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	srv := newServer(t)
	s := srv.register(t, "ms.rao")
	assert.Equal(t, "ms.rao", s.Teacher.Username)
	assert.NotContains(t, srv.do(t, http.MethodGet, "/api/auth/me", s.Tokens.AccessToken, nil).Body.String(), "secret123")

	rec := srv.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "ms.rao", "password": "another1", "fullName": "X", "classCode": "7B", "teacherUniqueId": "T-2",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "username", decode[errorBody](t, rec).Field)

	rec = srv.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"username": "ms.rao", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", decode[errorBody](t, rec).Message)

	rec = srv.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"username": "ms.rao", "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[session](t, rec)
	assert.Equal(t, s.Teacher.ID, login.Teacher.ID)

	rec = srv.do(t, http.MethodGet, "/api/auth/me", login.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Teacher ms.rao", decode[account.Teacher](t, rec).FullName)
}

func TestRegisterValidation(t *testing.T) {
	srv := newServer(t)
	rec := srv.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"username": "abc", "password": "secret123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "fullName", decode[errorBody](t, rec).Field)

	rec = srv.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "abc", "password": "123", "fullName": "A", "classCode": "1", "teacherUniqueId": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password", decode[errorBody](t, rec).Field)
}

func TestRoutesRequireToken(t *testing.T) {
	srv := newServer(t)
	for _, path := range []string{"/api/students", "/api/attendance", "/api/exams", "/api/analytics", "/api/activity", "/api/auth/me"} {
		rec := srv.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := srv.do(t, http.MethodGet, "/api/students", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// refresh tokens are not accepted as access tokens
	s := srv.register(t, "mr.singh")
	rec = srv.do(t, http.MethodGet, "/api/students", s.Tokens.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	srv := newServer(t)
	s := srv.register(t, "ms.iyer")

	rec := srv.do(t, http.MethodPost, "/api/auth/logout", s.Tokens.AccessToken, gin.H{"refreshToken": s.Tokens.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/api/auth/me", s.Tokens.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/auth/refresh", "", gin.H{"refreshToken": s.Tokens.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutWithoutBody(t *testing.T) {
	srv := newServer(t)
	s := srv.register(t, "ms.khan")
	rec := srv.do(t, http.MethodPost, "/api/auth/logout", s.Tokens.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRefreshRotatesToken(t *testing.T) {
	srv := newServer(t)
	s := srv.register(t, "mr.das")

	rec := srv.do(t, http.MethodPost, "/api/auth/refresh", "", gin.H{"refreshToken": s.Tokens.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pair := decode[auth.TokenPair](t, rec)
	assert.NotEqual(t, s.Tokens.RefreshToken, pair.RefreshToken)

	rec = srv.do(t, http.MethodGet, "/api/students", pair.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// the old refresh token was consumed
	rec = srv.do(t, http.MethodPost, "/api/auth/refresh", "", gin.H{"refreshToken": s.Tokens.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// an access token is not a refresh token
	rec = srv.do(t, http.MethodPost, "/api/auth/refresh", "", gin.H{"refreshToken": pair.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/auth/refresh", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "refreshToken", decode[errorBody](t, rec).Field)
}

func TestRefreshRejectsZeroSubject(t *testing.T) {
	srv := newServer(t)
	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Role: "teacher",
		Type: auth.TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "0",
			Issuer:    "classroom-test",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	rec := srv.do(t, http.MethodPost, "/api/auth/refresh", "", gin.H{"refreshToken": token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid refresh token", decode[errorBody](t, rec).Message)
}

func TestStudentLifecycle(t *testing.T) {
	srv := newServer(t)
	tok := srv.register(t, "ms.rao").Tokens.AccessToken

	rec := srv.do(t, http.MethodGet, "/api/students", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/api/students", tok, gin.H{"name": "Asha", "rollNumber": " 12 "})
	require.Equal(t, http.StatusCreated, rec.Code)
	asha := decode[roster.Student](t, rec)
	require.NotNil(t, asha.RollNumber)
	assert.Equal(t, "12", *asha.RollNumber)
	assert.True(t, asha.Active)

	rec = srv.do(t, http.MethodPost, "/api/students", tok, gin.H{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name", decode[errorBody](t, rec).Field)

	path := "/api/students/" + strconv.FormatInt(asha.ID, 10)
	rec = srv.do(t, http.MethodDelete, path, tok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = srv.do(t, http.MethodDelete, path, tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodDelete, "/api/students/abc", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "id", decode[errorBody](t, rec).Field)

	rec = srv.do(t, http.MethodGet, "/api/students", tok, nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestDeleteOtherTeachersStudent(t *testing.T) {
	srv := newServer(t)
	a := srv.register(t, "teacher.a").Tokens.AccessToken
	b := srv.register(t, "teacher.b").Tokens.AccessToken
	st := srv.addStudent(t, b, "Ravi")

	rec := srv.do(t, http.MethodDelete, "/api/students/"+strconv.FormatInt(st.ID, 10), a, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/students", b, nil)
	assert.Len(t, decode[[]roster.Student](t, rec), 1)
}

func TestUploadPhoto(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "data:image/png;base64,AAAA", r.FormValue("file"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"public_id":"p","secure_url":"https://cdn.example/p.png"}`))
	}))
	defer cdn.Close()
	cloud := cloudinary.New("demo", "key", "secret", "classroom")
	cloud.BaseURL = cdn.URL

	srv := newServer(t, withCloud(cloud))
	tok := srv.register(t, "ms.rao").Tokens.AccessToken
	st := srv.addStudent(t, tok, "Asha")
	path := "/api/students/" + strconv.FormatInt(st.ID, 10) + "/photo"

	rec := srv.do(t, http.MethodPost, path, tok, gin.H{"data": "data:image/png;base64,AAAA"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "https://cdn.example/p.png", decode[roster.Student](t, rec).PhotoURL)

	rec = srv.do(t, http.MethodGet, "/api/students", tok, nil)
	assert.Equal(t, "https://cdn.example/p.png", decode[[]roster.Student](t, rec)[0].PhotoURL)

	rec = srv.do(t, http.MethodPost, "/api/students/999/photo", tok, gin.H{"data": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadPhotoWithoutCloud(t *testing.T) {
	srv := newServer(t)
	tok := srv.register(t, "ms.rao").Tokens.AccessToken
	st := srv.addStudent(t, tok, "Asha")
	rec := srv.do(t, http.MethodPost, "/api/students/"+strconv.FormatInt(st.ID, 10)+"/photo", tok, gin.H{"data": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
