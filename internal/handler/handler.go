package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classroom/internal/account"
	"classroom/internal/activity"
	"classroom/internal/analytics"
	"classroom/internal/attendance"
	"classroom/internal/auth"
	"classroom/internal/cloudinary"
	"classroom/internal/exams"
	"classroom/internal/queue"
	"classroom/internal/roster"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators of the HTTP layer. Queue and Cloud may be nil.
type Deps struct {
	Log        *zap.Logger
	Accounts   *account.Service
	Tokens     *auth.Issuer
	Denylist   auth.Denylist
	Roster     *roster.Service
	Attendance *attendance.Reconciler
	Exams      *exams.Service
	Analytics  *analytics.Service
	Activity   activity.Store
	Queue      queue.Queue
	Cloud      *cloudinary.Client
	Checks     map[string]HealthCheck
}

type Handler struct {
	log        *zap.Logger
	accounts   *account.Service
	tokens     *auth.Issuer
	denylist   auth.Denylist
	roster     *roster.Service
	attendance *attendance.Reconciler
	exams      *exams.Service
	analytics  *analytics.Service
	activity   activity.Store
	queue      queue.Queue
	cloud      *cloudinary.Client // nil if Cloudinary not configured
	checks     map[string]HealthCheck
}

func New(d Deps) *Handler {
	useJSONFieldNames()
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		log:        log,
		accounts:   d.Accounts,
		tokens:     d.Tokens,
		denylist:   d.Denylist,
		roster:     d.Roster,
		attendance: d.Attendance,
		exams:      d.Exams,
		analytics:  d.Analytics,
		activity:   d.Activity,
		queue:      d.Queue,
		cloud:      d.Cloud,
		checks:     d.Checks,
	}
}

// Mount registers every route on r.
func (h *Handler) Mount(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.Refresh)

	teacher := api.Group("", auth.TeacherAuth(h.tokens, h.denylist))
	teacher.POST("/auth/logout", h.Logout)
	teacher.GET("/auth/me", h.Me)

	teacher.GET("/students", h.ListStudents)
	teacher.POST("/students", h.CreateStudent)
	teacher.DELETE("/students/:id", h.DeleteStudent)
	teacher.POST("/students/:id/photo", h.UploadPhoto)

	teacher.GET("/attendance", h.ListAttendance)
	teacher.POST("/attendance/batch", h.MarkAttendance)

	teacher.GET("/exams", h.ListExams)
	teacher.POST("/exams", h.CreateExam)

	teacher.GET("/analytics", h.Analytics)
	teacher.GET("/activity", h.Activity)
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for _, name := range names {
		if h.checks[name](ctx) {
			body[name] = "ok"
			continue
		}
		body[name] = "down"
		body["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, body)
}

// publish enqueues an activity event. The feed is best effort, so failures
// are only logged.
func (h *Handler) publish(c *gin.Context, kind string, ev activity.Event) {
	if h.queue == nil {
		return
	}
	if err := activity.Publish(c.Request.Context(), h.queue, kind, ev); err != nil {
		h.log.Warn("activity not published", zap.String("kind", kind), zap.Error(err))
	}
}
