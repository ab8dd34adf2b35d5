package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"classroom/internal/activity"
	"classroom/internal/apperr"
	"classroom/internal/exams"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// ---------- Exams ----------

func (h *Handler) ListExams(c *gin.Context) {
	teacherID, ok := h.teacherID(c)
	if !ok {
		return
	}
	recs, err := h.exams.List(c.Request.Context(), teacherID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

type createExamRequest struct {
	StudentID int64  `json:"studentId" binding:"required,gt=0"`
	Subject   string `json:"subject" binding:"required"`
	Score     *int   `json:"score" binding:"required"`
	MaxScore  *int   `json:"maxScore" binding:"required"`
	ExamDate  string `json:"examDate" binding:"required"`
}

func (h *Handler) CreateExam(c *gin.Context) {
	teacherID, ok := h.teacherID(c)
	if !ok {
		return
	}
	var req createExamRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	in := exams.New{
		StudentID: req.StudentID,
		Subject:   req.Subject,
		Score:     *req.Score,
		MaxScore:  *req.MaxScore,
		ExamDate:  req.ExamDate,
	}
	if _, err := exams.Validate(teacherID, in); err != nil {
		h.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	unowned, err := h.roster.Unowned(ctx, teacherID, []int64{req.StudentID})
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(unowned) > 0 {
		h.fail(c, apperr.Invalid("studentId", "student %d is not in your class", req.StudentID))
		return
	}

	rec, err := h.exams.Record(ctx, teacherID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.publish(c, activity.KindExamRecorded, activity.Event{
		TeacherID: teacherID,
		StudentID: rec.StudentID,
		Subject:   rec.Subject,
		Score:     rec.Score,
		MaxScore:  rec.MaxScore,
	})
	c.JSON(http.StatusCreated, rec)
}

// ---------- Analytics / Activity ----------

func (h *Handler) Analytics(c *gin.Context) {
	teacherID, ok := h.teacherID(c)
	if !ok {
		return
	}
	a, err := h.analytics.Get(c.Request.Context(), teacherID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) Activity(c *gin.Context) {
	teacherID, ok := h.teacherID(c)
	if !ok {
		return
	}
	limit := defaultActivityLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.fail(c, apperr.Invalid("limit", "limit must be a positive integer"))
			return
		}
		limit = min(n, maxActivityLimit)
	}
	entries, err := h.activity.RecentActivity(c.Request.Context(), teacherID, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}
