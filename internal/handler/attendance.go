package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classroom/internal/activity"
	"classroom/internal/apperr"
	"classroom/internal/attendance"
)

// ---------- Attendance ----------

// ListAttendance returns the teacher's records, optionally narrowed by
// ?date=YYYY-MM-DD or ?month=YYYY-MM.
func (h *Handler) ListAttendance(c *gin.Context) {
	teacherID, ok := h.teacherID(c)
	if !ok {
		return
	}
	recs, err := h.attendance.List(c.Request.Context(), teacherID, c.Query("date"), c.Query("month"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

type markEntry struct {
	StudentID int64 `json:"studentId" binding:"required,gt=0"`
	Present   *bool `json:"present" binding:"required"`
}

type markAttendanceRequest struct {
	Date    string      `json:"date" binding:"required"`
	Records []markEntry `json:"records" binding:"required,dive"`
}

// MarkAttendance reconciles a batch of marks for one date.
func (h *Handler) MarkAttendance(c *gin.Context) {
	teacherID, ok := h.teacherID(c)
	if !ok {
		return
	}
	var req markAttendanceRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	date, err := attendance.ParseDate("date", req.Date)
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	ids := make([]int64, len(req.Records))
	marks := make([]attendance.Mark, len(req.Records))
	for i, r := range req.Records {
		ids[i] = r.StudentID
		marks[i] = attendance.Mark{StudentID: r.StudentID, Present: *r.Present}
	}
	unowned, err := h.roster.Unowned(ctx, teacherID, ids)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(unowned) > 0 {
		for i, id := range ids {
			if id == unowned[0] {
				h.fail(c, apperr.Invalid(fmt.Sprintf("records[%d].studentId", i), "student %d is not in your class", id))
				return
			}
		}
	}

	recs, err := h.attendance.Reconcile(ctx, teacherID, date, marks)
	var batchErr *attendance.BatchError
	if errors.As(err, &batchErr) {
		h.log.Error("attendance batch partially failed",
			zap.Int64("teacher_id", teacherID),
			zap.String("date", date),
			zap.Int("failed", len(batchErr.Failed)),
			zap.Int("total", batchErr.Total),
			zap.Error(err))
		h.publishMarked(c, teacherID, date, recs)
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": fmt.Sprintf("%s of %d could not be saved", plural(len(batchErr.Failed), "attendance record"), batchErr.Total),
			"failed":  len(batchErr.Failed),
			"records": recs,
		})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.publishMarked(c, teacherID, date, recs)
	c.JSON(http.StatusOK, recs)
}

func (h *Handler) publishMarked(c *gin.Context, teacherID int64, date string, recs []attendance.Record) {
	if len(recs) == 0 {
		return
	}
	present, absent := attendance.Summary(recs)
	h.publish(c, activity.KindAttendanceMarked, activity.Event{
		TeacherID: teacherID,
		Date:      date,
		Present:   present,
		Absent:    absent,
	})
}
