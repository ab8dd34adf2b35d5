package handler

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classroom/internal/activity"
	"classroom/internal/apperr"
)

// maxPhotoBytes bounds uploaded student photos.
const maxPhotoBytes = 5 << 20

// ---------- Students ----------

func (h *Handler) ListStudents(c *gin.Context) {
	teacherID, ok := h.teacherID(c)
	if !ok {
		return
	}
	students, err := h.roster.List(c.Request.Context(), teacherID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}

type createStudentRequest struct {
	Name       string  `json:"name" binding:"required"`
	RollNumber *string `json:"rollNumber"`
}

func (h *Handler) CreateStudent(c *gin.Context) {
	teacherID, ok := h.teacherID(c)
	if !ok {
		return
	}
	var req createStudentRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	st, err := h.roster.Add(c.Request.Context(), teacherID, req.Name, req.RollNumber)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.publish(c, activity.KindStudentAdded, activity.Event{TeacherID: teacherID, StudentID: st.ID, Name: st.Name})
	c.JSON(http.StatusCreated, st)
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	teacherID, ok := h.teacherID(c)
	if !ok {
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.roster.Remove(c.Request.Context(), teacherID, id); err != nil {
		h.fail(c, err)
		return
	}
	h.publish(c, activity.KindStudentRemoved, activity.Event{TeacherID: teacherID, StudentID: id})
	c.Status(http.StatusNoContent)
}

// ---------- Photos ----------

type photoRequest struct {
	Data string `json:"data" binding:"required"`
}

// UploadPhoto stores a student photo in Cloudinary. It accepts a multipart
// "file" field or a JSON body {"data": "<data URL or base64>"}.
func (h *Handler) UploadPhoto(c *gin.Context) {
	teacherID, ok := h.teacherID(c)
	if !ok {
		return
	}
	if h.cloud == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "photo storage not configured"})
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := h.roster.Get(ctx, teacherID, id); err != nil {
		h.fail(c, err)
		return
	}

	publicID := fmt.Sprintf("teacher-%d-student-%d", teacherID, id)
	var secureURL string
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			h.fail(c, apperr.Invalid("file", "file is required"))
			return
		}
		if fh.Size > maxPhotoBytes {
			h.fail(c, apperr.Invalid("file", "file must be at most %d bytes", maxPhotoBytes))
			return
		}
		f, err := fh.Open()
		if err != nil {
			h.fail(c, fmt.Errorf("open upload: %w", err))
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			h.fail(c, fmt.Errorf("read upload: %w", err))
			return
		}
		res, err := h.cloud.UploadBytes(ctx, data, fh.Filename, publicID)
		if err != nil {
			h.uploadFailed(c, err)
			return
		}
		secureURL = res.SecureURL
	} else {
		var req photoRequest
		if err := bindJSON(c, &req); err != nil {
			h.fail(c, err)
			return
		}
		res, err := h.cloud.UploadBase64(ctx, req.Data, publicID)
		if err != nil {
			h.uploadFailed(c, err)
			return
		}
		secureURL = res.SecureURL
	}

	st, err := h.roster.SetPhoto(ctx, teacherID, id, secureURL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) uploadFailed(c *gin.Context, err error) {
	h.log.Error("cloudinary upload error", zap.Error(err))
	c.JSON(http.StatusBadGateway, gin.H{"message": "failed to upload photo"})
}
