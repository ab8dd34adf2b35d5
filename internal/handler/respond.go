package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"classroom/internal/apperr"
	"classroom/internal/auth"
)

var registerTagNames sync.Once

// useJSONFieldNames makes validator report JSON names ("studentId") instead
// of Go field names ("StudentID").
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

// bindJSON decodes and validates the body, converting failures into a
// field-level *apperr.ValidationError.
func bindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &verrs) && len(verrs) > 0:
		return describeFieldError(verrs[0])
	case errors.As(err, &typeErr):
		return apperr.Invalid(typeErr.Field, "must be a %s", typeErr.Type.String())
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return apperr.Invalid("", "request body must be valid JSON")
	}
	return apperr.Invalid("", "%s", err.Error())
}

func describeFieldError(fe validator.FieldError) error {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return apperr.Invalid(field, "%s is required", name)
	case "gt":
		return apperr.Invalid(field, "%s must be greater than %s", name, fe.Param())
	case "min":
		return apperr.Invalid(field, "%s must be at least %s", name, fe.Param())
	case "max":
		return apperr.Invalid(field, "%s must be at most %s", name, fe.Param())
	}
	return apperr.Invalid(field, "%s is invalid", name)
}

// fail writes the error response for err. Unexpected errors are logged and
// reported without detail.
func (h *Handler) fail(c *gin.Context, err error) {
	if ve, ok := apperr.AsValidation(err); ok {
		body := gin.H{"message": ve.Message}
		if ve.Field != "" {
			body["field"] = ve.Field
		}
		c.JSON(http.StatusBadRequest, body)
		return
	}
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	default:
		_ = c.Error(err)
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
	}
}

// idParam parses a positive integer path parameter.
func idParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid(name, "%s must be a positive integer", name)
	}
	return id, nil
}

// teacherID returns the authenticated teacher or writes 401.
func (h *Handler) teacherID(c *gin.Context) (int64, bool) {
	id, ok := auth.TeacherID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return 0, false
	}
	return id, true
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
