package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classroom/internal/account"
	"classroom/internal/apperr"
	"classroom/internal/auth"
)

// ---------- Register / Login ----------

type registerRequest struct {
	Username        string `json:"username" binding:"required"`
	Password        string `json:"password" binding:"required"`
	FullName        string `json:"fullName" binding:"required"`
	ClassCode       string `json:"classCode" binding:"required"`
	TeacherUniqueID string `json:"teacherUniqueId" binding:"required"`
}

type sessionResponse struct {
	Teacher account.Teacher `json:"teacher"`
	Tokens  auth.TokenPair  `json:"tokens"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	t, err := h.accounts.Register(c.Request.Context(), account.Registration{
		Username:        req.Username,
		Password:        req.Password,
		FullName:        req.FullName,
		ClassCode:       req.ClassCode,
		TeacherUniqueID: req.TeacherUniqueID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	pair, err := h.issue(c, t.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("teacher registered", zap.Int64("teacher_id", t.ID), zap.String("username", t.Username))
	c.JSON(http.StatusCreated, sessionResponse{Teacher: t, Tokens: pair})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	t, err := h.accounts.Authenticate(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, apperr.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid credentials"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	pair, err := h.issue(c, t.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Teacher: t, Tokens: pair})
}

// ---------- Token lifecycle ----------

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked, so each refresh token works once.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	claims, err := h.tokens.Parse(req.RefreshToken, auth.TypeRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid refresh token"})
		return
	}
	teacherID, err := claims.TeacherID()
	if err != nil || teacherID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid refresh token"})
		return
	}
	if err := h.accounts.Rotate(c.Request.Context(), teacherID, req.RefreshToken); err != nil {
		if errors.Is(err, apperr.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "refresh token revoked"})
			return
		}
		h.fail(c, err)
		return
	}
	pair, err := h.issue(c, teacherID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Logout revokes the presented access token and, when given, the refresh token.
func (h *Handler) Logout(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}
	var req logoutRequest
	if c.Request.ContentLength != 0 {
		if err := bindJSON(c, &req); err != nil {
			h.fail(c, err)
			return
		}
	}
	ctx := c.Request.Context()
	if err := h.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		h.fail(c, err)
		return
	}
	if req.RefreshToken != "" {
		rc, err := h.tokens.Parse(req.RefreshToken, auth.TypeRefresh)
		if err == nil && rc.Subject == claims.Subject {
			if err := h.accounts.Revoke(ctx, req.RefreshToken); err != nil {
				h.fail(c, err)
				return
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) Me(c *gin.Context) {
	teacherID, ok := h.teacherID(c)
	if !ok {
		return
	}
	t, err := h.accounts.Get(c.Request.Context(), teacherID)
	if errors.Is(err, apperr.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) issue(c *gin.Context, teacherID int64) (auth.TokenPair, error) {
	pair, err := h.tokens.Issue(teacherID)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if err := h.accounts.RememberRefresh(c.Request.Context(), teacherID, pair.RefreshToken, pair.RefreshExp); err != nil {
		return auth.TokenPair{}, err
	}
	return pair, nil
}
