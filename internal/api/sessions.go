package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"classattend/internal/metrics"
	"classattend/internal/qrcode"
	"classattend/internal/session"
)

// class_name becomes a path segment of the session routes, so it may not contain '/'.
type issueSessionRequest struct {
	ClassName  string `json:"class_name" binding:"required,excludes=/"`
	TTLMinutes *int   `json:"ttl_minutes"`
}

type sessionView struct {
	ID               string `json:"session_id"`
	ClassName        string `json:"class_name"`
	IssuedAt         string `json:"issued_at"`
	ExpiresAt        string `json:"expires_at"`
	TTLMinutes       int    `json:"ttl_minutes"`
	SecondsRemaining int    `json:"seconds_remaining"`
	Payload          string `json:"payload"`
}

func (h *handler) view(s *session.Session) (sessionView, error) {
	raw, err := session.Encode(s)
	if err != nil {
		return sessionView{}, err
	}
	return sessionView{
		ID:               s.ID,
		ClassName:        s.ClassName,
		IssuedAt:         s.IssuedAt.Format(time.RFC3339),
		ExpiresAt:        s.ExpiresAt.Format(time.RFC3339),
		TTLMinutes:       int(s.TTL().Minutes()),
		SecondsRemaining: h.Issuer.Remaining(s),
		Payload:          raw,
	}, nil
}

// issueSession issues a fresh session for the class, superseding whatever was on display.
func (h *handler) issueSession(c *gin.Context) {
	var req issueSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ttl := h.DefaultTTLMinutes
	if req.TTLMinutes != nil {
		ttl = *req.TTLMinutes
	}
	ttl = session.ClampTTL(ttl)
	ctx := c.Request.Context()

	current, err := h.Sessions.Current(ctx, req.ClassName)
	if err != nil {
		logrus.WithError(err).Warn("load current session failed")
	}
	next, err := h.Issuer.Issue(current, req.ClassName, ttl)
	switch {
	case errors.Is(err, session.ErrEmptyClassName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, session.ErrEnvironmentFault):
		logrus.WithError(err).Error("session issue failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cannot issue a session right now"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.Sessions.Put(ctx, next); err != nil {
		logrus.WithError(err).Error("store session failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store session failed"})
		return
	}
	metrics.SessionsIssued.Inc()

	fields := logrus.Fields{"class_name": next.ClassName, "session_id": next.ID, "ttl_minutes": ttl, "teacher_id": userID(c)}
	if current != nil {
		fields["superseded"] = current.ID
	}
	logrus.WithFields(fields).Info("session issued")

	v, err := h.view(next)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h *handler) loadCurrent(c *gin.Context) *session.Session {
	s, err := h.Sessions.Current(c.Request.Context(), c.Param("class"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil
	}
	if s = h.Issuer.Clear(s); s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return nil
	}
	return s
}

func (h *handler) currentSession(c *gin.Context) {
	s := h.loadCurrent(c)
	if s == nil {
		return
	}
	v, err := h.view(s)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *handler) sessionQR(c *gin.Context) {
	s := h.loadCurrent(c)
	if s == nil {
		return
	}
	raw, err := session.Encode(s)
	if err == nil {
		var png []byte
		if png, err = qrcode.PNG(raw, qrcode.DefaultSize); err == nil {
			c.Header("Cache-Control", "no-store")
			c.Data(http.StatusOK, "image/png", png)
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (h *handler) clearSession(c *gin.Context) {
	if err := h.Sessions.Clear(c.Request.Context(), c.Param("class")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
