package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"classattend/internal/schedule"
)

const dateLayout = "2006-01-02"

type scheduleRequest struct {
	Subject         string    `json:"subject" binding:"max=200"`
	Room            string    `json:"room"`
	Teacher         string    `json:"teacher"`
	StartsAt        time.Time `json:"starts_at" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"required,min=1"`
	Free            bool      `json:"free"`
}

func (h *handler) createScheduleEntry(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, err := h.Schedule.Create(c.Request.Context(), schedule.Entry{
		Subject:         req.Subject,
		Room:            req.Room,
		Teacher:         req.Teacher,
		StartsAt:        req.StartsAt,
		DurationMinutes: req.DurationMinutes,
		Free:            req.Free,
	})
	if err != nil {
		if errors.Is(err, schedule.ErrSubjectRequired) || errors.Is(err, schedule.ErrInvalidDuration) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	e.Status = e.StatusAt(h.Clock.Now())
	c.JSON(http.StatusCreated, e)
}

// day resolves the ?date= query, defaulting to today.
func (h *handler) day(c *gin.Context) (time.Time, bool) {
	now := h.Clock.Now().UTC()
	raw := c.Query("date")
	if raw == "" {
		return now, true
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return d, true
}

func (h *handler) listSchedule(c *gin.Context) {
	day, ok := h.day(c)
	if !ok {
		return
	}
	entries, err := h.Schedule.Day(c.Request.Context(), day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	now := h.Clock.Now()
	c.JSON(http.StatusOK, gin.H{
		"date":         day.Format(dateLayout),
		"entries":      schedule.WithStatus(entries, now),
		"free_minutes": schedule.FreeMinutes(entries, now),
	})
}

// suggestions lists catalogue activities that fit the free period. Without
// ?free_minutes= the length comes from today's timetable.
func (h *handler) suggestions(c *gin.Context) {
	free := 0
	if raw := c.Query("free_minutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "free_minutes must be a non-negative integer"})
			return
		}
		free = n
	} else {
		now := h.Clock.Now()
		entries, err := h.Schedule.Day(c.Request.Context(), now)
		if err != nil {
			logrus.WithError(err).Warn("schedule lookup failed, no free period assumed")
		}
		free = schedule.FreeMinutes(entries, now)
	}
	c.JSON(http.StatusOK, gin.H{
		"free_minutes": free,
		"suggestions":  schedule.Suggest(h.Catalogue, free),
	})
}
