// Package schedule holds the day's timetable and the activities suggested for
// free periods.
package schedule

import (
	"errors"
	"strings"
	"time"
)

// Status of a timetable entry relative to now.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusCurrent   Status = "current"
	StatusCompleted Status = "completed"
	StatusFree      Status = "free"
)

var (
	ErrSubjectRequired = errors.New("subject required unless the entry is a free period")
	ErrInvalidDuration = errors.New("duration must be positive")
)

// Entry is one period of the timetable.
type Entry struct {
	ID              string    `json:"id"`
	Subject         string    `json:"subject"`
	Room            string    `json:"room"`
	Teacher         string    `json:"teacher"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Free            bool      `json:"free"`
	Status          Status    `json:"status"`
}

// Normalize validates a new entry. Free periods carry no subject, room or teacher.
func (e *Entry) Normalize() error {
	if e.DurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	e.Subject = strings.TrimSpace(e.Subject)
	if e.Free {
		e.Subject, e.Room, e.Teacher = "", "", ""
	} else if e.Subject == "" {
		return ErrSubjectRequired
	}
	e.StartsAt = e.StartsAt.UTC()
	return nil
}

func (e Entry) EndsAt() time.Time {
	return e.StartsAt.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

// StatusAt derives the entry's status at now.
func (e Entry) StatusAt(now time.Time) Status {
	switch {
	case e.Free:
		return StatusFree
	case now.Before(e.StartsAt):
		return StatusUpcoming
	case now.Before(e.EndsAt()):
		return StatusCurrent
	}
	return StatusCompleted
}

// WithStatus sets Status on every entry for now.
func WithStatus(entries []Entry, now time.Time) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		e.Status = e.StatusAt(now)
		out[i] = e
	}
	return out
}

// FreeMinutes is the time left in the free period running at now, or the length
// of the next free period today when none is running. Zero when there is none.
func FreeMinutes(entries []Entry, now time.Time) int {
	next := 0
	var nextStart time.Time
	for _, e := range entries {
		if !e.Free || !now.Before(e.EndsAt()) {
			continue
		}
		if !now.Before(e.StartsAt) {
			return int(e.EndsAt().Sub(now) / time.Minute)
		}
		if nextStart.IsZero() || e.StartsAt.Before(nextStart) {
			nextStart, next = e.StartsAt, e.DurationMinutes
		}
	}
	return next
}
