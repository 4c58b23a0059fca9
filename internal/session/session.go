package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// PayloadType tags every serialized attendance session.
	PayloadType = "attendance"

	MinTTLMinutes = 1
	MaxTTLMinutes = 60

	idBytes = 8
)

var (
	ErrEmptyClassName = errors.New("class name required")
	// ErrEnvironmentFault marks missing randomness or time. It is never a scan rejection.
	ErrEnvironmentFault = errors.New("environment fault")
)

// Session is a time-bound authorization to mark attendance for one class.
// A Session is never mutated after Issue returns it.
type Session struct {
	ID        string
	ClassName string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TTL returns the validity window the session was issued with.
func (s *Session) TTL() time.Duration {
	return s.ExpiresAt.Sub(s.IssuedAt)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
func SystemClock() Clock { return ClockFunc(time.Now) }

// Manager issues attendance sessions.
type Manager struct {
	clock   Clock
	entropy io.Reader
}

// NewManager creates a manager. Nil arguments fall back to the system clock and crypto/rand.
func NewManager(clock Clock, entropy io.Reader) *Manager {
	if clock == nil {
		clock = SystemClock()
	}
	if entropy == nil {
		entropy = rand.Reader
	}
	return &Manager{clock: clock, entropy: entropy}
}

// Now returns the manager's view of the current time.
func (m *Manager) Now() time.Time {
	return m.clock.Now()
}

// ClampTTL bounds a requested TTL in minutes to [MinTTLMinutes, MaxTTLMinutes].
func ClampTTL(minutes int) int {
	if minutes < MinTTLMinutes {
		return MinTTLMinutes
	}
	if minutes > MaxTTLMinutes {
		return MaxTTLMinutes
	}
	return minutes
}

// Issue creates a fresh session for className valid for ttlMinutes (clamped).
func (m *Manager) Issue(className string, ttlMinutes int) (*Session, error) {
	if strings.TrimSpace(className) == "" {
		return nil, ErrEmptyClassName
	}
	id, err := m.newID()
	if err != nil {
		return nil, err
	}
	now := m.clock.Now()
	if now.IsZero() {
		return nil, fmt.Errorf("%w: clock unavailable", ErrEnvironmentFault)
	}
	now = now.UTC()
	return &Session{
		ID:        id,
		ClassName: className,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(ClampTTL(ttlMinutes)) * time.Minute),
	}, nil
}

func (m *Manager) newID() (string, error) {
	buf := make([]byte, idBytes)
	if _, err := io.ReadFull(m.entropy, buf); err != nil {
		return "", fmt.Errorf("%w: read entropy: %v", ErrEnvironmentFault, err)
	}
	return hex.EncodeToString(buf), nil
}

// SecondsRemaining is the countdown shown next to a live code: max(0, floor((expiresAt-now)/1s)).
func SecondsRemaining(s *Session, now time.Time) int {
	if s == nil {
		return 0
	}
	left := s.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}
