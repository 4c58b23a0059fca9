package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"classattend/internal/attendance"
)

// Summary is the attendance widget: counts per status and the rounded attendance rate.
type Summary struct {
	ClassID   string `json:"class_id,omitempty"`
	StudentID string `json:"student_id,omitempty"`
	Present   int    `json:"present"`
	Late      int    `json:"late"`
	Absent    int    `json:"absent"`
	Total     int    `json:"total"`
	Rate      int    `json:"rate"`
}

// Counter counts stored records; *attendance.Repository implements it.
type Counter interface {
	CountStatuses(ctx context.Context, classID, studentID string) (map[attendance.Status]int, error)
}

// Summarize builds a Summary from status counts.
func Summarize(classID, studentID string, counts map[attendance.Status]int) Summary {
	s := Summary{
		ClassID:   classID,
		StudentID: studentID,
		Present:   counts[attendance.StatusPresent],
		Late:      counts[attendance.StatusLate],
		Absent:    counts[attendance.StatusAbsent],
	}
	s.Total = s.Present + s.Late + s.Absent
	if s.Total > 0 {
		s.Rate = int(math.Round(float64(s.Present) / float64(s.Total) * 100))
	}
	return s
}

// Service serves summaries, caching them in Redis when a client is configured.
type Service struct {
	counter Counter
	cache   *redis.Client
	ttl     time.Duration
}

func NewService(counter Counter, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{counter: counter, cache: cache, ttl: ttl}
}

func cacheKey(classID, studentID string) string {
	if classID == "" {
		classID = "*"
	}
	if studentID == "" {
		studentID = "*"
	}
	return "dashboard:summary:" + classID + ":" + studentID
}

// Get returns the cached summary or computes and caches it.
func (s *Service) Get(ctx context.Context, classID, studentID string) (Summary, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKey(classID, studentID)).Bytes()
		switch {
		case err == nil:
			var sum Summary
			if jerr := json.Unmarshal(raw, &sum); jerr == nil {
				return sum, nil
			}
		case !errors.Is(err, redis.Nil):
			logrus.WithError(err).Warn("summary cache read failed")
		}
	}
	return s.Refresh(ctx, classID, studentID)
}

// Refresh recomputes a summary from the store and overwrites the cache entry.
func (s *Service) Refresh(ctx context.Context, classID, studentID string) (Summary, error) {
	counts, err := s.counter.CountStatuses(ctx, classID, studentID)
	if err != nil {
		return Summary{}, err
	}
	sum := Summarize(classID, studentID, counts)
	if s.cache != nil {
		data, _ := json.Marshal(sum)
		if err := s.cache.Set(ctx, cacheKey(classID, studentID), data, s.ttl).Err(); err != nil {
			logrus.WithError(err).WithField("class_id", classID).Warn("summary cache write failed")
		}
	}
	return sum, nil
}

// RefreshForRecord refreshes every summary a new record affects.
func (s *Service) RefreshForRecord(ctx context.Context, evt attendance.MarkedEvent) error {
	scopes := [][2]string{
		{evt.ClassID, ""},
		{evt.ClassID, evt.StudentID},
		{"", evt.StudentID},
		{"", ""},
	}
	for _, sc := range scopes {
		if _, err := s.Refresh(ctx, sc[0], sc[1]); err != nil {
			return err
		}
	}
	return nil
}
