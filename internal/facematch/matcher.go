// Package facematch picks which registered student a captured face belongs to.
//
// Nothing here is biometric. RandomMatcher is the demo behaviour (a uniform pick
// among students with a profile picture). ServiceMatcher delegates to an external
// face service over HTTP.
package facematch

import (
	"context"
	"math/rand"
	"sync"
)

// Candidate is a student that can be matched.
type Candidate struct {
	UserID     string `json:"user_id"`
	FullName   string `json:"full_name"`
	PictureURL string `json:"picture_url"`
}

// Matcher chooses a candidate for the image, reporting false when nobody matches.
type Matcher interface {
	Match(ctx context.Context, imageURL string, candidates []Candidate) (Candidate, bool, error)
}

// RandomMatcher is a mock that ignores the image and picks a candidate at random.
type RandomMatcher struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomMatcher returns a mock matcher seeded with seed.
func NewRandomMatcher(seed int64) *RandomMatcher {
	return &RandomMatcher{rnd: rand.New(rand.NewSource(seed))}
}

func (m *RandomMatcher) Match(_ context.Context, _ string, candidates []Candidate) (Candidate, bool, error) {
	if len(candidates) == 0 {
		return Candidate{}, false, nil
	}
	m.mu.Lock()
	i := m.rnd.Intn(len(candidates))
	m.mu.Unlock()
	return candidates[i], true, nil
}
