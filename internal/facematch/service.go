package facematch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrImageURLRequired = errors.New("image url required")

// ServiceMatcher calls the face recognition microservice's 1:N search.
type ServiceMatcher struct {
	BaseURL   string
	HTTP      *http.Client
	Threshold float64
	TopK      int
}

// NewServiceMatcher creates a client with a generous timeout; face processing can be slow.
func NewServiceMatcher(baseURL string, threshold float64) *ServiceMatcher {
	return &ServiceMatcher{
		BaseURL:   baseURL,
		Threshold: threshold,
		TopK:      5,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
	}
}

type searchMatch struct {
	UserID     string  `json:"user_id"`
	Similarity float64 `json:"similarity"`
}

// Match searches the gallery and returns the best hit that is also a candidate.
func (c *ServiceMatcher) Match(ctx context.Context, imageURL string, candidates []Candidate) (Candidate, bool, error) {
	if imageURL == "" {
		return Candidate{}, false, ErrImageURLRequired
	}
	if len(candidates) == 0 {
		return Candidate{}, false, nil
	}

	payload := map[string]interface{}{
		"image_url": imageURL,
		"top_k":     c.TopK,
	}
	if c.Threshold > 0 {
		payload["threshold"] = c.Threshold
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return Candidate{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Candidate{}, false, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return Candidate{}, false, fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Matches []searchMatch `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Candidate{}, false, fmt.Errorf("failed to decode response: %w", err)
	}

	byID := make(map[string]Candidate, len(candidates))
	for _, cand := range candidates {
		byID[cand.UserID] = cand
	}
	var best *searchMatch
	for i := range out.Matches {
		m := &out.Matches[i]
		if _, ok := byID[m.UserID]; !ok {
			continue
		}
		if best == nil || m.Similarity > best.Similarity {
			best = m
		}
	}
	if best == nil {
		return Candidate{}, false, nil
	}
	return byID[best.UserID], true, nil
}

// Health checks if the face service is available.
func (c *ServiceMatcher) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}
