package httpmiddleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	l := NewTokenBucket(2, 60)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "1.2.3.4")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "5.6.7.8")
	assert.True(t, ok, "keys are independent")

	now = now.Add(2 * time.Second)
	ok, _ = l.Allow(ctx, "1.2.3.4")
	assert.True(t, ok, "tokens refill over time")
}

type stubLimiter struct {
	ok  bool
	err error
}

func (s stubLimiter) Allow(context.Context, string) (bool, error) { return s.ok, s.err }

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name string
		l    Limiter
		want int
	}{
		{"allowed", stubLimiter{ok: true}, http.StatusOK},
		{"limited", stubLimiter{ok: false}, http.StatusTooManyRequests},
		{"backend down", stubLimiter{ok: true, err: errors.New("redis down")}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(Middleware(tc.l))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
