package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Registry keeps the current session per class in Redis. Put replaces the previous
// entry, which is how a re-issue supersedes the old code; the key expires with the session.
type Registry struct {
	client *redis.Client
	prefix string
	clock  Clock
}

// NewRegistry builds a registry storing keys under prefix.
func NewRegistry(client *redis.Client, prefix string, clock Clock) *Registry {
	if prefix == "" {
		prefix = "attendance:session"
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Registry{client: client, prefix: prefix, clock: clock}
}

func (r *Registry) key(className string) string {
	return r.prefix + ":" + className
}

// Put stores s as the current session for its class.
func (r *Registry) Put(ctx context.Context, s *Session) error {
	raw, err := Encode(s)
	if err != nil {
		return err
	}
	ttl := s.ExpiresAt.Sub(r.clock.Now())
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", s.ID)
	}
	return r.client.Set(ctx, r.key(s.ClassName), raw, ttl).Err()
}

// Current returns the live session for className, or nil when none is offered.
func (r *Registry) Current(ctx context.Context, className string) (*Session, error) {
	raw, err := r.client.Get(ctx, r.key(className)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	s, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if SecondsRemaining(s, r.clock.Now()) == 0 {
		return nil, nil
	}
	return s, nil
}

// Clear removes the current session for className.
func (r *Registry) Clear(ctx context.Context, className string) error {
	return r.client.Del(ctx, r.key(className)).Err()
}
