package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a shared fixed-window Store for multi-instance deployments.
// The window lives as long as the key's TTL; INCR on an existing key counts
// into the current window.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Take(ctx context.Context, identifier, route string, lim Limit) (Result, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", route, identifier)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("failed to increment window counter: %w", err)
	}

	if count == 1 {
		if err := s.client.PExpire(ctx, key, lim.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("failed to set window expiry: %w", err)
		}
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("failed to read window ttl: %w", err)
	}
	if ttl < 0 {
		// Expiry was lost (e.g. the key predates this code); re-arm it so
		// the window cannot live forever.
		ttl = lim.Window
		s.client.PExpire(ctx, key, lim.Window)
	}

	remaining := lim.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   int(count) <= lim.MaxRequests,
		Limit:     lim.MaxRequests,
		Remaining: remaining,
		ResetAt:   time.Now().Add(ttl),
	}, nil
}
