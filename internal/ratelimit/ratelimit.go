package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter enforces a fixed-window per-user limit on generation calls.
// A nil Limiter allows everything, so deployments without Redis still work.
type Limiter struct {
	client *redis.Client
	limit  int
}

// New connects to Redis and returns a Limiter. An empty URL returns nil.
func New(ctx context.Context, redisURL string, limit int) (*Limiter, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, errParse := redis.ParseURL(redisURL)
	if errParse != nil {
		return nil, fmt.Errorf("ratelimit: parse redis url: %w", errParse)
	}
	client := redis.NewClient(opts)
	if errPing := client.Ping(ctx).Err(); errPing != nil {
		return nil, fmt.Errorf("ratelimit: redis ping: %w", errPing)
	}
	if limit <= 0 {
		limit = 60
	}
	return &Limiter{client: client, limit: limit}, nil
}

// Close releases the Redis connection.
func (l *Limiter) Close() error {
	if l == nil {
		return nil
	}
	return l.client.Close()
}

// Allow reports whether the user may issue another call in the current
// one-minute window, and how many calls remain.
func (l *Limiter) Allow(ctx context.Context, userID uint64) (bool, int, error) {
	if l == nil {
		return true, 0, nil
	}

	key := fmt.Sprintf("ratelimit:user:%d", userID)
	count, errIncr := l.client.Incr(ctx, key).Result()
	if errIncr != nil {
		return false, 0, errIncr
	}
	if count == 1 {
		l.client.Expire(ctx, key, time.Minute)
	}

	if count > int64(l.limit) {
		return false, 0, nil
	}
	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, nil
}
