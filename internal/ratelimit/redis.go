package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter per device: the key counts requests
// in the current window and expires with it. A denied request stays pending
// and is retried on a later poll, so denial is cheap.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter creates a limiter allowing limit requests per device per
// window.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Allow increments the device's window counter and reports whether the
// device is still under its limit. The expiry is set when the counter is
// created, which starts the window at first use.
func (r *RedisLimiter) Allow(ctx context.Context, deviceID string) (bool, error) {
	key := "usage:" + deviceID

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("incrementing usage counter: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return false, fmt.Errorf("setting usage window: %w", err)
		}
	}
	return count <= int64(r.limit), nil
}

var _ Limiter = (*RedisLimiter)(nil)
var _ Limiter = Noop{}
