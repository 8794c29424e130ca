package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle admits one event per key per window using SET NX with an expiry.
type Throttle struct {
	client redis.Cmdable
	prefix string
}

func NewThrottle(client redis.Cmdable, prefix string) *Throttle {
	return &Throttle{client: client, prefix: prefix}
}

// Allow reports whether the key was free and claims it for window.
func (t *Throttle) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	return t.client.SetNX(ctx, t.prefix+key, 1, window).Result()
}

// Release frees the key before its window ends.
func (t *Throttle) Release(ctx context.Context, key string) error {
	return t.client.Del(ctx, t.prefix+key).Err()
}
