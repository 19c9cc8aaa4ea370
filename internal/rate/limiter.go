package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts hits per key in fixed windows stored in Redis.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// New creates a [Limiter] allowing limit hits per key within each window.
// A limit of zero or less disables limiting.
func New(redisClient redis.UniversalClient, prefix string, limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

// Allow records a hit for key and returns [ErrRateLimited] once the window's
// budget is spent.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	if l == nil || l.limit <= 0 {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.prefix+":rl:"+key, l.window)
	if err != nil {
		return err
	}
	if count > int64(l.limit) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
