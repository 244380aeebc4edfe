package admission

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements the fixed window on Redis, for deployments that
// front the gateway with more than one instance. The counter key expires
// with the window, so resets need no sweeper.
type RedisLimiter struct {
	rdb  *redis.Client
	size time.Duration
}

// NewRedisLimiter creates a limiter backed by the given Redis client.
func NewRedisLimiter(rdb *redis.Client, size time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, size: size}
}

// Allow increments the window counter for key and denies once it passes
// limit. INCR and EXPIRE run in one pipeline so the first request both opens
// and arms the window.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int) (bool, error) {
	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, "ratelimit:"+key)
	pipe.ExpireNX(ctx, "ratelimit:"+key, l.size)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return incr.Val() <= int64(limit), nil
}
