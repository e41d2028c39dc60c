package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements the fixed window with a shared counter so the
// limit holds across replicas. INCR is atomic on the server, so two
// concurrent admissions for one principal can never observe the same
// count.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	period time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, period time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = time.Minute
	}
	return &RedisLimiter{client: client, limit: limit, period: period}
}

func (l *RedisLimiter) Admit(ctx context.Context, principal string) (Decision, error) {
	key := fmt.Sprintf("ratelimit:principal:%s", principal)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit incr: %w", err)
	}
	if count == 1 {
		// first hit opens the window
		if err := l.client.PExpire(ctx, key, l.period).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit expire: %w", err)
		}
	}

	if count <= int64(l.limit) {
		return Decision{Allowed: true}, nil
	}

	ttl, err := l.client.PTTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		ttl = l.period
	}
	return Decision{Allowed: false, RetryAfter: ttl}, nil
}
