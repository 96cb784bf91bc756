package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter counts hits per key in fixed windows. The window
// starts at the first hit and expires with the key.
type RedisRateLimiter struct {
	client   *redis.Client
	prefix   string
	requests int64
	window   time.Duration
}

func NewRedisRateLimiter(client *redis.Client, requests int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:   client,
		prefix:   "ratelimit:",
		requests: int64(requests),
		window:   window,
	}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	k := l.prefix + key
	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		l.client.Expire(ctx, k, l.window)
	}
	return count <= l.requests, nil
}
