package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore caches idempotent POST responses in Redis. A miss
// is reported as an empty value, not an error.
type RedisIdempotencyStore struct {
	client *redis.Client
	prefix string
}

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, prefix: "idem:"}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, value, ttl).Err()
}
