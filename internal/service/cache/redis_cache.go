package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	cli redis.UniversalClient
}

func NewRedisCache(cli redis.UniversalClient) *RedisCache {
	return &RedisCache{cli: cli}
}

func (r *RedisCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.cli.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisCache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.cli.Set(ctx, key, value, ttl).Err()
}
