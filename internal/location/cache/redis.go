// Package cache holds geocode result caches: Redis for sharing between
// instances, memory as the fallback.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"unitedhelp/internal/location"
)

const keyPrefix = "geo:"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*location.Result, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var r location.Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false, fmt.Errorf("decode cached location: %w", err)
	}
	return &r, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, result *location.Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}
	return c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err()
}
