package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key prefix for cached summaries.
const cacheKeyPrefix = "vp:reports:summary:"

// DefaultCacheTTL is how long a summary stays cached.
const DefaultCacheTTL = 5 * time.Minute

// Cache stores computed summaries. A miss returns (nil, nil).
type Cache interface {
	Get(ctx context.Context, key string) (*Summary, error)
	Set(ctx context.Context, key string, summary *Summary) error
}

// RedisCache implements Cache with JSON values and a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a summary cache. A non-positive ttl falls back to
// DefaultCacheTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the cached summary for key, or nil on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (*Summary, error) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cached summary: %w", err)
	}

	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("decoding cached summary: %w", err)
	}
	return &summary, nil
}

// Set stores summary under key with the cache TTL.
func (c *RedisCache) Set(ctx context.Context, key string, summary *Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching summary: %w", err)
	}
	return nil
}
