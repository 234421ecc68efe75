package yearsummary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps summaries in Redis under yearsummary:{version}:{year}.
type RedisCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisCache(rdb redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func cacheKey(year int) string {
	return fmt.Sprintf("yearsummary:%s:%d", CatalogVersion, year)
}

func (c *RedisCache) Get(ctx context.Context, year int) (Summary, bool, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(year)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Summary{}, false, nil
	}
	if err != nil {
		return Summary{}, false, err
	}
	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return Summary{}, false, fmt.Errorf("decode cached summary %d: %w", year, err)
	}
	return s, true, nil
}

func (c *RedisCache) Set(ctx context.Context, year int, s Summary) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKey(year), raw, c.ttl).Err()
}
