package cohort

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares cohort results across instances. Entries carry their own
// ExpiresAt and the Redis TTL mirrors it, so an entry can never be served
// past expiry even if clocks drift between instances.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a Redis-backed cohort cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "cohort:"}
}

func (c *RedisCache) Get(ctx context.Context, criteriaHash string, now time.Time) (CheckResult, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+criteriaHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return CheckResult{}, false, nil
	}
	if err != nil {
		return CheckResult{}, false, fmt.Errorf("redis get cohort result: %w", err)
	}

	var result CheckResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return CheckResult{}, false, fmt.Errorf("decode cohort result: %w", err)
	}
	if result.Expired(now) {
		return CheckResult{}, false, nil
	}
	return result, true, nil
}

func (c *RedisCache) Set(ctx context.Context, result CheckResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode cohort result: %w", err)
	}
	ttl := time.Until(result.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, c.prefix+result.CriteriaHash, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set cohort result: %w", err)
	}
	return nil
}
