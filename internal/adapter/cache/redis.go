// Package cache implements the cross-job seen-value cache on Redis.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "harrier:seen:"

// SeenCache marks duplicate-detection keys with a TTL so uploads repeated
// across jobs are recognized without unbounded growth.
type SeenCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSeenCache(client *redis.Client, ttl time.Duration) *SeenCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SeenCache{client: client, ttl: ttl}
}

func (c *SeenCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *SeenCache) Mark(ctx context.Context, key string) error {
	return c.client.Set(ctx, keyPrefix+key, 1, c.ttl).Err()
}
