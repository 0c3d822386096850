package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "motopos:report"

func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// RedisReportCache keys entries by a per-branch generation number.
// Invalidate bumps the generation so stale keys are never read again and
// expire on their own TTL.
type RedisReportCache struct {
	client *redis.Client
}

func NewRedisReportCache(client *redis.Client) *RedisReportCache {
	return &RedisReportCache{client: client}
}

func (c *RedisReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func versionKey(branchID string) string {
	return fmt.Sprintf("%s:ver:%s", keyPrefix, branchID)
}

func entryKey(branchID string, version int64, key string) string {
	return fmt.Sprintf("%s:%s:v%d:%s", keyPrefix, branchID, version, key)
}

func (c *RedisReportCache) Generation(ctx context.Context, branchID string) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(branchID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *RedisReportCache) Get(ctx context.Context, branchID string, key string, dest any) (bool, error) {
	version, err := c.Generation(ctx, branchID)
	if err != nil {
		return false, err
	}
	val, err := c.client.Get(ctx, entryKey(branchID, version, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set writes under the given generation. A write from a build that raced an
// Invalidate lands on a retired generation and is never read.
func (c *RedisReportCache) Set(ctx context.Context, branchID string, generation int64, key string, value any, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, entryKey(branchID, generation, key), payload, ttl).Err()
}

func (c *RedisReportCache) Invalidate(ctx context.Context, branchID string) error {
	return c.client.Incr(ctx, versionKey(branchID)).Err()
}
