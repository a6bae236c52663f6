package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRetention is how long processed event keys are remembered. Upstream
// platforms retry webhook delivery for at most a couple of days.
const DefaultRetention = 72 * time.Hour

// RedisDeduper implements Deduper with SET NX plus a TTL, so dedupe state is
// shared across ingest replicas and expires on its own.
type RedisDeduper struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisDeduper connects to Redis at the given URL.
func NewRedisDeduper(ctx context.Context, redisURL string, retention time.Duration) (*RedisDeduper, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	if retention <= 0 {
		retention = DefaultRetention
	}

	return &RedisDeduper{client: client, retention: retention}, nil
}

func (d *RedisDeduper) MarkIfFirst(ctx context.Context, key string) (bool, error) {
	first, err := d.client.SetNX(ctx, "dedupe:"+key, 1, d.retention).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event key %s: %w", key, err)
	}

	return first, nil
}

func (d *RedisDeduper) Unmark(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, "dedupe:"+key).Err(); err != nil {
		return fmt.Errorf("failed to unmark event key %s: %w", key, err)
	}

	return nil
}

func (d *RedisDeduper) Close() error {
	return d.client.Close()
}
