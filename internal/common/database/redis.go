// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"stylist-pipeline/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the status store. Live progress goes out over pub/sub;
// terminal updates are also retained under the same key for polling.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis builds the client. Status writes are tiny and latency matters
// more than throughput, so timeouts stay tight.
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	return &RedisClient{Client: rdb}, nil
}

// Ping reports whether Redis answers. Readiness gates on it.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// Get reads a retained status document.
func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

// Set retains a value. Terminal status updates pass the configured TTL so
// finished runs age out on their own.
func (c *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.Client.Set(ctx, key, value, expiration).Err()
}

// Publish pushes a status update to live subscribers.
func (c *RedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return c.Client.Publish(ctx, channel, message).Err()
}
