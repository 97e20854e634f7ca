// Package cache provides a Redis-backed ports.CacheStore for restaurant
// classifications.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-tablefit/internal/ports"
)

// DefaultPrefix namespaces every key the cache writes.
const DefaultPrefix = "tablefit:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisCache implements ports.CacheStore on Redis strings.
type RedisCache struct {
	client  redis.UniversalClient
	prefix  string
	metrics ports.MetricsCollector
}

var _ ports.CacheStore = (*RedisCache)(nil)

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, opts Options, metrics ports.MetricsCollector) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return NewRedisCache(client, opts.Prefix, metrics), nil
}

// NewRedisCache wraps an existing client. An empty prefix uses
// DefaultPrefix and metrics may be nil.
func NewRedisCache(client redis.UniversalClient, prefix string, metrics ports.MetricsCollector) *RedisCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisCache{client: client, prefix: prefix, metrics: metrics}
}

// Get returns the value stored under key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		c.record("get", "miss")
		return nil, false, nil
	case err != nil:
		c.record("get", "error")
		return nil, false, ports.NewCacheError(key, "get", err)
	}
	c.record("get", "hit")
	return data, true, nil
}

// Set stores value under key. A zero expiration keeps it forever.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, expiration).Err(); err != nil {
		c.record("set", "error")
		return ports.NewCacheError(key, "set", err)
	}
	c.record("set", "ok")
	return nil
}

// Delete removes key. Missing keys are not an error.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.record("delete", "error")
		return ports.NewCacheError(key, "delete", err)
	}
	c.record("delete", "ok")
	return nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

// Close closes the underlying client.
func (c *RedisCache) Close() error { return c.client.Close() }

func (c *RedisCache) record(op, result string) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordCounter("cache_operations_total", 1, map[string]string{
		"operation": op,
		"result":    result,
	})
}
