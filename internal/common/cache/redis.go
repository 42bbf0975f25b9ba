package cache

import (
	"context"
	"fmt"
	"time"

	"pokemon-research/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisCache wraps the Redis client used to cache data-API responses between
// pipeline runs and across fallback retries within one run.
type RedisCache struct {
	Client *redis.Client
	ttl    time.Duration
}

// New creates a new Redis-backed response cache.
func New(cfg config.CacheConfig) (*RedisCache, error) {
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

	return &RedisCache{
		Client: rdb,
		ttl:    time.Duration(cfg.TTL) * time.Second,
	}, nil
}

// NewWithClient wraps an existing client, used by tests with miniredis.
func NewWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: client, ttl: ttl}
}

// Ping tests the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// Get retrieves a cached response body by key. Returns redis.Nil on miss.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

// Set stores a response body under the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	return c.Client.Set(ctx, key, value, c.ttl).Err()
}

// Key builds the cache key for one endpoint call.
func Key(resource, parameter string) string {
	return fmt.Sprintf("pokeapi:%s:%s", resource, parameter)
}
