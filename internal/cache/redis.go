package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisPrefix     = "arena:report:"
	defaultRedisTTL = 24 * time.Hour
)

// RedisCache stores reports in Redis with a TTL.
type RedisCache struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	metrics Metrics
}

// NewRedisCache connects to url and verifies the connection.
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = defaultRedisTTL
	}

	return &RedisCache{
		client: client,
		prefix: redisPrefix,
		ttl:    ttl,
	}, nil
}

// SetMetrics sets the metrics recorder for this cache.
func (c *RedisCache) SetMetrics(m Metrics) {
	c.metrics = m
}

// Get retrieves a report.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		if c.metrics != nil {
			c.metrics.RecordCacheMiss("redis")
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cached report: %w", err)
	}
	if c.metrics != nil {
		c.metrics.RecordCacheHit("redis")
	}
	return v, true, nil
}

// Set stores a report with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching report: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
