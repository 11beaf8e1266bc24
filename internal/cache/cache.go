// Package cache stores encoded evaluation reports keyed by the digest of the
// reference data and the run document.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache is a byte-value store for evaluation reports.
type Cache interface {
	// Get returns the value for key and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key.
	Set(ctx context.Context, key string, value []byte) error
	// Close releases resources.
	Close() error
}

// Metrics records cache outcomes. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordCacheHit(backend string)
	RecordCacheMiss(backend string)
	UpdateCacheSize(backend string, size int)
}

// Config selects and configures a cache backend.
type Config struct {
	// Type is "memory", "redis" or "none".
	Type     string
	Size     int
	TTL      time.Duration
	RedisURL string
}

// New creates the cache selected by cfg.
func New(cfg Config) (Cache, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "memory":
		return NewMemoryCache(cfg.Size), nil
	case "redis":
		return NewRedisCache(cfg.RedisURL, cfg.TTL)
	case "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}

// Nop is a cache that stores nothing.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error         { return nil }
func (Nop) Close() error                                      { return nil }
