package cache

import (
	"context"
	"sync"
)

const defaultMemorySize = 256

// MemoryCache is an in-process LRU cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	order   []string // LRU order, oldest first
	maxSize int
	metrics Metrics
}

// NewMemoryCache creates an LRU cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = defaultMemorySize
	}
	return &MemoryCache{
		entries: make(map[string][]byte),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
	}
}

// SetMetrics sets the metrics recorder for this cache.
func (c *MemoryCache) SetMetrics(m Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// Get retrieves a value and marks it most recently used.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[key]
	if !ok {
		if c.metrics != nil {
			c.metrics.RecordCacheMiss("memory")
		}
		return nil, false, nil
	}

	if c.metrics != nil {
		c.metrics.RecordCacheHit("memory")
	}
	c.moveToEnd(key)

	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set stores a copy of value, evicting the least recently used entry when full.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = v
		c.moveToEnd(key)
		return nil
	}

	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = v
	c.order = append(c.order, key)

	if c.metrics != nil {
		c.metrics.UpdateCacheSize("memory", len(c.entries))
	}
	return nil
}

// moveToEnd must be called with the lock held.
func (c *MemoryCache) moveToEnd(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			return
		}
	}
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close clears the cache.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	c.order = c.order[:0]
	return nil
}
