package memorycache

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kataoka/daicho/pkg/cache"
)

// Cache implements an in-process LRU cache with TTL support on top of
// hashicorp's expirable LRU. The TTL is fixed at construction time; the
// per-call TTL argument is accepted for interface compatibility and
// ignored.
type Cache struct {
	lru *lru.LRU[string, interface{}]

	hits      uint64
	misses    uint64
	keysAdded uint64
	evicted   uint64
}

// Config holds configuration for the memory cache.
type Config struct {
	// MaxEntries is the maximum number of cached items. When the limit is
	// exceeded, least recently used items are evicted.
	MaxEntries int

	// DefaultTTL is the time-to-live applied to every cached item.
	DefaultTTL time.Duration
}

// New creates a new memory cache with the given configuration.
func New(config *Config) (*Cache, error) {
	c := &Cache{}
	c.lru = lru.NewLRU[string, interface{}](config.MaxEntries, func(string, interface{}) {
		atomic.AddUint64(&c.evicted, 1)
	}, config.DefaultTTL)
	return c, nil
}

// Get retrieves a value from cache.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	value, ok := c.lru.Get(key)
	if !ok {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}
	atomic.AddUint64(&c.hits, 1)
	return value, true
}

// Set stores a value in cache. The configured default TTL applies.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, _ time.Duration) error {
	c.lru.Add(key, value)
	atomic.AddUint64(&c.keysAdded, 1)
	return nil
}

// Delete removes a value from cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Clear removes all entries from cache.
func (c *Cache) Clear(ctx context.Context) error {
	c.lru.Purge()
	return nil
}

// Close releases resources (no-op for memory cache).
func (c *Cache) Close() error {
	return nil
}

// Metrics returns cache statistics.
func (c *Cache) Metrics() *cache.Metrics {
	return &cache.Metrics{
		Hits:        atomic.LoadUint64(&c.hits),
		Misses:      atomic.LoadUint64(&c.misses),
		KeysAdded:   atomic.LoadUint64(&c.keysAdded),
		KeysEvicted: atomic.LoadUint64(&c.evicted),
	}
}

// Len returns the current number of items in cache.
func (c *Cache) Len() int {
	return c.lru.Len()
}
