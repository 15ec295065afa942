package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/kataoka/daicho/pkg/cache"
)

// Cache implements a shared cache backed by Redis. Values are stored as
// raw bytes; callers that cache structured data marshal it themselves,
// which keeps Get/Set symmetric across backends.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	hits      uint64
	misses    uint64
	keysAdded uint64
}

// Config holds configuration for the Redis cache.
type Config struct {
	// Addr is the Redis server address (host:port).
	Addr string

	// Password is the Redis password (empty = no auth).
	Password string

	// DB is the Redis database number.
	DB int

	// KeyPrefix namespaces every key so multiple deployments can share
	// one Redis instance.
	KeyPrefix string

	// DefaultTTL is applied when Set is called with a zero TTL.
	DefaultTTL time.Duration
}

// New creates a new Redis cache and verifies connectivity.
func New(ctx context.Context, config *Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "daicho:"
	}

	return &Cache{client: client, prefix: prefix, ttl: config.DefaultTTL}, nil
}

// Get retrieves a value from cache. Values always come back as []byte.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}
	atomic.AddUint64(&c.hits, 1)
	return data, true
}

// Set stores a value in cache with TTL. []byte and string values are
// stored as-is; everything else is JSON encoded.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode cache value: %w", err)
		}
		data = encoded
	}

	if ttl <= 0 {
		ttl = c.ttl
	}

	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	atomic.AddUint64(&c.keysAdded, 1)
	return nil
}

// Delete removes a value from cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete cache key %s: %w", key, err)
	}
	return nil
}

// Clear removes every entry under this cache's prefix. Other users of the
// same Redis database are untouched.
func (c *Cache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cache key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Metrics returns cache statistics. Evictions happen inside Redis and are
// not visible here.
func (c *Cache) Metrics() *cache.Metrics {
	return &cache.Metrics{
		Hits:      atomic.LoadUint64(&c.hits),
		Misses:    atomic.LoadUint64(&c.misses),
		KeysAdded: atomic.LoadUint64(&c.keysAdded),
	}
}
