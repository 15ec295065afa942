package metrics

import (
	"sync"

	"github.com/kataoka/daicho/pkg/cache"
	"github.com/kataoka/daicho/pkg/cache/memorycache"
)

// Collector aggregates in-process counters for the HTTP surface and the
// entity type cache. Counters are keyed by route label ("METHOD /path
// template"), so cardinality is bounded by the route table.
type Collector struct {
	mu        sync.Mutex
	requests  map[string]uint64
	errors    map[string]uint64
	durations map[string]float64

	// Optional; set when a cache backend is configured.
	cache cache.Cache
}

// CacheMetrics is a snapshot of entity type cache performance.
type CacheMetrics struct {
	Hits        uint64
	Misses      uint64
	HitRate     float64
	KeysCurrent int64
	Evictions   uint64
}

// APIMetrics is a snapshot of per-route HTTP counters.
type APIMetrics struct {
	RequestCounts        map[string]uint64
	ErrorCounts          map[string]uint64
	TotalDurationSeconds map[string]float64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		requests:  map[string]uint64{},
		errors:    map[string]uint64{},
		durations: map[string]float64{},
	}
}

// SetCache registers the cache whose metrics the collector snapshots.
func (c *Collector) SetCache(cache cache.Cache) {
	c.cache = cache
}

// RecordRequest counts one request on the route.
func (c *Collector) RecordRequest(route string) {
	c.mu.Lock()
	c.requests[route]++
	c.mu.Unlock()
}

// RecordError counts one server error on the route.
func (c *Collector) RecordError(route string) {
	c.mu.Lock()
	c.errors[route]++
	c.mu.Unlock()
}

// RecordDuration adds a request duration to the route's running total.
func (c *Collector) RecordDuration(route string, durationSeconds float64) {
	c.mu.Lock()
	c.durations[route] += durationSeconds
	c.mu.Unlock()
}

// GetCacheMetrics returns a snapshot of the cache counters. Without a
// configured cache every field is zero.
func (c *Collector) GetCacheMetrics() *CacheMetrics {
	if c.cache == nil {
		return &CacheMetrics{}
	}

	metrics := c.cache.Metrics()
	if metrics == nil {
		return &CacheMetrics{}
	}

	result := &CacheMetrics{
		Hits:      metrics.Hits,
		Misses:    metrics.Misses,
		HitRate:   metrics.HitRate(),
		Evictions: metrics.KeysEvicted,
	}

	// Current key count is only observable for the in-process backend.
	if memCache, ok := c.cache.(*memorycache.Cache); ok {
		result.KeysCurrent = int64(memCache.Len())
	}

	return result
}

// GetAPIMetrics returns a snapshot of the per-route HTTP counters.
func (c *Collector) GetAPIMetrics() *APIMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := &APIMetrics{
		RequestCounts:        make(map[string]uint64, len(c.requests)),
		ErrorCounts:          make(map[string]uint64, len(c.errors)),
		TotalDurationSeconds: make(map[string]float64, len(c.durations)),
	}
	for route, count := range c.requests {
		result.RequestCounts[route] = count
	}
	for route, count := range c.errors {
		result.ErrorCounts[route] = count
	}
	for route, total := range c.durations {
		result.TotalDurationSeconds[route] = total
	}

	return result
}
