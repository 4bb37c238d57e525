package ristrettocache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/nidoproject/authz/pkg/cache"
)

// Cache implements cache.Cache on top of ristretto. Admission is
// probabilistic: ristretto may decline to keep an entry under memory
// pressure, which is acceptable for decision caching because a miss only
// costs a re-evaluation.
type Cache struct {
	inner *ristretto.Cache
}

// Config holds configuration for the ristretto-backed cache.
type Config struct {
	// NumCounters is the number of keys to track frequency for. Ristretto
	// recommends 10x the expected number of live items.
	NumCounters int64

	// MaxMemoryBytes is the maximum total cost of cached items; each entry
	// is charged a flat per-entry cost plus its key length.
	MaxMemoryBytes int64

	// BufferItems is the size of ristretto's Get buffers. 64 is the
	// recommended value.
	BufferItems int64

	// EnableMetrics enables collection of cache statistics.
	EnableMetrics bool
}

// New creates a ristretto-backed cache.
func New(config *Config) (*Cache, error) {
	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: config.NumCounters,
		MaxCost:     config.MaxMemoryBytes,
		BufferItems: config.BufferItems,
		Metrics:     config.EnableMetrics,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner}, nil
}

// Get retrieves a value from cache.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	return c.inner.Get(key)
}

// Set stores a value with the specified TTL. Writes are buffered; a value
// may not be visible to Get until ristretto processes its write buffer.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	cost := int64(100 + len(key))
	c.inner.SetWithTTL(key, value, cost, ttl)
	return nil
}

// Delete removes a value from cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.inner.Del(key)
	return nil
}

// Clear removes all entries from cache.
func (c *Cache) Clear(ctx context.Context) error {
	c.inner.Clear()
	return nil
}

// Close releases resources held by the cache.
func (c *Cache) Close() error {
	c.inner.Close()
	return nil
}

// Wait blocks until buffered writes have been applied. Mainly useful in
// tests that Set and immediately Get.
func (c *Cache) Wait() {
	c.inner.Wait()
}

// Metrics returns cache statistics. Returns zero values when metrics were
// not enabled.
func (c *Cache) Metrics() *cache.Metrics {
	m := c.inner.Metrics
	if m == nil {
		return &cache.Metrics{}
	}
	return &cache.Metrics{
		Hits:        m.Hits(),
		Misses:      m.Misses(),
		KeysAdded:   m.KeysAdded(),
		KeysEvicted: m.KeysEvicted(),
		CostAdded:   m.CostAdded(),
		CostEvicted: m.CostEvicted(),
	}
}
