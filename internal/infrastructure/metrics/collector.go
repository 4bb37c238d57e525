package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nidoproject/authz/pkg/cache"
)

// Collector aggregates decision metrics for the process. It is the
// record point for hosts embedding the engine; the Prometheus exporter
// reads from it.
type Collector struct {
	decisions uint64
	allows    uint64
	denies    uint64
	errors    uint64

	mu            sync.Mutex
	totalDuration time.Duration

	// Cache reference (optional, for querying cache-specific metrics)
	cache cache.Cache
}

// DecisionStats is a snapshot of decision counters.
type DecisionStats struct {
	Decisions       uint64
	Allows          uint64
	Denies          uint64
	Errors          uint64
	AverageDuration time.Duration
}

// NewCollector creates a collector without a cache reference.
func NewCollector() *Collector {
	return &Collector{}
}

// SetCache attaches the decision cache so cache statistics can be reported.
func (c *Collector) SetCache(cc cache.Cache) {
	c.cache = cc
}

// RecordDecision records one completed decision and its evaluation time.
func (c *Collector) RecordDecision(allowed bool, d time.Duration) {
	atomic.AddUint64(&c.decisions, 1)
	if allowed {
		atomic.AddUint64(&c.allows, 1)
	} else {
		atomic.AddUint64(&c.denies, 1)
	}
	c.mu.Lock()
	c.totalDuration += d
	c.mu.Unlock()
}

// RecordError records a decision that aborted with a configuration or data
// error.
func (c *Collector) RecordError() {
	atomic.AddUint64(&c.errors, 1)
}

// DecisionStats returns a snapshot of the decision counters.
func (c *Collector) DecisionStats() DecisionStats {
	decisions := atomic.LoadUint64(&c.decisions)

	c.mu.Lock()
	total := c.totalDuration
	c.mu.Unlock()

	var avg time.Duration
	if decisions > 0 {
		avg = total / time.Duration(decisions)
	}

	return DecisionStats{
		Decisions:       decisions,
		Allows:          atomic.LoadUint64(&c.allows),
		Denies:          atomic.LoadUint64(&c.denies),
		Errors:          atomic.LoadUint64(&c.errors),
		AverageDuration: avg,
	}
}

// CacheMetrics returns statistics from the attached decision cache, or nil
// when no cache is attached.
func (c *Collector) CacheMetrics() *cache.Metrics {
	if c.cache == nil {
		return nil
	}
	return c.cache.Metrics()
}
