package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusExporter exposes decision and cache metrics in Prometheus
// format. Decision outcomes are recorded directly; cache gauges are synced
// from the collector on Update.
type PrometheusExporter struct {
	collector *Collector

	decisions        *prometheus.CounterVec
	decisionDuration prometheus.Histogram
	decisionErrors   prometheus.Counter
	cacheHitRate     prometheus.Gauge
	cacheKeysAdded   prometheus.Gauge
	cacheEvictions   prometheus.Gauge
}

// NewPrometheusExporter creates a Prometheus exporter over a collector.
func NewPrometheusExporter(collector *Collector) *PrometheusExporter {
	return &PrometheusExporter{
		collector: collector,
		decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Total number of authorization decisions by outcome",
		}, []string{"outcome"}),
		decisionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "authz_decision_duration_seconds",
			Help:    "Time spent evaluating authorization decisions",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		decisionErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "authz_decision_errors_total",
			Help: "Total number of decisions aborted by configuration or data errors",
		}),
		cacheHitRate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "authz_decision_cache_hit_rate",
			Help: "Decision cache hit rate (0.0 to 1.0)",
		}),
		cacheKeysAdded: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "authz_decision_cache_keys_added",
			Help: "Total number of keys added to the decision cache",
		}),
		cacheEvictions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "authz_decision_cache_evictions",
			Help: "Total number of keys evicted from the decision cache",
		}),
	}
}

// ObserveDecision records one completed decision in both the collector and
// the Prometheus metrics.
func (e *PrometheusExporter) ObserveDecision(allowed bool, d time.Duration) {
	e.collector.RecordDecision(allowed, d)
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	e.decisions.WithLabelValues(outcome).Inc()
	e.decisionDuration.Observe(d.Seconds())
}

// ObserveError records a decision aborted by an error.
func (e *PrometheusExporter) ObserveError() {
	e.collector.RecordError()
	e.decisionErrors.Inc()
}

// Update syncs cache gauges from the collector's attached cache. Call it
// periodically or from a metrics handler.
func (e *PrometheusExporter) Update() {
	m := e.collector.CacheMetrics()
	if m == nil {
		return
	}
	e.cacheHitRate.Set(m.HitRate())
	e.cacheKeysAdded.Set(float64(m.KeysAdded))
	e.cacheEvictions.Set(float64(m.KeysEvicted))
}
