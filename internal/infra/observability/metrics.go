package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the sync layer.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	refetches       *prometheus.CounterVec
}

// CacheSnapshot is a point-in-time view of cache effectiveness, read back
// from the Prometheus counters.
type CacheSnapshot struct {
	Hits      float64
	Misses    float64
	Refetches float64
	HitRate   float64
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poupafin_request_duration_seconds",
				Help:    "Duration of backend requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poupafin_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poupafin_cache_hits_total",
				Help: "Total query cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poupafin_cache_misses_total",
				Help: "Total query cache misses.",
			},
			[]string{"cache"},
		),
		refetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poupafin_cache_refetches_total",
				Help: "Total background refetches of stale cache entries.",
			},
			[]string{"cache"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrRefetch increments the background refetch counter.
func (m *Metrics) IncrRefetch(cache string) {
	m.refetches.WithLabelValues(cache).Inc()
}

// GetCacheSnapshot aggregates cache counters across all cache groups.
// Note: Prometheus counters expose cumulative values.
func (m *Metrics) GetCacheSnapshot(caches ...string) *CacheSnapshot {
	snap := &CacheSnapshot{}
	for _, c := range caches {
		snap.Hits += getCounterValue(m.cacheHits, c)
		snap.Misses += getCounterValue(m.cacheMisses, c)
		snap.Refetches += getCounterValue(m.refetches, c)
	}
	if snap.Hits+snap.Misses > 0 {
		snap.HitRate = snap.Hits / (snap.Hits + snap.Misses)
	}
	return snap
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
