package mediastore

import "time"

// Metrics provides observability for media store operations
type Metrics interface {
	// Increment increases a counter by 1
	Increment(name string, tags ...string)

	// Gauge sets an absolute value
	Gauge(name string, value float64, tags ...string)

	// Histogram records a value distribution (latency, size, etc)
	Histogram(name string, value float64, tags ...string)

	// Timing records a duration
	Timing(name string, duration time.Duration, tags ...string)
}

// NoOpMetrics is a metrics collector that does nothing
type NoOpMetrics struct{}

func (m *NoOpMetrics) Increment(name string, tags ...string)                      {}
func (m *NoOpMetrics) Gauge(name string, value float64, tags ...string)           {}
func (m *NoOpMetrics) Histogram(name string, value float64, tags ...string)       {}
func (m *NoOpMetrics) Timing(name string, duration time.Duration, tags ...string) {}

// InMemoryMetrics stores metrics in memory for testing
type InMemoryMetrics struct {
	Counters   map[string]int
	Gauges     map[string]float64
	Histograms map[string][]float64
	Timings    map[string][]time.Duration
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		Counters:   make(map[string]int),
		Gauges:     make(map[string]float64),
		Histograms: make(map[string][]float64),
		Timings:    make(map[string][]time.Duration),
	}
}

func (m *InMemoryMetrics) Increment(name string, tags ...string) {
	m.Counters[name]++
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...string) {
	m.Gauges[name] = value
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...string) {
	m.Histograms[name] = append(m.Histograms[name], value)
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...string) {
	m.Timings[name] = append(m.Timings[name], duration)
}

// Common metric names
const (
	MetricCreateSuccess  = "mediastore.create.success"
	MetricCreateError    = "mediastore.create.error"
	MetricCreateDuration = "mediastore.create.duration"
	MetricGetSuccess     = "mediastore.get.success"
	MetricGetError       = "mediastore.get.error"
	MetricGetDuration    = "mediastore.get.duration"
	MetricUpdateSuccess  = "mediastore.update.success"
	MetricUpdateError    = "mediastore.update.error"
	MetricUpdateDuration = "mediastore.update.duration"
	MetricDeleteSuccess  = "mediastore.delete.success"
	MetricDeleteError    = "mediastore.delete.error"
	MetricDeleteDuration = "mediastore.delete.duration"

	MetricSearchDuration = "mediastore.search.duration"
	MetricSearchResults  = "mediastore.search.results"
	MetricSearchError    = "mediastore.search.error"
	MetricListDuration   = "mediastore.list.duration"
	MetricListError      = "mediastore.list.error"

	MetricCacheHits          = "mediastore.cache.hits"
	MetricCacheMisses        = "mediastore.cache.misses"
	MetricCacheInvalidations = "mediastore.cache.invalidations"

	MetricStatsRebuild = "mediastore.stats.rebuild"
	MetricStatsError   = "mediastore.stats.error"

	MetricBreakerOpen     = "mediastore.breaker.open"
	MetricBreakerClosed   = "mediastore.breaker.closed"
	MetricRetryAttempts   = "mediastore.retry.attempts"
	MetricProbeSuccess    = "mediastore.probe.success"
	MetricProbeFailure    = "mediastore.probe.failure"
	MetricReconnects      = "mediastore.reconnects"
	MetricIndexDrift      = "mediastore.index.drift"
	MetricIndexRebuilds   = "mediastore.index.rebuilds"
	MetricRecordsVerified = "mediastore.verify.records"
)
