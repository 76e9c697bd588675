// Package metrics provides Prometheus metrics for the progress monitor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus metric the daemon exposes.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Monitoring graph gauges.
	eventsWatched      prometheus.Gauge
	participantsActive prometheus.Gauge

	// Evaluation counters and latency.
	evaluations        prometheus.Counter
	evaluationRetries  prometheus.Counter
	evaluationFailures prometheus.Counter
	evaluationSkips    prometheus.Counter
	evaluationLatency  prometheus.Histogram

	// Patch pipeline.
	patchesEmitted prometheus.Counter
	patchFlushes   prometheus.Counter
	flushErrors    prometheus.Counter
	flushLatency   prometheus.Histogram
	flushBatchSize prometheus.Histogram

	// Achievement providers.
	providerRequests  *prometheus.CounterVec
	providerErrors    *prometheus.CounterVec
	providerCacheHits *prometheus.CounterVec
	providerLatency   *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "progressd",
		subsystem:        "monitor",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.eventsWatched = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_watched",
		Help:      "Number of events currently being monitored",
	})

	m.participantsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "participants_active",
		Help:      "Number of participant monitors currently running",
	})

	m.evaluations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluations_total",
		Help:      "Total number of solution evaluations performed",
	})

	m.evaluationRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_retries_total",
		Help:      "Total number of evaluation retry attempts",
	})

	m.evaluationFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_failures_total",
		Help:      "Total number of evaluations abandoned after exhausting retries",
	})

	m.evaluationSkips = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_skips_total",
		Help:      "Total number of solution changes skipped (missing, archived or closed tasks)",
	})

	m.evaluationLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_latency_milliseconds",
		Help:      "Histogram of solution evaluation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.patchesEmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "patches_emitted_total",
		Help:      "Total number of progress patches emitted by the monitor",
	})

	m.patchFlushes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "patch_flushes_total",
		Help:      "Total number of batched patch writes to the feed",
	})

	m.flushErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "patch_flush_errors_total",
		Help:      "Total number of failed patch writes",
	})

	m.flushLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "patch_flush_latency_milliseconds",
		Help:      "Histogram of patch write latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.flushBatchSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "patch_flush_batch_size",
		Help:      "Histogram of merged keys per patch write",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
	})

	m.providerRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "provider_requests_total",
		Help:      "Total number of achievement provider lookups by service",
	}, []string{"service"})

	m.providerErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "provider_errors_total",
		Help:      "Total number of failed achievement provider lookups by service",
	}, []string{"service"})

	m.providerCacheHits = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "provider_cache_hits_total",
		Help:      "Total number of provider lookups served from the TTL cache",
	}, []string{"service"})

	m.providerLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "provider_request_latency_milliseconds",
		Help:      "Histogram of provider request latency in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"service"})
}

// Package-level helpers recording on the global manager.

func UpdateEventsWatched(n int) {
	globalManager.eventsWatched.Set(float64(n))
}

func UpdateParticipantsActive(n int) {
	globalManager.participantsActive.Set(float64(n))
}

func RecordEvaluation() {
	globalManager.evaluations.Inc()
}

func RecordEvaluationRetry() {
	globalManager.evaluationRetries.Inc()
}

func RecordEvaluationFailure() {
	globalManager.evaluationFailures.Inc()
}

func RecordEvaluationSkip() {
	globalManager.evaluationSkips.Inc()
}

func RecordEvaluationLatency(latencyMs float64) {
	globalManager.evaluationLatency.Observe(latencyMs)
}

func RecordPatchEmitted() {
	globalManager.patchesEmitted.Inc()
}

func RecordPatchFlush(keys int, latencyMs float64) {
	globalManager.patchFlushes.Inc()
	globalManager.flushBatchSize.Observe(float64(keys))
	globalManager.flushLatency.Observe(latencyMs)
}

func RecordPatchFlushError() {
	globalManager.flushErrors.Inc()
}

func RecordProviderRequest(service string, latencyMs float64) {
	globalManager.providerRequests.WithLabelValues(service).Inc()
	globalManager.providerLatency.WithLabelValues(service).Observe(latencyMs)
}

func RecordProviderError(service string) {
	globalManager.providerErrors.WithLabelValues(service).Inc()
}

func RecordProviderCacheHit(service string) {
	globalManager.providerCacheHits.WithLabelValues(service).Inc()
}

// GetRegistry returns the custom registry the ops endpoint serves.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
