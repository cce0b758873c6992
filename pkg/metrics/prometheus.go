// Package metrics provides Prometheus metrics for the panel configurator
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Sample cache metrics
	cacheSessions  prometheus.Gauge
	cacheBytes     prometheus.Gauge
	cacheEvictions prometheus.Counter
	rebinTotal     prometheus.Counter
	rebinMisses    prometheus.Counter
	rebinLatency   prometheus.Histogram

	// Sync pipeline metrics
	pipelineUpdates      *prometheus.CounterVec
	pipelineUpdateErrors *prometheus.CounterVec
	staleResponses       prometheus.Counter
	amplitudeRenorms     prometheus.Counter

	// Remote compute metrics
	computeRequests prometheus.Counter
	computeErrors   prometheus.Counter
	computeLatency  prometheus.Histogram

	// Persistence metrics
	persistQueueSize prometheus.Gauge
	persistWrites    prometheus.Counter
	persistDropped   prometheus.Counter
	persistErrors    prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "panelsync",
		subsystem:        "configurator",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	// Sample cache
	m.cacheSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_sessions",
		Help:      "Current number of audio sessions held by the sample cache",
	})

	m.cacheBytes = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_bytes",
		Help:      "Total raw sample bytes held by the sample cache",
	})

	m.cacheEvictions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_evictions_total",
		Help:      "Total sessions evicted under capacity pressure",
	})

	m.rebinTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rebin_total",
		Help:      "Total local rebin operations",
	})

	m.rebinMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rebin_misses_total",
		Help:      "Rebin requests for sessions no longer in the cache",
	})

	m.rebinLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rebin_latency_milliseconds",
		Help:      "Local rebin latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Sync pipeline
	m.pipelineUpdates = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "pipeline_updates_total",
			Help:      "Total composition updates by branch taken",
		},
		[]string{"branch"},
	)

	m.pipelineUpdateErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "pipeline_update_errors_total",
			Help:      "Total composition updates aborted, by reason",
		},
		[]string{"reason"},
	)

	m.staleResponses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stale_responses_dropped_total",
		Help:      "Remote responses dropped by the sequence guard",
	})

	m.amplitudeRenorms = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "amplitude_renormalizations_total",
		Help:      "Outgoing amplitude arrays detected in physical scale and renormalized",
	})

	// Remote compute
	m.computeRequests = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "compute_requests_total",
		Help:      "Total geometry compute requests",
	})

	m.computeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "compute_errors_total",
		Help:      "Total failed geometry compute requests",
	})

	m.computeLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "compute_latency_milliseconds",
		Help:      "Geometry compute round-trip latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Persistence
	m.persistQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_queue_size",
		Help:      "Current number of pending persistence writes",
	})

	m.persistWrites = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_writes_total",
		Help:      "Total persistence writes completed",
	})

	m.persistDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_dropped_total",
		Help:      "Persistence writes dropped because the queue was full",
	})

	m.persistErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_errors_total",
		Help:      "Total persistence write errors",
	})

	// HTTP
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// UpdateCacheSessions sets the current cached session count.
func UpdateCacheSessions(count int) {
	globalManager.cacheSessions.Set(float64(count))
}

// UpdateCacheBytes sets the total cached sample bytes.
func UpdateCacheBytes(bytes int64) {
	globalManager.cacheBytes.Set(float64(bytes))
}

// RecordCacheEviction increments the eviction counter.
func RecordCacheEviction() {
	globalManager.cacheEvictions.Inc()
}

// RecordRebin increments the rebin counter.
func RecordRebin() {
	globalManager.rebinTotal.Inc()
}

// RecordRebinMiss increments the rebin cache-miss counter.
func RecordRebinMiss() {
	globalManager.rebinMisses.Inc()
}

// RecordRebinLatency records local rebin latency in milliseconds.
func RecordRebinLatency(latencyMs float64) {
	globalManager.rebinLatency.Observe(latencyMs)
}

// RecordPipelineUpdate increments the update counter for the branch taken.
func RecordPipelineUpdate(branch string) {
	globalManager.pipelineUpdates.WithLabelValues(branch).Inc()
}

// RecordPipelineUpdateError increments the aborted-update counter.
func RecordPipelineUpdateError(reason string) {
	globalManager.pipelineUpdateErrors.WithLabelValues(reason).Inc()
}

// RecordStaleResponseDropped increments the sequence-guard drop counter.
func RecordStaleResponseDropped() {
	globalManager.staleResponses.Inc()
}

// RecordAmplitudeRenormalization increments the physical-scale detection counter.
func RecordAmplitudeRenormalization() {
	globalManager.amplitudeRenorms.Inc()
}

// RecordComputeRequest increments the compute request counter.
func RecordComputeRequest() {
	globalManager.computeRequests.Inc()
}

// RecordComputeError increments the compute error counter.
func RecordComputeError() {
	globalManager.computeErrors.Inc()
}

// RecordComputeLatency records compute round-trip latency in milliseconds.
func RecordComputeLatency(latencyMs float64) {
	globalManager.computeLatency.Observe(latencyMs)
}

// UpdatePersistQueueSize sets the pending persistence write count.
func UpdatePersistQueueSize(size int) {
	globalManager.persistQueueSize.Set(float64(size))
}

// RecordPersistWrite increments the completed-write counter.
func RecordPersistWrite() {
	globalManager.persistWrites.Inc()
}

// RecordPersistDropped increments the dropped-write counter.
func RecordPersistDropped() {
	globalManager.persistDropped.Inc()
}

// RecordPersistError increments the write-error counter.
func RecordPersistError() {
	globalManager.persistErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the custom Prometheus registry used by the global
// manager, for serving metrics over HTTP.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
