// Package metrics provides Prometheus metrics for the zonal statistics service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// aggregationBuckets covers remote reducer round trips in milliseconds.
var aggregationBuckets = []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000}

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Zonal statistics runs
	runsTotal           *prometheus.CounterVec
	rejectionsTotal     *prometheus.CounterVec
	aggregationLatency  *prometheus.HistogramVec
	backendErrors       *prometheus.CounterVec
	normalizedClasses   *prometheus.HistogramVec
	integrityErrors     *prometheus.CounterVec
	aoiArea             prometheus.Histogram
	circuitBreakerState *prometheus.GaugeVec
	datasetsRegistered  prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "zonal",
		subsystem:        "stats",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every series
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.runsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("runs_total"),
		Help:        "Zonal statistics runs by terminal state and reason",
		ConstLabels: labels,
	}, []string{"state", "reason"})

	m.rejectionsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("aoi_rejections_total"),
		Help:        "AOIs rejected by validation policy",
		ConstLabels: labels,
	}, []string{"reason"})

	m.aggregationLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("aggregation_latency_milliseconds"),
		Help:        "Remote histogram aggregation round trip in milliseconds",
		Buckets:     aggregationBuckets,
		ConstLabels: labels,
	}, []string{"dataset", "outcome"})

	m.backendErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("backend_errors_total"),
		Help:        "Raster backend failures by kind",
		ConstLabels: labels,
	}, []string{"backend", "kind"})

	m.normalizedClasses = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("distribution_classes"),
		Help:        "Number of distinct classes in a normalized distribution",
		Buckets:     []float64{1, 2, 4, 8, 16, 32, 64},
		ConstLabels: labels,
	}, []string{"dataset"})

	m.integrityErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("data_integrity_errors_total"),
		Help:        "Unknown dataset or class errors (catalog and raster drift)",
		ConstLabels: labels,
	}, []string{"dataset", "kind"})

	m.aoiArea = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("aoi_area"),
		Help:        "Measured AOI area in the configured metric unit",
		Buckets:     prometheus.ExponentialBuckets(1, 4, 12),
		ConstLabels: labels,
	})

	m.circuitBreakerState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("circuit_breaker_state"),
		Help:        "Backend circuit breaker state (0=closed, 1=half-open, 2=open)",
		ConstLabels: labels,
	}, []string{"name"})

	m.datasetsRegistered = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("datasets_registered"),
		Help:        "Number of datasets in the catalog",
		ConstLabels: labels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_requests_total"),
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_by_endpoint_total"),
		Help:        "HTTP errors by endpoint, method and error type",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "error_type"})

	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_by_type_total"),
		Help:        "HTTP errors by error type and severity",
		ConstLabels: labels,
	}, []string{"error_type", "severity"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        m.name("memory_usage_bytes"),
		Help:        "Current heap allocation in bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        m.name("goroutines"),
		Help:        "Current number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        m.name("gc_pause_milliseconds"),
		Help:        "Average GC pause time in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})
}

// Run metrics.

// RecordRun counts a finished run by terminal state and reason.
func RecordRun(state, reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.runsTotal.WithLabelValues(state, reason).Inc()
}

// RecordRejection counts an AOI rejected by validation.
func RecordRejection(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.rejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordAOIArea observes the measured area of a submitted AOI.
func RecordAOIArea(area float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.aoiArea.Observe(area)
}

// RecordAggregationLatency observes one backend round trip.
func RecordAggregationLatency(dataset, outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.aggregationLatency.WithLabelValues(dataset, outcome).Observe(latencyMs)
}

// RecordBackendError counts a raster backend failure.
func RecordBackendError(backend, kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.backendErrors.WithLabelValues(backend, kind).Inc()
}

// RecordDistributionClasses observes how many classes a distribution has.
func RecordDistributionClasses(dataset string, n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.normalizedClasses.WithLabelValues(dataset).Observe(float64(n))
}

// RecordIntegrityError counts an unknown dataset or class.
func RecordIntegrityError(dataset, kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.integrityErrors.WithLabelValues(dataset, kind).Inc()
}

// UpdateCircuitBreakerState sets the breaker gauge (0=closed, 1=half-open, 2=open).
func UpdateCircuitBreakerState(name string, state float64) {
	globalManager.circuitBreakerState.WithLabelValues(name).Set(state)
}

// UpdateDatasetsRegistered sets the catalog size gauge.
func UpdateDatasetsRegistered(count int) {
	globalManager.datasetsRegistered.Set(float64(count))
}

// HTTP metrics.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the heap allocation in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// SetEnabled toggles recording of the domain series on the global manager.
func SetEnabled(enabled bool) {
	globalManager.enabled = enabled
}

// RefreshInterval is how often the global manager's gauges should be
// resampled.
func RefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}

// RefreshInterval reports the gauge resampling period.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
