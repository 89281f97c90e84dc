// Package metrics provides Prometheus metrics for the footprint visitor engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared by callers.
const (
	ModelFingerprint = "fingerprint"
	ModelAutoencoder = "autoencoder"

	AnomalyKindModel         = "model"
	AnomalyKindSpike         = "spike"
	AnomalyKindHighFrequency = "high_frequency"

	GeoSourceCache    = "cache"
	GeoSourceTimezone = "timezone"
	GeoSourceProvider = "provider"
	GeoSourceDefault  = "default"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	scoreBuckets     []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Visit pipeline
	visitsProcessed       prometheus.Counter
	visitsDuplicate       prometheus.Counter
	fingerprintsGenerated prometheus.Counter
	anomalyScore          prometheus.Histogram
	anomalies             *prometheus.CounterVec
	inferenceLatency      *prometheus.HistogramVec
	inferenceErrors       *prometheus.CounterVec
	modelInits            *prometheus.CounterVec
	patternLatency        prometheus.Histogram

	// Geolocation
	geoLookups          *prometheus.CounterVec
	geoProviderFailures *prometheus.CounterVec
	geoProviderLatency  *prometheus.HistogramVec
	geoCacheSize        prometheus.Gauge

	// Visitor store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec
	visitorsSeen prometheus.Gauge

	// Outbox queue and publishing workers
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueued           prometheus.Counter
	queueDequeued           prometheus.Counter
	queueEnqueueErrors      prometheus.Counter
	workerCount             prometheus.Gauge
	visitsPublished         prometheus.Counter
	workerErrors            prometheus.Counter
	workerProcessingLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// Runtime
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "footprint",
		subsystem:        "engine",
		histogramBuckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		scoreBuckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.12, 0.15, 0.2, 0.3, 0.5, 1},
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every series
	m.visitsProcessed = m.counter("visits_processed_total", "Total number of visits processed")
	m.visitsDuplicate = m.counter("visits_duplicate_total", "Total number of retried visit submissions")
	m.fingerprintsGenerated = m.counter("fingerprints_generated_total", "Total number of visitor identifiers derived by the fingerprint model")
	m.anomalyScore = m.histogram("anomaly_score", "Autoencoder reconstruction error per visit", m.scoreBuckets)
	m.anomalies = m.counterVec("anomalies_total", "Anomalies reported by kind", "kind")
	m.inferenceLatency = m.histogramVec("inference_latency_milliseconds", "Model forward pass latency in milliseconds", "model")
	m.inferenceErrors = m.counterVec("inference_errors_total", "Model inference failures", "model")
	m.modelInits = m.counterVec("model_initializations_total", "Model registry initializations by weight source", "source")
	m.patternLatency = m.histogram("pattern_analysis_latency_milliseconds", "Pattern analysis latency in milliseconds", m.histogramBuckets)

	m.geoLookups = m.counterVec("geo_lookups_total", "Geolocation resolutions by answering source", "source")
	m.geoProviderFailures = m.counterVec("geo_provider_failures_total", "Geolocation provider failures", "provider")
	m.geoProviderLatency = m.histogramVec("geo_provider_latency_milliseconds", "Geolocation provider call latency in milliseconds", "provider")
	m.geoCacheSize = m.gauge("geo_cache_entries", "Entries currently held by the geolocation cache")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Visitor store operation latency in milliseconds", "op")
	m.storeErrors = m.counterVec("store_errors_total", "Visitor store operation failures", "op")
	m.visitorsSeen = m.gauge("visitors_total", "Distinct visitors known to the store")

	m.queueSize = m.gauge("queue_size", "Current size of the scored visit outbox")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the scored visit outbox")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Scored visits enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Scored visits dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Scored visits dropped because the outbox was full or closed")
	m.workerCount = m.gauge("worker_count", "Number of outbox publishing workers")
	m.visitsPublished = m.counter("visits_published_total", "Scored visits handed to the publisher")
	m.workerErrors = m.counter("worker_errors_total", "Publishing failures")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Publish latency in milliseconds", m.histogramBuckets)

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordVisitProcessed increments the processed visits counter.
func RecordVisitProcessed() { globalManager.visitsProcessed.Inc() }

// RecordVisitDuplicate increments the retried visits counter.
func RecordVisitDuplicate() { globalManager.visitsDuplicate.Inc() }

// RecordFingerprintGenerated increments the derived identifier counter.
func RecordFingerprintGenerated() { globalManager.fingerprintsGenerated.Inc() }

// RecordAnomalyScore observes one reconstruction error.
func RecordAnomalyScore(score float64) { globalManager.anomalyScore.Observe(score) }

// RecordAnomaly counts one reported anomaly of the given kind.
func RecordAnomaly(kind string) { globalManager.anomalies.WithLabelValues(kind).Inc() }

// RecordInferenceLatency observes a forward pass latency for model.
func RecordInferenceLatency(model string, latencyMs float64) {
	globalManager.inferenceLatency.WithLabelValues(model).Observe(latencyMs)
}

// RecordInferenceError counts a failed forward pass for model.
func RecordInferenceError(model string) { globalManager.inferenceErrors.WithLabelValues(model).Inc() }

// RecordModelInit counts a registry initialization by weight source.
func RecordModelInit(source string) { globalManager.modelInits.WithLabelValues(source).Inc() }

// RecordPatternAnalysisLatency observes the pattern analysis duration.
func RecordPatternAnalysisLatency(latencyMs float64) { globalManager.patternLatency.Observe(latencyMs) }

// RecordGeoLookup counts a geolocation resolution answered by source.
func RecordGeoLookup(source string) { globalManager.geoLookups.WithLabelValues(source).Inc() }

// RecordGeoProviderFailure counts a failed provider call.
func RecordGeoProviderFailure(provider string) {
	globalManager.geoProviderFailures.WithLabelValues(provider).Inc()
}

// RecordGeoProviderLatency observes a provider call latency.
func RecordGeoProviderLatency(provider string, latencyMs float64) {
	globalManager.geoProviderLatency.WithLabelValues(provider).Observe(latencyMs)
}

// UpdateGeoCacheSize sets the number of cached geolocation entries.
func UpdateGeoCacheSize(n int) { globalManager.geoCacheSize.Set(float64(n)) }

// RecordStoreLatency observes a visitor store operation latency.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a failed visitor store operation.
func RecordStoreError(op string) { globalManager.storeErrors.WithLabelValues(op).Inc() }

// UpdateVisitorsTotal sets the distinct visitor count.
func UpdateVisitorsTotal(n int) { globalManager.visitorsSeen.Set(float64(n)) }

// UpdateQueueSize sets the current outbox size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the outbox capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the dropped enqueue counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordVisitPublished increments the published visits counter.
func RecordVisitPublished() { globalManager.visitsPublished.Inc() }

// RecordWorkerError increments the publishing failure counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordWorkerProcessingLatency observes a publish latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent counts an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
