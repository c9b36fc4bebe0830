// Package metrics provides Prometheus metrics for the OTV validator-selection service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the OTV service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Validity Metrics - per-check outcomes of the constraint engine
	checksTotal     *prometheus.CounterVec
	checkErrors     *prometheus.CounterVec
	candidatesValid prometheus.Gauge
	candidatesTotal prometheus.Gauge

	// Pass Metrics - duration of whole passes and of single candidates
	passDuration      *prometheus.HistogramVec
	candidateDuration *prometheus.HistogramVec

	// Scoring Metrics
	candidateScore prometheus.Histogram
	scoredTotal    prometheus.Counter

	// Classifier Metrics
	classifierOutcomes *prometheus.CounterVec

	// Store Metrics
	storeErrors *prometheus.CounterVec

	// Chain RPC Metrics
	rpcRequests  *prometheus.CounterVec
	rpcFailovers prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
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
		namespace:        "otv",
		subsystem:        "selection",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
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
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.checksTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("checks_total"),
		Help:        "Validity check outcomes by check kind and result",
		ConstLabels: labels,
	}, []string{"check", "result"})

	m.checkErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("check_errors_total"),
		Help:        "Validity checks failed closed because a collaborator errored",
		ConstLabels: labels,
	}, []string{"check", "reason"})

	m.candidatesValid = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("candidates_valid"),
		Help:        "Candidates found valid by the last validity pass",
		ConstLabels: labels,
	})

	m.candidatesTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("candidates_total"),
		Help:        "Candidates evaluated by the last validity pass",
		ConstLabels: labels,
	})

	m.passDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("pass_duration_seconds"),
		Help:        "Duration of a full validity, scoring or classification pass",
		Buckets:     []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		ConstLabels: labels,
	}, []string{"pass"})

	m.candidateDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("candidate_duration_seconds"),
		Help:        "Time spent on a single candidate within a pass",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"pass"})

	m.candidateScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("candidate_score"),
		Help:        "Distribution of randomized total scores",
		Buckets:     []float64{0, 50, 100, 200, 300, 400, 500, 600, 800, 1000},
		ConstLabels: labels,
	})

	m.scoredTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("scored_total"),
		Help:        "Score records produced",
		ConstLabels: labels,
	})

	m.classifierOutcomes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("classifier_outcomes_total"),
		Help:        "Nomination-round classification results",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("store_errors_total"),
		Help:        "Store operations that failed and were swallowed",
		ConstLabels: labels,
	}, []string{"op"})

	m.rpcRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("rpc_requests_total"),
		Help:        "Chain endpoint requests by outcome",
		ConstLabels: labels,
	}, []string{"status"})

	m.rpcFailovers = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("rpc_failovers_total"),
		Help:        "Times a chain request moved on to the next endpoint",
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

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_usage_bytes"),
		Help:        "System memory usage in bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutine_count"),
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_gc_pause_time_milliseconds"),
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: labels,
	})
}

// off reports whether the global manager was built with metrics disabled;
// every helper below is a no-op then.
func off() bool { return !globalManager.enabled }

func resultLabel(valid bool) string {
	if valid {
		return "valid"
	}
	return "invalid"
}

// RecordCheck counts one validity check outcome.
func RecordCheck(check string, valid bool) {
	if off() {
		return
	}
	globalManager.checksTotal.WithLabelValues(check, resultLabel(valid)).Inc()
}

// RecordCheckError counts a check that failed closed; reason is one of
// rate_limited, provider_error, panic.
func RecordCheckError(check, reason string) {
	if off() {
		return
	}
	globalManager.checkErrors.WithLabelValues(check, reason).Inc()
}

// UpdateCandidates sets the valid/total gauges after a validity pass.
func UpdateCandidates(valid, total int) {
	if off() {
		return
	}
	globalManager.candidatesValid.Set(float64(valid))
	globalManager.candidatesTotal.Set(float64(total))
}

// RecordPassDuration observes a full pass.
func RecordPassDuration(pass string, d time.Duration) {
	if off() {
		return
	}
	globalManager.passDuration.WithLabelValues(pass).Observe(d.Seconds())
}

// RecordCandidateDuration observes a single candidate within a pass.
func RecordCandidateDuration(pass string, d time.Duration) {
	if off() {
		return
	}
	globalManager.candidateDuration.WithLabelValues(pass).Observe(d.Seconds())
}

// RecordScore observes a produced total score.
func RecordScore(total float64) {
	if off() {
		return
	}
	globalManager.candidateScore.Observe(total)
	globalManager.scoredTotal.Inc()
}

// RecordClassification counts a classifier outcome ("good" or "bad").
func RecordClassification(outcome string) {
	if off() {
		return
	}
	globalManager.classifierOutcomes.WithLabelValues(outcome).Inc()
}

// RecordStoreError counts a swallowed store failure.
func RecordStoreError(op string) {
	if off() {
		return
	}
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// RecordRPCRequest counts a chain request outcome.
func RecordRPCRequest(status string) {
	if off() {
		return
	}
	globalManager.rpcRequests.WithLabelValues(status).Inc()
}

// RecordRPCFailover counts a move to the next chain endpoint.
func RecordRPCFailover() {
	if off() {
		return
	}
	globalManager.rpcFailovers.Inc()
}

// RecordHTTPRequest increments HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if off() {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if off() {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage updates system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	if off() {
		return
	}
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates goroutine count.
func UpdateSystemGoroutineCount(count int) {
	if off() {
		return
	}
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time.
func RecordSystemGCPauseTime(pauseMs float64) {
	if off() {
		return
	}
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom metrics registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
