// Package metrics exposes Prometheus instrumentation for evaluations, the
// report cache, the event bus and the HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "arena_eval"

// Evaluation outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeCached    = "cached"
	OutcomeFailed    = "failed"
)

// Metrics holds all application metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Evaluation metrics
	Evaluations        *prometheus.CounterVec   // labels: outcome
	EvaluationFailures *prometheus.CounterVec   // labels: code
	EvaluationDuration prometheus.Histogram     // seconds
	MatchedPairs       *prometheus.HistogramVec // labels: level
	ReferenceDialogues prometheus.Gauge

	// Cache metrics
	CacheHits   *prometheus.CounterVec // labels: backend
	CacheMisses *prometheus.CounterVec // labels: backend
	CacheSize   *prometheus.GaugeVec   // labels: backend

	// Bus metrics
	BusEventsPublished *prometheus.CounterVec   // labels: topic
	BusErrors          *prometheus.CounterVec   // labels: topic
	BusEventLatency    *prometheus.HistogramVec // labels: topic

	// HTTP metrics
	HTTPRequests         *prometheus.CounterVec   // labels: method, path, status
	HTTPDuration         *prometheus.HistogramVec // labels: method, path
	HTTPRequestsInFlight prometheus.Gauge
}

// New creates a metrics instance with all collectors registered, including
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Total number of run evaluations by outcome",
		}, []string{"outcome"}),
		EvaluationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_failures_total",
			Help:      "Total number of failed evaluations by error code",
		}, []string{"code"}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time to decode, parse and score a run",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		MatchedPairs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "matched_keys",
			Help:      "Gold keys matched by a prediction per evaluation",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"level"}),
		ReferenceDialogues: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reference_dialogues",
			Help:      "Dialogues in the loaded gold annotations",
		}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Report cache hits",
		}, []string{"backend"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Report cache misses",
		}, []string{"backend"}),
		CacheSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries held by the report cache",
		}, []string{"backend"}),

		BusEventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_events_published_total",
			Help:      "Events published to the bus",
		}, []string{"topic"}),
		BusErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_errors_total",
			Help:      "Failed bus publishes",
		}, []string{"topic"}),
		BusEventLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bus_publish_seconds",
			Help:      "Bus publish latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path and status",
		}, []string{"method", "path", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Evaluations,
		m.EvaluationFailures,
		m.EvaluationDuration,
		m.MatchedPairs,
		m.ReferenceDialogues,
		m.CacheHits,
		m.CacheMisses,
		m.CacheSize,
		m.BusEventsPublished,
		m.BusErrors,
		m.BusEventLatency,
		m.HTTPRequests,
		m.HTTPDuration,
		m.HTTPRequestsInFlight,
	)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordEvaluation records one evaluation outcome and its duration.
func (m *Metrics) RecordEvaluation(outcome string, d time.Duration) {
	m.Evaluations.WithLabelValues(outcome).Inc()
	if outcome != OutcomeCached {
		m.EvaluationDuration.Observe(d.Seconds())
	}
}

// RecordFailure records a failed evaluation by error code.
func (m *Metrics) RecordFailure(code string) {
	m.Evaluations.WithLabelValues(OutcomeFailed).Inc()
	m.EvaluationFailures.WithLabelValues(code).Inc()
}

// RecordMatched records how many gold keys a run matched at level.
func (m *Metrics) RecordMatched(level string, n int) {
	m.MatchedPairs.WithLabelValues(level).Observe(float64(n))
}

// SetReferenceDialogues records the size of the loaded gold set.
func (m *Metrics) SetReferenceDialogues(n int) {
	m.ReferenceDialogues.Set(float64(n))
}

// RecordCacheHit implements cache.Metrics.
func (m *Metrics) RecordCacheHit(backend string) {
	m.CacheHits.WithLabelValues(backend).Inc()
}

// RecordCacheMiss implements cache.Metrics.
func (m *Metrics) RecordCacheMiss(backend string) {
	m.CacheMisses.WithLabelValues(backend).Inc()
}

// UpdateCacheSize implements cache.Metrics.
func (m *Metrics) UpdateCacheSize(backend string, size int) {
	m.CacheSize.WithLabelValues(backend).Set(float64(size))
}

// RecordBusPublish implements bus.MetricsRecorder.
func (m *Metrics) RecordBusPublish(topic string, latency time.Duration, err error) {
	m.BusEventLatency.WithLabelValues(topic).Observe(latency.Seconds())
	if err != nil {
		m.BusErrors.WithLabelValues(topic).Inc()
		return
	}
	m.BusEventsPublished.WithLabelValues(topic).Inc()
}

// RecordHTTP records a completed HTTP request.
func (m *Metrics) RecordHTTP(method, path string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, path, statusCode(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// statusCode groups uncommon status codes by class to bound cardinality.
func statusCode(code int) string {
	switch code {
	case 200, 201, 204, 400, 404, 405, 413, 422, 429, 500, 503, 504:
		return strconv.Itoa(code)
	}
	if code >= 100 && code < 600 {
		return strconv.Itoa(code/100) + "xx"
	}
	return strconv.Itoa(code)
}
