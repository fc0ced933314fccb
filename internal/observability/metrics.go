package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the PubMed search service.
// Metrics are organized by subsystem: tool calls served over HTTP and
// upstream E-utilities requests. All counters and histograms are registered
// via promauto for automatic registration with the default Prometheus
// registry.
type Metrics struct {
	// ToolCallsTotal counts tool invocations, labeled by tool name.
	ToolCallsTotal *prometheus.CounterVec

	// ToolCallsFailed counts tool invocations that returned a failure
	// envelope, labeled by tool name.
	ToolCallsFailed *prometheus.CounterVec

	// ToolCallDuration observes tool call duration in seconds, labeled by tool name.
	ToolCallDuration *prometheus.HistogramVec

	// UpstreamRequestsTotal counts E-utilities requests, labeled by endpoint.
	UpstreamRequestsTotal *prometheus.CounterVec

	// UpstreamRequestsFailed counts failed E-utilities requests, labeled by
	// endpoint and error type.
	UpstreamRequestsFailed *prometheus.CounterVec

	// UpstreamRequestDuration observes E-utilities request duration in seconds.
	UpstreamRequestDuration *prometheus.HistogramVec

	// UpstreamRetries counts retry attempts against E-utilities, labeled by endpoint.
	UpstreamRetries *prometheus.CounterVec

	// PapersReturned counts papers returned to callers across all tools.
	PapersReturned prometheus.Counter

	// GateWaiting tracks the number of logical requests waiting for a
	// concurrency slot.
	GateWaiting prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ToolCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool invocations by tool",
		}, []string{"tool"}),
		ToolCallsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_failed_total",
			Help:      "Total number of tool invocations that failed by tool",
		}, []string{"tool"}),
		ToolCallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool invocations in seconds by tool",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"tool"}),

		UpstreamRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of E-utilities requests by endpoint",
		}, []string{"endpoint"}),
		UpstreamRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_failed_total",
			Help:      "Total number of failed E-utilities requests by endpoint",
		}, []string{"endpoint", "error_type"}),
		UpstreamRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of E-utilities requests in seconds by endpoint",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		UpstreamRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Total number of retry attempts against E-utilities by endpoint",
		}, []string{"endpoint"}),

		PapersReturned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_returned_total",
			Help:      "Total number of papers returned to callers",
		}),
		GateWaiting: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gate_waiting_requests",
			Help:      "Number of logical requests waiting for a concurrency slot",
		}),
	}
}

// RecordToolCall records a tool invocation and its outcome.
func (m *Metrics) RecordToolCall(tool string, success bool, durationSeconds float64) {
	m.ToolCallsTotal.WithLabelValues(tool).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(durationSeconds)
	if !success {
		m.ToolCallsFailed.WithLabelValues(tool).Inc()
	}
}

// RecordUpstreamRequest records a completed E-utilities request.
func (m *Metrics) RecordUpstreamRequest(endpoint string, durationSeconds float64) {
	m.UpstreamRequestsTotal.WithLabelValues(endpoint).Inc()
	m.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(durationSeconds)
}

// RecordUpstreamFailure records a failed E-utilities request.
func (m *Metrics) RecordUpstreamFailure(endpoint, errorType string) {
	m.UpstreamRequestsFailed.WithLabelValues(endpoint, errorType).Inc()
}

// RecordUpstreamRetry records a retry attempt against E-utilities.
func (m *Metrics) RecordUpstreamRetry(endpoint string) {
	m.UpstreamRetries.WithLabelValues(endpoint).Inc()
}

// RecordPapersReturned records papers returned to a caller.
func (m *Metrics) RecordPapersReturned(count int) {
	m.PapersReturned.Add(float64(count))
}
