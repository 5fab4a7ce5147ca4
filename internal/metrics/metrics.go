package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the fiscalization flow. All methods are
// nil-safe so tests can pass a nil receiver.
type Metrics struct {
	// Gateway requests by method and HTTP code ("transport" for failures).
	GatewayRequests *prometheus.CounterVec

	// Receipt status transitions recorded after each attempt.
	ReceiptStatus *prometheus.CounterVec

	// Pipeline runs by result: processed, skipped, aborted.
	PipelineRuns *prometheus.CounterVec

	// Duration of a full pipeline run.
	PipelineDuration prometheus.Histogram
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return &Metrics{
		GatewayRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscalgate_gateway_requests_total",
			Help: "Total gateway requests by method and response code",
		}, []string{"method", "code"}),

		ReceiptStatus: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscalgate_receipt_status_total",
			Help: "Receipt status outcomes recorded after fiscalization attempts",
		}, []string{"status"}),

		PipelineRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscalgate_pipeline_runs_total",
			Help: "Retry pipeline runs by result",
		}, []string{"result"}),

		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fiscalgate_pipeline_run_duration_seconds",
			Help:    "Duration of retry pipeline runs",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// ObserveGateway records one gateway request.
func (m *Metrics) ObserveGateway(method, code string) {
	if m != nil {
		m.GatewayRequests.WithLabelValues(method, code).Inc()
	}
}

// ObserveStatus records a receipt status outcome.
func (m *Metrics) ObserveStatus(status string) {
	if m != nil {
		m.ReceiptStatus.WithLabelValues(status).Inc()
	}
}

// ObservePipelineRun records a pipeline run result and duration.
func (m *Metrics) ObservePipelineRun(result string, d time.Duration) {
	if m != nil {
		m.PipelineRuns.WithLabelValues(result).Inc()
		if result != "skipped" {
			m.PipelineDuration.Observe(d.Seconds())
		}
	}
}
