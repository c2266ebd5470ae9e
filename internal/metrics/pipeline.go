package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contextpipe",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"},
	)

	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contextpipe",
			Name:      "pipeline_runs_total",
			Help:      "Total pipeline runs by outcome",
		},
		[]string{"outcome"}, // "completed" / failure reason
	)

	BackendCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contextpipe",
			Name:      "backend_calls_total",
			Help:      "Total backend retrieval calls by outcome",
		},
		[]string{"backend", "outcome"}, // "success" / "timeout" / "error"
	)

	BackendCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contextpipe",
			Name:      "backend_call_duration_seconds",
			Help:      "Backend retrieval call duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend"},
	)

	DocumentsCollapsed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "contextpipe",
			Name:      "documents_collapsed_total",
			Help:      "Documents discarded as duplicates of a retained representative",
		},
	)

	ContextTruncations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "contextpipe",
			Name:      "context_truncations_total",
			Help:      "Assembled contexts whose tail document was truncated",
		},
	)

	ContextDocuments = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "contextpipe",
			Name:      "context_documents",
			Help:      "Documents included per assembled context",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineStageDuration)
	prometheus.MustRegister(PipelineRunsTotal)
	prometheus.MustRegister(BackendCallsTotal)
	prometheus.MustRegister(BackendCallDuration)
	prometheus.MustRegister(DocumentsCollapsed)
	prometheus.MustRegister(ContextTruncations)
	prometheus.MustRegister(ContextDocuments)
	pipelineMetricsRegistered = true
}
