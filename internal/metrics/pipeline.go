package metrics

import "github.com/prometheus/client_golang/prometheus"

// Stage outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeDisabled = "disabled"
)

// Pipeline Prometheus metrics.
var (
	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "answerd",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each query pipeline stage in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	PipelineStageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "answerd",
			Name:      "pipeline_stage_total",
			Help:      "Pipeline stage executions by outcome",
		},
		[]string{"stage", "outcome"},
	)

	RerankFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "answerd",
			Name:      "rerank_fallback_total",
			Help:      "Rerank degradations to passthrough order",
		},
		[]string{"reason"}, // "disabled" / "score_error" / "busy"
	)

	GenerationTokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "answerd",
			Name:      "generation_tokens_total",
			Help:      "Total token deltas streamed from the LLM",
		},
	)

	RetrievedCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "answerd",
			Name:      "retrieved_candidates_count",
			Help:      "Number of candidates produced per retrieval",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 30, 50},
		},
		[]string{"method"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineStageDuration)
	prometheus.MustRegister(PipelineStageTotal)
	prometheus.MustRegister(RerankFallbackTotal)
	prometheus.MustRegister(GenerationTokensTotal)
	prometheus.MustRegister(RetrievedCandidates)
	pipelineMetricsRegistered = true
}
