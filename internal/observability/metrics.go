// Package observability centralizes the Prometheus metrics and the
// trace-scoring hook point: one promauto-backed struct built once at
// startup, a CounterVec/HistogramVec/GaugeVec per concern, and small
// Record* helper methods rather than exposing the raw Prometheus types to
// callers.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks turn throughput, tool latency, and retrieval fusion cost
// for the agent service.
type Metrics struct {
	// TurnsTotal counts completed turns by terminal status
	// (completed|paused|failed).
	TurnsTotal *prometheus.CounterVec

	// TurnDuration measures end-to-end turn latency in seconds.
	TurnDuration *prometheus.HistogramVec

	// IterationsPerTurn tracks how many classify/executor/evaluate cycles
	// a turn took before generation.
	IterationsPerTurn prometheus.Histogram

	// ToolExecutionsTotal counts tool dispatches by tool name and outcome
	// (success|error).
	ToolExecutionsTotal *prometheus.CounterVec

	// ToolExecutionDuration measures per-tool dispatch latency in seconds.
	ToolExecutionDuration *prometheus.HistogramVec

	// RetrievalFusionDuration measures the RRF fuse step of hybrid search,
	// excluding the backend queries it fuses.
	RetrievalFusionDuration prometheus.Histogram

	// GuardrailScore observes the classifier's scope score on every
	// classify_and_route call, in-scope or not.
	GuardrailScore prometheus.Histogram

	// ActiveStreams is a gauge of in-flight POST /stream invocations.
	ActiveStreams prometheus.Gauge

	// IngestsTotal counts ingest_papers outcomes by result
	// (ingested|skipped|failed).
	IngestsTotal *prometheus.CounterVec
}

// NewMetrics builds and registers every metric against the default
// Prometheus registry. Call once at startup.
func NewMetrics() *Metrics {
	return &Metrics{
		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arxivian_turns_total",
				Help: "Total number of agent turns by terminal status",
			},
			[]string{"status"},
		),
		TurnDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arxivian_turn_duration_seconds",
				Help:    "End-to-end turn duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120},
			},
			[]string{"status"},
		),
		IterationsPerTurn: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "arxivian_turn_iterations",
				Help:    "Number of classify/execute/evaluate cycles per turn",
				Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 8, 10},
			},
		),
		ToolExecutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arxivian_tool_executions_total",
				Help: "Total tool executions by tool name and outcome",
			},
			[]string{"tool_name", "outcome"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arxivian_tool_execution_duration_seconds",
				Help:    "Tool execution duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"tool_name"},
		),
		RetrievalFusionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "arxivian_retrieval_fusion_duration_seconds",
				Help:    "Reciprocal Rank Fusion step duration in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
		),
		GuardrailScore: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "arxivian_guardrail_score",
				Help:    "Classifier scope score observed at classify_and_route",
				Buckets: []float64{0, 25, 50, 60, 70, 75, 80, 90, 100},
			},
		),
		ActiveStreams: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "arxivian_active_streams",
				Help: "Current number of in-flight stream invocations",
			},
		),
		IngestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arxivian_ingests_total",
				Help: "Total paper ingest outcomes by result",
			},
			[]string{"result"},
		),
	}
}

// RecordTurn records a completed turn's terminal status and duration.
func (m *Metrics) RecordTurn(status string, duration time.Duration, iterations int) {
	m.TurnsTotal.WithLabelValues(status).Inc()
	m.TurnDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.IterationsPerTurn.Observe(float64(iterations))
}

// RecordTool records one tool dispatch's outcome and latency.
func (m *Metrics) RecordTool(toolName string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.ToolExecutionsTotal.WithLabelValues(toolName, outcome).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// RecordFusion records one RRF fuse step's duration.
func (m *Metrics) RecordFusion(duration time.Duration) {
	m.RetrievalFusionDuration.Observe(duration.Seconds())
}

// RecordGuardrailScore records the classifier's scope score for one call.
func (m *Metrics) RecordGuardrailScore(score int) {
	m.GuardrailScore.Observe(float64(score))
}

// RecordIngest records one ingest_papers outcome.
func (m *Metrics) RecordIngest(result string) {
	m.IngestsTotal.WithLabelValues(result).Inc()
}
