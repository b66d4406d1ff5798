package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TraceScorer is a hook point to record a turn's guardrail/evaluation scores against an
// external trace_id, without taking a dependency on any particular tracing
// SaaS. The stream service calls this once per completed turn; a caller
// that wants Langfuse (or similar) wires a different implementation in
// cmd/server/main.go.
type TraceScorer interface {
	// ScoreTrace records a named score against traceID. traceID may be
	// empty when the caller never set metadata.trace_id; implementations
	// should treat that as "unattributed" rather than erroring.
	ScoreTrace(ctx context.Context, traceID, name string, value float64)
}

// PrometheusTraceScorer is the default TraceScorer: it has no notion of a
// trace beyond a label, and simply folds every score into a histogram per
// score name. This keeps metadata.trace_id load-bearing in the API contract
// without requiring an external tracing backend to run the service.
type PrometheusTraceScorer struct {
	scores *prometheus.HistogramVec
}

func NewPrometheusTraceScorer() *PrometheusTraceScorer {
	return &PrometheusTraceScorer{
		scores: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arxivian_trace_scores",
				Help:    "Trace scores recorded via TraceScorer, by score name",
				Buckets: []float64{0, 25, 50, 60, 70, 75, 80, 90, 100},
			},
			[]string{"name"},
		),
	}
}

var _ TraceScorer = (*PrometheusTraceScorer)(nil)

func (s *PrometheusTraceScorer) ScoreTrace(_ context.Context, _, name string, value float64) {
	s.scores.WithLabelValues(name).Observe(value)
}
