package tools

import (
	"context"

	agentmodels "arxivian/internal/domain/models/agent"
)

type toolHistoryKey struct{}

// WithToolHistory attaches this turn's tool_history so far to ctx, letting a
// tool enforce a same-turn precondition (propose_ingest requiring a prior
// arxiv_search) without widening the agentsvc.Tool interface.
func WithToolHistory(ctx context.Context, history []agentmodels.ToolExecution) context.Context {
	return context.WithValue(ctx, toolHistoryKey{}, history)
}

// ToolHistoryFromContext returns the turn's tool_history so far, or nil.
func ToolHistoryFromContext(ctx context.Context) []agentmodels.ToolExecution {
	history, _ := ctx.Value(toolHistoryKey{}).([]agentmodels.ToolExecution)
	return history
}

type proposedPaperLookupKey struct{}

// WithProposedPaperLookup attaches the arXiv metadata surfaced by this
// turn's arxiv_search calls so propose_ingest can resolve display metadata
// for the IDs the model selects, without a second registry round trip.
func WithProposedPaperLookup(ctx context.Context, byArxivID map[string]agentmodels.ProposedPaper) context.Context {
	return context.WithValue(ctx, proposedPaperLookupKey{}, byArxivID)
}

// ProposedPaperLookupFromContext returns the lookup attached by
// WithProposedPaperLookup, or an empty map.
func ProposedPaperLookupFromContext(ctx context.Context) map[string]agentmodels.ProposedPaper {
	lookup, _ := ctx.Value(proposedPaperLookupKey{}).(map[string]agentmodels.ProposedPaper)
	if lookup == nil {
		return map[string]agentmodels.ProposedPaper{}
	}
	return lookup
}
