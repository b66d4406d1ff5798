package orchestrator

import (
	"context"
	"time"

	agentmodels "arxivian/internal/domain/models/agent"
	agentsvc "arxivian/internal/domain/services/agent"
)

// Evaluator implements the evaluate-batch node.
type Evaluator struct {
	llm     agentsvc.LLMClient
	timeout time.Duration
}

func NewEvaluator(llm agentsvc.LLMClient, timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Evaluator{llm: llm, timeout: timeout}
}

// Run mutates state.RelevantChunks / state.RewrittenQuery /
// state.EvaluationResult through the pre- and post-LLM branching.
func (e *Evaluator) Run(ctx context.Context, state *agentmodels.AgentState, emit Emitter) error {
	if err := emit(Event{Kind: EventNodeStart, Node: "evaluate", Message: "Evaluating retrieved chunks"}); err != nil {
		return err
	}

	// Fast path: no chunks.
	if len(state.RetrievedChunks) == 0 {
		state.EvaluationResult = &agentmodels.BatchEvaluation{Sufficient: false, Reasoning: "no chunks retrieved"}
		state.RelevantChunks = nil
		state.Metadata.PreviousChunkFingerprints = nil
		return emit(Event{Kind: EventNodeEnd, Node: "evaluate", Message: "no chunks retrieved", Details: map[string]interface{}{"sufficient": false}})
	}

	// Fast path: stagnation.
	current := fingerprints(state.RetrievedChunks)
	if fingerprintsEqual(current, state.Metadata.PreviousChunkFingerprints) {
		state.EvaluationResult = &agentmodels.BatchEvaluation{Sufficient: true, Reasoning: "identical chunks as previous iteration"}
		state.RelevantChunks = append([]agentmodels.Chunk(nil), state.RetrievedChunks...)
		state.Metadata.PreviousChunkFingerprints = current
		return emit(Event{Kind: EventNodeEnd, Node: "evaluate", Message: "stagnation detected", Details: map[string]interface{}{"sufficient": true}})
	}

	messages := []agentsvc.Message{
		{Role: "system", Content: "Judge whether the retrieved passages sufficiently answer the query. If not, suggest a rewritten query."},
		{Role: "user", Content: buildEvaluationPrompt(state)},
	}

	var result agentmodels.BatchEvaluation
	if err := e.llm.GenerateStructured(ctx, messages, e.timeout, &result); err != nil {
		return err
	}
	state.EvaluationResult = &result
	state.Metadata.PreviousChunkFingerprints = current

	switch {
	case result.Sufficient:
		state.RelevantChunks = append([]agentmodels.Chunk(nil), state.RetrievedChunks...)
	case state.Iteration >= state.MaxIterations:
		state.RelevantChunks = append([]agentmodels.Chunk(nil), state.RetrievedChunks...)
	case result.SuggestedRewrite != nil && *result.SuggestedRewrite != "":
		state.RewrittenQuery = *result.SuggestedRewrite
		state.RelevantChunks = nil
	default:
		state.RelevantChunks = append([]agentmodels.Chunk(nil), state.RetrievedChunks...)
	}

	return emit(Event{
		Kind:    EventNodeEnd,
		Node:    "evaluate",
		Message: "evaluation complete",
		Details: map[string]interface{}{"sufficient": result.Sufficient, "relevant": len(state.RelevantChunks), "total": len(state.RetrievedChunks)},
	})
}

func buildEvaluationPrompt(state *agentmodels.AgentState) string {
	var sb []byte
	sb = append(sb, []byte("Query: "+state.CurrentQuery()+"\n\nRetrieved passages:\n")...)
	for _, c := range state.RetrievedChunks {
		sb = append(sb, []byte("- ["+c.ArxivID+"] "+truncateRunes(c.ChunkText, 300)+"\n")...)
	}
	return string(sb)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
