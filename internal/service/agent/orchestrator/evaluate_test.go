package orchestrator

import (
	"context"
	"testing"
	"time"

	agentmodels "arxivian/internal/domain/models/agent"
	agentsvc "arxivian/internal/domain/services/agent"
)

type evalStubLLM struct {
	result agentmodels.BatchEvaluation
	calls  int
}

func (s *evalStubLLM) Provider() string { return "stub" }

func (s *evalStubLLM) GenerateStructured(ctx context.Context, messages []agentsvc.Message, timeout time.Duration, dest interface{}) error {
	s.calls++
	out := dest.(*agentmodels.BatchEvaluation)
	*out = s.result
	return nil
}

func (s *evalStubLLM) GenerateStream(ctx context.Context, messages []agentsvc.Message, timeout time.Duration) <-chan agentsvc.StreamToken {
	ch := make(chan agentsvc.StreamToken)
	close(ch)
	return ch
}

func chunkFixture(arxivID, text string) agentmodels.Chunk {
	return agentmodels.Chunk{ChunkID: arxivID + "-0", ArxivID: arxivID, ChunkText: text}
}

func TestEvaluator_NoChunksSkipsLLM(t *testing.T) {
	llm := &evalStubLLM{}
	e := NewEvaluator(llm, time.Second)

	state := &agentmodels.AgentState{OriginalQuery: "q", MaxIterations: 5}
	if err := e.Run(context.Background(), state, noopEmit); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if llm.calls != 0 {
		t.Fatalf("expected no LLM call on the empty-chunks fast path, got %d", llm.calls)
	}
	if state.EvaluationResult.Sufficient {
		t.Fatal("expected sufficient=false with no chunks")
	}
	if len(state.RelevantChunks) != 0 {
		t.Fatalf("expected no relevant chunks, got %d", len(state.RelevantChunks))
	}
}

func TestEvaluator_StagnationSkipsLLM(t *testing.T) {
	llm := &evalStubLLM{result: agentmodels.BatchEvaluation{Sufficient: false}}
	e := NewEvaluator(llm, time.Second)

	chunks := []agentmodels.Chunk{chunkFixture("2301.00001", "attention is all you need")}
	state := &agentmodels.AgentState{
		OriginalQuery:   "q",
		MaxIterations:   5,
		RetrievedChunks: chunks,
		Metadata: agentmodels.StateMetadata{
			PreviousChunkFingerprints: fingerprints(chunks),
		},
	}

	if err := e.Run(context.Background(), state, noopEmit); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if llm.calls != 0 {
		t.Fatalf("expected stagnation to short-circuit before the LLM, got %d calls", llm.calls)
	}
	if !state.EvaluationResult.Sufficient {
		t.Fatal("expected stagnation to force sufficient=true")
	}
	if len(state.RelevantChunks) != len(chunks) {
		t.Fatalf("expected all chunks promoted on stagnation, got %d of %d", len(state.RelevantChunks), len(chunks))
	}
}

func TestEvaluator_SufficientPromotesAllChunks(t *testing.T) {
	llm := &evalStubLLM{result: agentmodels.BatchEvaluation{Sufficient: true, Reasoning: "covers the query"}}
	e := NewEvaluator(llm, time.Second)

	state := &agentmodels.AgentState{
		OriginalQuery:   "q",
		MaxIterations:   5,
		RetrievedChunks: []agentmodels.Chunk{chunkFixture("a", "x"), chunkFixture("b", "y")},
	}
	if err := e.Run(context.Background(), state, noopEmit); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(state.RelevantChunks) != 2 {
		t.Fatalf("expected both chunks promoted, got %d", len(state.RelevantChunks))
	}
	if len(state.Metadata.PreviousChunkFingerprints) != 2 {
		t.Fatalf("expected fingerprints stored for the next iteration, got %d", len(state.Metadata.PreviousChunkFingerprints))
	}
}

func TestEvaluator_RewriteClearsRelevantChunks(t *testing.T) {
	rewrite := "multi-head attention mechanism"
	llm := &evalStubLLM{result: agentmodels.BatchEvaluation{Sufficient: false, SuggestedRewrite: &rewrite}}
	e := NewEvaluator(llm, time.Second)

	state := &agentmodels.AgentState{
		OriginalQuery:   "attention",
		Iteration:       1,
		MaxIterations:   5,
		RetrievedChunks: []agentmodels.Chunk{chunkFixture("a", "x")},
	}
	if err := e.Run(context.Background(), state, noopEmit); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.RewrittenQuery != rewrite {
		t.Fatalf("expected rewritten query %q, got %q", rewrite, state.RewrittenQuery)
	}
	if len(state.RelevantChunks) != 0 {
		t.Fatalf("expected relevant chunks cleared on rewrite, got %d", len(state.RelevantChunks))
	}
}

func TestEvaluator_MaxIterationsPromotesBestEffort(t *testing.T) {
	rewrite := "ignored"
	llm := &evalStubLLM{result: agentmodels.BatchEvaluation{Sufficient: false, SuggestedRewrite: &rewrite}}
	e := NewEvaluator(llm, time.Second)

	state := &agentmodels.AgentState{
		OriginalQuery:   "q",
		Iteration:       5,
		MaxIterations:   5,
		RetrievedChunks: []agentmodels.Chunk{chunkFixture("a", "x")},
	}
	if err := e.Run(context.Background(), state, noopEmit); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.RewrittenQuery != "" {
		t.Fatalf("expected no rewrite at the iteration ceiling, got %q", state.RewrittenQuery)
	}
	if len(state.RelevantChunks) != 1 {
		t.Fatalf("expected best-effort promotion at the iteration ceiling, got %d chunks", len(state.RelevantChunks))
	}
}

func TestEvaluator_InsufficientWithoutRewritePromotesBestEffort(t *testing.T) {
	llm := &evalStubLLM{result: agentmodels.BatchEvaluation{Sufficient: false}}
	e := NewEvaluator(llm, time.Second)

	state := &agentmodels.AgentState{
		OriginalQuery:   "q",
		Iteration:       1,
		MaxIterations:   5,
		RetrievedChunks: []agentmodels.Chunk{chunkFixture("a", "x")},
	}
	if err := e.Run(context.Background(), state, noopEmit); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(state.RelevantChunks) != 1 {
		t.Fatalf("expected best-effort promotion when insufficient with no rewrite, got %d chunks", len(state.RelevantChunks))
	}
}
