package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	agentmodels "arxivian/internal/domain/models/agent"
	agentsvc "arxivian/internal/domain/services/agent"
)

type stubLLM struct {
	result agentmodels.ClassificationResult
	err    error
}

func (s *stubLLM) Provider() string { return "stub" }

func (s *stubLLM) GenerateStructured(ctx context.Context, messages []agentsvc.Message, timeout time.Duration, dest interface{}) error {
	if s.err != nil {
		return s.err
	}
	out := dest.(*agentmodels.ClassificationResult)
	*out = s.result
	return nil
}

func (s *stubLLM) GenerateStream(ctx context.Context, messages []agentsvc.Message, timeout time.Duration) <-chan agentsvc.StreamToken {
	ch := make(chan agentsvc.StreamToken)
	close(ch)
	return ch
}

type noopScanner struct{}

func (noopScanner) Scan(text string) agentmodels.InjectionScanResult {
	return agentmodels.InjectionScanResult{}
}

type noopFormatter struct{}

func (noopFormatter) FormatAsTopicContext(turns []agentmodels.Turn, maxTurns int) string { return "" }
func (noopFormatter) FormatForPrompt(turns []agentmodels.Turn, maxTurns int) string      { return "" }

type stubToolRegistry struct {
	tools map[string]agentsvc.Tool
}

func (s *stubToolRegistry) Register(tool agentsvc.Tool) error { return nil }
func (s *stubToolRegistry) Get(name string) (agentsvc.Tool, bool) {
	t, ok := s.tools[name]
	return t, ok
}
func (s *stubToolRegistry) GetAllSchemas() []agentmodels.ToolSchema { return nil }
func (s *stubToolRegistry) Execute(ctx context.Context, name string, args map[string]interface{}) agentmodels.ToolResult {
	return agentmodels.ToolResult{}
}

type stubTool struct {
	extends bool
}

func (t *stubTool) Name() string                                    { return "retrieve_chunks" }
func (t *stubTool) Description() string                              { return "" }
func (t *stubTool) ParametersSchema() agentmodels.ParameterSchema    { return agentmodels.ParameterSchema{Type: "object"} }
func (t *stubTool) ExtendsChunks() bool                               { return t.extends }
func (t *stubTool) SetsPause() bool                                   { return false }
func (t *stubTool) RequiredDependencies() []string                    { return nil }
func (t *stubTool) Execute(ctx context.Context, args map[string]interface{}) agentmodels.ToolResult {
	return agentmodels.ToolResult{}
}

func noopEmit(Event) error { return nil }

func TestClassifier_IsRewriteReadBeforeIncrement(t *testing.T) {
	// Iteration starts at 1 (this is a rewrite, state already went through
	// classify_and_route once); the LLM-returned scope_score must be
	// discarded in favor of the carried-forward GuardrailScore.
	priorScore := 42
	llm := &stubLLM{result: agentmodels.ClassificationResult{Intent: agentmodels.IntentDirect, ScopeScore: 99}}
	c := NewClassifier(llm, noopScanner{}, noopFormatter{}, &stubToolRegistry{}, time.Second)

	state := &agentmodels.AgentState{
		OriginalQuery: "what about transformers",
		Iteration:     1,
		MaxIterations: 5,
		Metadata:      agentmodels.StateMetadata{GuardrailScore: &priorScore, GuardrailThreshold: 50},
	}

	if err := c.Classify(context.Background(), state, noopEmit); err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if state.ClassificationResult.ScopeScore != priorScore {
		t.Fatalf("expected carried-forward scope_score %d on a rewrite iteration, got %d", priorScore, state.ClassificationResult.ScopeScore)
	}
	if state.Iteration != 2 {
		t.Fatalf("expected iteration to increment to 2, got %d", state.Iteration)
	}
}

func TestClassifier_FirstIterationKeepsLLMScore(t *testing.T) {
	llm := &stubLLM{result: agentmodels.ClassificationResult{Intent: agentmodels.IntentDirect, ScopeScore: 88}}
	c := NewClassifier(llm, noopScanner{}, noopFormatter{}, &stubToolRegistry{}, time.Second)

	state := &agentmodels.AgentState{
		OriginalQuery: "what is attention",
		MaxIterations: 5,
		Metadata:      agentmodels.StateMetadata{GuardrailThreshold: 50},
	}

	if err := c.Classify(context.Background(), state, noopEmit); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if state.ClassificationResult.ScopeScore != 88 {
		t.Fatalf("expected the LLM's own scope_score on a fresh (non-rewrite) iteration, got %d", state.ClassificationResult.ScopeScore)
	}
}

func TestClassifier_ExecuteWithNoToolCallsBecomesDirect(t *testing.T) {
	llm := &stubLLM{result: agentmodels.ClassificationResult{Intent: agentmodels.IntentExecute, ToolCalls: nil}}
	c := NewClassifier(llm, noopScanner{}, noopFormatter{}, &stubToolRegistry{}, time.Second)

	state := &agentmodels.AgentState{OriginalQuery: "hello", MaxIterations: 5}
	if err := c.Classify(context.Background(), state, noopEmit); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if state.ClassificationResult.Intent != agentmodels.IntentDirect {
		t.Fatalf("expected execute-with-no-tool-calls to become direct, got %q", state.ClassificationResult.Intent)
	}
}

func TestClassifier_IterationBudgetExhausted(t *testing.T) {
	llm := &stubLLM{result: agentmodels.ClassificationResult{Intent: agentmodels.IntentExecute}}
	c := NewClassifier(llm, noopScanner{}, noopFormatter{}, &stubToolRegistry{}, time.Second)

	turnScore := 95
	state := &agentmodels.AgentState{
		OriginalQuery: "q",
		Iteration:     5,
		MaxIterations: 5,
		Metadata:      agentmodels.StateMetadata{GuardrailScore: &turnScore, GuardrailThreshold: 75},
	}
	if err := c.Classify(context.Background(), state, noopEmit); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if state.ClassificationResult.Reasoning != "iteration budget exhausted" {
		t.Fatalf("expected iteration-budget-exhausted fast path, got intent=%q reasoning=%q", state.ClassificationResult.Intent, state.ClassificationResult.Reasoning)
	}
	if state.ClassificationResult.Intent != agentmodels.IntentDirect {
		t.Fatalf("expected iteration-budget-exhausted to force direct intent, got %q", state.ClassificationResult.Intent)
	}
	// The forced-direct result must carry this turn's own score so it
	// still routes to generate, not out_of_scope.
	if state.ClassificationResult.ScopeScore != turnScore {
		t.Fatalf("expected this turn's guardrail score %d on the forced-direct result, got %d", turnScore, state.ClassificationResult.ScopeScore)
	}
}

func TestClassifier_IterationBudgetExhaustedDefaultsInScope(t *testing.T) {
	llm := &stubLLM{result: agentmodels.ClassificationResult{Intent: agentmodels.IntentExecute}}
	c := NewClassifier(llm, noopScanner{}, noopFormatter{}, &stubToolRegistry{}, time.Second)

	state := &agentmodels.AgentState{
		OriginalQuery: "q",
		Iteration:     5,
		MaxIterations: 5,
		Metadata:      agentmodels.StateMetadata{GuardrailThreshold: 75},
	}
	if err := c.Classify(context.Background(), state, noopEmit); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if state.ClassificationResult.ScopeScore != 100 {
		t.Fatalf("expected the no-score default of 100 to keep the turn in scope, got %d", state.ClassificationResult.ScopeScore)
	}
}

func TestDedupFilter_NonChunkToolBlockedByNameAloneAfterSuccess(t *testing.T) {
	registry := &stubToolRegistry{tools: map[string]agentsvc.Tool{}}
	c := NewClassifier(&stubLLM{}, noopScanner{}, noopFormatter{}, registry, time.Second)

	state := &agentmodels.AgentState{
		ToolHistory: []agentmodels.ToolExecution{
			{ToolName: "arxiv_search", ToolArgs: map[string]interface{}{"query": "a"}, Success: true},
		},
	}

	calls := []agentmodels.ToolCall{{ToolName: "arxiv_search", ToolArgsJSON: `{"query":"different query"}`}}
	out := c.dedupFilter(state, calls)
	if len(out) != 0 {
		t.Fatalf("expected a non-chunk tool to be blocked by name alone once it succeeded, got %d surviving calls", len(out))
	}
}

func TestDedupFilter_ChunkProducingToolOnlyBlockedOnExactRepeat(t *testing.T) {
	registry := &stubToolRegistry{tools: map[string]agentsvc.Tool{
		"retrieve_chunks": &stubTool{extends: true},
	}}
	c := NewClassifier(&stubLLM{}, noopScanner{}, noopFormatter{}, registry, time.Second)

	priorArgs := map[string]interface{}{"query": "attention"}
	state := &agentmodels.AgentState{
		ToolHistory: []agentmodels.ToolExecution{
			{ToolName: "retrieve_chunks", ToolArgs: priorArgs, Success: true},
		},
	}

	sameArgsJSON, _ := json.Marshal(priorArgs)
	newArgsJSON, _ := json.Marshal(map[string]interface{}{"query": "transformers"})

	calls := []agentmodels.ToolCall{
		{ToolName: "retrieve_chunks", ToolArgsJSON: string(sameArgsJSON)},
		{ToolName: "retrieve_chunks", ToolArgsJSON: string(newArgsJSON)},
	}

	out := c.dedupFilter(state, calls)
	if len(out) != 1 {
		t.Fatalf("expected exactly one surviving call (the new-args one), got %d", len(out))
	}
	if out[0].ToolArgsJSON != string(newArgsJSON) {
		t.Fatalf("expected the new-args call to survive dedup, got %q", out[0].ToolArgsJSON)
	}
}
