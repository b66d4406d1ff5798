package orchestrator

import (
	"context"
	"sync"
	"testing"

	agentmodels "arxivian/internal/domain/models/agent"
	agentsvc "arxivian/internal/domain/services/agent"
)

type fakeTool struct {
	name    string
	extends bool
	pause   bool
	execute func(ctx context.Context, args map[string]interface{}) agentmodels.ToolResult
}

func (t *fakeTool) Name() string                                 { return t.name }
func (t *fakeTool) Description() string                          { return t.name }
func (t *fakeTool) ParametersSchema() agentmodels.ParameterSchema {
	return agentmodels.ParameterSchema{Type: "object"}
}
func (t *fakeTool) ExtendsChunks() bool            { return t.extends }
func (t *fakeTool) SetsPause() bool                { return t.pause }
func (t *fakeTool) RequiredDependencies() []string { return nil }
func (t *fakeTool) Execute(ctx context.Context, args map[string]interface{}) agentmodels.ToolResult {
	return t.execute(ctx, args)
}

type fakeRegistry struct {
	tools map[string]agentsvc.Tool
}

func (r *fakeRegistry) Register(tool agentsvc.Tool) error { return nil }
func (r *fakeRegistry) Get(name string) (agentsvc.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}
func (r *fakeRegistry) GetAllSchemas() []agentmodels.ToolSchema { return nil }
func (r *fakeRegistry) Execute(ctx context.Context, name string, args map[string]interface{}) agentmodels.ToolResult {
	t, ok := r.tools[name]
	if !ok {
		return agentmodels.ToolResult{Success: false, Error: "tool not found: " + name, ToolName: name}
	}
	return t.Execute(ctx, args)
}

func execState(calls ...agentmodels.ToolCall) *agentmodels.AgentState {
	return &agentmodels.AgentState{
		OriginalQuery:  "q",
		MaxIterations:  5,
		RouterDecision: &agentmodels.ClassificationResult{Intent: agentmodels.IntentExecute, ToolCalls: calls},
	}
}

func TestExecutor_HistoryOrderMatchesRequestOrder(t *testing.T) {
	// Completion order is scrambled by a WaitGroup race; history order must
	// still mirror the router's request order.
	var release sync.WaitGroup
	release.Add(1)
	reg := &fakeRegistry{tools: map[string]agentsvc.Tool{
		"slow": &fakeTool{name: "slow", execute: func(ctx context.Context, args map[string]interface{}) agentmodels.ToolResult {
			release.Wait()
			return agentmodels.ToolResult{Success: true, Data: map[string]interface{}{"k": "v"}, ToolName: "slow"}
		}},
		"fast": &fakeTool{name: "fast", execute: func(ctx context.Context, args map[string]interface{}) agentmodels.ToolResult {
			defer release.Done()
			return agentmodels.ToolResult{Success: true, Data: map[string]interface{}{"k": "v"}, ToolName: "fast"}
		}},
	}}
	e := NewExecutor(reg)

	state := execState(
		agentmodels.ToolCall{ToolName: "slow", ToolArgsJSON: "{}"},
		agentmodels.ToolCall{ToolName: "fast", ToolArgsJSON: "{}"},
	)
	if err := e.Run(context.Background(), state, noopEmit); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(state.ToolHistory) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(state.ToolHistory))
	}
	if state.ToolHistory[0].ToolName != "slow" || state.ToolHistory[1].ToolName != "fast" {
		t.Fatalf("expected request-order history [slow fast], got [%s %s]", state.ToolHistory[0].ToolName, state.ToolHistory[1].ToolName)
	}
}

func TestExecutor_MalformedArgsIsolatedFromSiblings(t *testing.T) {
	reg := &fakeRegistry{tools: map[string]agentsvc.Tool{
		"ok": &fakeTool{name: "ok", execute: func(ctx context.Context, args map[string]interface{}) agentmodels.ToolResult {
			return agentmodels.ToolResult{Success: true, Data: map[string]interface{}{"k": "v"}, ToolName: "ok"}
		}},
	}}
	e := NewExecutor(reg)

	state := execState(
		agentmodels.ToolCall{ToolName: "broken", ToolArgsJSON: "{not json"},
		agentmodels.ToolCall{ToolName: "ok", ToolArgsJSON: "{}"},
	)
	if err := e.Run(context.Background(), state, noopEmit); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.ToolHistory[0].Success {
		t.Fatal("expected the malformed-args call to record a failure")
	}
	if state.ToolHistory[0].Error == nil {
		t.Fatal("expected the malformed-args failure to carry an error")
	}
	if !state.ToolHistory[1].Success {
		t.Fatal("expected the sibling call to succeed despite the malformed one")
	}
}

func TestExecutor_PanickingToolRecordedAsFailure(t *testing.T) {
	reg := &fakeRegistry{tools: map[string]agentsvc.Tool{
		"boom": &fakeTool{name: "boom", execute: func(ctx context.Context, args map[string]interface{}) agentmodels.ToolResult {
			panic("kaput")
		}},
	}}
	e := NewExecutor(reg)

	state := execState(agentmodels.ToolCall{ToolName: "boom", ToolArgsJSON: "{}"})
	if err := e.Run(context.Background(), state, noopEmit); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.ToolHistory[0].Success {
		t.Fatal("expected a panicking tool to be recorded as failed")
	}
	if len(state.ToolOutputs) != 1 {
		t.Fatalf("expected one error tool_output, got %d", len(state.ToolOutputs))
	}
}

func TestExecutor_ChunkToolExtendsRetrievedChunks(t *testing.T) {
	chunks := []agentmodels.Chunk{chunkFixture("2301.00001", "text")}
	reg := &fakeRegistry{tools: map[string]agentsvc.Tool{
		"retrieve_chunks": &fakeTool{name: "retrieve_chunks", extends: true, execute: func(ctx context.Context, args map[string]interface{}) agentmodels.ToolResult {
			return agentmodels.ToolResult{Success: true, Data: chunks, ToolName: "retrieve_chunks"}
		}},
	}}
	e := NewExecutor(reg)

	state := execState(agentmodels.ToolCall{ToolName: "retrieve_chunks", ToolArgsJSON: `{"query":"x"}`})
	if err := e.Run(context.Background(), state, noopEmit); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(state.RetrievedChunks) != 1 {
		t.Fatalf("expected 1 retrieved chunk, got %d", len(state.RetrievedChunks))
	}
	if state.RetrievalAttempts != 1 {
		t.Fatalf("expected retrieval_attempts=1, got %d", state.RetrievalAttempts)
	}
	if len(state.ToolOutputs) != 0 {
		t.Fatalf("chunk tools must not land in tool_outputs, got %d entries", len(state.ToolOutputs))
	}
}

func TestExecutor_ChunkToolWithNonListDataPanics(t *testing.T) {
	reg := &fakeRegistry{tools: map[string]agentsvc.Tool{
		"retrieve_chunks": &fakeTool{name: "retrieve_chunks", extends: true, execute: func(ctx context.Context, args map[string]interface{}) agentmodels.ToolResult {
			return agentmodels.ToolResult{Success: true, Data: map[string]interface{}{"oops": true}, ToolName: "retrieve_chunks"}
		}},
	}}
	e := NewExecutor(reg)

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for extends_chunks tool returning non-chunk data")
		}
	}()
	_ = e.Run(context.Background(), execState(agentmodels.ToolCall{ToolName: "retrieve_chunks", ToolArgsJSON: "{}"}), noopEmit)
}

func TestExecutor_PauseToolSetsPauseReason(t *testing.T) {
	papers := []agentmodels.ProposedPaper{{ArxivID: "2301.00001", Title: "T"}}
	reg := &fakeRegistry{tools: map[string]agentsvc.Tool{
		"propose_ingest": &fakeTool{name: "propose_ingest", pause: true, execute: func(ctx context.Context, args map[string]interface{}) agentmodels.ToolResult {
			return agentmodels.ToolResult{
				Success:  true,
				Data:     agentmodels.PauseReason{Papers: papers, ProposedIDs: []string{"2301.00001"}},
				ToolName: "propose_ingest",
			}
		}},
	}}
	e := NewExecutor(reg)

	state := execState(agentmodels.ToolCall{ToolName: "propose_ingest", ToolArgsJSON: "{}"})
	if err := e.Run(context.Background(), state, noopEmit); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.PauseReason == nil {
		t.Fatal("expected pause_reason to be set by a successful pause-inducing tool")
	}
	if state.PauseReason.ToolName != "propose_ingest" {
		t.Fatalf("expected pause_reason tool name propose_ingest, got %q", state.PauseReason.ToolName)
	}
	if len(state.PauseReason.ProposedIDs) != 1 {
		t.Fatalf("expected 1 proposed ID, got %d", len(state.PauseReason.ProposedIDs))
	}
}

func TestExecutor_FailedToolKeepsPromptText(t *testing.T) {
	// Quota-style rejections carry their explanation in PromptText with no
	// Error; the generator must still see it.
	quotaMsg := "Daily ingest quota has been reached; no new papers can be proposed today."
	reg := &fakeRegistry{tools: map[string]agentsvc.Tool{
		"propose_ingest": &fakeTool{name: "propose_ingest", pause: true, execute: func(ctx context.Context, args map[string]interface{}) agentmodels.ToolResult {
			return agentmodels.ToolResult{Success: false, PromptText: &quotaMsg, ToolName: "propose_ingest"}
		}},
	}}
	e := NewExecutor(reg)

	state := execState(agentmodels.ToolCall{ToolName: "propose_ingest", ToolArgsJSON: "{}"})
	if err := e.Run(context.Background(), state, noopEmit); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(state.ToolOutputs) != 1 {
		t.Fatalf("expected one tool_output, got %d", len(state.ToolOutputs))
	}
	if state.ToolOutputs[0].PromptText == nil || *state.ToolOutputs[0].PromptText != quotaMsg {
		t.Fatalf("expected the failure's PromptText to survive into tool_outputs, got %+v", state.ToolOutputs[0])
	}
	if want := "failed: " + quotaMsg; state.ToolHistory[0].ResultSummary != want {
		t.Fatalf("expected the summary to fall back to PromptText, got %q", state.ToolHistory[0].ResultSummary)
	}
}

func TestSummarize_FailedCallSurfacesErrorVerbatim(t *testing.T) {
	res := agentmodels.ToolResult{Success: false, Error: "registry unavailable"}
	got := summarize("arxiv_search", res, false)
	if got != "failed: registry unavailable" {
		t.Fatalf("expected verbatim error in summary, got %q", got)
	}
}

func TestSummarize_ArxivSearchListsPaperIDs(t *testing.T) {
	res := agentmodels.ToolResult{Success: true, Data: map[string]interface{}{
		"papers": []agentmodels.ProposedPaper{{ArxivID: "2301.00001"}, {ArxivID: "2301.00002"}},
		"count":  2,
	}}
	got := summarize("arxiv_search", res, false)
	if want := "Found 2 papers: [2301.00001, 2301.00002]"; got != want {
		t.Fatalf("summary mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestSummarize_ChunkToolListsFirstTenIDs(t *testing.T) {
	chunks := make([]agentmodels.Chunk, 12)
	for i := range chunks {
		chunks[i] = agentmodels.Chunk{ChunkID: string(rune('a' + i))}
	}
	got := summarize("retrieve_chunks", agentmodels.ToolResult{Success: true, Data: chunks}, true)
	if want := "Retrieved 12 chunks: a, b, c, d, e, f, g, h, i, j"; got != want {
		t.Fatalf("summary mismatch:\n got %q\nwant %q", got, want)
	}
}
