package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	agentmodels "arxivian/internal/domain/models/agent"
	agentsvc "arxivian/internal/domain/services/agent"
	"arxivian/internal/service/agent/tools"
)

// Executor implements the executor node: runs the router's tool_calls in
// parallel with a WaitGroup fan-out into a result slice pre-allocated and
// indexed by input order, isolating failures per call.
type Executor struct {
	registry agentsvc.ToolRegistry
}

func NewExecutor(registry agentsvc.ToolRegistry) *Executor {
	return &Executor{registry: registry}
}

// Run dispatches state.RouterDecision.ToolCalls in parallel, appends
// ToolExecution/ToolOutput/RetrievedChunks, and sets PauseReason if any
// pause-inducing tool succeeded.
func (e *Executor) Run(ctx context.Context, state *agentmodels.AgentState, emit Emitter) error {
	if err := emit(Event{Kind: EventNodeStart, Node: "executor", Message: "Executing tools"}); err != nil {
		return err
	}

	calls := state.RouterDecision.ToolCalls
	type callResult struct {
		name string
		args map[string]interface{}
		res  agentmodels.ToolResult
		ok   bool // parsed successfully
	}
	results := make([]callResult, len(calls))

	history := append([]agentmodels.ToolExecution(nil), state.ToolHistory...)
	lookup := buildProposedPaperLookup(state)
	toolCtx := tools.WithProposedPaperLookup(tools.WithToolHistory(ctx, history), lookup)

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, tc agentmodels.ToolCall) {
			defer wg.Done()

			var args map[string]interface{}
			if err := json.Unmarshal([]byte(tc.ToolArgsJSON), &args); err != nil {
				results[idx] = callResult{name: tc.ToolName, ok: false}
				return
			}

			if emitErr := emit(Event{Kind: EventToolStart, ToolName: tc.ToolName, ToolArgs: args}); emitErr != nil {
				results[idx] = callResult{name: tc.ToolName, args: args, ok: true, res: agentmodels.ToolResult{Success: false, Error: emitErr.Error(), ToolName: tc.ToolName}}
				return
			}

			res := e.safeExecute(toolCtx, tc.ToolName, args)
			results[idx] = callResult{name: tc.ToolName, args: args, ok: true, res: res}
		}(i, call)
	}
	wg.Wait()

	var lastExecuted []string
	retrieveSucceeded := false

	for _, cr := range results {
		lastExecuted = append(lastExecuted, cr.name)

		if !cr.ok {
			errMsg := fmt.Sprintf("failed to parse arguments for %s", cr.name)
			state.ToolHistory = append(state.ToolHistory, agentmodels.ToolExecution{
				ToolName:      cr.name,
				Success:       false,
				ResultSummary: errMsg,
				Error:         strPtr(errMsg),
			})
			_ = emit(Event{Kind: EventToolEnd, ToolName: cr.name, Success: false})
			continue
		}

		_ = emit(Event{Kind: EventToolEnd, ToolName: cr.name, Success: cr.res.Success})

		tool, known := e.registry.Get(cr.name)
		summary := summarize(cr.name, cr.res, known && tool.ExtendsChunks())
		var errPtr *string
		if !cr.res.Success {
			errPtr = strPtr(cr.res.Error)
		}
		state.ToolHistory = append(state.ToolHistory, agentmodels.ToolExecution{
			ToolName:      cr.name,
			ToolArgs:      cr.args,
			Success:       cr.res.Success,
			ResultSummary: summary,
			Error:         errPtr,
		})

		if !cr.res.Success {
			// Keep PromptText on failures too: quota-exceeded and
			// already-ingested rejections explain themselves to the model
			// through it rather than through Error.
			state.ToolOutputs = append(state.ToolOutputs, agentmodels.ToolOutput{
				ToolName:   cr.name,
				Data:       map[string]interface{}{"error": cr.res.Error},
				PromptText: cr.res.PromptText,
			})
			continue
		}

		if cr.res.Data == nil {
			continue
		}

		if known && tool.ExtendsChunks() {
			chunks, ok := cr.res.Data.([]agentmodels.Chunk)
			if !ok {
				panic(fmt.Sprintf("tool %q declares extends_chunks but returned non-[]Chunk data", cr.name))
			}
			state.RetrievedChunks = append(state.RetrievedChunks, chunks...)
			state.RetrievalAttempts++
			if cr.name == "retrieve_chunks" {
				retrieveSucceeded = true
			}
			continue
		}

		state.ToolOutputs = append(state.ToolOutputs, agentmodels.ToolOutput{
			ToolName:   cr.name,
			Data:       cr.res.Data,
			PromptText: cr.res.PromptText,
		})

		if known && tool.SetsPause() {
			if pr, ok := cr.res.Data.(agentmodels.PauseReason); ok {
				pr.ToolName = cr.name
				state.PauseReason = &pr
			}
		}
	}

	state.LastExecutedTools = lastExecuted

	details := map[string]interface{}{"tools": lastExecuted, "retrieve_succeeded": retrieveSucceeded}
	return emit(Event{Kind: EventNodeEnd, Node: "executor", Message: "tool execution complete", Details: details})
}

// safeExecute ensures no panic from a tool implementation escapes the
// executor.
func (e *Executor) safeExecute(ctx context.Context, name string, args map[string]interface{}) (result agentmodels.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			result = agentmodels.ToolResult{Success: false, Error: fmt.Sprintf("tool panicked: %v", r), ToolName: name}
		}
	}()
	return e.registry.Execute(ctx, name, args)
}

// summarize builds the router-facing result_summary:
// paper-producing tools get a verb-specific summary, chunk tools get a
// first-ten-IDs-and-count summary, everything else a generic description.
func summarize(toolName string, res agentmodels.ToolResult, extendsChunks bool) string {
	if !res.Success {
		if res.Error == "" && res.PromptText != nil {
			return fmt.Sprintf("failed: %s", *res.PromptText)
		}
		return fmt.Sprintf("failed: %s", res.Error)
	}

	switch toolName {
	case "arxiv_search":
		if m, ok := res.Data.(map[string]interface{}); ok {
			if papers, ok := m["papers"].([]agentmodels.ProposedPaper); ok {
				ids := make([]string, 0, len(papers))
				for i, p := range papers {
					if i >= 10 {
						break
					}
					ids = append(ids, p.ArxivID)
				}
				return fmt.Sprintf("Found %d papers: [%s]", len(papers), strings.Join(ids, ", "))
			}
			if count, ok := m["count"].(int); ok {
				return fmt.Sprintf("Found %d papers", count)
			}
		}
		return "Found papers"
	case "ingest_papers":
		if m, ok := res.Data.(map[string]interface{}); ok {
			if ids, ok := m["processed_ids"].([]string); ok {
				return fmt.Sprintf("Ingested %d papers: %s", len(ids), strings.Join(ids, ", "))
			}
		}
		return "Ingested papers"
	}

	if extendsChunks {
		chunks, _ := res.Data.([]agentmodels.Chunk)
		ids := make([]string, 0, len(chunks))
		for i, c := range chunks {
			if i >= 10 {
				break
			}
			ids = append(ids, c.ChunkID)
		}
		return fmt.Sprintf("Retrieved %d chunks: %s", len(chunks), strings.Join(ids, ", "))
	}

	return "Retrieved result"
}

func strPtr(s string) *string { return &s }

func buildProposedPaperLookup(state *agentmodels.AgentState) map[string]agentmodels.ProposedPaper {
	lookup := make(map[string]agentmodels.ProposedPaper)
	for _, out := range state.ToolOutputs {
		if out.ToolName != "arxiv_search" {
			continue
		}
		m, ok := out.Data.(map[string]interface{})
		if !ok {
			continue
		}
		papers, ok := m["papers"].([]agentmodels.ProposedPaper)
		if !ok {
			continue
		}
		for _, p := range papers {
			lookup[p.ArxivID] = p
		}
	}
	return lookup
}
