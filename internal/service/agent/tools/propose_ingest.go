package tools

import (
	"context"
	"fmt"

	agentmodels "arxivian/internal/domain/models/agent"
	agentrepo "arxivian/internal/domain/repositories/agent"
)

// DailyIngestLimiter gates propose_ingest's output when a daily ingest
// quota is configured. A nil limiter means no quota.
type DailyIngestLimiter interface {
	// Remaining returns how many more papers may be proposed today.
	Remaining(ctx context.Context) (int, error)
}

// ProposeIngestTool surfaces a batch of candidate papers for user
// confirmation before the side-effectful ingest runs. SetsPause()==true: a
// successful call interrupts the graph into HITL pause.
type ProposeIngestTool struct {
	papers       agentrepo.PaperStore
	limiter      DailyIngestLimiter
	maxProposals int
}

func NewProposeIngestTool(papers agentrepo.PaperStore, limiter DailyIngestLimiter, maxProposals int) *ProposeIngestTool {
	if maxProposals <= 0 {
		maxProposals = 5
	}
	return &ProposeIngestTool{papers: papers, limiter: limiter, maxProposals: maxProposals}
}

func (t *ProposeIngestTool) Name() string { return "propose_ingest" }
func (t *ProposeIngestTool) Description() string {
	return "Propose a batch of candidate papers, found via arxiv_search this turn, for the user to approve ingesting."
}

func (t *ProposeIngestTool) ParametersSchema() agentmodels.ParameterSchema {
	return agentmodels.ParameterSchema{
		Type: "object",
		Properties: map[string]agentmodels.SchemaProperty{
			"arxiv_ids": {
				Type:        "array",
				Description: "arXiv IDs to propose, drawn from a prior arxiv_search result this turn.",
				Items:       &agentmodels.SchemaProperty{Type: "string"},
			},
		},
		Required: []string{"arxiv_ids"},
	}
}

func (t *ProposeIngestTool) ExtendsChunks() bool            { return false }
func (t *ProposeIngestTool) SetsPause() bool                { return true }
func (t *ProposeIngestTool) RequiredDependencies() []string { return []string{"paper_store"} }

func (t *ProposeIngestTool) Execute(ctx context.Context, args map[string]interface{}) agentmodels.ToolResult {
	if !precededByArxivSearch(ctx) {
		return agentmodels.ToolResult{
			Success:  false,
			Error:    "propose_ingest requires a prior successful arxiv_search this turn",
			ToolName: t.Name(),
		}
	}

	rawIDs, _ := args["arxiv_ids"].([]interface{})
	if len(rawIDs) == 0 {
		return agentmodels.ToolResult{Success: false, Error: "arxiv_ids must be non-empty", ToolName: t.Name()}
	}

	ids := make([]string, 0, len(rawIDs))
	for _, v := range rawIDs {
		if s, ok := v.(string); ok && s != "" {
			ids = append(ids, s)
		}
	}
	if len(ids) > t.maxProposals {
		ids = ids[:t.maxProposals]
	}

	if t.limiter != nil {
		remaining, err := t.limiter.Remaining(ctx)
		if err == nil && remaining <= 0 {
			msg := "Daily ingest quota has been reached; no new papers can be proposed today."
			return agentmodels.ToolResult{Success: false, PromptText: &msg, ToolName: t.Name()}
		}
		if err == nil && remaining < len(ids) {
			ids = ids[:remaining]
		}
	}

	alreadyIngested, err := t.papers.FilterIngested(ctx, ids)
	if err != nil {
		return agentmodels.ToolResult{Success: false, Error: err.Error(), ToolName: t.Name()}
	}

	var fresh []string
	for _, id := range ids {
		if !alreadyIngested[id] {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		msg := "All requested papers are already ingested."
		return agentmodels.ToolResult{Success: false, PromptText: &msg, ToolName: t.Name()}
	}

	papers := resolveProposedPapers(ctx, fresh)

	return agentmodels.ToolResult{
		Success: true,
		Data: agentmodels.PauseReason{
			ToolName:    t.Name(),
			Papers:      papers,
			ProposedIDs: fresh,
		},
		ToolName: t.Name(),
	}
}

// precededByArxivSearch enforces that propose_ingest may only run after a
// successful arxiv_search earlier in the same turn.
func precededByArxivSearch(ctx context.Context) bool {
	for _, exec := range ToolHistoryFromContext(ctx) {
		if exec.ToolName == "arxiv_search" && exec.Success {
			return true
		}
	}
	return false
}

// resolveProposedPapers recovers display metadata for the chosen IDs from
// the arxiv_search results already recorded in tool_outputs via context;
// falls back to a bare-ID stub when metadata isn't available.
func resolveProposedPapers(ctx context.Context, ids []string) []agentmodels.ProposedPaper {
	lookup := ProposedPaperLookupFromContext(ctx)
	out := make([]agentmodels.ProposedPaper, 0, len(ids))
	for _, id := range ids {
		if p, ok := lookup[id]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, agentmodels.ProposedPaper{ArxivID: id, Title: fmt.Sprintf("arXiv:%s", id)})
	}
	return out
}
