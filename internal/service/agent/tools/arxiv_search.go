package tools

import (
	"context"
	"fmt"

	agentmodels "arxivian/internal/domain/models/agent"
	"arxivian/internal/service/paper"
)

// ArxivSearchTool searches the external paper registry. extends_chunks is
// false: its results feed propose_ingest/ingest_papers, not the retrieval
// context, so it appends to tool_outputs rather than retrieved_chunks.
type ArxivSearchTool struct {
	client *paper.Client
}

func NewArxivSearchTool(client *paper.Client) *ArxivSearchTool {
	return &ArxivSearchTool{client: client}
}

func (t *ArxivSearchTool) Name() string        { return "arxiv_search" }
func (t *ArxivSearchTool) Description() string { return "Search the external arXiv-like paper registry for candidate papers by topic." }

func (t *ArxivSearchTool) ParametersSchema() agentmodels.ParameterSchema {
	return agentmodels.ParameterSchema{
		Type: "object",
		Properties: map[string]agentmodels.SchemaProperty{
			"query":       {Type: "string", Description: "Search terms."},
			"max_results": {Type: "integer", Description: "Maximum papers to return (default 5)."},
		},
		Required: []string{"query"},
	}
}

func (t *ArxivSearchTool) ExtendsChunks() bool            { return false }
func (t *ArxivSearchTool) SetsPause() bool                { return false }
func (t *ArxivSearchTool) RequiredDependencies() []string { return []string{"paper_client"} }

func (t *ArxivSearchTool) Execute(ctx context.Context, args map[string]interface{}) agentmodels.ToolResult {
	query, _ := args["query"].(string)
	if query == "" {
		return agentmodels.ToolResult{Success: false, Error: "query is required", ToolName: t.Name()}
	}

	maxResults := 5
	if v, ok := args["max_results"].(float64); ok && v > 0 {
		maxResults = int(v)
	}

	results, err := t.client.Search(ctx, query, maxResults)
	if err != nil {
		return agentmodels.ToolResult{Success: false, Error: err.Error(), ToolName: t.Name()}
	}

	papers := make([]agentmodels.ProposedPaper, 0, len(results))
	for _, r := range results {
		papers = append(papers, r.ToProposedPaper())
	}

	summary := fmt.Sprintf("Found %d papers", len(papers))
	return agentmodels.ToolResult{
		Success:  true,
		Data:     map[string]interface{}{"papers": papers, "count": len(papers)},
		ToolName: t.Name(),
		PromptText: strPtr(summary),
	}
}

func strPtr(s string) *string { return &s }
