package tools

import (
	"context"

	agentmodels "arxivian/internal/domain/models/agent"
	agentsvc "arxivian/internal/domain/services/agent"
)

// RetrieveChunksTool runs the hybrid search service; extends_chunks=true
// means a successful call's data is appended to AgentState.RetrievedChunks
// by the executor node.
type RetrieveChunksTool struct {
	search agentsvc.SearchService
	topK   int
}

func NewRetrieveChunksTool(search agentsvc.SearchService, defaultTopK int) *RetrieveChunksTool {
	if defaultTopK <= 0 {
		defaultTopK = 10
	}
	return &RetrieveChunksTool{search: search, topK: defaultTopK}
}

func (t *RetrieveChunksTool) Name() string { return "retrieve_chunks" }
func (t *RetrieveChunksTool) Description() string {
	return "Retrieve relevant passages from the indexed paper corpus via hybrid vector + lexical search."
}

func (t *RetrieveChunksTool) ParametersSchema() agentmodels.ParameterSchema {
	return agentmodels.ParameterSchema{
		Type: "object",
		Properties: map[string]agentmodels.SchemaProperty{
			"query": {Type: "string", Description: "The retrieval query."},
			"mode":  {Type: "string", Description: "vector | fulltext | hybrid", Enum: []string{"vector", "fulltext", "hybrid"}},
		},
		Required: []string{"query"},
	}
}

func (t *RetrieveChunksTool) ExtendsChunks() bool            { return true }
func (t *RetrieveChunksTool) SetsPause() bool                { return false }
func (t *RetrieveChunksTool) RequiredDependencies() []string { return []string{"search_service"} }

func (t *RetrieveChunksTool) Execute(ctx context.Context, args map[string]interface{}) agentmodels.ToolResult {
	query, _ := args["query"].(string)
	if query == "" {
		return agentmodels.ToolResult{Success: false, Error: "query is required", ToolName: t.Name()}
	}

	mode := agentmodels.SearchModeHybrid
	if m, ok := args["mode"].(string); ok && m != "" {
		mode = agentmodels.ChunkSearchMode(m)
	}

	chunks, err := t.search.HybridSearch(ctx, query, t.topK, mode, nil)
	if err != nil {
		return agentmodels.ToolResult{Success: false, Error: err.Error(), ToolName: t.Name()}
	}

	return agentmodels.ToolResult{Success: true, Data: chunks, ToolName: t.Name()}
}
