package tools

import (
	"context"
	"fmt"
	"strings"

	agentmodels "arxivian/internal/domain/models/agent"
	agentsvc "arxivian/internal/domain/services/agent"
	agentrepo "arxivian/internal/domain/repositories/agent"
	"arxivian/internal/service/chunk"
	"arxivian/internal/service/paper"
	"arxivian/internal/service/pdfparse"
)

// IngestPapersTool performs the side-effectful paper ingest: fetch metadata,
// parse, chunk, embed, and persist. Invoked either directly by the model or
// inline by the HITL resume path once the user approves a propose_ingest
// batch.
type IngestPapersTool struct {
	client    *paper.Client
	parser    *pdfparse.Parser
	chunker   *chunk.RecursiveSplitter
	embedder  agentsvc.EmbeddingsClient
	papers    agentrepo.PaperStore
}

func NewIngestPapersTool(client *paper.Client, parser *pdfparse.Parser, chunker *chunk.RecursiveSplitter, embedder agentsvc.EmbeddingsClient, papers agentrepo.PaperStore) *IngestPapersTool {
	return &IngestPapersTool{client: client, parser: parser, chunker: chunker, embedder: embedder, papers: papers}
}

func (t *IngestPapersTool) Name() string        { return "ingest_papers" }
func (t *IngestPapersTool) Description() string  { return "Fetch, chunk, embed, and persist approved papers into the indexed corpus." }

func (t *IngestPapersTool) ParametersSchema() agentmodels.ParameterSchema {
	return agentmodels.ParameterSchema{
		Type: "object",
		Properties: map[string]agentmodels.SchemaProperty{
			"arxiv_ids": {Type: "array", Description: "Approved arXiv IDs to ingest.", Items: &agentmodels.SchemaProperty{Type: "string"}},
		},
		Required: []string{"arxiv_ids"},
	}
}

func (t *IngestPapersTool) ExtendsChunks() bool            { return false }
func (t *IngestPapersTool) SetsPause() bool                { return false }
func (t *IngestPapersTool) RequiredDependencies() []string { return []string{"paper_client", "embeddings_client", "paper_store"} }

// Execute ingests each requested paper independently: one failure does not
// abort the batch. Papers already present or momentarily lock-contended are
// skipped, not failed.
func (t *IngestPapersTool) Execute(ctx context.Context, args map[string]interface{}) agentmodels.ToolResult {
	rawIDs, _ := args["arxiv_ids"].([]interface{})
	if len(rawIDs) == 0 {
		return agentmodels.ToolResult{Success: false, Error: "arxiv_ids must be non-empty", ToolName: t.Name()}
	}

	var processed []string
	var errs []string
	chunksCreated := 0

	for _, v := range rawIDs {
		id, ok := v.(string)
		if !ok || id == "" {
			continue
		}

		result, err := t.client.GetByID(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: fetch failed: %v", id, err))
			continue
		}
		paperMeta := result.ToProposedPaper()

		parsed, err := t.parser.Parse(ctx, strings.NewReader(paperMeta.Abstract))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: parse failed: %v", id, err))
			continue
		}

		chunks := t.chunker.ChunkPaper(parsed, id, paperMeta.Title, paperMeta.Authors, paperMeta.PDFURL)
		embeddings := make([][]float32, 0, len(chunks))
		for _, c := range chunks {
			embedding, err := t.embedder.Embed(ctx, c.ChunkText)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: embed failed: %v", id, err))
				embeddings = append(embeddings, nil)
				continue
			}
			embeddings = append(embeddings, embedding)
		}

		created, skipped, err := t.papers.IngestPaper(ctx, paperMeta, chunks, embeddings)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: persist failed: %v", id, err))
			continue
		}
		if skipped {
			continue
		}
		processed = append(processed, id)
		chunksCreated += created
	}

	summary := fmt.Sprintf("Ingested %d papers: %s", len(processed), strings.Join(processed, ", "))
	return agentmodels.ToolResult{
		Success: true,
		Data: map[string]interface{}{
			"papers_processed": len(processed),
			"chunks_created":   chunksCreated,
			"errors":           errs,
			"processed_ids":    processed,
		},
		PromptText: &summary,
		ToolName:   t.Name(),
	}
}
