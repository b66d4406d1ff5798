package agent

import (
	"context"

	agentmodels "arxivian/internal/domain/models/agent"
)

// SearchService is the hybrid retrieval contract.
type SearchService interface {
	HybridSearch(ctx context.Context, query string, topK int, mode agentmodels.ChunkSearchMode, minScore *float64) ([]agentmodels.Chunk, error)
}

// VectorStore is the vector-similarity backend SearchService fans out to.
type VectorStore interface {
	Query(ctx context.Context, embedding []float32, topK int, minScore *float64) ([]agentmodels.Chunk, error)
}

// LexicalStore is the full-text backend SearchService fans out to.
type LexicalStore interface {
	Query(ctx context.Context, tsQuery string, topK int) ([]agentmodels.Chunk, error)
}

// EmbeddingsClient turns text into a dense vector for VectorStore queries.
type EmbeddingsClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
