package agent

import (
	"context"

	agentmodels "arxivian/internal/domain/models/agent"
)

// PaperStore persists ingested papers and their chunks, and answers the
// already-ingested membership check propose_ingest and ingest_papers need.
type PaperStore interface {
	// FilterIngested returns the subset of arxivIDs already present.
	FilterIngested(ctx context.Context, arxivIDs []string) (map[string]bool, error)

	// IngestPaper persists one paper's metadata and chunks under a
	// not-wait row lock. skipped=true (with err=nil) means another writer
	// holds the lock or the paper already exists; the caller treats this as
	// a neutral no-op, never an error.
	IngestPaper(ctx context.Context, paper agentmodels.ProposedPaper, chunks []agentmodels.Chunk, embeddings [][]float32) (chunksCreated int, skipped bool, err error)

	// CountIngestedSince reports how many papers this store has ingested
	// at or after the given boundary (Unix seconds), for DailyIngestLimiter.
	CountIngestedSince(ctx context.Context, sinceUnixSeconds int64) (int, error)
}
