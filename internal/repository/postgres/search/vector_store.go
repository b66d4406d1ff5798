// Package search implements the vector and lexical retrieval backends
// over Postgres: pgvector `<=>` cosine-distance queries and full-text
// ts_rank_cd queries, both issued through pgx/v5.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	agentmodels "arxivian/internal/domain/models/agent"
	"arxivian/internal/repository/postgres"
)

// formatVector encodes a dense vector as the literal pgvector expects,
// e.g. "[0.1,0.2,0.3]", cast to ::vector in the query text so no separate
// pgvector client-side type package is required.
func formatVector(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// VectorStore implements agentsvc.VectorStore over a pgvector-indexed
// chunks table.
type VectorStore struct {
	cfg *postgres.RepositoryConfig
}

func NewVectorStore(cfg *postgres.RepositoryConfig) *VectorStore {
	return &VectorStore{cfg: cfg}
}

// Query returns the topK nearest chunks by cosine distance, optionally
// filtered by a minimum similarity score.
func (s *VectorStore) Query(ctx context.Context, embedding []float32, topK int, minScore *float64) ([]agentmodels.Chunk, error) {
	query := fmt.Sprintf(`
		SELECT chunk_id, arxiv_id, title, authors, chunk_text, section_name,
		       page_number, pdf_url, published_date,
		       1 - (embedding <=> $1::vector) AS score
		FROM %s
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`, s.cfg.Tables.Chunks)

	executor := postgres.GetExecutor(ctx, s.cfg.Pool)
	rows, err := executor.Query(ctx, query, formatVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []agentmodels.Chunk
	for rows.Next() {
		c, err := scanChunkRow(rows)
		if err != nil {
			return nil, err
		}
		if minScore != nil && c.Score < *minScore {
			continue
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChunkRow(row rowScanner) (*agentmodels.Chunk, error) {
	var c agentmodels.Chunk
	var authorsRaw []byte

	err := row.Scan(
		&c.ChunkID, &c.ArxivID, &c.Title, &authorsRaw, &c.ChunkText, &c.SectionName,
		&c.PageNumber, &c.PDFURL, &c.PublishedDate, &c.Score,
	)
	if err != nil {
		return nil, fmt.Errorf("scan chunk: %w", err)
	}
	if len(authorsRaw) > 0 {
		if err := json.Unmarshal(authorsRaw, &c.Authors); err != nil {
			return nil, fmt.Errorf("unmarshal authors: %w", err)
		}
	}
	return &c, nil
}
