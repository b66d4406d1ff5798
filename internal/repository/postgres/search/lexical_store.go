// Package search's lexical backend implements full-text retrieval over
// the chunks table's tsvector column, using the same fmt.Sprintf
// table-prefixed SQL convention as the other repositories.
package search

import (
	"context"
	"fmt"

	agentmodels "arxivian/internal/domain/models/agent"
	"arxivian/internal/repository/postgres"
)

// LexicalStore implements agentsvc.LexicalStore over a tsvector-indexed
// chunks table, ranked by ts_rank_cd.
type LexicalStore struct {
	cfg *postgres.RepositoryConfig
}

func NewLexicalStore(cfg *postgres.RepositoryConfig) *LexicalStore {
	return &LexicalStore{cfg: cfg}
}

// Query runs a conjunctive tsquery (callers join tokens with " & ") against
// the chunks table and returns the topK highest-ranked matches.
func (s *LexicalStore) Query(ctx context.Context, tsQuery string, topK int) ([]agentmodels.Chunk, error) {
	if tsQuery == "" {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT chunk_id, arxiv_id, title, authors, chunk_text, section_name,
		       page_number, pdf_url, published_date,
		       ts_rank_cd(search_vector, to_tsquery('english', $1)) AS score
		FROM %s
		WHERE search_vector @@ to_tsquery('english', $1)
		ORDER BY score DESC
		LIMIT $2
	`, s.cfg.Tables.Chunks)

	executor := postgres.GetExecutor(ctx, s.cfg.Pool)
	rows, err := executor.Query(ctx, query, tsQuery, topK)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var out []agentmodels.Chunk
	for rows.Next() {
		c, err := scanChunkRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
