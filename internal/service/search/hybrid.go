// Package search implements hybrid retrieval: vector and lexical backends
// fused by Reciprocal Rank Fusion. Each backend is asked for more than
// topK results; the fused list is trimmed after scoring.
package search

import (
	"context"
	"sort"
	"strings"

	agentmodels "arxivian/internal/domain/models/agent"
	agentsvc "arxivian/internal/domain/services/agent"
)

// Service implements agentsvc.SearchService, fusing vector and lexical
// results with Reciprocal Rank Fusion: score = sum(1 / (rank + rrfK)) across
// the backends in which a chunk appears, ranked deepest-first per backend.
type Service struct {
	vector   agentsvc.VectorStore
	lexical  agentsvc.LexicalStore
	embedder agentsvc.EmbeddingsClient
	rrfK     int
}

func NewService(vector agentsvc.VectorStore, lexical agentsvc.LexicalStore, embedder agentsvc.EmbeddingsClient, rrfK int) *Service {
	if rrfK <= 0 {
		rrfK = 60
	}
	return &Service{vector: vector, lexical: lexical, embedder: embedder, rrfK: rrfK}
}

var _ agentsvc.SearchService = (*Service)(nil)

// HybridSearch fans out to the requested backend(s) and fuses the results.
// fetchK over-fetches each backend so fusion has enough depth to re-rank.
func (s *Service) HybridSearch(ctx context.Context, query string, topK int, mode agentmodels.ChunkSearchMode, minScore *float64) ([]agentmodels.Chunk, error) {
	if topK <= 0 {
		topK = 10
	}
	fetchK := topK * 2

	var vectorResults, lexicalResults []agentmodels.Chunk

	if mode == agentmodels.SearchModeVector || mode == agentmodels.SearchModeHybrid {
		embedding, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
		vectorResults, err = s.vector.Query(ctx, embedding, fetchK, minScore)
		if err != nil {
			return nil, err
		}
	}

	if mode == agentmodels.SearchModeFulltext || mode == agentmodels.SearchModeHybrid {
		tsQuery := toTSQuery(query)
		if tsQuery != "" {
			results, err := s.lexical.Query(ctx, tsQuery, fetchK)
			if err != nil {
				return nil, err
			}
			lexicalResults = results
		}
	}

	if mode != agentmodels.SearchModeHybrid {
		single := vectorResults
		if mode == agentmodels.SearchModeFulltext {
			single = lexicalResults
		}
		if len(single) > topK {
			single = single[:topK]
		}
		return single, nil
	}

	return s.fuse(topK, vectorResults, lexicalResults), nil
}

// fused tracks a chunk's RRF score alongside the metadata of its first
// sighting, since vector and lexical rows carry slightly different scores
// for the same chunk_id.
type fused struct {
	chunk agentmodels.Chunk
	score float64
}

// fuse combines ranked result lists with Reciprocal Rank Fusion
// (score += 1 / (rank + rrfK) for each list a chunk appears in, rank
// 0-based), then returns the topK chunks sorted by descending fused score
// with the top score normalized to 1.0.
func (s *Service) fuse(topK int, lists ...[]agentmodels.Chunk) []agentmodels.Chunk {
	byID := make(map[string]*fused)
	var order []string

	for _, list := range lists {
		for rank, c := range list {
			f, ok := byID[c.ChunkID]
			if !ok {
				f = &fused{chunk: c}
				byID[c.ChunkID] = f
				order = append(order, c.ChunkID)
			}
			f.score += 1.0 / float64(rank+s.rrfK)
		}
	}

	results := make([]fused, 0, len(order))
	for _, id := range order {
		results = append(results, *byID[id])
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	if len(results) > topK {
		results = results[:topK]
	}

	if len(results) > 0 && results[0].score > 0 {
		top := results[0].score
		for i := range results {
			results[i].chunk.Score = results[i].score / top
		}
	}

	out := make([]agentmodels.Chunk, len(results))
	for i, f := range results {
		out[i] = f.chunk
	}
	return out
}

// toTSQuery turns a free-text query into a conjunctive tsquery expression
// ("token1 & token2 & ..."), the lexical backend's expected input shape.
func toTSQuery(query string) string {
	fields := strings.Fields(strings.ToLower(query))
	if len(fields) == 0 {
		return ""
	}
	cleaned := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?()[]{}\"'")
		if f != "" {
			cleaned = append(cleaned, f)
		}
	}
	return strings.Join(cleaned, " & ")
}
