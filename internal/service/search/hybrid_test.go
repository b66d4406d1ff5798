package search

import (
	"context"
	"testing"

	agentmodels "arxivian/internal/domain/models/agent"
)

type stubVectorStore struct {
	results []agentmodels.Chunk
	err     error
}

func (s *stubVectorStore) Query(ctx context.Context, embedding []float32, topK int, minScore *float64) ([]agentmodels.Chunk, error) {
	return s.results, s.err
}

type stubLexicalStore struct {
	results []agentmodels.Chunk
	err     error
}

func (s *stubLexicalStore) Query(ctx context.Context, tsQuery string, topK int) ([]agentmodels.Chunk, error) {
	return s.results, s.err
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vec, s.err
}

func chunk(id string) agentmodels.Chunk {
	return agentmodels.Chunk{ChunkID: id}
}

func TestNewService_DefaultsRRFK(t *testing.T) {
	svc := NewService(&stubVectorStore{}, &stubLexicalStore{}, &stubEmbedder{}, 0)
	if svc.rrfK != 60 {
		t.Fatalf("expected default rrfK 60, got %d", svc.rrfK)
	}
}

func TestFuse_TopScoreNormalizedToOne(t *testing.T) {
	svc := NewService(&stubVectorStore{}, &stubLexicalStore{}, &stubEmbedder{}, 60)

	vector := []agentmodels.Chunk{chunk("a"), chunk("b"), chunk("c")}
	lexical := []agentmodels.Chunk{chunk("b"), chunk("c")}

	out := svc.fuse(10, vector, lexical)
	if len(out) != 3 {
		t.Fatalf("expected 3 fused chunks, got %d", len(out))
	}
	if out[0].Score != 1.0 {
		t.Fatalf("expected top result score normalized to 1.0, got %f", out[0].Score)
	}

	// "b" appears in both lists (rank 1 vector + rank 0 lexical), beating
	// "a" (rank 0 vector only) and "c" (rank 2 vector + rank 1 lexical).
	if out[0].ChunkID != "b" {
		t.Fatalf("expected chunk %q to rank first after fusion, got %q", "b", out[0].ChunkID)
	}
}

func TestFuse_RespectsTopK(t *testing.T) {
	svc := NewService(&stubVectorStore{}, &stubLexicalStore{}, &stubEmbedder{}, 60)
	vector := []agentmodels.Chunk{chunk("a"), chunk("b"), chunk("c"), chunk("d")}

	out := svc.fuse(2, vector)
	if len(out) != 2 {
		t.Fatalf("expected topK=2 results, got %d", len(out))
	}
}

func TestHybridSearch_NonHybridModeSkipsFusion(t *testing.T) {
	vector := &stubVectorStore{results: []agentmodels.Chunk{chunk("a"), chunk("b"), chunk("c")}}
	svc := NewService(vector, &stubLexicalStore{}, &stubEmbedder{vec: []float32{0.1}}, 60)

	out, err := svc.HybridSearch(context.Background(), "query", 2, agentmodels.SearchModeVector, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected vector-only results truncated to topK=2, got %d", len(out))
	}
}

func TestHybridSearch_EmptyQueryProducesNoLexicalCall(t *testing.T) {
	lexical := &stubLexicalStore{results: []agentmodels.Chunk{chunk("a")}}
	svc := NewService(&stubVectorStore{}, lexical, &stubEmbedder{}, 60)

	out, err := svc.HybridSearch(context.Background(), "   ", 5, agentmodels.SearchModeFulltext, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no results for blank query, got %d", len(out))
	}
}

func TestToTSQuery_StripsPunctuationAndJoinsWithAnd(t *testing.T) {
	got := toTSQuery("Attention, is All you Need!")
	want := "attention & is & all & you & need"
	if got != want {
		t.Fatalf("toTSQuery() = %q, want %q", got, want)
	}
}

func TestToTSQuery_BlankInputReturnsEmpty(t *testing.T) {
	if got := toTSQuery("   "); got != "" {
		t.Fatalf("expected empty tsquery for blank input, got %q", got)
	}
}
