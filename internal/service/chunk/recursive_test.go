package chunk

import (
	"strings"
	"testing"

	"arxivian/internal/service/pdfparse"
)

func TestNewRecursiveSplitter_NonPositiveChunkSizeFallsBackToDefault(t *testing.T) {
	s := NewRecursiveSplitter(Config{})
	if s.cfg.ChunkSize != 1000 || s.cfg.ChunkOverlap != 200 || s.cfg.MinChunkSize != 100 {
		t.Fatalf("expected DefaultConfig() values, got %+v", s.cfg)
	}
}

func TestNewRecursiveSplitter_OverlapClampedBelowChunkSize(t *testing.T) {
	s := NewRecursiveSplitter(Config{ChunkSize: 100, ChunkOverlap: 150, MinChunkSize: 10})
	if s.cfg.ChunkOverlap != 20 {
		t.Fatalf("expected overlap clamped to ChunkSize/5=20, got %d", s.cfg.ChunkOverlap)
	}
}

func TestChunkPaper_EmptyContentProducesNoChunks(t *testing.T) {
	s := NewRecursiveSplitter(DefaultConfig())
	parsed := &pdfparse.ParseResult{Content: "   "}
	got := s.ChunkPaper(parsed, "2301.0001", "Title", nil, "")
	if len(got) != 0 {
		t.Fatalf("expected no chunks for blank content, got %d", len(got))
	}
}

func TestChunkPaper_CarriesPaperMetadataOntoEveryChunk(t *testing.T) {
	s := NewRecursiveSplitter(Config{ChunkSize: 50, ChunkOverlap: 0, MinChunkSize: 1})
	content := strings.Repeat("word ", 40)
	parsed := &pdfparse.ParseResult{Content: content}

	chunks := s.ChunkPaper(parsed, "2301.0001", "A Paper Title", []string{"A. Author"}, "http://example.com/2301.0001.pdf")
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk for non-trivial content")
	}
	for _, c := range chunks {
		if c.ArxivID != "2301.0001" {
			t.Errorf("expected arxiv_id to be carried onto every chunk, got %q", c.ArxivID)
		}
		if c.Title != "A Paper Title" {
			t.Errorf("expected title to be carried onto every chunk, got %q", c.Title)
		}
		if c.ChunkID == "" {
			t.Error("expected every chunk to get a generated chunk_id")
		}
	}
}

func TestChunkPaper_AttributesChunksToTheirSection(t *testing.T) {
	s := NewRecursiveSplitter(Config{ChunkSize: 1000, ChunkOverlap: 0, MinChunkSize: 1})
	content := "Intro text here.\n\nMethod text here."
	parsed := &pdfparse.ParseResult{
		Content: content,
		Sections: []pdfparse.Section{
			{Title: "Introduction", StartOffset: 0},
			{Title: "Method", StartOffset: 18},
		},
	}

	chunks := s.ChunkPaper(parsed, "2301.0001", "T", nil, "")
	if len(chunks) == 0 {
		t.Fatal("expected chunks to be produced")
	}
	for _, c := range chunks {
		if c.SectionName != "Introduction" && c.SectionName != "Method" {
			t.Errorf("expected every chunk to be attributed to a known section, got %q", c.SectionName)
		}
	}
}

func TestSplitText_RespectsChunkSizeBudget(t *testing.T) {
	s := NewRecursiveSplitter(Config{ChunkSize: 20, ChunkOverlap: 0, MinChunkSize: 1})
	text := "one two three four five six seven eight nine ten"

	spans := s.splitText(text, s.separators)
	for _, sp := range spans {
		if len(sp.content) > 20+len(" ") {
			t.Errorf("expected span content to roughly respect the chunk size budget, got %d chars: %q", len(sp.content), sp.content)
		}
	}
}

func TestMergeOverlap_PrependsPriorSuffix(t *testing.T) {
	s := NewRecursiveSplitter(Config{ChunkSize: 1000, ChunkOverlap: 5, MinChunkSize: 1})
	spans := []span{
		{content: "abcdefghij", startOffset: 0, endOffset: 10},
		{content: "klmno", startOffset: 10, endOffset: 15},
	}

	merged := s.mergeOverlap(spans)
	if merged[0].content != spans[0].content {
		t.Fatalf("expected the first span to be unmodified, got %q", merged[0].content)
	}
	if merged[1].content != "fghij"+"klmno" {
		t.Fatalf("expected the second span to be prefixed with the prior span's last 5 chars, got %q", merged[1].content)
	}
}

func TestMergeOverlap_NoOverlapConfiguredReturnsUnchanged(t *testing.T) {
	s := NewRecursiveSplitter(Config{ChunkSize: 1000, ChunkOverlap: 0, MinChunkSize: 1})
	spans := []span{{content: "a"}, {content: "b"}}
	merged := s.mergeOverlap(spans)
	if merged[1].content != "b" {
		t.Fatalf("expected spans unchanged when overlap is 0, got %q", merged[1].content)
	}
}
