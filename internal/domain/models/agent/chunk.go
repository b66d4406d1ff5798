package agent

import "time"

// Chunk is an in-memory projection of one retrieved passage, carried through
// retrieval, evaluation, and generation.
type Chunk struct {
	ChunkID       string     `json:"chunk_id"`
	ArxivID       string     `json:"arxiv_id"`
	Title         string     `json:"title"`
	Authors       []string   `json:"authors"`
	ChunkText     string     `json:"chunk_text"`
	SectionName   string     `json:"section_name"`
	PageNumber    int        `json:"page_number"`
	Score         float64    `json:"score"`
	PDFURL        string     `json:"pdf_url"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
}

// ChunkSearchMode selects which backend(s) hybrid_search fans out to.
type ChunkSearchMode string

const (
	SearchModeVector   ChunkSearchMode = "vector"
	SearchModeFulltext ChunkSearchMode = "fulltext"
	SearchModeHybrid   ChunkSearchMode = "hybrid"
)
