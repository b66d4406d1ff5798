// Package chunk implements a recursive text splitter: try larger
// separators first, fall back to smaller ones, drop pieces shorter than
// MinChunkSize, and add overlap between adjacent chunks.
package chunk

import (
	"strings"

	"github.com/google/uuid"

	agentmodels "arxivian/internal/domain/models/agent"
	"arxivian/internal/service/pdfparse"
)

// Config controls chunk sizing. Character-counted, not token-counted.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	MinChunkSize int
}

func DefaultConfig() Config {
	return Config{ChunkSize: 1000, ChunkOverlap: 200, MinChunkSize: 100}
}

// DefaultSeparators mirrors nexus's separator hierarchy: paragraph, line,
// sentence-enders, then word, then character as a last resort.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "? ", "! ", "; ", ": ", ", ", " ", ""}

type span struct {
	content     string
	startOffset int
	endOffset   int
}

// RecursiveSplitter implements the chunker.
type RecursiveSplitter struct {
	cfg        Config
	separators []string
}

func NewRecursiveSplitter(cfg Config) *RecursiveSplitter {
	if cfg.ChunkSize <= 0 {
		cfg = DefaultConfig()
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}
	if cfg.MinChunkSize <= 0 {
		cfg.MinChunkSize = DefaultConfig().MinChunkSize
	}
	return &RecursiveSplitter{cfg: cfg, separators: DefaultSeparators}
}

func (s *RecursiveSplitter) Name() string { return "recursive_character" }

// ChunkPaper splits one parsed paper into Chunks carrying its paper
// metadata, attributing each chunk to the section it falls within.
func (s *RecursiveSplitter) ChunkPaper(parsed *pdfparse.ParseResult, arxivID, title string, authors []string, pdfURL string) []agentmodels.Chunk {
	if strings.TrimSpace(parsed.Content) == "" {
		return nil
	}

	raw := s.splitText(parsed.Content, s.separators)
	merged := s.mergeOverlap(raw)

	chunks := make([]agentmodels.Chunk, 0, len(merged))
	for _, m := range merged {
		chunks = append(chunks, agentmodels.Chunk{
			ChunkID:     uuid.NewString(),
			ArxivID:     arxivID,
			Title:       title,
			Authors:     authors,
			ChunkText:   m.content,
			SectionName: findSection(parsed.Sections, m.startOffset),
			PDFURL:      pdfURL,
		})
	}
	return chunks
}

func findSection(sections []pdfparse.Section, offset int) string {
	for i := len(sections) - 1; i >= 0; i-- {
		if offset >= sections[i].StartOffset {
			return sections[i].Title
		}
	}
	return ""
}

func (s *RecursiveSplitter) splitText(text string, separators []string) []span {
	if len(text) == 0 {
		return nil
	}

	separator := ""
	for _, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			break
		}
	}

	var pieces []string
	if separator == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
	} else {
		pieces = strings.Split(text, separator)
	}

	var result []span
	var current strings.Builder
	start := 0

	flush := func() {
		if current.Len() == 0 {
			return
		}
		content := strings.TrimSpace(current.String())
		if len(content) >= s.cfg.MinChunkSize {
			result = append(result, span{content: content, startOffset: start, endOffset: start + current.Len()})
		}
		start += current.Len()
		current.Reset()
	}

	for i, piece := range pieces {
		if i < len(pieces)-1 && separator != "" {
			piece += separator
		}

		if current.Len() > 0 && current.Len()+len(piece) > s.cfg.ChunkSize {
			flush()
		}

		if len(piece) > s.cfg.ChunkSize && len(separators) > 1 {
			flush()
			for _, sub := range s.splitText(piece, separators[1:]) {
				sub.startOffset += start
				sub.endOffset += start
				result = append(result, sub)
			}
			start += len(piece)
			continue
		}

		current.WriteString(piece)
	}
	flush()

	return result
}

func (s *RecursiveSplitter) mergeOverlap(spans []span) []span {
	if len(spans) <= 1 || s.cfg.ChunkOverlap <= 0 {
		return spans
	}

	out := make([]span, len(spans))
	out[0] = spans[0]
	for i := 1; i < len(spans); i++ {
		prev := spans[i-1]
		overlap := s.cfg.ChunkOverlap
		if overlap > len(prev.content) {
			overlap = len(prev.content)
		}
		prefix := prev.content[len(prev.content)-overlap:]
		out[i] = span{
			content:     prefix + spans[i].content,
			startOffset: spans[i].startOffset - overlap,
			endOffset:   spans[i].endOffset,
		}
	}
	return out
}
