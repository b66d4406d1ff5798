package orchestrator

import (
	"fmt"
	"sort"

	agentmodels "arxivian/internal/domain/models/agent"
)

// fingerprints builds the stagnation-detection signature: a sorted list
// of "{arxiv_id}:{first 100 chars of chunk_text}".
func fingerprints(chunks []agentmodels.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		text := c.ChunkText
		if len(text) > 100 {
			text = text[:100]
		}
		out[i] = fmt.Sprintf("%s:%s", c.ArxivID, text)
	}
	sort.Strings(out)
	return out
}

func fingerprintsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
