package orchestrator

import (
	"testing"

	agentmodels "arxivian/internal/domain/models/agent"
)

func TestFingerprints_SortedAndTruncatedAt100Chars(t *testing.T) {
	longText := make([]byte, 150)
	for i := range longText {
		longText[i] = 'x'
	}

	chunks := []agentmodels.Chunk{
		{ArxivID: "2301.0002", ChunkText: "short"},
		{ArxivID: "2301.0001", ChunkText: string(longText)},
	}

	got := fingerprints(chunks)
	if len(got) != 2 {
		t.Fatalf("expected 2 fingerprints, got %d", len(got))
	}
	// sorted lexicographically: "2301.0001:..." < "2301.0002:short"
	if got[0] != "2301.0001:"+string(longText[:100]) {
		t.Fatalf("expected the long chunk's fingerprint truncated to 100 chars and sorted first, got %q", got[0])
	}
	if got[1] != "2301.0002:short" {
		t.Fatalf("expected the second fingerprint to be %q, got %q", "2301.0002:short", got[1])
	}
}

func TestFingerprintsEqual(t *testing.T) {
	a := []string{"x:1", "y:2"}
	b := []string{"x:1", "y:2"}
	c := []string{"x:1", "z:3"}

	if !fingerprintsEqual(a, b) {
		t.Fatal("expected identical fingerprint slices to be equal")
	}
	if fingerprintsEqual(a, c) {
		t.Fatal("expected differing fingerprint slices to be unequal")
	}
	if fingerprintsEqual(a, []string{"x:1"}) {
		t.Fatal("expected slices of different length to be unequal")
	}
}
