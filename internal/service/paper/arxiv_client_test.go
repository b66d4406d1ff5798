package paper

import (
	"testing"
	"time"
)

func TestParseRetryAfter_ClampsBelowMinimum(t *testing.T) {
	got := parseRetryAfter("1")
	if got != minRetryAfter {
		t.Fatalf("expected a 1s hint clamped up to %s, got %s", minRetryAfter, got)
	}
}

func TestParseRetryAfter_ClampsAboveMaximum(t *testing.T) {
	got := parseRetryAfter("600")
	if got != maxRetryAfter {
		t.Fatalf("expected a 600s hint clamped down to %s, got %s", maxRetryAfter, got)
	}
}

func TestParseRetryAfter_WithinRangePassesThrough(t *testing.T) {
	got := parseRetryAfter("45")
	if got != 45*time.Second {
		t.Fatalf("expected 45s to pass through unclamped, got %s", got)
	}
}

func TestParseRetryAfter_MissingHeaderDefaultsTo30s(t *testing.T) {
	got := parseRetryAfter("")
	if got != 30*time.Second {
		t.Fatalf("expected the default 30s when no header is present, got %s", got)
	}
}

func TestParseRetryAfter_MalformedHeaderFallsBackToDefault(t *testing.T) {
	got := parseRetryAfter("not-a-number")
	if got != 30*time.Second {
		t.Fatalf("expected a malformed header to fall back to the 30s default, got %s", got)
	}
}

func TestRetryAfterError_ErrorMessageIncludesDuration(t *testing.T) {
	err := &RetryAfterError{RetryAfter: 45 * time.Second}
	if got := err.Error(); got == "" {
		t.Fatal("expected a non-empty error message")
	}
}
