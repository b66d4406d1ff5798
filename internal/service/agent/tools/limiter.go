package tools

import (
	"context"
	"time"

	agentrepo "arxivian/internal/domain/repositories/agent"
)

// dailyIngestLimiter implements DailyIngestLimiter over a PaperStore:
// count rows ingested since midnight UTC and compare against a configured
// daily cap. A quota of zero
// or less disables the limit entirely — propose_ingest treats a nil
// DailyIngestLimiter the same way.
type dailyIngestLimiter struct {
	papers agentrepo.PaperStore
	quota  int
}

// NewDailyIngestLimiter builds a DailyIngestLimiter backed by
// PaperStore.CountIngestedSince. Returns nil when quota <= 0, so callers can
// pass the result straight into NewProposeIngestTool without a branch.
func NewDailyIngestLimiter(papers agentrepo.PaperStore, quota int) DailyIngestLimiter {
	if quota <= 0 {
		return nil
	}
	return &dailyIngestLimiter{papers: papers, quota: quota}
}

func (l *dailyIngestLimiter) Remaining(ctx context.Context) (int, error) {
	since := startOfDayUTC(time.Now().UTC()).Unix()
	count, err := l.papers.CountIngestedSince(ctx, since)
	if err != nil {
		return 0, err
	}
	remaining := l.quota - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func startOfDayUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
