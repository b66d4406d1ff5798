package agent

import (
	"context"

	agentmodels "arxivian/internal/domain/models/agent"
)

// CheckpointStore persists a paused AgentState keyed by ThreadID, for the
// short window between a HITL interrupt and its resume. Entries expire
// after a TTL.
type CheckpointStore interface {
	// Save stores state under threadID, overwriting any existing entry.
	Save(ctx context.Context, threadID string, state *agentmodels.AgentState) error

	// Load returns the checkpoint for threadID, or (nil, false) if absent
	// or expired.
	Load(ctx context.Context, threadID string) (*agentmodels.AgentState, bool, error)

	// Delete removes the checkpoint, idempotently.
	Delete(ctx context.Context, threadID string) error
}

// IdempotencyStore is the in-process TTL map for mutating side-effect
// endpoints driven by a caller-supplied idempotency key.
type IdempotencyStore interface {
	// Reserve atomically claims key; returns false if already claimed and
	// not yet expired.
	Reserve(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
