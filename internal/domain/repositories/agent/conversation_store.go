package agent

import (
	"context"

	agentmodels "arxivian/internal/domain/models/agent"
)

// SaveTurnInput is the set of fields save_turn needs to persist a completed
// (or paused) turn. TurnNumber is deliberately absent: the store computes
// it atomically under row lock.
type SaveTurnInput struct {
	UserQuery           string
	AgentResponse       string
	Provider            string
	Model               string
	GuardrailScore      *int
	RetrievalAttempts   int
	RewrittenQuery      *string
	Sources             []agentmodels.Source
	ReasoningSteps      []string
	ThinkingSteps       []string
	Citations           []agentmodels.Citation
	PendingConfirmation *agentmodels.PendingConfirmation
}

// CompleteTurnInput is what complete_pending_turn fills in once a HITL
// resume finishes. Nullable fields left nil are untouched.
type CompleteTurnInput struct {
	AgentResponse  string
	ThinkingSteps  []string
	Sources        []agentmodels.Source
	ReasoningSteps []string
	Citations      []agentmodels.Citation
}

// ConversationStore is the append-only turn-log contract. Every method
// is scoped by userID; cross-user access is treated as absent
// (domain.ErrNotFound, an empty result, or false) and never as
// domain.ErrForbidden, so ownership is never leaked.
type ConversationStore interface {
	GetOrCreate(ctx context.Context, sessionID, userID string) (*agentmodels.Conversation, error)

	// GetHistory returns up to limit most-recent turns in chronological order.
	GetHistory(ctx context.Context, sessionID string, limit int, userID string) ([]agentmodels.Turn, error)

	// SaveTurn allocates the next contiguous turn_number under row lock and
	// inserts the turn. It runs its own transaction for each attempt and
	// retries on unique-constraint races; it does not join a transaction
	// opened by the caller.
	SaveTurn(ctx context.Context, sessionID string, input SaveTurnInput, userID string) (*agentmodels.Turn, error)

	CompletePendingTurn(ctx context.Context, sessionID string, turnNumber int, input CompleteTurnInput, userID string) error

	HasPendingConfirmation(ctx context.Context, sessionID string, userID string) (bool, error)

	GetPendingTurn(ctx context.Context, sessionID string, userID string) (*agentmodels.Turn, error)

	ClearPendingConfirmation(ctx context.Context, sessionID string, turnNumber int, userID string) error

	// Delete cascade-deletes the conversation and all its turns, returning
	// whether a row was found and deleted.
	Delete(ctx context.Context, sessionID string, userID string) (bool, error)

	// SetTitle sets a conversation's title if it doesn't already have one
	// (cold-start derivation from the first turn's query). A no-op if the
	// conversation already has a title.
	SetTitle(ctx context.Context, sessionID string, title string, userID string) error

	// List returns conversation summaries for a user, newest first.
	List(ctx context.Context, userID string, offset, limit int) ([]agentmodels.ConversationSummary, error)

	// Get returns a single conversation with its turns, owner-checked.
	Get(ctx context.Context, sessionID string, userID string) (*agentmodels.ConversationDetail, error)
}
