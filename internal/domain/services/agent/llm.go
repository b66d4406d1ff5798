package agent

import (
	"context"
	"fmt"
	"time"
)

// Message is the provider-agnostic chat message shape passed to LLMClient.
type Message struct {
	Role    string
	Content string
}

// TimeoutError is raised by an LLMClient when a call does not complete
// within its budget. It carries enough context for the
// orchestrator to surface a meaningful in-band error.
type TimeoutError struct {
	Provider string
	Seconds  int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("llm call to %s timed out after %ds", e.Provider, e.Seconds)
}

// StreamToken is one token (or terminal error) yielded by GenerateStream.
type StreamToken struct {
	Token string
	Err   error
}

// LLMClient is the provider-agnostic contract the orchestrator nodes use.
// GenerateStructured backs classify-&-route and evaluate-batch (both make a
// single non-streaming call that must parse into a fixed shape);
// GenerateStream backs the two generation nodes.
type LLMClient interface {
	Provider() string

	// GenerateStructured makes one call and unmarshals the response into
	// dest, which must be a pointer. Returns *TimeoutError on timeout.
	GenerateStructured(ctx context.Context, messages []Message, timeout time.Duration, dest interface{}) error

	// GenerateStream streams tokens on the returned channel, closing it
	// when generation completes or ctx is cancelled. A non-nil StreamToken.Err
	// is always the final value sent.
	GenerateStream(ctx context.Context, messages []Message, timeout time.Duration) <-chan StreamToken
}
