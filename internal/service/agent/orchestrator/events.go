// Package orchestrator implements the agent graph: the cyclic
// classify/executor/evaluate state machine, modeled as a tagged node plus
// transition functions driven by a single owner holding the mutable
// AgentState.
package orchestrator

import agentmodels "arxivian/internal/domain/models/agent"

// EventKind enumerates the internal graph events the stream service
// translates into the external SSE contract.
type EventKind string

const (
	EventNodeStart EventKind = "node_start"
	EventNodeEnd   EventKind = "node_end"
	EventToolStart EventKind = "tool_start"
	EventToolEnd   EventKind = "tool_end"
	EventToken     EventKind = "token"
	EventInterrupt EventKind = "interrupt"
)

// Event is one notification emitted while running the graph.
type Event struct {
	Kind    EventKind
	Node    string
	Message string
	Details interface{}

	ToolName string
	ToolArgs map[string]interface{}
	Success  bool

	Token string

	PauseReason *agentmodels.PauseReason
}

// Emitter receives graph events as they occur. Returning a non-nil error
// aborts the run (used by the stream service to implement cancellation:
// checking the TaskRegistry between events and returning context.Canceled).
// The executor node calls Emitter concurrently, once per in-flight tool
// call; implementations must be safe for concurrent use.
type Emitter func(Event) error
