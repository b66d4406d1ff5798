package agent

// Message is one {role, content} entry of a conversation transcript, either
// the live in-flight message list or a read-only history projection.
type Message struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// RunStatus is the orchestrator's coarse lifecycle state for one invocation.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusPaused    RunStatus = "paused"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// PauseReason is the HITL interrupt payload: a pause-inducing tool's data,
// captured verbatim so the stream service can build a confirm_ingest event
// and the resume path can recover the same proposal.
type PauseReason struct {
	ToolName    string          `json:"tool_name"`
	Papers      []ProposedPaper `json:"papers"`
	ProposedIDs []string        `json:"proposed_ids"`
}

// StateMetadata is the catch-all bag threaded through every node, carrying
// fields that don't warrant their own AgentState slot: reasoning steps
// accumulated so far, guardrail bookkeeping, the injection scan result, and
// the fingerprint set used for stagnation detection.
type StateMetadata struct {
	ReasoningSteps             []string             `json:"reasoning_steps"`
	GuardrailScore             *int                 `json:"guardrail_score,omitempty"`
	LastGuardrailScore         *int                 `json:"last_guardrail_score,omitempty"`
	GuardrailThreshold         int                  `json:"guardrail_threshold"`
	InjectionScan              *InjectionScanResult `json:"-"`
	PreviousChunkFingerprints  []string             `json:"-"`
	TopK                       int                  `json:"top_k"`
	TraceID                    string               `json:"trace_id,omitempty"`
}

// AgentState is the per-invocation record threaded through every node of
// the orchestrator graph. It lives only for the duration of one classify →
// executor → evaluate → generate run; on HITL pause it is serialized into
// the checkpoint store keyed by ThreadID and rehydrated on resume.
type AgentState struct {
	Messages       []Message `json:"messages"`
	OriginalQuery  string    `json:"original_query"`
	RewrittenQuery string    `json:"rewritten_query,omitempty"`

	Status        RunStatus `json:"status"`
	Iteration     int       `json:"iteration"`
	MaxIterations int       `json:"max_iterations"`

	ClassificationResult *ClassificationResult `json:"classification_result,omitempty"`
	RouterDecision       *ClassificationResult `json:"router_decision,omitempty"`

	ToolHistory        []ToolExecution `json:"tool_history"`
	LastExecutedTools  []string        `json:"last_executed_tools"`
	RetrievedChunks    []Chunk         `json:"retrieved_chunks"`
	RelevantChunks     []Chunk         `json:"relevant_chunks"`
	ToolOutputs        []ToolOutput    `json:"tool_outputs"`
	RetrievalAttempts  int             `json:"retrieval_attempts"`

	EvaluationResult *BatchEvaluation `json:"evaluation_result,omitempty"`

	// ConversationHistory is a read-only snapshot of prior turns, bounded by
	// conversation_window; nodes never mutate it.
	ConversationHistory []Turn `json:"-"`

	Metadata StateMetadata `json:"metadata"`

	PauseReason *PauseReason `json:"pause_reason,omitempty"`

	SessionID string `json:"session_id"`
	ThreadID  string `json:"thread_id"`

	// Provider/Model are the resolved (request-or-default) identifiers
	// recorded on the persisted turn and the metadata event; the graph
	// itself doesn't branch on them today since each node's LLMClient is
	// fixed at construction time.
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`

	// FinalAnswer accumulates generation tokens so the stream service can
	// persist the whole answer and fall back to a synthetic content event
	// if no tokens were ever emitted.
	FinalAnswer string `json:"-"`
}

// CurrentQuery resolves the text the next node should reason about:
// RewrittenQuery, falling back to OriginalQuery, falling back to the last
// user message.
func (s *AgentState) CurrentQuery() string {
	if s.RewrittenQuery != "" {
		return s.RewrittenQuery
	}
	if s.OriginalQuery != "" {
		return s.OriginalQuery
	}
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == "user" {
			return s.Messages[i].Content
		}
	}
	return ""
}
