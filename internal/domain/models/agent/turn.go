package agent

import "time"

// Turn is one request-response pair within a conversation. TurnNumber is
// monotone and contiguous per session — enforced by the store, never by
// the caller — starting at 0.
type Turn struct {
	ID                 string                `json:"id" db:"id"`
	ConversationID     string                `json:"conversation_id" db:"conversation_id"`
	TurnNumber         int                   `json:"turn_number" db:"turn_number"`
	UserQuery          string                `json:"user_query" db:"user_query"`
	AgentResponse      string                `json:"agent_response" db:"agent_response"`
	Provider           string                `json:"provider" db:"provider"`
	Model              string                `json:"model" db:"model"`
	GuardrailScore     *int                  `json:"guardrail_score,omitempty" db:"guardrail_score"`
	RetrievalAttempts  int                   `json:"retrieval_attempts" db:"retrieval_attempts"`
	RewrittenQuery     *string               `json:"rewritten_query,omitempty" db:"rewritten_query"`
	Sources            []Source              `json:"sources,omitempty" db:"sources"`
	ReasoningSteps     []string              `json:"reasoning_steps,omitempty" db:"reasoning_steps"`
	ThinkingSteps      []string              `json:"thinking_steps,omitempty" db:"thinking_steps"`
	Citations          []Citation            `json:"citations,omitempty" db:"citations"`
	PendingConfirmation *PendingConfirmation `json:"pending_confirmation,omitempty" db:"pending_confirmation"`
	CreatedAt          time.Time             `json:"created_at" db:"created_at"`
}

// Source is one retrieved-paper citation surfaced in the `sources` SSE event.
type Source struct {
	ArxivID          string     `json:"arxiv_id"`
	Title            string     `json:"title"`
	Authors          []string   `json:"authors"`
	PDFURL           string     `json:"pdf_url"`
	RelevanceScore   float64    `json:"relevance_score"`
	PublishedDate    *time.Time `json:"published_date,omitempty"`
	WasGradedRelevant bool      `json:"was_graded_relevant"`
}

// Citation is derived per paper from its reference list.
type Citation struct {
	ArxivID        string   `json:"arxiv_id"`
	Title          string   `json:"title"`
	References     []string `json:"references"`
	ReferenceCount int      `json:"reference_count"`
}

// PendingConfirmation is the snapshot needed to resume an interrupted run
// from a separate HTTP request. At most one turn per session may carry a
// non-null PendingConfirmation.
type PendingConfirmation struct {
	Papers      []ProposedPaper `json:"papers"`
	Model       string          `json:"model"`
	Temperature float64         `json:"temperature"`
	ThreadID    string          `json:"thread_id"`
}

// ProposedPaper is one candidate surfaced by propose_ingest for user approval.
type ProposedPaper struct {
	ArxivID       string     `json:"arxiv_id"`
	Title         string     `json:"title"`
	Authors       []string   `json:"authors"`
	Abstract      string     `json:"abstract"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	PDFURL        string     `json:"pdf_url"`
}
