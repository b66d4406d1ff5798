package agent

// StreamRequest is the body of POST /stream. Exactly one of Query or Resume
// is set.
type StreamRequest struct {
	Query  string         `json:"query,omitempty"`
	Resume *ResumeRequest `json:"resume,omitempty"`

	Provider           string  `json:"provider,omitempty"`
	Model              string  `json:"model,omitempty"`
	TopK               int     `json:"top_k,omitempty"`
	GuardrailThreshold int     `json:"guardrail_threshold,omitempty"`
	MaxRetrievalAttempts int   `json:"max_retrieval_attempts,omitempty"`
	MaxIterations      int     `json:"max_iterations,omitempty"`
	Temperature        float64 `json:"temperature,omitempty"`
	TimeoutSeconds     int     `json:"timeout_seconds,omitempty"`
	SessionID          string  `json:"session_id,omitempty"`
	ConversationWindow int     `json:"conversation_window,omitempty"`
}

// ResumeRequest carries the HITL resume payload: the user's approve/reject
// decision for a previously-proposed ingest.
type ResumeRequest struct {
	SessionID   string   `json:"session_id"`
	ThreadID    string   `json:"thread_id"`
	Approved    bool     `json:"approved"`
	SelectedIDs []string `json:"selected_ids"`
}

// IsResume reports whether this request is a resume rather than a fresh ask.
func (r *StreamRequest) IsResume() bool {
	return r.Resume != nil
}
