package agent

import "time"

// Conversation is the durable, user-owned container for a sequence of Turns.
// SessionID is the externally-visible handle; ID is the internal primary key.
type Conversation struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"session_id" db:"session_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Title     *string   `json:"title,omitempty" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ConversationSummary is the list-view projection returned by GET /conversations.
type ConversationSummary struct {
	SessionID    string    `json:"session_id"`
	Title        *string   `json:"title,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	TurnCount    int       `json:"turn_count"`
	LastQuery    *string   `json:"last_query,omitempty"`
}

// ConversationDetail is the full-conversation projection for GET /conversations/{id}.
type ConversationDetail struct {
	Conversation
	Turns []Turn `json:"turns"`
}
