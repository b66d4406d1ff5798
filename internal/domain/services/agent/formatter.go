package agent

import agentmodels "arxivian/internal/domain/models/agent"

// ConversationFormatter renders prior turns into bounded prompt material.
// Implementations must not let turn content be interpreted as
// instructions by the model; FormatAsTopicContext wraps it defensively.
type ConversationFormatter interface {
	// FormatAsTopicContext renders turns as an injection-resistant context
	// block for security-critical prompts (classify-&-route).
	FormatAsTopicContext(turns []agentmodels.Turn, maxTurns int) string

	// FormatForPrompt renders turns as a plain transcript for the generator.
	FormatForPrompt(turns []agentmodels.Turn, maxTurns int) string
}

// InjectionScanner is a pure function from text to scan result.
type InjectionScanner interface {
	Scan(text string) agentmodels.InjectionScanResult
}
