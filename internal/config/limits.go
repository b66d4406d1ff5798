package config

const (
	// MaxConversationTitleLength matches the VARCHAR(255) column.
	MaxConversationTitleLength = 255

	// MaxQueryLength bounds the raw user query accepted by /stream.
	MaxQueryLength = 4000

	// MaxTopK is a ceiling for top_k values. Nothing references it:
	// retrieve_chunks takes no top_k argument (its top_k is fixed when the
	// tool is constructed) and that value is not clamped to MaxTopK.
	MaxTopK = 50

	// MaxChunkFingerprintChars is how much of a chunk's text is included,
	// as-is (not hashed), in its stagnation-detection fingerprint.
	MaxChunkFingerprintChars = 100

	// MaxResultSummaryChars is a length bound for ToolExecution.ResultSummary.
	// Nothing references it; summaries are not truncated to this length.
	MaxResultSummaryChars = 200

	// TitleWordCount is how many leading words of the first user query
	// seed a conversation's derived title.
	TitleWordCount = 6
)
