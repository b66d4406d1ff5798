package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	agentmodels "arxivian/internal/domain/models/agent"
	agentsvc "arxivian/internal/domain/services/agent"
)

const (
	maxToolOutputChars = 4096
	maxHistoryChars    = 500
)

// Generator implements the two generation nodes: in-scope answer
// generation and the shorter out-of-scope rejection.
type Generator struct {
	llm     agentsvc.LLMClient
	timeout time.Duration
}

func NewGenerator(llm agentsvc.LLMClient, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Generator{llm: llm, timeout: timeout}
}

const inScopeSystemPrompt = `You answer questions about scientific papers using the provided passages and tool results.
Cite sources by their external arXiv ID. Lead with paper titles when citing. Do not mention tool names or raw timestamps.
Be conversational and direct.`

const outOfScopeSystemPrompt = `Acknowledge the user's message naturally, explain that you focus on academic research assistance,
and suggest a relevant angle they could ask about instead. Keep it to 2-3 sentences.`

// GenerateInScope streams the final answer for an in-scope turn.
func (g *Generator) GenerateInScope(ctx context.Context, state *agentmodels.AgentState, topK int, maxAttempts int, emit Emitter) error {
	if err := emit(Event{Kind: EventNodeStart, Node: "generate", Message: "Generating answer"}); err != nil {
		return err
	}

	messages := []agentsvc.Message{
		{Role: "system", Content: inScopeSystemPrompt},
		{Role: "user", Content: g.buildInScopePrompt(state, topK, maxAttempts)},
	}

	return g.stream(ctx, state, messages, emit)
}

// GenerateOutOfScope streams a short polite rejection.
func (g *Generator) GenerateOutOfScope(ctx context.Context, state *agentmodels.AgentState, emit Emitter) error {
	if err := emit(Event{Kind: EventNodeStart, Node: "out_of_scope", Message: "Generating out-of-scope response"}); err != nil {
		return err
	}

	var notes strings.Builder
	if state.ClassificationResult != nil {
		notes.WriteString(fmt.Sprintf("scope_score=%d, reasoning=%q", state.ClassificationResult.ScopeScore, state.ClassificationResult.Reasoning))
	}

	messages := []agentsvc.Message{
		{Role: "system", Content: outOfScopeSystemPrompt},
		{Role: "user", Content: state.CurrentQuery() + "\n\n[" + notes.String() + "]"},
	}

	return g.stream(ctx, state, messages, emit)
}

func (g *Generator) stream(ctx context.Context, state *agentmodels.AgentState, messages []agentsvc.Message, emit Emitter) error {
	tokens := g.llm.GenerateStream(ctx, messages, g.timeout)
	for t := range tokens {
		if t.Err != nil {
			return t.Err
		}
		state.FinalAnswer += t.Token
		if err := emit(Event{Kind: EventToken, Token: t.Token}); err != nil {
			return err
		}
	}
	state.Status = agentmodels.StatusCompleted
	return emit(Event{Kind: EventNodeEnd, Node: "generate", Message: "generation complete"})
}

func (g *Generator) buildInScopePrompt(state *agentmodels.AgentState, topK int, maxAttempts int) string {
	var sb strings.Builder

	chunks := state.RelevantChunks
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}
	sb.WriteString("Relevant passages:\n")
	for _, c := range chunks {
		sb.WriteString(fmt.Sprintf("- [%s] %s: %s\n", c.ArxivID, c.Title, c.ChunkText))
	}

	if len(state.ToolOutputs) > 0 {
		sb.WriteString("\nTool results:\n")
		for _, out := range state.ToolOutputs {
			text := ""
			if out.PromptText != nil {
				text = *out.PromptText
			} else if raw, err := json.Marshal(out.Data); err == nil {
				text = string(raw)
			}
			if len(text) > maxToolOutputChars {
				text = text[:maxToolOutputChars]
			}
			sb.WriteString(fmt.Sprintf("- %s: %s\n", out.ToolName, text))
		}
	}

	if len(state.ConversationHistory) > 0 {
		sb.WriteString("\nPrior conversation:\n")
		for _, turn := range state.ConversationHistory {
			sb.WriteString(fmt.Sprintf("user: %s\n", truncateRunes(turn.UserQuery, maxHistoryChars)))
			sb.WriteString(fmt.Sprintf("assistant: %s\n", truncateRunes(turn.AgentResponse, maxHistoryChars)))
		}
	}

	if state.RetrievalAttempts >= maxAttempts && len(chunks) < topK {
		sb.WriteString("\nNote: retrieval stopped at the attempt limit with fewer than the requested number of relevant passages. Acknowledge any gaps in coverage.\n")
	}

	sb.WriteString("\nUser query: ")
	sb.WriteString(state.CurrentQuery())

	return sb.String()
}
