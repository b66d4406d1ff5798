// Package llm wraps github.com/anthropics/anthropic-sdk-go behind the
// provider-agnostic agentsvc.LLMClient contract. The SDK surface is hidden
// behind a narrow MessagesClient interface so tests can substitute it.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	agentsvc "arxivian/internal/domain/services/agent"
)

// structuredResultToolName names a synthetic tool forced via tool_choice so a
// single Messages.New call returns a JSON payload shaped like the caller's
// destination struct rather than free text. Anthropic has no bare
// structured-output mode; tool-forcing is the idiomatic way to get one.
const structuredResultToolName = "emit_structured_result"

// AnthropicClient implements agentsvc.LLMClient over the Messages API.
type AnthropicClient struct {
	client sdk.Client
	model  string
}

// NewAnthropicClient constructs a client from an API key and default model.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	return &AnthropicClient{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

var _ agentsvc.LLMClient = (*AnthropicClient)(nil)

func (c *AnthropicClient) Provider() string { return "anthropic" }

func toAnthropicMessages(messages []agentsvc.Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := sdk.NewTextBlock(m.Content)
		switch m.Role {
		case "assistant":
			out = append(out, sdk.NewAssistantMessage(block))
		default:
			out = append(out, sdk.NewUserMessage(block))
		}
	}
	return out
}

// GenerateStructured makes one non-streaming call, forcing the model to
// invoke a synthetic tool whose input is unmarshalled into dest.
func (c *AnthropicClient) GenerateStructured(ctx context.Context, messages []agentsvc.Message, timeout time.Duration, dest interface{}) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: 2048,
		Messages:  toAnthropicMessages(messages),
		Tools: []sdk.ToolUnionParam{
			{
				OfTool: &sdk.ToolParam{
					Name:        structuredResultToolName,
					Description: sdk.String("Emit the structured result for this decision."),
					InputSchema: sdk.ToolInputSchemaParam{
						Type: "object",
					},
				},
			},
		},
		ToolChoice: sdk.ToolChoiceUnionParam{
			OfTool: &sdk.ToolChoiceToolParam{Name: structuredResultToolName},
		},
	}

	msg, err := c.client.Messages.New(callCtx, params)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return &agentsvc.TimeoutError{Provider: c.Provider(), Seconds: int(timeout.Seconds())}
		}
		return fmt.Errorf("anthropic: generate structured: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type != "tool_use" {
			continue
		}
		tu := block.AsToolUse()
		if tu.Name != structuredResultToolName {
			continue
		}
		raw, err := json.Marshal(tu.Input)
		if err != nil {
			return fmt.Errorf("anthropic: marshal tool input: %w", err)
		}
		if err := json.Unmarshal(raw, dest); err != nil {
			return fmt.Errorf("anthropic: decode structured result: %w", err)
		}
		return nil
	}

	return fmt.Errorf("anthropic: model did not call %s", structuredResultToolName)
}

// GenerateStream streams text tokens for the generation nodes.
func (c *AnthropicClient) GenerateStream(ctx context.Context, messages []agentsvc.Message, timeout time.Duration) <-chan agentsvc.StreamToken {
	out := make(chan agentsvc.StreamToken)

	go func() {
		defer close(out)

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		params := sdk.MessageNewParams{
			Model:     sdk.Model(c.model),
			MaxTokens: 4096,
			Messages:  toAnthropicMessages(messages),
		}

		stream := c.client.Messages.NewStreaming(callCtx, params)
		for stream.Next() {
			event := stream.Current()
			if event.Type != "content_block_delta" {
				continue
			}
			delta := event.AsContentBlockDelta().Delta
			if delta.Type != "text_delta" || delta.Text == "" {
				continue
			}
			select {
			case out <- agentsvc.StreamToken{Token: delta.Text}:
			case <-ctx.Done():
				return
			}
		}

		if err := stream.Err(); err != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				out <- agentsvc.StreamToken{Err: &agentsvc.TimeoutError{Provider: c.Provider(), Seconds: int(timeout.Seconds())}}
				return
			}
			out <- agentsvc.StreamToken{Err: fmt.Errorf("anthropic: stream: %w", err)}
		}
	}()

	return out
}
