package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/callflow/internal/retry"
	"github.com/haasonsaas/callflow/internal/session"
)

// AnthropicAgent generates replies with a Claude model.
//
// Thread Safety: AnthropicAgent is safe for concurrent use.
type AnthropicAgent struct {
	client anthropic.Client
	model  anthropic.Model
	system string
}

// AnthropicConfig holds configuration for the Anthropic agent.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// Model is the Claude model to use. Default: claude-3-5-haiku-latest.
	Model string

	// SystemPrompt frames the call. Default: DefaultSystemPrompt.
	SystemPrompt string
}

// NewAnthropicAgent creates an Anthropic-backed agent.
func NewAnthropicAgent(cfg AnthropicConfig) (*AnthropicAgent, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("agent: anthropic API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	system := cfg.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	return &AnthropicAgent{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  anthropic.Model(model),
		system: system,
	}, nil
}

// GenerateReply produces the next conversational turn. Transient failures
// are retried with exponential backoff; exhausted retries surface as a
// classified *Error.
func (a *AnthropicAgent) GenerateReply(ctx context.Context, history []session.Turn, utterance string) (Reply, error) {
	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, turn := range history {
		block := anthropic.NewTextBlock(turn.Text)
		if turn.Role == session.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(utterance)))

	msg, res := retry.DoWithValue(ctx, retry.Exponential(3, 500*time.Millisecond, 8*time.Second),
		func() (*anthropic.Message, error) {
			msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
				Model:     a.model,
				MaxTokens: 1024,
				System:    []anthropic.TextBlockParam{{Text: a.system}},
				Messages:  messages,
			})
			if err != nil {
				classified := a.wrapError(err)
				if !classified.Kind.Retryable() {
					return nil, retry.Permanent(classified)
				}
				return nil, classified
			}
			return msg, nil
		})
	if res.Err != nil {
		return Reply{}, res.Err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return Reply{}, &Error{Kind: FailureAPI, Provider: "anthropic", Cause: errors.New("empty completion")}
	}
	return parseReply(sb.String()), nil
}

func (a *AnthropicAgent) wrapError(err error) *Error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classify("anthropic", apiErr.StatusCode, err)
	}
	return classify("anthropic", 0, err)
}
