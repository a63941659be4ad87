package agent

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/callflow/internal/retry"
	"github.com/haasonsaas/callflow/internal/session"
)

// OpenAIAgent generates replies with an OpenAI chat model.
//
// Thread Safety: OpenAIAgent is safe for concurrent use.
type OpenAIAgent struct {
	client *openai.Client
	model  string
	system string
}

// OpenAIConfig holds configuration for the OpenAI agent.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// Model is the chat model to use. Default: gpt-4o-mini.
	Model string

	// SystemPrompt frames the call. Default: DefaultSystemPrompt.
	SystemPrompt string
}

// NewOpenAIAgent creates an OpenAI-backed agent.
func NewOpenAIAgent(cfg OpenAIConfig) (*OpenAIAgent, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("agent: openai API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	system := cfg.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	return &OpenAIAgent{
		client: openai.NewClient(cfg.APIKey),
		model:  model,
		system: system,
	}, nil
}

// GenerateReply produces the next conversational turn. Transient failures
// are retried with exponential backoff; exhausted retries surface as a
// classified *Error.
func (a *OpenAIAgent) GenerateReply(ctx context.Context, history []session.Turn, utterance string) (Reply, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: a.system,
	})
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == session.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: utterance,
	})

	resp, res := retry.DoWithValue(ctx, retry.Exponential(3, 500*time.Millisecond, 8*time.Second),
		func() (openai.ChatCompletionResponse, error) {
			resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:    a.model,
				Messages: messages,
			})
			if err != nil {
				classified := a.wrapError(err)
				if !classified.Kind.Retryable() {
					return resp, retry.Permanent(classified)
				}
				return resp, classified
			}
			return resp, nil
		})
	if res.Err != nil {
		return Reply{}, res.Err
	}
	if len(resp.Choices) == 0 {
		return Reply{}, &Error{Kind: FailureAPI, Provider: "openai", Cause: errors.New("empty completion")}
	}
	return parseReply(resp.Choices[0].Message.Content), nil
}

func (a *OpenAIAgent) wrapError(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classify("openai", apiErr.HTTPStatusCode, err)
	}
	return classify("openai", 0, err)
}
