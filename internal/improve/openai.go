package improve

import (
	"context"
	"errors"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const defaultModel = "gpt-4o-mini"

// OpenAI implements [Completer] on the OpenAI chat-completion API.
type OpenAI struct {
	client oai.Client
	model  string
}

var _ Completer = (*OpenAI)(nil)

// OpenAIOption configures an [OpenAI] completer.
type OpenAIOption func(*OpenAI)

// WithModel sets the model id. Default: gpt-4o-mini.
func WithModel(model string) OpenAIOption {
	return func(o *OpenAI) { o.model = model }
}

// NewOpenAI creates an OpenAI-backed completer. apiKey must be non-empty.
func NewOpenAI(apiKey string, opts ...OpenAIOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("improve: api key must not be empty")
	}
	o := &OpenAI{
		client: oai.NewClient(option.WithAPIKey(apiKey)),
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Complete implements [Completer].
func (o *OpenAI) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(user),
		},
		Temperature: param.NewOpt(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("improve: openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("improve: openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
