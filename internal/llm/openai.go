package llm

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig configures the OpenAI-compatible completion backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string        // empty = api.openai.com
	Model   string        // empty = gpt-4o-mini
	Timeout time.Duration // per-call; zero = 60s
}

type openAIClient struct {
	cli     openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAI builds a Client backed by the OpenAI chat completions API.
func NewOpenAI(cfg OpenAIConfig) Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &openAIClient{cli: openai.NewClient(opts...), model: model, timeout: timeout}
}

func (c *openAIClient) CompleteJSON(ctx context.Context, system, user string, opts Options) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.cli.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(opts.Temperature),
		MaxTokens:   openai.Int(int64(opts.MaxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("completion returned no choices")
	}
	return []byte(resp.Choices[0].Message.Content), nil
}
