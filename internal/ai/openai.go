package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const DefaultOpenAIModel = openai.ChatModelGPT4_1Mini

// OpenAIOptions configures an OpenAI-compatible chat endpoint. BaseURL allows
// routing through OpenRouter or a self-hosted gateway.
type OpenAIOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Pricing     RequestPricing
	// JSONMode requests a JSON object response format. Some OpenRouter
	// models reject it, so it can be turned off.
	JSONMode bool
	// MaxRetries is the number of retries after a failed request.
	// Zero keeps the SDK default, a negative value disables retries.
	MaxRetries int
}

type OpenAIModel struct {
	usageTracker
	client      *openai.Client
	model       string
	temperature float64
	jsonMode    bool
}

func NewOpenAIModel(opts OpenAIOptions) *OpenAIModel {
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	switch {
	case opts.MaxRetries < 0:
		reqOpts = append(reqOpts, option.WithMaxRetries(0))
	case opts.MaxRetries > 0:
		reqOpts = append(reqOpts, option.WithMaxRetries(opts.MaxRetries))
	}
	client := openai.NewClient(reqOpts...)

	model := opts.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIModel{
		usageTracker: usageTracker{pricing: opts.Pricing},
		client:       &client,
		model:        model,
		temperature:  opts.Temperature,
		jsonMode:     opts.JSONMode,
	}
}

func (p *OpenAIModel) Name() string {
	return p.model
}

func (p *OpenAIModel) Complete(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(p.temperature),
		MaxTokens:   openai.Int(500),
	}
	if p.jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	p.trackUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}
