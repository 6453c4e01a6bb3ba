package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultChatModel is the generation model.
	DefaultChatModel = "gpt-3.5-turbo-0125"

	// generationTemperature is low but nonzero: deterministic enough for
	// grounded answers without degenerate phrasing.
	generationTemperature = 0.3

	// maxAnswerTokens caps answers at a concise length.
	maxAnswerTokens = 500
)

// Message is a single chat turn handed to a generation backend.
type Message struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

// Generator produces text from a conversation. Failures are not retried
// here; unlike embedding calls they propagate directly to the caller.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// OpenAIGenerator generates answers through the OpenAI chat completions API
// or any OpenAI-compatible endpoint.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// GeneratorConfig parameterizes the OpenAI generation backend.
type GeneratorConfig struct {
	APIKey  string
	BaseURL string // empty for api.openai.com
	Model   string
}

// NewOpenAIGenerator creates a generation backend from cfg.
func NewOpenAIGenerator(cfg GeneratorConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generation API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIGenerator{
		client: &client,
		model:  cfg.Model,
	}, nil
}

// Generate runs a chat completion with the fixed grounding parameters.
func (g *OpenAIGenerator) Generate(ctx context.Context, messages []Message) (string, error) {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			params = append(params, openai.SystemMessage(m.Content))
		case "assistant":
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    params,
		Model:       openai.ChatModel(g.model),
		Temperature: openai.Float(generationTemperature),
		MaxTokens:   openai.Int(maxAnswerTokens),
		TopP:        openai.Float(1.0),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
