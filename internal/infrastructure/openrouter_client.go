package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"sigma_ai/internal/interfaces"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// OpenRouterClient uses the OpenAI-compatible OpenRouter endpoint.
type OpenRouterClient struct {
	llm   llms.Model
	model string
}

func NewOpenRouterClient(baseURL, apiKey, model string) (*OpenRouterClient, error) {
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create openrouter client: %w", err)
	}
	return &OpenRouterClient{llm: llm, model: model}, nil
}

func (c *OpenRouterClient) Name() string { return "openrouter" }

func (c *OpenRouterClient) Chat(ctx context.Context, req interfaces.ChatRequest) (string, error) {
	messages := make([]llms.MessageContent, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for _, turn := range req.History {
		role := schema.ChatMessageTypeHuman
		if turn.Role == "assistant" {
			role = schema.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, turn.Content))
	}

	user := llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt)
	if req.ImageURL != "" {
		user.Parts = append(user.Parts, llms.ImageURLPart(req.ImageURL))
	}
	messages = append(messages, user)

	resp, err := c.llm.GenerateContent(ctx, messages,
		llms.WithMaxTokens(orDefault(req.MaxTokens, 2000)),
		llms.WithTemperature(orDefault(req.Temperature, 0.7)),
	)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", errors.New("openrouter returned no choices")
	}
	return resp.Choices[0].Content, nil
}
