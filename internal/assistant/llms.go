package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

const requestTimeout = 50 * time.Second

type LLM interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type OpenAI struct {
	client openai.Client
	model  string
	temp   float64
}

func NewOpenAI(model string, temp float64) *OpenAI {
	return &OpenAI{
		client: openai.NewClient(),
		model:  model,
		temp:   temp,
	}
}

func (o *OpenAI) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)

	if len(systemPrompt) > 0 {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	chatOpts := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       o.model,
		Temperature: openai.Float(o.temp),
	}

	res, err := o.client.Chat.Completions.New(ctx, chatOpts)
	if err != nil {
		slog.Error("openai error: chat completions failed", "error", err)
		return "", fmt.Errorf("openai generation failed: %w", err)
	}

	return res.Choices[0].Message.Content, nil
}

type GoogleAI struct {
	llm *googleai.GoogleAI
}

func NewGoogleAI(ctx context.Context, apiKey, model string) (*GoogleAI, error) {
	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
	if err != nil {
		return nil, fmt.Errorf("could not create google ai client: %w", err)
	}
	return &GoogleAI{llm: llm}, nil
}

func (g *GoogleAI) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	messages := make([]llms.MessageContent, 0, 2)

	if len(systemPrompt) > 0 {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	resp, err := g.llm.GenerateContent(ctx, messages)
	if err != nil {
		slog.Error("google ai error: generate content failed", "error", err)
		return "", fmt.Errorf("google ai generation failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("google ai returned no choices")
	}

	return resp.Choices[0].Content, nil
}
