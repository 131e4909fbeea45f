package generation

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jwalitptl/intake-api/internal/model"
)

const DefaultModel = "gpt-4o"

type OpenAIConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, e.g. for a proxy or Azure OpenAI.
	BaseURL string
}

// OpenAIGenerator calls the chat completion API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

var _ Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator never fails. Without an API key every call returns
// ErrNotConfigured.
func NewOpenAIGenerator(cfg OpenAIConfig) *OpenAIGenerator {
	g := &OpenAIGenerator{model: cfg.Model}
	if g.model == "" {
		g.model = DefaultModel
	}
	if cfg.APIKey == "" {
		return g
	}

	oaCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaCfg.BaseURL = cfg.BaseURL
	}
	g.client = openai.NewClientWithConfig(oaCfg)
	return g
}

func (g *OpenAIGenerator) GeneratePatient(ctx context.Context) (model.PatientPayload, error) {
	if g.client == nil {
		return nil, ErrNotConfigured
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: patientSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: patientUserPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, err
	}

	content := "{}"
	if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
		content = resp.Choices[0].Message.Content
	}

	var payload model.PatientPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if payload == nil {
		return nil, ErrMalformedOutput
	}
	return payload, nil
}

func (g *OpenAIGenerator) ChatReply(ctx context.Context, message, chatContext string) (string, error) {
	if g.client == nil {
		return "", ErrNotConfigured
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: chatSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: chatUserPrompt(message, chatContext)},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return FallbackReply, nil
	}
	return resp.Choices[0].Message.Content, nil
}
