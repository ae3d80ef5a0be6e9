package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"loan-rag/internal/config"
	"loan-rag/internal/models"
)

// Generator is the opaque decision-generation step. The returned payload
// carries either the raw (possibly malformed) text or the upstream failure;
// the normalizer deals with both.
type Generator interface {
	Generate(ctx context.Context, prompt string) models.RawDecisionPayload
}

// Client calls an OpenAI-compatible chat endpoint.
type Client struct {
	cfg *config.LLMConfig
}

func NewClient(cfg *config.LLMConfig) *Client {
	return &Client{cfg: cfg}
}

func (c *Client) Generate(ctx context.Context, prompt string) models.RawDecisionPayload {
	log.Debug().Str("model", c.cfg.Model).Msg("Generating content")

	llm, err := openai.New(
		openai.WithBaseURL(c.cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(c.cfg.Key, "Bearer ")),
		openai.WithModel(c.cfg.Model),
	)
	if err != nil {
		return models.RawDecisionPayload{Err: err}
	}

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}
	res, err := llm.GenerateContent(ctx, messages)
	if err != nil {
		return models.RawDecisionPayload{Err: err}
	}
	if len(res.Choices) == 0 {
		return models.RawDecisionPayload{Err: fmt.Errorf("no choices in response")}
	}
	return models.RawDecisionPayload{Text: res.Choices[0].Content}
}
