package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// GeminiConfig configures the Google Gemini adapter.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiClient implements both Embedder and Generator against the Gemini API.
// A single genai client serves both capabilities.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GeminiClient{
		client: client,
		model:  cfg.Model,
		logger: logger.With("component", "ai.gemini", "model", cfg.Model),
	}, nil
}

// Embed implements Embedder.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	resp, err := c.client.Models.EmbedContent(ctx, c.model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %w", ErrProvider, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: embed returned no values", ErrProvider)
	}

	c.logger.Debug("embedded text", "chars", len(text), "dimension", len(resp.Embeddings[0].Values))
	return resp.Embeddings[0].Values, nil
}

// geminiRole maps a chat role into the genai role vocabulary. Assistant-side
// roles become model turns; everything else is a user turn.
func geminiRole(role string) genai.Role {
	if NormalizeRole(role) == RoleAssistant {
		return genai.RoleModel
	}
	return genai.RoleUser
}

// Generate implements Generator.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", ErrEmptyInput
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		contents = append(contents, genai.NewContentFromText(m.Content, geminiRole(m.Role)))
	}
	contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("%w: generate content: %w", ErrProvider, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: generate returned empty response", ErrProvider)
	}

	c.logger.Debug("generated completion",
		"history_turns", len(req.History),
		"response_chars", len(text))
	return text, nil
}
