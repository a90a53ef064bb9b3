package gateway

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"shellpilot/internal/logging"
	"shellpilot/internal/types"
)

// GeminiClient implements Client using Google's Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed gateway client.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Complete sends the dialogue entries and returns the completion text.
// The system entry becomes the SystemInstruction; user entries become the
// conversation contents in order.
func (g *GeminiClient) Complete(ctx context.Context, entries []types.DialogueEntry) (string, error) {
	system, users := splitEntries(entries)

	contents := make([]*genai.Content, 0, len(users))
	for _, e := range users {
		contents = append(contents, genai.NewContentFromText(e.Content, genai.RoleUser))
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("no user entries to send")
	}

	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("Gemini generate failed: %w", err)
	}

	text := result.Text()
	logging.API("gemini completion: model=%s entries=%d chars=%d", g.model, len(entries), len(text))
	return text, nil
}
