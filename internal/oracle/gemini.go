package oracle

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"lanea/internal/logging"
	"lanea/internal/types"
)

// GeminiOracle invokes a Gemini model through the google.golang.org/genai
// client.
type GeminiOracle struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGemini creates a Gemini-backed oracle.
func NewGemini(apiKey, model string, maxTokens int) (*GeminiOracle, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiOracle{client: client, model: model, maxTokens: maxTokens}, nil
}

// Invoke implements types.Oracle at temperature zero.
func (o *GeminiOracle) Invoke(ctx context.Context, messages []types.OracleMessage) (string, error) {
	system, user := splitMessages(messages)

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if o.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(o.maxTokens)
	}

	logging.Get(logging.CategoryAPI).Debugw("gemini invoke", "model", o.model, "user_bytes", len(user))
	result, err := o.client.Models.GenerateContent(ctx, o.model, genai.Text(user), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}
