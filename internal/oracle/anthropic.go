package oracle

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"lanea/internal/logging"
	"lanea/internal/types"
)

const defaultAnthropicModel = "claude-3-5-haiku-20241022"

// AnthropicOracle invokes a Claude model through the Anthropic SDK.
type AnthropicOracle struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic creates an Anthropic-backed oracle. ANTHROPIC_API_KEY
// takes precedence over the profile's key.
func NewAnthropic(apiKey, model string, maxTokens int) (*AnthropicOracle, error) {
	if env := os.Getenv("ANTHROPIC_API_KEY"); env != "" {
		apiKey = env
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if model == "" {
		model = defaultAnthropicModel
	}
	tokens := int64(maxTokens)
	if tokens <= 0 {
		tokens = 4096
	}
	return &AnthropicOracle{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     anthropic.Model(model),
		maxTokens: tokens,
	}, nil
}

// Invoke implements types.Oracle at temperature zero.
func (o *AnthropicOracle) Invoke(ctx context.Context, messages []types.OracleMessage) (string, error) {
	system, user := splitMessages(messages)

	params := anthropic.MessageNewParams{
		Model:       o.model,
		MaxTokens:   o.maxTokens,
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	logging.Get(logging.CategoryAPI).Debugw("anthropic invoke", "model", string(o.model), "user_bytes", len(user))
	message, err := o.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic message failed: %w", err)
	}
	if len(message.Content) == 0 {
		return "", fmt.Errorf("anthropic returned no content blocks")
	}
	block := message.Content[0]
	if block.Type != "text" {
		return "", fmt.Errorf("anthropic returned a non-text block (type=%s)", block.Type)
	}
	return block.Text, nil
}
