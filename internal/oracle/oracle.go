// Package oracle provides LLM-backed implementations of the narrow
// types.Oracle contract. Every provider runs at temperature zero; the
// core assumes nothing about the oracle beyond invoke(messages) -> text.
package oracle

import (
	"fmt"
	"os"
	"strings"

	"lanea/internal/config"
	"lanea/internal/types"
)

// FromProfile builds an oracle for the resolved LLM profile.
func FromProfile(profile config.LLMProfile) (types.Oracle, error) {
	apiKey := ""
	if profile.APIKeyEnv != "" {
		apiKey = os.Getenv(profile.APIKeyEnv)
	}
	switch profile.Provider {
	case "gemini":
		return NewGemini(apiKey, profile.Model, profile.MaxTokens)
	case "anthropic":
		return NewAnthropic(apiKey, profile.Model, profile.MaxTokens)
	default:
		return nil, fmt.Errorf("invalid_llm_profile: unknown provider %q", profile.Provider)
	}
}

// splitMessages separates system prompts from the user payload. Providers
// differ in where system text goes; both get the same partition.
func splitMessages(messages []types.OracleMessage) (system string, user string) {
	var sys, usr []string
	for _, m := range messages {
		switch m.Role {
		case "system":
			sys = append(sys, m.Content)
		default:
			usr = append(usr, m.Content)
		}
	}
	return strings.Join(sys, "\n\n"), strings.Join(usr, "\n\n")
}
