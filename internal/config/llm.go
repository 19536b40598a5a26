package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// LLMProfile selects a provider and model for the committee oracle.
type LLMProfile struct {
	Provider    string `json:"provider"` // gemini | anthropic
	Model       string `json:"model"`
	APIKeyEnv   string `json:"api_key_env,omitempty"`
	MaxTokens   int    `json:"max_tokens,omitempty"`
}

// LLMProfiles is the config/LLM_PROFILES.json registry.
type LLMProfiles struct {
	Default  string                `json:"default"`
	Profiles map[string]LLMProfile `json:"profiles"`
}

// LoadLLMProfiles reads config/LLM_PROFILES.json.
func LoadLLMProfiles(path string) (*LLMProfiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("missing_llm_profiles: %s: %w", path, err)
	}
	var profiles LLMProfiles
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("invalid_llm_profiles: %s: %w", path, err)
	}
	if profiles.Profiles == nil {
		return nil, fmt.Errorf("invalid_llm_profiles: %s: no profiles", path)
	}
	return &profiles, nil
}

// Resolve returns the named profile, or the default when name is empty.
func (p *LLMProfiles) Resolve(name string) (LLMProfile, error) {
	if name == "" {
		name = p.Default
	}
	profile, found := p.Profiles[name]
	if !found {
		return LLMProfile{}, fmt.Errorf("missing_llm_profile: %q", name)
	}
	if profile.Provider == "" || profile.Model == "" {
		return LLMProfile{}, fmt.Errorf("invalid_llm_profile: %q needs provider and model", name)
	}
	return profile, nil
}
