package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"lanea/internal/types"
)

// EnvHardStaleMinutes overrides the hard-stale scan-age threshold.
const EnvHardStaleMinutes = "LANEA_STALE_HARD_MINUTES"

// DefaultHardStaleThreshold is the scan-age limit before a stale scope
// escalates to hard-stale.
const DefaultHardStaleThreshold = 30 * time.Minute

// Project bundles everything resolved at startup: paths, registry,
// LLM profiles, thresholds.
type Project struct {
	Paths    *Paths
	Registry *types.RepoRegistry

	// HardStaleThreshold is clamped to [1m, 1440m].
	HardStaleThreshold time.Duration
}

// Overlay is the optional lanea.yaml file next to the ops root; it only
// carries operator conveniences, never gating state.
type Overlay struct {
	KnowledgeRoot      string `yaml:"knowledge_root"`
	HardStaleMinutes   int    `yaml:"hard_stale_minutes"`
	DefaultLLMProfile  string `yaml:"default_llm_profile"`
}

// LoadProject resolves the project rooted at opsRoot. knowledgeRoot may be
// empty, in which case the overlay or <opsRoot>/knowledge is used.
func LoadProject(opsRoot, knowledgeRoot string) (*Project, error) {
	if opsRoot == "" {
		return nil, fmt.Errorf("ops root is required")
	}

	overlay, err := loadOverlay(filepath.Join(opsRoot, "lanea.yaml"))
	if err != nil {
		return nil, err
	}

	if knowledgeRoot == "" {
		knowledgeRoot = overlay.KnowledgeRoot
	}
	if knowledgeRoot == "" {
		knowledgeRoot = filepath.Join(opsRoot, "knowledge")
	}

	paths := NewPaths(opsRoot, knowledgeRoot)

	registry, err := LoadRegistry(paths.ReposConfig())
	if err != nil {
		return nil, err
	}

	threshold := DefaultHardStaleThreshold
	if overlay.HardStaleMinutes > 0 {
		threshold = time.Duration(overlay.HardStaleMinutes) * time.Minute
	}
	if env := os.Getenv(EnvHardStaleMinutes); env != "" {
		minutes, err := strconv.Atoi(env)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvHardStaleMinutes, err)
		}
		threshold = time.Duration(minutes) * time.Minute
	}
	threshold = ClampThreshold(threshold)

	return &Project{
		Paths:              paths,
		Registry:           registry,
		HardStaleThreshold: threshold,
	}, nil
}

// ClampThreshold bounds the hard-stale threshold to 1..1440 minutes.
func ClampThreshold(d time.Duration) time.Duration {
	if d < time.Minute {
		return time.Minute
	}
	if d > 1440*time.Minute {
		return 1440 * time.Minute
	}
	return d
}

// LoadRegistry reads and validates config/REPOS.json.
func LoadRegistry(path string) (*types.RepoRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("missing_repo_registry: %s (produce it with the project bootstrapper): %w", path, err)
	}
	var reg types.RepoRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("invalid_repo_registry: %s: %w", path, err)
	}
	if reg.Repos == nil {
		reg.Repos = map[string]types.RepoEntry{}
	}
	for id, entry := range reg.Repos {
		if entry.Path == "" {
			return nil, fmt.Errorf("invalid_repo_registry: repo %q has no path", id)
		}
		if entry.Status != "active" && entry.Status != "retired" {
			return nil, fmt.Errorf("invalid_repo_registry: repo %q has status %q", id, entry.Status)
		}
	}
	return &reg, nil
}

// RepoAbsPath resolves a repo's working tree under the registry base dir.
// Returns ok=false when the directory does not exist; callers must treat
// that as "HEAD unknown", never as stale by itself.
func (p *Project) RepoAbsPath(repoID string) (string, bool) {
	entry, found := p.Registry.Repos[repoID]
	if !found {
		return "", false
	}
	abs := filepath.Join(p.Registry.BaseDir, entry.Path)
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return abs, false
	}
	return abs, true
}

func loadOverlay(path string) (Overlay, error) {
	var overlay Overlay
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return overlay, nil
		}
		return overlay, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return overlay, fmt.Errorf("invalid_overlay: %s: %w", path, err)
	}
	return overlay, nil
}
