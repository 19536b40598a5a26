// Package knowledge tracks the monotonically advancing knowledge version
// a sufficiency approval attests to.
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"

	"lanea/internal/config"
	"lanea/internal/contract"
	"lanea/internal/fsatomic"
)

// DefaultVersion is used before any bump has been recorded.
const DefaultVersion = "v0"

// VersionRecord is the persisted CURRENT_VERSION.json.
type VersionRecord struct {
	Version   string `json:"version"`
	BumpedBy  string `json:"bumped_by,omitempty"`
	BumpedFor string `json:"bumped_for,omitempty"` // meeting id or manual
}

// Versions reads and bumps the project's current knowledge version.
type Versions struct {
	Paths *config.Paths
}

// NewVersions builds a version tracker.
func NewVersions(paths *config.Paths) *Versions {
	return &Versions{Paths: paths}
}

// Current returns the current knowledge version label.
func (v *Versions) Current() string {
	path := v.Paths.CurrentVersion()
	if !contract.Exists(path) {
		return DefaultVersion
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultVersion
	}
	var rec VersionRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.Version == "" {
		return DefaultVersion
	}
	return rec.Version
}

// Bump advances the current version by the given kind (patch, minor,
// major) and persists it. no_bump validates the label and leaves it.
func (v *Versions) Bump(kind, by, forWhat string) (string, error) {
	current := v.Current()
	parsed, err := semver.NewVersion(strings.TrimPrefix(current, "v"))
	if err != nil {
		return "", fmt.Errorf("invalid_knowledge_version: %q: %w", current, err)
	}

	var next semver.Version
	switch kind {
	case "no_bump":
		return current, nil
	case "bump_patch":
		next = parsed.IncPatch()
	case "bump_minor":
		next = parsed.IncMinor()
	case "bump_major":
		next = parsed.IncMajor()
	default:
		return "", fmt.Errorf("unknown version bump %q", kind)
	}

	label := "v" + next.String()
	record := VersionRecord{Version: label, BumpedBy: by, BumpedFor: forWhat}
	if err := fsatomic.WriteJSON(v.Paths.CurrentVersion(), record); err != nil {
		return "", err
	}
	return label, nil
}
