// Package workstatus checkpoints per-work-item progress: a JSON snapshot,
// a sibling array of prior snapshots, and a Markdown rendering carrying
// the snapshot in a sentinel-delimited block.
package workstatus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lanea/internal/config"
	"lanea/internal/contract"
	"lanea/internal/fsatomic"
	"lanea/internal/logging"
	"lanea/internal/types"
)

// Sentinels delimiting the embedded snapshot in STATUS.md. They are a
// literal contract with downstream tooling; never reformat them.
const (
	SnapshotBegin = "<!-- STATUS_SNAPSHOT_BEGIN -->"
	SnapshotEnd   = "<!-- STATUS_SNAPSHOT_END -->"
)

// Store reads and writes work-item checkpoints.
type Store struct {
	Paths *config.Paths
	Now   func() time.Time
}

// NewStore builds a checkpoint store.
func NewStore(paths *config.Paths) *Store {
	return &Store{Paths: paths, Now: time.Now}
}

// Update is one read-modify-write delta. Stage is required; everything
// else merges into the previous snapshot.
type Update struct {
	Stage          string
	Note           string
	Blocked        bool
	BlockingReason string
	Artifacts      map[string]string
	Repos          map[string]types.WorkRepoState
}

func (s *Store) statusPath(workID string) string {
	return filepath.Join(s.Paths.WorkDir(workID), "STATUS.json")
}

func (s *Store) historyPath(workID string) string {
	return filepath.Join(s.Paths.WorkDir(workID), "status-history.json")
}

func (s *Store) markdownPath(workID string) string {
	return filepath.Join(s.Paths.WorkDir(workID), "STATUS.md")
}

// Get loads the current snapshot, or nil when the work item is new.
func (s *Store) Get(workID string) (*types.WorkStatus, error) {
	path := s.statusPath(workID)
	if !contract.Exists(path) {
		return nil, nil
	}
	return contract.LoadWorkStatus(path)
}

// Apply merges an update into the work item's snapshot. A stage change
// appends a history entry; the previous full snapshot is preserved in the
// sibling history array before the overwrite. Stage reversions are
// allowed; the caller names the stage explicitly either way.
func (s *Store) Apply(workID string, up Update) (*types.WorkStatus, error) {
	if !types.IsWorkStage(up.Stage) {
		return nil, fmt.Errorf("invalid_work_status: unknown stage %q", up.Stage)
	}

	prev, err := s.Get(workID)
	if err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	next := &types.WorkStatus{
		WorkID:       workID,
		CurrentStage: up.Stage,
		LastUpdated:  now,
		Blocked:      up.Blocked,
		History:      []types.WorkHistoryEntry{},
	}
	if up.Blocked {
		next.BlockingReason = up.BlockingReason
	}

	if prev != nil {
		next.History = prev.History
		next.Artifacts = prev.Artifacts
		next.Repos = prev.Repos
		if err := s.appendSnapshotHistory(workID, prev); err != nil {
			return nil, err
		}
	}
	if prev == nil || prev.CurrentStage != up.Stage {
		next.History = append(next.History, types.WorkHistoryEntry{
			Timestamp: now, Stage: up.Stage, Note: up.Note,
		})
	}

	if len(up.Artifacts) > 0 {
		if next.Artifacts == nil {
			next.Artifacts = map[string]string{}
		}
		for name, path := range up.Artifacts {
			next.Artifacts[name] = path
		}
	}
	if len(up.Repos) > 0 {
		if next.Repos == nil {
			next.Repos = map[string]types.WorkRepoState{}
		}
		for repoID, state := range up.Repos {
			next.Repos[repoID] = state
		}
	}

	if err := fsatomic.WriteJSON(s.statusPath(workID), next); err != nil {
		return nil, err
	}
	md, err := renderMarkdown(next)
	if err != nil {
		return nil, err
	}
	if err := fsatomic.WriteFile(s.markdownPath(workID), []byte(md)); err != nil {
		return nil, err
	}

	logging.Get(logging.CategoryWorkStatus).Infow("work status checkpoint",
		"work", workID, "stage", up.Stage, "blocked", up.Blocked)
	return next, nil
}

// appendSnapshotHistory pushes the previous snapshot onto the sibling
// history array.
func (s *Store) appendSnapshotHistory(workID string, prev *types.WorkStatus) error {
	path := s.historyPath(workID)
	var history []types.WorkStatus
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &history); err != nil {
			return fmt.Errorf("invalid_work_status: corrupt history %s: %v", path, err)
		}
	}
	history = append(history, *prev)
	return fsatomic.WriteJSON(path, history)
}

// ParseSnapshot extracts the embedded snapshot from a STATUS.md body.
func ParseSnapshot(md string) (*types.WorkStatus, error) {
	start := strings.Index(md, SnapshotBegin)
	end := strings.Index(md, SnapshotEnd)
	if start < 0 || end < 0 || end < start {
		return nil, fmt.Errorf("status markdown has no snapshot block")
	}
	block := md[start+len(SnapshotBegin) : end]
	block = strings.TrimSpace(block)
	block = strings.TrimPrefix(block, "```json")
	block = strings.TrimSuffix(block, "```")

	var status types.WorkStatus
	if err := json.Unmarshal([]byte(strings.TrimSpace(block)), &status); err != nil {
		return nil, fmt.Errorf("snapshot block decode: %w", err)
	}
	return &status, nil
}

func renderMarkdown(status *types.WorkStatus) (string, error) {
	snapshot, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Work %s\n\n", status.WorkID)
	fmt.Fprintf(&b, "- Stage: **%s**\n- Updated: %s\n", status.CurrentStage,
		status.LastUpdated.Format(time.RFC3339))
	if status.Blocked {
		fmt.Fprintf(&b, "- Blocked: %s\n", status.BlockingReason)
	}
	b.WriteString("\n")

	if len(status.Repos) > 0 {
		b.WriteString("## Repos\n\n")
		repoIDs := make([]string, 0, len(status.Repos))
		for repoID := range status.Repos {
			repoIDs = append(repoIDs, repoID)
		}
		sort.Strings(repoIDs)
		for _, repoID := range repoIDs {
			state := status.Repos[repoID]
			fmt.Fprintf(&b, "- `%s`: %s", repoID, state.Stage)
			if state.Note != "" {
				fmt.Fprintf(&b, " (%s)", state.Note)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(status.History) > 0 {
		b.WriteString("## History\n\n")
		for _, entry := range status.History {
			fmt.Fprintf(&b, "- %s `%s`", entry.Timestamp.Format(time.RFC3339), entry.Stage)
			if entry.Note != "" {
				fmt.Fprintf(&b, " (%s)", entry.Note)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s\n```json\n%s\n```\n%s\n", SnapshotBegin, snapshot, SnapshotEnd)
	return b.String(), nil
}
