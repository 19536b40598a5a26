package workstatus_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lanea/internal/testing/projharness"
	"lanea/internal/types"
	"lanea/internal/workstatus"
)

func newStore(t *testing.T) (*workstatus.Store, *projharness.Harness) {
	h := projharness.New(t, "repo-a")
	s := workstatus.NewStore(h.Project.Paths)
	clock := h.Clock
	s.Now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return s, h
}

func TestApplyRecordsStageTransitions(t *testing.T) {
	s, _ := newStore(t)

	first, err := s.Apply("W-1", workstatus.Update{Stage: "INTAKE_RECEIVED", Note: "filed"})
	require.NoError(t, err)
	require.Len(t, first.History, 1)

	second, err := s.Apply("W-1", workstatus.Update{Stage: "ROUTED"})
	require.NoError(t, err)
	require.Equal(t, "ROUTED", second.CurrentStage)
	require.Len(t, second.History, 2)

	// Same stage again: merge, no new history entry.
	third, err := s.Apply("W-1", workstatus.Update{
		Stage:     "ROUTED",
		Artifacts: map[string]string{"plan": "plans/W-1.md"},
	})
	require.NoError(t, err)
	require.Len(t, third.History, 2)
	require.Equal(t, "plans/W-1.md", third.Artifacts["plan"])
}

func TestApplyRejectsUnknownStage(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Apply("W-1", workstatus.Update{Stage: "SHIPPED"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown stage")
}

func TestPreviousSnapshotsLandInHistoryFile(t *testing.T) {
	s, h := newStore(t)

	_, err := s.Apply("W-1", workstatus.Update{Stage: "INTAKE_RECEIVED"})
	require.NoError(t, err)
	_, err = s.Apply("W-1", workstatus.Update{Stage: "ROUTED"})
	require.NoError(t, err)
	_, err = s.Apply("W-1", workstatus.Update{Stage: "TASKS_CREATED"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(h.Project.Paths.WorkDir("W-1"), "status-history.json"))
	require.NoError(t, err)
	var history []types.WorkStatus
	require.NoError(t, json.Unmarshal(data, &history))
	require.Len(t, history, 2)
	require.Equal(t, "INTAKE_RECEIVED", history[0].CurrentStage)
	require.Equal(t, "ROUTED", history[1].CurrentStage)
}

func TestMergesRepoStatesAndBlockedFlag(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.Apply("W-1", workstatus.Update{
		Stage: "APPLYING",
		Repos: map[string]types.WorkRepoState{"repo-a": {Stage: "APPLYING"}},
	})
	require.NoError(t, err)

	status, err := s.Apply("W-1", workstatus.Update{
		Stage:          "BLOCKED",
		Blocked:        true,
		BlockingReason: "merge conflict in repo-b",
		Repos:          map[string]types.WorkRepoState{"repo-b": {Stage: "BLOCKED", Note: "conflict"}},
	})
	require.NoError(t, err)
	require.True(t, status.Blocked)
	require.Equal(t, "APPLYING", status.Repos["repo-a"].Stage, "unmentioned repos persist")
	require.Equal(t, "BLOCKED", status.Repos["repo-b"].Stage)
}

func TestMarkdownSnapshotRoundTrips(t *testing.T) {
	s, h := newStore(t)

	written, err := s.Apply("W-1", workstatus.Update{Stage: "CI_GREEN", Note: "all suites passed"})
	require.NoError(t, err)

	md, err := os.ReadFile(filepath.Join(h.Project.Paths.WorkDir("W-1"), "STATUS.md"))
	require.NoError(t, err)

	parsed, err := workstatus.ParseSnapshot(string(md))
	require.NoError(t, err)
	require.Equal(t, written.WorkID, parsed.WorkID)
	require.Equal(t, written.CurrentStage, parsed.CurrentStage)
	require.Equal(t, written.LastUpdated.Unix(), parsed.LastUpdated.Unix())
}
