package decision

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lanea/internal/config"
	"lanea/internal/types"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	store := NewStore(config.NewPaths(root, filepath.Join(root, "knowledge")))
	store.Now = func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) }
	return store
}

func refreshPacket(scope string) *types.DecisionPacket {
	return &types.DecisionPacket{
		Scope:         scope,
		Trigger:       "committee_run",
		BlockingState: "hard_stale",
		Context: types.DecisionContext{
			Summary:             "knowledge is hard-stale",
			WhyAutomationFailed: "merge events landed after the last scan",
			WhatIsKnown:         []string{"repo HEAD abc123", "last scan 2026-08-24T11:00:00Z"},
		},
		Questions: []types.DecisionQuestion{{
			ID:                 "q1",
			Question:           "Rescan now or override?",
			ExpectedAnswerType: "choice",
			Blocks:             []string{"committee", "sufficiency_approve"},
		}},
	}
}

func TestIDIsDeterministic(t *testing.T) {
	a := ID("repo:repo-a", "hard_stale", KindRefreshRequired)
	b := ID("repo:repo-a", "hard_stale", KindRefreshRequired)
	require.Equal(t, a, b)
	require.NotEqual(t, a, ID("repo:repo-b", "hard_stale", KindRefreshRequired))
}

func TestCreateIdempotent(t *testing.T) {
	store := newStore(t)

	first, err := store.CreateIdempotent(KindRefreshRequired, refreshPacket("repo:repo-a"))
	require.NoError(t, err)
	second, err := store.CreateIdempotent(KindRefreshRequired, refreshPacket("repo:repo-a"))
	require.NoError(t, err)
	require.Equal(t, first.DecisionID, second.DecisionID)

	entries, err := os.ReadDir(store.Paths.DecisionsDir())
	require.NoError(t, err)
	var jsonFiles, mdFiles int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".json"):
			jsonFiles++
		case strings.HasSuffix(e.Name(), ".md"):
			mdFiles++
		}
	}
	require.Equal(t, 1, jsonFiles, "exactly one packet on disk")
	require.Equal(t, 1, mdFiles)
}

func TestAnsweredPacketIsNotReused(t *testing.T) {
	store := newStore(t)

	first, err := store.CreateIdempotent(KindRefreshRequired, refreshPacket("repo:repo-a"))
	require.NoError(t, err)

	_, path, err := store.FindOpen("repo:repo-a", KindRefreshRequired)
	require.NoError(t, err)
	_, err = store.Answer(path, map[string]string{"q1": "rescan"})
	require.NoError(t, err)

	store.Now = func() time.Time { return time.Date(2026, 8, 24, 12, 1, 0, 0, time.UTC) }
	replacement, err := store.CreateIdempotent(KindRefreshRequired, refreshPacket("repo:repo-a"))
	require.NoError(t, err)
	require.Equal(t, first.DecisionID, replacement.DecisionID, "same identity, new file")

	open, _, err := store.FindOpen("repo:repo-a", KindRefreshRequired)
	require.NoError(t, err)
	require.NotNil(t, open)
}

func TestAnswerRequiresEveryQuestion(t *testing.T) {
	store := newStore(t)
	_, err := store.CreateIdempotent(KindRefreshRequired, refreshPacket("repo:repo-a"))
	require.NoError(t, err)

	_, path, err := store.FindOpen("repo:repo-a", KindRefreshRequired)
	require.NoError(t, err)

	_, err = store.Answer(path, map[string]string{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no answer")
}

func TestOpenIDsFiltersByScope(t *testing.T) {
	store := newStore(t)
	_, err := store.CreateIdempotent(KindRefreshRequired, refreshPacket("repo:repo-a"))
	require.NoError(t, err)
	_, err = store.CreateIdempotent(KindRefreshRequired, refreshPacket("system"))
	require.NoError(t, err)

	ids, err := store.OpenIDs("repo:repo-a")
	require.NoError(t, err)
	require.Len(t, ids, 1)
}
