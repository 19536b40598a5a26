package events

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lanea/internal/fsatomic"
	"lanea/internal/types"
)

func writeSegment(t *testing.T, dir, name string, evs ...types.MergeEvent) {
	t.Helper()
	path := filepath.Join(dir, name)
	for _, ev := range evs {
		require.NoError(t, fsatomic.AppendJSONL(path, ev))
	}
	if len(evs) == 0 {
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
}

func TestIsSegmentNameAcceptsBothShapes(t *testing.T) {
	require.True(t, IsSegmentName("events-20260812-09.jsonl"))
	require.True(t, IsSegmentName("20260812-091500.jsonl"))
	require.False(t, IsSegmentName("events.jsonl"))
	require.False(t, IsSegmentName("events-20260812-09.json"))
}

func TestLatestMergeEventTimePicksNewestForRepo(t *testing.T) {
	dir := t.TempDir()
	older := time.Date(2026, 8, 12, 9, 0, 0, 0, time.UTC)
	newer := older.Add(45 * time.Minute)

	writeSegment(t, dir, "events-20260812-09.jsonl",
		types.MergeEvent{Type: "merge", RepoID: "repo-a", Timestamp: older, EventID: "e1"},
		types.MergeEvent{Type: "push", RepoID: "repo-a", Timestamp: newer.Add(time.Hour), EventID: "e2"},
	)
	writeSegment(t, dir, "20260812-094500.jsonl",
		types.MergeEvent{Type: "merge", RepoID: "repo-a", Timestamp: newer, EventID: "e3"},
		types.MergeEvent{Type: "merge", RepoID: "repo-b", Timestamp: newer.Add(time.Hour), EventID: "e4"},
	)

	store := &Store{SegmentsDir: dir}
	got, err := store.LatestMergeEventTime("repo-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.Equal(newer))
}

func TestLatestMergeEventTimeMissingDir(t *testing.T) {
	store := &Store{SegmentsDir: filepath.Join(t.TempDir(), "absent")}
	got, err := store.LatestMergeEventTime("repo-a")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestAppendLedger(t *testing.T) {
	dir := t.TempDir()
	store := &Store{LedgerPath: filepath.Join(dir, "ledger.jsonl")}

	now := time.Date(2026, 8, 12, 10, 0, 0, 0, time.UTC)
	ev, err := store.AppendLedger("stale_override", "repo:repo-a", "alice", "urgent refresh", now)
	require.NoError(t, err)
	require.NotEmpty(t, ev.EventID)

	var count int
	require.NoError(t, fsatomic.ReadJSONL(store.LedgerPath, func([]byte) error {
		count++
		return nil
	}))
	require.Equal(t, 1, count)
}
