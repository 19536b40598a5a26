package staleness_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lanea/internal/testing/projharness"
	"lanea/internal/types"
)

func TestFreshRepoHasNoReasons(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc123", h.Clock.Add(-5*time.Minute))

	snap, err := h.Engine().EvaluateRepo(context.Background(), "repo-a")
	require.NoError(t, err)
	require.False(t, snap.Stale)
	require.False(t, snap.HardStale)
	require.Empty(t, snap.Reasons)
	require.Equal(t, "abc123", snap.RepoHeadSHA)
	require.Equal(t, types.StaleStatusFresh, snap.StaleStatus())
}

func TestMissingHeadDoesNotImplyStaleness(t *testing.T) {
	h := projharness.New(t, "repo-a")
	scanTime := h.Clock.Add(-5 * time.Minute)
	h.WriteIndex("repo-a", "abc123", scanTime)
	h.WriteScan("repo-a", scanTime)
	// No SetHead: rev-parse fails.

	snap, err := h.Engine().EvaluateRepo(context.Background(), "repo-a")
	require.NoError(t, err)
	require.Empty(t, snap.RepoHeadSHA)
	require.False(t, snap.Stale)
	require.NotContains(t, snap.Reasons, types.ReasonHeadSHAMismatch)
}

func TestHeadMismatchIsSoftStaleUntilThreshold(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "old-sha", h.Clock.Add(-10*time.Minute))
	h.SetHead("repo-a", "new-sha")

	snap, err := h.Engine().EvaluateRepo(context.Background(), "repo-a")
	require.NoError(t, err)
	require.True(t, snap.Stale)
	require.Equal(t, []string{types.ReasonHeadSHAMismatch}, snap.Reasons)
	require.False(t, snap.HardStale, "within threshold a mismatch is soft")
	require.True(t, snap.SoftStale())
}

func TestScanAgeBoundary(t *testing.T) {
	h := projharness.New(t, "repo-a")
	threshold := h.Project.HardStaleThreshold

	// Exactly at the threshold: not hard-stale.
	h.ScanAll("repo-a", "old-sha", h.Clock.Add(-threshold))
	h.SetHead("repo-a", "new-sha")
	snap, err := h.Engine().EvaluateRepo(context.Background(), "repo-a")
	require.NoError(t, err)
	require.True(t, snap.Stale)
	require.False(t, snap.HardStale)

	// One millisecond past: hard-stale.
	h.ScanAll("repo-a", "old-sha", h.Clock.Add(-threshold-time.Millisecond))
	h.SetHead("repo-a", "new-sha")
	snap, err = h.Engine().EvaluateRepo(context.Background(), "repo-a")
	require.NoError(t, err)
	require.True(t, snap.HardStale)
}

func TestMergeEventAfterScanByOneMillisecond(t *testing.T) {
	h := projharness.New(t, "repo-a")
	scanTime := h.Clock.Add(-10 * time.Minute)
	h.ScanAll("repo-a", "abc123", scanTime)
	h.AppendMergeEvent("repo-a", scanTime.Add(time.Millisecond))

	snap, err := h.Engine().EvaluateRepo(context.Background(), "repo-a")
	require.NoError(t, err)
	require.True(t, snap.Stale)
	require.True(t, snap.HardStale)
	require.Contains(t, snap.Reasons, types.ReasonMergeEventAfterScan)
}

func TestCoverageIncomplete(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.SetHead("repo-a", "abc123")
	// Index but no scan.
	h.WriteIndex("repo-a", "abc123", h.Clock.Add(-time.Minute))

	snap, err := h.Engine().EvaluateRepo(context.Background(), "repo-a")
	require.NoError(t, err)
	require.True(t, snap.Stale)
	require.Contains(t, snap.Reasons, types.ReasonCoverageIncomplete)
}

func TestHardStaleImpliesStale(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc123", h.Clock.Add(-2*h.Project.HardStaleThreshold))

	// Fresh reasons set: scan is old but nothing is stale, so hard_stale
	// must stay false.
	snap, err := h.Engine().EvaluateRepo(context.Background(), "repo-a")
	require.NoError(t, err)
	require.False(t, snap.Stale)
	require.False(t, snap.HardStale)
}

func TestSystemScopeAggregates(t *testing.T) {
	h := projharness.New(t, "repo-a", "repo-b")
	h.ScanAll("repo-a", "aaa", h.Clock.Add(-time.Minute))
	h.ScanAll("repo-b", "old", h.Clock.Add(-10*time.Minute))
	h.SetHead("repo-b", "new")

	snap, err := h.Engine().EvaluateScope(context.Background(), "system")
	require.NoError(t, err)
	require.True(t, snap.Stale)
	require.False(t, snap.HardStale)
	require.Equal(t, []string{"repo-b"}, snap.StaleRepos)
	require.Equal(t, []string{types.ReasonHeadSHAMismatch}, snap.Reasons)
}

func TestObservationCountsConsecutiveStale(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "old", h.Clock.Add(-10*time.Minute))
	h.SetHead("repo-a", "new")
	engine := h.Engine()

	snap, err := engine.EvaluateRepo(context.Background(), "repo-a")
	require.NoError(t, err)

	first, err := engine.Observe(snap)
	require.NoError(t, err)
	require.Equal(t, 1, first.ConsecutiveStale)

	second, err := engine.Observe(snap)
	require.NoError(t, err)
	require.Equal(t, 2, second.ConsecutiveStale)

	last, err := engine.LastObservation(snap.Scope)
	require.NoError(t, err)
	require.Equal(t, 2, last.ConsecutiveStale)
}
