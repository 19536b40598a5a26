package gate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lanea/internal/fsatomic"
	"lanea/internal/gate"
	"lanea/internal/sufficiency"
	"lanea/internal/testing/projharness"
)

func newGate(h *projharness.Harness) *gate.Gate {
	g := gate.New(h.Project)
	g.Engine = h.Engine()
	g.Ledger = sufficiency.New(h.Project)
	g.Ledger.Engine = g.Engine
	g.Now = func() time.Time { return h.Clock }
	return g
}

func TestGatePassesViaScope(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	g := newGate(h)

	res, err := g.Ledger.Approve(context.Background(), "repo:repo-a", "v0", "Alice")
	require.NoError(t, err)
	require.True(t, res.OK)

	verdict, err := g.RequireConfirmedSufficiency(context.Background(), "repo:repo-a", "ci", false)
	require.NoError(t, err)
	require.True(t, verdict.OK)
	require.Equal(t, "repo:repo-a", verdict.Via)
}

func TestGatePassesViaSystem(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	g := newGate(h)

	res, err := g.Ledger.Approve(context.Background(), "system", "v0", "Alice")
	require.NoError(t, err)
	require.True(t, res.OK)

	verdict, err := g.RequireConfirmedSufficiency(context.Background(), "repo:repo-a", "ci", false)
	require.NoError(t, err)
	require.True(t, verdict.OK)
	require.Equal(t, "system", verdict.Via)
}

func TestGateBlocksOnVersionBump(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	g := newGate(h)

	res, err := g.Ledger.Approve(context.Background(), "system", "v0", "Alice")
	require.NoError(t, err)
	require.True(t, res.OK)

	// Bump the current version; the v0 approval must not carry over.
	_, err = g.Versions.Bump("bump_major", "Alice", "test")
	require.NoError(t, err)

	verdict, err := g.RequireConfirmedSufficiency(context.Background(), "system", "ci", false)
	require.NoError(t, err)
	require.False(t, verdict.OK)
	require.Contains(t, verdict.Message, "no confirmed sufficiency")
}

func TestGateBlocksHardStale(t *testing.T) {
	h := projharness.New(t, "repo-a")
	scanTime := h.Clock.Add(-10 * time.Minute)
	h.ScanAll("repo-a", "abc", scanTime)
	g := newGate(h)

	res, err := g.Ledger.Approve(context.Background(), "repo:repo-a", "v0", "Alice")
	require.NoError(t, err)
	require.True(t, res.OK)

	h.AppendMergeEvent("repo-a", scanTime.Add(time.Hour))

	verdict, err := g.RequireConfirmedSufficiency(context.Background(), "repo:repo-a", "ci", false)
	require.NoError(t, err)
	require.False(t, verdict.OK)
	require.Contains(t, verdict.Message, "hard-stale")
}

func TestGateOverrideAppendsLedger(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	g := newGate(h)

	verdict, err := g.RequireConfirmedSufficiency(context.Background(), "repo:repo-a", "alice", true)
	require.NoError(t, err)
	require.True(t, verdict.OK)
	require.NotNil(t, verdict.Override)
	require.Equal(t, "sufficiency_override", verdict.Override.Type)

	var lines int
	require.NoError(t, fsatomic.ReadJSONL(h.Project.Paths.Ledger(), func([]byte) error {
		lines++
		return nil
	}))
	require.Equal(t, 1, lines)
}
