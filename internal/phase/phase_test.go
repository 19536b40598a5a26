package phase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lanea/internal/contract"
	"lanea/internal/phase"
	"lanea/internal/sufficiency"
	"lanea/internal/testing/projharness"
	"lanea/internal/types"
)

func newMachine(h *projharness.Harness) *phase.Machine {
	m := phase.New(h.Project)
	m.Engine = h.Engine()
	m.Ledger = sufficiency.New(h.Project)
	m.Ledger.Engine = m.Engine
	m.Now = func() time.Time { return h.Clock }
	return m
}

func TestForwardBlockedWhileReverseOpen(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	m := newMachine(h)

	res, err := m.Ledger.Approve(context.Background(), "system", "v0", "Alice")
	require.NoError(t, err)
	require.True(t, res.OK)
	_, err = m.ConfirmV1(context.Background(), "Alice", "")
	require.NoError(t, err)

	result, reasons, err := m.KickoffForward(context.Background(), "s1")
	require.NoError(t, err)
	require.False(t, result.OK)
	require.Equal(t, []string{"reverse_not_closed"}, reasons)

	require.True(t, contract.Exists(h.Project.Paths.ForwardBlocked()))
}

func TestForwardKickoffAfterAllPrereqs(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	m := newMachine(h)

	_, err := m.KickoffReverse("s0")
	require.NoError(t, err)
	_, err = m.Close(types.PhaseReverse, "Alice")
	require.NoError(t, err)

	res, err := m.Ledger.Approve(context.Background(), "system", "v0", "Alice")
	require.NoError(t, err)
	require.True(t, res.OK)

	confirm, err := m.ConfirmV1(context.Background(), "Alice", "looks right")
	require.NoError(t, err)
	require.True(t, confirm.OK)

	result, reasons, err := m.KickoffForward(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, result.OK, result.Message)
	require.Empty(t, reasons)

	state, err := m.Load()
	require.NoError(t, err)
	require.Equal(t, types.PhaseForward, state.CurrentPhase)
	require.Equal(t, types.PhaseInProgress, state.Forward.Status)
}

func TestConfirmV1RequiresSufficiency(t *testing.T) {
	h := projharness.New(t, "repo-a")
	m := newMachine(h)

	res, err := m.ConfirmV1(context.Background(), "Alice", "")
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Contains(t, res.Message, "sufficiency")
}

func TestKickoffReverseIsIdempotent(t *testing.T) {
	h := projharness.New(t, "repo-a")
	m := newMachine(h)

	first, err := m.KickoffReverse("s1")
	require.NoError(t, err)
	require.True(t, first.OK)

	second, err := m.KickoffReverse("s2")
	require.NoError(t, err)
	require.True(t, second.OK)

	state, err := m.Load()
	require.NoError(t, err)
	require.Equal(t, "s1", state.Reverse.SessionID, "second kickoff must not rebind the session")
}

func TestRefreshPrereqsKeepsHumanConfirmation(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	m := newMachine(h)

	res, err := m.Ledger.Approve(context.Background(), "system", "v0", "Alice")
	require.NoError(t, err)
	require.True(t, res.OK)
	_, err = m.ConfirmV1(context.Background(), "Alice", "")
	require.NoError(t, err)

	state, err := m.RefreshPrereqs(context.Background())
	require.NoError(t, err)
	require.True(t, state.Prereqs.HumanConfirmedV1)
	require.True(t, state.Prereqs.ScanComplete)
	require.Equal(t, types.SufficiencySufficient, state.Prereqs.Sufficiency)
}
