package sufficiency_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lanea/internal/decision"
	"lanea/internal/sufficiency"
	"lanea/internal/testing/projharness"
	"lanea/internal/types"
)

func newLedger(h *projharness.Harness) *sufficiency.Ledger {
	ledger := sufficiency.New(h.Project)
	ledger.Engine = h.Engine()
	ledger.Now = func() time.Time { return h.Clock }
	return ledger
}

func TestApproveRefusedWhileCoverageIncomplete(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.SetHead("repo-a", "abc")
	h.WriteIndex("repo-a", "abc", h.Clock.Add(-time.Minute)) // no scan yet
	ledger := newLedger(h)

	res, err := ledger.Approve(context.Background(), "system", "v0", "Alice")
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Contains(t, res.Message, "scan coverage is incomplete")

	// Complete the scan and retry.
	h.WriteScan("repo-a", h.Clock.Add(-time.Minute))
	res, err = ledger.Approve(context.Background(), "system", "v0", "Alice")
	require.NoError(t, err)
	require.True(t, res.OK, res.Message)

	record, err := ledger.Current("system")
	require.NoError(t, err)
	require.Equal(t, types.SufficiencySufficient, record.Status)
	require.Equal(t, "Alice", record.DecidedBy)
	require.Empty(t, record.Blockers)

	entries, err := os.ReadDir(h.Project.Paths.SufficiencyHistoryDir())
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	require.True(t, contractExists(h), "LATEST.json updated")
}

func contractExists(h *projharness.Harness) bool {
	_, err := os.Stat(h.Project.Paths.SufficiencyLatest())
	return err == nil
}

func TestApproveRefusedWhileHardStale(t *testing.T) {
	h := projharness.New(t, "repo-a")
	scanTime := h.Clock.Add(-10 * time.Minute)
	h.ScanAll("repo-a", "abc", scanTime)
	h.AppendMergeEvent("repo-a", scanTime.Add(time.Hour))
	ledger := newLedger(h)

	res, err := ledger.Approve(context.Background(), "repo:repo-a", "v0", "Alice")
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Contains(t, res.Message, "hard-stale")
}

func TestApproveRefusedWithOpenDecision(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	ledger := newLedger(h)

	_, err := ledger.Decisions.CreateIdempotent(decision.KindRefreshRequired, &types.DecisionPacket{
		Scope:         "system",
		Trigger:       "test",
		BlockingState: "hard_stale",
		Context:       types.DecisionContext{Summary: "s", WhyAutomationFailed: "w"},
		Questions: []types.DecisionQuestion{{
			ID: "q1", Question: "?", ExpectedAnswerType: "text",
		}},
	})
	require.NoError(t, err)

	res, err := ledger.Approve(context.Background(), "system", "v0", "Alice")
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Contains(t, res.Message, "open decision")
}

func TestVersionedSufficiencyDoesNotCarryOver(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	ledger := newLedger(h)

	res, err := ledger.Approve(context.Background(), "system", "v0", "Alice")
	require.NoError(t, err)
	require.True(t, res.OK)

	ok, err := ledger.IsSufficient("system", "v0")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ledger.IsSufficient("system", "v1")
	require.NoError(t, err)
	require.False(t, ok, "v0 approval must not cover v1")
}

func TestRepeatedApproveAddsHistory(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	ledger := newLedger(h)

	res, err := ledger.Approve(context.Background(), "system", "v0", "Alice")
	require.NoError(t, err)
	require.True(t, res.OK)
	first, err := os.ReadDir(h.Project.Paths.SufficiencyHistoryDir())
	require.NoError(t, err)

	ledger.Now = func() time.Time { return h.Clock.Add(time.Second) }
	res, err = ledger.Approve(context.Background(), "system", "v0", "Alice")
	require.NoError(t, err)
	require.True(t, res.OK)
	second, err := os.ReadDir(h.Project.Paths.SufficiencyHistoryDir())
	require.NoError(t, err)

	// One json + one md per write.
	require.Equal(t, len(first)+2, len(second))
}

func TestRejectWritesHumanBlocker(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	ledger := newLedger(h)

	res, err := ledger.Reject(context.Background(), "system", "v0", "Bob", "incomplete data model")
	require.NoError(t, err)
	require.True(t, res.OK)

	record, err := ledger.Current("system")
	require.NoError(t, err)
	require.Equal(t, types.SufficiencyInsufficient, record.Status)
	require.Len(t, record.Blockers, 1)
	require.Equal(t, "rejected_by_human", record.Blockers[0].ID)
	require.Contains(t, record.Blockers[0].Details, "human notes: incomplete data model")
}

func TestProposeRecordsBlockersWithoutGating(t *testing.T) {
	h := projharness.New(t, "repo-a")
	// Nothing scanned: coverage incomplete, but propose succeeds.
	ledger := newLedger(h)

	res, err := ledger.Propose(context.Background(), "system", "v0")
	require.NoError(t, err)
	require.True(t, res.OK)

	record, err := ledger.Current("system")
	require.NoError(t, err)
	require.Equal(t, types.SufficiencyProposed, record.Status)
	require.NotEmpty(t, record.Blockers)
}
