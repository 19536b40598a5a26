package meeting_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lanea/internal/contract"
	"lanea/internal/evidence"
	"lanea/internal/fsatomic"
	"lanea/internal/gitio"
	"lanea/internal/meeting"
	"lanea/internal/sufficiency"
	"lanea/internal/testing/projharness"
	"lanea/internal/types"
)

func newEngine(h *projharness.Harness, oracle types.Oracle) *meeting.Engine {
	e := meeting.New(h.Project, oracle)
	e.Stale = h.Engine()
	e.Ledger = sufficiency.New(h.Project)
	e.Ledger.Engine = e.Stale
	e.Ledger.Now = func() time.Time { return h.Clock }
	e.Now = func() time.Time { return h.Clock }
	if e.Committee != nil {
		e.Committee.Engine = e.Stale
		e.Committee.Catalog = &evidence.Catalog{Project: h.Project, Git: &gitio.Client{Runner: h.Git}}
		e.Committee.Now = e.Now
	}
	return e
}

func writeValidCommitteeStatus(t *testing.T, h *projharness.Harness, repoID string) {
	t.Helper()
	status := types.CommitteeStatus{
		RepoID:         repoID,
		EvidenceValid:  true,
		BlockingIssues: []types.BlockingIssue{},
		Confidence:     types.SeverityHigh,
		NextAction:     types.NextActionProceed,
	}
	require.NoError(t, fsatomic.WriteJSON(h.Project.Paths.CommitteeStatus(repoID), status))
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	n := 0
	require.NoError(t, fsatomic.ReadJSONL(path, func([]byte) error {
		n++
		return nil
	}))
	return n
}

func TestContinueAsksExactlyOneQuestionPerRun(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	writeValidCommitteeStatus(t, h, "repo-a")
	e := newEngine(h, nil)

	session, err := e.Start(context.Background(), types.MeetingKindReview, "repo:repo-a")
	require.NoError(t, err)

	questions := filepath.Join(h.Project.Paths.MeetingDir(session.MeetingID), "QUESTIONS.jsonl")

	res, err := e.Continue(context.Background(), session.MeetingID)
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Contains(t, res.Message, "VISION", "fresh scope starts past the REFRESH tier")
	require.Equal(t, 1, countLines(t, questions))

	// A second continue while waiting must not append another question.
	res, err = e.Continue(context.Background(), session.MeetingID)
	require.NoError(t, err)
	require.Contains(t, res.Message, "waiting")
	require.Equal(t, 1, countLines(t, questions))

	_, err = e.Answer(session.MeetingID, "It ingests merge events and gates delivery.")
	require.NoError(t, err)

	res, err = e.Continue(context.Background(), session.MeetingID)
	require.NoError(t, err)
	require.Contains(t, res.Message, "REQUIREMENTS")
	require.Equal(t, 2, countLines(t, questions))

	reloaded, err := e.Load(session.MeetingID)
	require.NoError(t, err)
	require.Equal(t, 2, reloaded.AskedCount)
	require.Equal(t, 1, reloaded.AnsweredCount)
	require.Equal(t, types.MeetingWaitingForAnswer, reloaded.Status)
}

func TestRefreshTierLeadsWhileStale(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	h.SetHead("repo-a", "def") // soft-stale via head mismatch
	writeValidCommitteeStatus(t, h, "repo-a")
	e := newEngine(h, nil)

	session, err := e.Start(context.Background(), types.MeetingKindReview, "repo:repo-a")
	require.NoError(t, err)
	require.Equal(t, types.StaleStatusSoft, session.Inputs.StaleStatus)

	res, err := e.Continue(context.Background(), session.MeetingID)
	require.NoError(t, err)
	require.Contains(t, res.Message, "REFRESH")
}

func TestLadderExhaustionReachesReadyToClose(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	writeValidCommitteeStatus(t, h, "repo-a")
	e := newEngine(h, nil)
	e.MaxQuestions = 2

	session, err := e.Start(context.Background(), types.MeetingKindReview, "repo:repo-a")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = e.Continue(context.Background(), session.MeetingID)
		require.NoError(t, err)
		_, err = e.Answer(session.MeetingID, "answered")
		require.NoError(t, err)
	}

	res, err := e.Continue(context.Background(), session.MeetingID)
	require.NoError(t, err)
	require.Contains(t, res.Message, "ready to close")

	reloaded, err := e.Load(session.MeetingID)
	require.NoError(t, err)
	require.Equal(t, types.MeetingReadyToClose, reloaded.Status)
}

func TestCloseRefusesWithUnansweredQuestion(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	writeValidCommitteeStatus(t, h, "repo-a")
	e := newEngine(h, nil)

	session, err := e.Start(context.Background(), types.MeetingKindReview, "repo:repo-a")
	require.NoError(t, err)
	_, err = e.Continue(context.Background(), session.MeetingID)
	require.NoError(t, err)

	res, err := e.Close(context.Background(), session.MeetingID, "defer", "", "Alice")
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Contains(t, res.Message, "unanswered")
}

func TestCloseValidatesDecisionAgainstKind(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	writeValidCommitteeStatus(t, h, "repo-a")
	e := newEngine(h, nil)

	session, err := e.Start(context.Background(), types.MeetingKindReview, "repo:repo-a")
	require.NoError(t, err)

	res, err := e.Close(context.Background(), session.MeetingID, "approve_intake", "", "Alice")
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, types.ReasonInvalidInput, res.ReasonCode)
}

func TestConfirmSufficiencyDelegatesToLedger(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	writeValidCommitteeStatus(t, h, "repo-a")
	e := newEngine(h, nil)

	session, err := e.Start(context.Background(), types.MeetingKindReview, "repo:repo-a")
	require.NoError(t, err)

	res, err := e.Close(context.Background(), session.MeetingID, "confirm_sufficiency", "", "Alice")
	require.NoError(t, err)
	require.True(t, res.OK, res.Message)

	sufficient, err := e.Ledger.IsSufficient("repo:repo-a", e.Versions.Current())
	require.NoError(t, err)
	require.True(t, sufficient)

	var latest map[string]json.RawMessage
	data, err := os.ReadFile(h.Project.Paths.MeetingDecisionsLatest())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &latest))
	require.Contains(t, latest, "repo:repo-a")
}

func TestUpdateMeetingIntakeProcessesChangeRequests(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	writeValidCommitteeStatus(t, h, "repo-a")
	e := newEngine(h, nil)

	_, err := e.Changes.Create("bug", "login 500s", "high", "repo:repo-a")
	require.NoError(t, err)

	approve, err := e.Ledger.Approve(context.Background(), "repo:repo-a", e.Versions.Current(), "Alice")
	require.NoError(t, err)
	require.True(t, approve.OK, approve.Message)

	session, err := e.Start(context.Background(), types.MeetingKindUpdate, "repo:repo-a")
	require.NoError(t, err)
	require.Len(t, session.BoundChangeRequests, 1)

	res, err := e.Close(context.Background(), session.MeetingID, "approve_intake", "", "Alice")
	require.NoError(t, err)
	require.True(t, res.OK, res.Message)

	processed, err := e.Changes.List(types.ChangeRequestProcessed, "repo:repo-a")
	require.NoError(t, err)
	require.Len(t, processed, 1)

	approvalPath := filepath.Join(h.Project.Paths.MeetingDir(session.MeetingID), "INTAKE_APPROVAL.json")
	require.True(t, contract.Exists(approvalPath))
}

func TestIntakeBlockedWithoutSufficiencyUnlessOverridden(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	writeValidCommitteeStatus(t, h, "repo-a")
	e := newEngine(h, nil)

	session, err := e.Start(context.Background(), types.MeetingKindUpdate, "repo:repo-a")
	require.NoError(t, err)

	res, err := e.Close(context.Background(), session.MeetingID, "approve_intake", "", "Alice")
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Contains(t, res.Message, "sufficiency")

	res, err = e.Close(context.Background(), session.MeetingID,
		"approve_intake", "accepted gaps, override_sufficiency per incident review", "Alice")
	require.NoError(t, err)
	require.True(t, res.OK, res.Message)
}

func TestBumpDecisionMovesKnowledgeVersion(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	writeValidCommitteeStatus(t, h, "repo-a")
	e := newEngine(h, nil)

	session, err := e.Start(context.Background(), types.MeetingKindUpdate, "repo:repo-a")
	require.NoError(t, err)

	res, err := e.Close(context.Background(), session.MeetingID, "bump_minor", "", "Alice")
	require.NoError(t, err)
	require.True(t, res.OK, res.Message)
	require.Equal(t, "v0.1.0", e.Versions.Current())
}

func TestContinueRunsOneCommitteeStepWhenNotReady(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	h.WriteEvidenceRefs("repo-a", []types.EvidenceRef{{
		EvidenceID: "E_001", RepoID: "repo-a", CommitSHA: "abc",
		FilePath: "main.go", StartLine: 1, EndLine: 1,
	}}, map[string]string{"abc:main.go": "package main\n"})

	oracle := types.OracleFunc(func(_ context.Context, _ []types.OracleMessage) (string, error) {
		out := types.CommitteeOutput{
			Scope:            "repo:repo-a",
			Facts:            []types.CommitteeClaim{{Text: "single file", EvidenceRefs: []string{"E_001"}}},
			Assumptions:      []types.CommitteeConcern{},
			Unknowns:         []types.CommitteeConcern{},
			IntegrationEdges: []types.IntegrationEdge{},
			Risks:            []string{},
			Verdict:          types.VerdictEvidenceValid,
		}
		data, err := json.Marshal(out)
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
	e := newEngine(h, oracle)

	session, err := e.Start(context.Background(), types.MeetingKindReview, "repo:repo-a")
	require.NoError(t, err)

	res, err := e.Continue(context.Background(), session.MeetingID)
	require.NoError(t, err)
	require.True(t, res.OK, res.Message)
	require.False(t, strings.Contains(res.Message, "VISION"), "committee step must not also ask a question")
	require.True(t, contract.Exists(h.Project.Paths.CommitteeStatus("repo-a")))

	res, err = e.Continue(context.Background(), session.MeetingID)
	require.NoError(t, err)
	require.Contains(t, res.Message, "VISION")
}
