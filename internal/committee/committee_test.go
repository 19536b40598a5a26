package committee_test

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lanea/internal/committee"
	"lanea/internal/config"
	"lanea/internal/contract"
	"lanea/internal/evidence"
	"lanea/internal/gitio"
	"lanea/internal/testing/projharness"
	"lanea/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedOracle answers per role and counts invocations.
type scriptedOracle struct {
	mu      sync.Mutex
	calls   int
	respond func(role string, messages []types.OracleMessage) (string, error)
}

func (s *scriptedOracle) Invoke(_ context.Context, messages []types.OracleMessage) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.respond(roleOf(messages[0].Content), messages)
}

func (s *scriptedOracle) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func roleOf(system string) string {
	switch {
	case strings.Contains(system, "skeptic"):
		return committee.RoleSkeptic
	case strings.Contains(system, "chair the integration"):
		return committee.RoleIntegrationChair
	case strings.Contains(system, "QA strategist"):
		return committee.RoleQAStrategist
	default:
		return committee.RoleArchitect
	}
}

func validOutput(t *testing.T, scope string, refs ...string) string {
	t.Helper()
	if refs == nil {
		refs = []string{}
	}
	out := types.CommitteeOutput{
		Scope:            scope,
		Facts:            []types.CommitteeClaim{{Text: "entrypoint is main.go", EvidenceRefs: refs}},
		Assumptions:      []types.CommitteeConcern{},
		Unknowns:         []types.CommitteeConcern{},
		IntegrationEdges: []types.IntegrationEdge{},
		Risks:            []string{},
		Verdict:          types.VerdictEvidenceValid,
	}
	data, err := json.Marshal(out)
	require.NoError(t, err)
	return string(data)
}

func cleanAnswers(t *testing.T) func(role string, _ []types.OracleMessage) (string, error) {
	return func(role string, _ []types.OracleMessage) (string, error) {
		if role == committee.RoleIntegrationChair {
			return validOutput(t, "system"), nil
		}
		return validOutput(t, "repo:repo-a", "E_001"), nil
	}
}

func setup(t *testing.T, oracle *scriptedOracle) (*projharness.Harness, *committee.Orchestrator) {
	t.Helper()
	h := projharness.New(t, "repo-a")
	h.ScanAll("repo-a", "abc", h.Clock.Add(-time.Minute))
	h.WriteEvidenceRefs("repo-a", []types.EvidenceRef{{
		EvidenceID: "E_001", RepoID: "repo-a", CommitSHA: "abc",
		FilePath: "main.go", StartLine: 1, EndLine: 2,
	}}, map[string]string{"abc:main.go": "package main\n\nfunc main() {}\n"})

	o := committee.New(h.Project, oracle)
	o.Engine = h.Engine()
	o.Catalog = &evidence.Catalog{Project: h.Project, Git: &gitio.Client{Runner: h.Git}}
	o.Decisions.Now = func() time.Time { return h.Clock }
	o.Now = func() time.Time { return h.Clock }
	return h, o
}

func TestRepoCommitteeFreshRepoIsValid(t *testing.T) {
	oracle := &scriptedOracle{respond: cleanAnswers(t)}
	h, o := setup(t, oracle)

	result, err := o.RunRepo(context.Background(), "repo-a", false)
	require.NoError(t, err)
	require.True(t, result.OK, result.Message)
	require.Equal(t, 2, oracle.callCount(), "architect and skeptic each invoked once")

	status, err := contract.LoadCommitteeStatus(h.Project.Paths.CommitteeStatus("repo-a"))
	require.NoError(t, err)
	require.True(t, status.EvidenceValid)
	require.Equal(t, types.NextActionProceed, status.NextAction)
	require.Equal(t, types.SeverityHigh, status.Confidence)
	require.Empty(t, status.BlockingIssues)

	require.True(t, contract.Exists(h.Project.Paths.ArchitectClaims("repo-a")))
	require.True(t, contract.Exists(h.Project.Paths.SkepticChallenges("repo-a")))
	require.True(t, contract.Exists(h.Project.Paths.LastRefreshCheckpoint()))
}

func TestRepoCommitteeRejectsUnknownEvidenceRef(t *testing.T) {
	oracle := &scriptedOracle{respond: func(role string, _ []types.OracleMessage) (string, error) {
		return validOutput(t, "repo:repo-a", "E_GHOST"), nil
	}}
	h, o := setup(t, oracle)

	result, err := o.RunRepo(context.Background(), "repo-a", false)
	require.NoError(t, err)
	require.False(t, result.OK)
	require.Equal(t, types.ReasonOutputInvalid, result.ReasonCode)
	require.Equal(t, 1, oracle.callCount(), "skeptic must not run after architect rejection")

	claims := h.Project.Paths.ArchitectClaims("repo-a")
	require.False(t, contract.Exists(claims))
	require.True(t, contract.Exists(config.ErrorSibling(claims)))

	status, err := contract.LoadCommitteeStatus(h.Project.Paths.CommitteeStatus("repo-a"))
	require.NoError(t, err)
	require.False(t, status.EvidenceValid)
	require.Equal(t, types.NextActionRescanNeeded, status.NextAction)
	require.Equal(t, types.SeverityMedium, status.Confidence)
	require.Len(t, status.BlockingIssues, 1)
	require.Equal(t, types.SeverityMedium, status.BlockingIssues[0].Severity)
	require.Contains(t, status.BlockingIssues[0].EvidenceMissing[0], "E_GHOST")
}

func TestRepoCommitteeParseFailureNeedsDecision(t *testing.T) {
	oracle := &scriptedOracle{respond: func(string, []types.OracleMessage) (string, error) {
		return "I could not produce JSON, sorry.", nil
	}}
	h, o := setup(t, oracle)

	result, err := o.RunRepo(context.Background(), "repo-a", false)
	require.NoError(t, err)
	require.False(t, result.OK)

	status, err := contract.LoadCommitteeStatus(h.Project.Paths.CommitteeStatus("repo-a"))
	require.NoError(t, err)
	require.Equal(t, types.NextActionDecisionNeeded, status.NextAction)
	require.Equal(t, types.SeverityLow, status.Confidence)
	require.Equal(t, types.SeverityHigh, status.BlockingIssues[0].Severity)
}

func TestHardStaleBlocksWithoutInvokingOracle(t *testing.T) {
	oracle := &scriptedOracle{respond: cleanAnswers(t)}
	h, o := setup(t, oracle)
	h.AppendMergeEvent("repo-a", h.Clock.Add(-30*time.Second))

	result, err := o.RunRepo(context.Background(), "repo-a", false)
	require.NoError(t, err)
	require.False(t, result.OK)
	require.Equal(t, types.ReasonStaleBlocked, result.ReasonCode)
	require.Zero(t, oracle.callCount())

	packet, _, err := o.Decisions.FindOpen("repo:repo-a", "refresh-required")
	require.NoError(t, err)
	require.NotNil(t, packet)

	// A second blocked run reuses the open packet instead of writing another.
	_, err = o.RunRepo(context.Background(), "repo-a", false)
	require.NoError(t, err)
	entries, err := os.ReadDir(h.Project.Paths.DecisionsDir())
	require.NoError(t, err)
	jsonCount := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".json") {
			jsonCount++
		}
	}
	require.Equal(t, 1, jsonCount)
}

func TestSoftStaleRunProceedsDegraded(t *testing.T) {
	oracle := &scriptedOracle{respond: cleanAnswers(t)}
	h, o := setup(t, oracle)
	h.SetHead("repo-a", "def") // head moved since scan, within the age threshold

	result, err := o.RunRepo(context.Background(), "repo-a", false)
	require.NoError(t, err)
	require.True(t, result.OK, result.Message)
	require.Equal(t, 2, oracle.callCount())

	claims, err := contract.LoadCommitteeOutput(h.Project.Paths.ArchitectClaims("repo-a"))
	require.NoError(t, err)
	require.True(t, claims.Stale)
	foundDirective := false
	for _, unknown := range claims.Unknowns {
		for _, missing := range unknown.EvidenceMissing {
			if strings.HasPrefix(missing, "need refresh required:") {
				foundDirective = true
			}
		}
	}
	require.True(t, foundDirective)

	status, err := contract.LoadCommitteeStatus(h.Project.Paths.CommitteeStatus("repo-a"))
	require.NoError(t, err)
	require.True(t, status.Degraded)
	require.Equal(t, "soft_stale", status.DegradedReason)
	require.Equal(t, types.NextActionRescanNeeded, status.NextAction)

	md, err := os.ReadFile(config.MarkdownSibling(h.Project.Paths.CommitteeStatus("repo-a")))
	require.NoError(t, err)
	require.Contains(t, string(md), "SOFT-STALE")
}

func TestIntegrationChairRequiresValidRepoCommittees(t *testing.T) {
	oracle := &scriptedOracle{respond: cleanAnswers(t)}
	_, o := setup(t, oracle)

	result, err := o.RunIntegration(context.Background(), false)
	require.NoError(t, err)
	require.False(t, result.OK)
	require.Equal(t, types.ReasonMissingInput, result.ReasonCode)
	require.Contains(t, result.Message, "repo-a")
	require.Zero(t, oracle.callCount())
}

func TestIntegrationChairDerivesGaps(t *testing.T) {
	oracle := &scriptedOracle{respond: cleanAnswers(t)}
	h, o := setup(t, oracle)

	_, err := o.RunRepo(context.Background(), "repo-a", false)
	require.NoError(t, err)

	oracle.respond = func(role string, _ []types.OracleMessage) (string, error) {
		out := types.CommitteeOutput{
			Scope:       "system",
			Facts:       []types.CommitteeClaim{},
			Assumptions: []types.CommitteeConcern{},
			Unknowns:    []types.CommitteeConcern{},
			IntegrationEdges: []types.IntegrationEdge{{
				From: "repo:repo-a", To: "repo:repo-a", Type: "http",
				EvidenceRefs:    []string{},
				EvidenceMissing: []string{"no contract evidence for the callback path"},
				Confidence:      0.5,
			}},
			Risks:   []string{},
			Verdict: types.VerdictEvidenceValid,
		}
		data, err := json.Marshal(out)
		require.NoError(t, err)
		return string(data), nil
	}

	result, err := o.RunIntegration(context.Background(), false)
	require.NoError(t, err)
	require.True(t, result.OK, result.Message)

	status, err := contract.LoadIntegrationStatus(h.Project.Paths.IntegrationStatus())
	require.NoError(t, err)
	require.True(t, status.EvidenceValid, "medium gap does not invalidate evidence")
	require.True(t, status.DecisionNeeded)
	require.Len(t, status.IntegrationGaps, 1)
	require.Equal(t, types.SeverityMedium, status.IntegrationGaps[0].Severity)
	require.Equal(t, []string{"repo-a", "repo-a"}, status.IntegrationGaps[0].Repos)
}

func TestRunReposPoolCoversAllRepos(t *testing.T) {
	oracle := &scriptedOracle{respond: func(role string, messages []types.OracleMessage) (string, error) {
		var p struct {
			Scope string `json:"scope"`
		}
		require.NoError(t, json.Unmarshal([]byte(messages[1].Content), &p))
		return validOutput(t, p.Scope, "E_001"), nil
	}}

	h := projharness.New(t, "repo-a", "repo-b")
	for _, repoID := range []string{"repo-a", "repo-b"} {
		h.ScanAll(repoID, "abc", h.Clock.Add(-time.Minute))
		h.WriteEvidenceRefs(repoID, []types.EvidenceRef{{
			EvidenceID: "E_001", RepoID: repoID, CommitSHA: "abc",
			FilePath: "main.go", StartLine: 1, EndLine: 1,
		}}, map[string]string{"abc:main.go": "package main\n"})
	}
	o := committee.New(h.Project, oracle)
	o.Engine = h.Engine()
	o.Catalog = &evidence.Catalog{Project: h.Project, Git: &gitio.Client{Runner: h.Git}}
	o.Now = func() time.Time { return h.Clock }

	results, err := o.RunRepos(context.Background(), []string{"repo-a", "repo-b"}, false)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.True(t, results["repo-a"].OK)
	require.True(t, results["repo-b"].OK)
}

func TestQAStrategistWritesStrategy(t *testing.T) {
	oracle := &scriptedOracle{respond: cleanAnswers(t)}
	h, o := setup(t, oracle)

	result, err := o.RunQAStrategist(context.Background(), "repo-a", false)
	require.NoError(t, err)
	require.True(t, result.OK, result.Message)
	require.True(t, contract.Exists(h.Project.Paths.QAStrategy("repo-a")))
	require.False(t, contract.Exists(h.Project.Paths.CommitteeStatus("repo-a")),
		"qa strategist must not derive a committee status")
}
