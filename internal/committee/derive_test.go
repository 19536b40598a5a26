package committee_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"lanea/internal/committee"
	"lanea/internal/types"
)

func TestDeriveRepoStatusDedupesMissingEvidence(t *testing.T) {
	architect := &types.CommitteeOutput{
		Scope:   "repo:repo-a",
		Verdict: types.VerdictEvidenceValid,
		Assumptions: []types.CommitteeConcern{
			{Text: "auth flow", EvidenceMissing: []string{"auth handler source"}},
		},
	}
	skeptic := &types.CommitteeOutput{
		Scope:   "repo:repo-a",
		Verdict: types.VerdictEvidenceValid,
		Unknowns: []types.CommitteeConcern{
			{Text: "auth flow again", EvidenceMissing: []string{"auth handler source"}},
		},
	}

	status := committee.DeriveRepoStatus("repo-a",
		[]*types.CommitteeOutput{architect, skeptic}, nil)
	require.Len(t, status.BlockingIssues, 1, "identical missing-evidence entries collapse")
	want := types.BlockingIssue{
		ID:              "missing-001",
		Description:     "evidence missing: auth handler source",
		EvidenceMissing: []string{"auth handler source"},
		Severity:        types.SeverityMedium,
	}
	if diff := cmp.Diff(want, status.BlockingIssues[0]); diff != "" {
		t.Fatalf("issue mismatch (-want +got):\n%s", diff)
	}
	require.False(t, status.EvidenceValid)
	require.Equal(t, types.NextActionRescanNeeded, status.NextAction)
	require.Equal(t, types.SeverityMedium, status.Confidence)
}

func TestDeriveRepoStatusInvalidVerdictIsHigh(t *testing.T) {
	skeptic := &types.CommitteeOutput{
		Scope:   "repo:repo-a",
		Verdict: types.VerdictEvidenceInvalid,
	}

	status := committee.DeriveRepoStatus("repo-a",
		[]*types.CommitteeOutput{skeptic}, nil)
	require.Len(t, status.BlockingIssues, 1)
	require.Equal(t, types.SeverityHigh, status.BlockingIssues[0].Severity)
	require.Equal(t, types.NextActionDecisionNeeded, status.NextAction)
	require.Equal(t, types.SeverityLow, status.Confidence)
}

func TestDeriveIntegrationStatusSeverityBands(t *testing.T) {
	out := &types.CommitteeOutput{
		Scope:   "system",
		Verdict: types.VerdictEvidenceValid,
		IntegrationEdges: []types.IntegrationEdge{
			{From: "repo:a", To: "repo:b", Type: "grpc",
				EvidenceMissing: []string{"proto definition"}, Confidence: 0.2},
			{From: "repo:a", To: "repo:b", Type: "http",
				EvidenceMissing: []string{"route table"}, Confidence: 0.5},
			{From: "repo:a", To: "repo:b", Type: "queue",
				EvidenceMissing: []string{"topic name"}, Confidence: 0.9},
			{From: "repo:a", To: "ghost", Type: "http",
				EvidenceMissing: []string{"anything"}, Confidence: 0.1},
			{From: "repo:a", To: "repo:b", Type: "cache",
				EvidenceMissing: []string{}, Confidence: 0.1},
		},
	}
	known := func(id string) bool { return id == "a" || id == "b" }

	status := committee.DeriveIntegrationStatus(out, known)
	require.Len(t, status.IntegrationGaps, 3,
		"edges without missing evidence or with unresolvable endpoints emit no gap")
	require.Equal(t, types.SeverityHigh, status.IntegrationGaps[0].Severity)
	require.Equal(t, types.SeverityMedium, status.IntegrationGaps[1].Severity)
	require.Equal(t, types.SeverityLow, status.IntegrationGaps[2].Severity)
	require.False(t, status.EvidenceValid, "a high gap invalidates the evidence")
	require.True(t, status.DecisionNeeded)
}
