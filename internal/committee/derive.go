// Package committee runs the evidence-grounded review roles (architect,
// skeptic, integration chair, qa strategist) against a whitelisted
// evidence set and derives the deterministic committee verdicts the rest
// of the core gates on.
package committee

import (
	"fmt"
	"sort"

	"lanea/internal/contract"
	"lanea/internal/types"
)

// Confidence bands for integration gap severity.
const (
	gapHighBelow   = 0.35
	gapMediumBelow = 0.60
)

// DeriveRepoStatus computes the committee status from the architect and
// skeptic outputs plus any pipeline failures. The mapping is pure; given
// identical inputs it always yields the identical status.
func DeriveRepoStatus(repoID string, outputs []*types.CommitteeOutput, failures []types.BlockingIssue) *types.CommitteeStatus {
	issues := append([]types.BlockingIssue{}, failures...)

	// One medium issue per unique evidence_missing entry across roles.
	missingSet := map[string]struct{}{}
	for _, out := range outputs {
		for _, entry := range collectEvidenceMissing(out) {
			missingSet[entry] = struct{}{}
		}
	}
	missing := make([]string, 0, len(missingSet))
	for entry := range missingSet {
		missing = append(missing, entry)
	}
	sort.Strings(missing)
	for i, entry := range missing {
		issues = append(issues, types.BlockingIssue{
			ID:              fmt.Sprintf("missing-%03d", i+1),
			Description:     "evidence missing: " + entry,
			EvidenceMissing: []string{entry},
			Severity:        types.SeverityMedium,
		})
	}

	// One high issue per non-clean verdict.
	for _, out := range outputs {
		if out.Verdict != types.VerdictEvidenceValid {
			issues = append(issues, types.BlockingIssue{
				ID:              "verdict-" + out.Scope,
				Description:     fmt.Sprintf("committee verdict for %s is %s", out.Scope, out.Verdict),
				EvidenceMissing: []string{},
				Severity:        types.SeverityHigh,
			})
		}
	}

	hasHigh := false
	hasMissing := false
	for _, issue := range issues {
		if issue.Severity == types.SeverityHigh {
			hasHigh = true
		}
		if issue.Severity == types.SeverityMedium && len(issue.EvidenceMissing) > 0 {
			hasMissing = true
		}
	}

	status := &types.CommitteeStatus{
		RepoID:         repoID,
		EvidenceValid:  !(hasHigh || hasMissing),
		BlockingIssues: issues,
	}
	switch {
	case hasMissing:
		status.NextAction = types.NextActionRescanNeeded
	case hasHigh:
		status.NextAction = types.NextActionDecisionNeeded
	default:
		status.NextAction = types.NextActionProceed
	}
	switch {
	case status.EvidenceValid:
		status.Confidence = types.SeverityHigh
	case hasMissing:
		status.Confidence = types.SeverityMedium
	default:
		status.Confidence = types.SeverityLow
	}
	return status
}

func collectEvidenceMissing(out *types.CommitteeOutput) []string {
	var entries []string
	for _, concern := range out.Assumptions {
		entries = append(entries, concern.EvidenceMissing...)
	}
	for _, concern := range out.Unknowns {
		entries = append(entries, concern.EvidenceMissing...)
	}
	for _, edge := range out.IntegrationEdges {
		entries = append(entries, edge.EvidenceMissing...)
	}
	return entries
}

// DeriveIntegrationStatus computes the system integration status from the
// chair's output. knownRepo reports whether a repo id is registered.
func DeriveIntegrationStatus(out *types.CommitteeOutput, knownRepo func(string) bool) *types.IntegrationStatus {
	gaps := []types.IntegrationGap{}
	for i, edge := range out.IntegrationEdges {
		if len(edge.EvidenceMissing) == 0 {
			continue
		}
		fromID, fromOK := types.RepoIDFromScope(edge.From)
		toID, toOK := types.RepoIDFromScope(edge.To)
		if !fromOK || !toOK || !knownRepo(fromID) || !knownRepo(toID) {
			continue
		}

		severity := types.SeverityLow
		switch {
		case edge.Confidence < gapHighBelow:
			severity = types.SeverityHigh
		case edge.Confidence < gapMediumBelow:
			severity = types.SeverityMedium
		}

		repos := []string{fromID, toID}
		sort.Strings(repos)
		gaps = append(gaps, types.IntegrationGap{
			ID:              fmt.Sprintf("gap-%03d", i+1),
			Repos:           repos,
			Description:     fmt.Sprintf("%s -> %s (%s) lacks evidence", edge.From, edge.To, edge.Type),
			EvidenceRefs:    edge.EvidenceRefs,
			EvidenceMissing: edge.EvidenceMissing,
			Severity:        severity,
		})
		if len(gaps) == contract.MaxIntegrationGaps {
			break
		}
	}

	anyHighGap := false
	for _, gap := range gaps {
		if gap.Severity == types.SeverityHigh {
			anyHighGap = true
		}
	}

	return &types.IntegrationStatus{
		EvidenceValid:   out.Verdict == types.VerdictEvidenceValid && !anyHighGap,
		IntegrationGaps: gaps,
		DecisionNeeded: out.Verdict != types.VerdictEvidenceValid ||
			len(gaps) > 0 || len(out.Assumptions) > 0 || len(out.Unknowns) > 0,
	}
}
