package committee

import (
	"fmt"
	"strings"

	"lanea/internal/types"
)

const softStaleBanner = "> **SOFT-STALE:** knowledge for this scope lags the live repositories. " +
	"Rescan before relying on these findings.\n\n"

func renderOutputMarkdown(role string, out *types.CommitteeOutput, banner bool) string {
	var b strings.Builder
	if banner {
		b.WriteString(softStaleBanner)
	}
	fmt.Fprintf(&b, "# %s: %s\n\n", titleFor(role), out.Scope)
	fmt.Fprintf(&b, "Verdict: **%s**\n\n", out.Verdict)

	if len(out.Facts) > 0 {
		b.WriteString("## Facts\n\n")
		for _, fact := range out.Facts {
			fmt.Fprintf(&b, "- %s _(%s)_\n", fact.Text, strings.Join(fact.EvidenceRefs, ", "))
		}
		b.WriteString("\n")
	}
	writeConcerns(&b, "Assumptions", out.Assumptions)
	writeConcerns(&b, "Unknowns", out.Unknowns)

	if len(out.IntegrationEdges) > 0 {
		b.WriteString("## Integration Edges\n\n")
		for _, edge := range out.IntegrationEdges {
			fmt.Fprintf(&b, "- `%s` → `%s` (%s, confidence %.2f)\n",
				edge.From, edge.To, edge.Type, edge.Confidence)
			if len(edge.EvidenceMissing) > 0 {
				fmt.Fprintf(&b, "  - missing: %s\n", strings.Join(edge.EvidenceMissing, "; "))
			}
		}
		b.WriteString("\n")
	}
	if len(out.Risks) > 0 {
		b.WriteString("## Risks\n\n")
		for _, risk := range out.Risks {
			fmt.Fprintf(&b, "- %s\n", risk)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeConcerns(b *strings.Builder, heading string, concerns []types.CommitteeConcern) {
	if len(concerns) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", heading)
	for _, concern := range concerns {
		fmt.Fprintf(b, "- %s\n", concern.Text)
		for _, missing := range concern.EvidenceMissing {
			fmt.Fprintf(b, "  - needs: %s\n", missing)
		}
	}
	b.WriteString("\n")
}

func renderStatusMarkdown(status *types.CommitteeStatus, banner bool) string {
	var b strings.Builder
	if banner {
		b.WriteString(softStaleBanner)
	}
	fmt.Fprintf(&b, "# Committee Status: %s\n\n", status.RepoID)
	fmt.Fprintf(&b, "- Evidence valid: %t\n- Confidence: %s\n- Next action: %s\n",
		status.EvidenceValid, status.Confidence, status.NextAction)
	if status.Degraded {
		fmt.Fprintf(&b, "- Degraded: %s\n", status.DegradedReason)
	}
	b.WriteString("\n")
	if len(status.BlockingIssues) > 0 {
		b.WriteString("## Blocking Issues\n\n")
		for _, issue := range status.BlockingIssues {
			fmt.Fprintf(&b, "- **%s** [%s] %s\n", issue.ID, issue.Severity, issue.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderIntegrationMarkdown(status *types.IntegrationStatus, banner bool) string {
	var b strings.Builder
	if banner {
		b.WriteString(softStaleBanner)
	}
	b.WriteString("# Integration Status\n\n")
	fmt.Fprintf(&b, "- Evidence valid: %t\n- Decision needed: %t\n\n",
		status.EvidenceValid, status.DecisionNeeded)
	if len(status.IntegrationGaps) > 0 {
		b.WriteString("## Gaps\n\n")
		for _, gap := range status.IntegrationGaps {
			fmt.Fprintf(&b, "- **%s** [%s] %s (repos: %s)\n",
				gap.ID, gap.Severity, gap.Description, strings.Join(gap.Repos, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func titleFor(role string) string {
	switch role {
	case RoleArchitect:
		return "Architect Claims"
	case RoleSkeptic:
		return "Skeptic Challenges"
	case RoleIntegrationChair:
		return "Integration Findings"
	case RoleQAStrategist:
		return "QA Strategy"
	default:
		return role
	}
}
