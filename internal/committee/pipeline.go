package committee

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"lanea/internal/config"
	"lanea/internal/contract"
	"lanea/internal/fsatomic"
	"lanea/internal/logging"
	"lanea/internal/types"
)

// Terminal states of one role run.
const (
	StateStaleBlocked  = "stale_blocked"
	StateMissingInput  = "missing_input"
	StateLLMError      = "llm_error"
	StateOutputInvalid = "output_invalid"
)

// errorArtifact is written beside the role's JSON path when a run ends in
// a failure state.
type errorArtifact struct {
	Role      string    `json:"role"`
	Scope     string    `json:"scope"`
	State     string    `json:"state"`
	Errors    []string  `json:"errors"`
	RawOutput string    `json:"raw_output,omitempty"`
	FailedAt  time.Time `json:"failed_at"`
}

// roleRun carries everything one role invocation needs.
type roleRun struct {
	Role         string
	Scope        string
	ArtifactPath string
	Allowed      map[string]struct{}
	Payload      *payload
	SoftStale    bool
	SoftBanner   bool
}

// runRole invokes the oracle for one role and walks the output through the
// validation pipeline. A rejected output yields a blocking issue and an
// error artifact; an accepted output is persisted (JSON plus Markdown) and
// any previous error artifact is removed. Oracle transport failures are
// returned as errors after the llm_error artifact lands.
func (o *Orchestrator) runRole(ctx context.Context, run roleRun) (*types.CommitteeOutput, *types.BlockingIssue, error) {
	log := logging.Get(logging.CategoryCommittee)

	user, err := run.Payload.render()
	if err != nil {
		return nil, nil, err
	}

	raw, err := o.Oracle.Invoke(ctx, []types.OracleMessage{
		{Role: "system", Content: systemPromptFor(run.Role)},
		{Role: "user", Content: user},
	})
	if err != nil {
		o.writeError(run, StateLLMError, []string{err.Error()}, "")
		return nil, nil, fmt.Errorf("%s oracle: %w", run.Role, err)
	}

	out, issue := o.validate(run, raw)
	if issue != nil {
		log.Warnw("committee output rejected",
			"role", run.Role, "scope", run.Scope, "issue", issue.Description)
		return nil, issue, nil
	}

	if err := fsatomic.WriteJSON(run.ArtifactPath, out); err != nil {
		return nil, nil, err
	}
	md := renderOutputMarkdown(run.Role, out, run.SoftBanner)
	if err := fsatomic.WriteFile(config.MarkdownSibling(run.ArtifactPath), []byte(md)); err != nil {
		return nil, nil, err
	}
	_ = os.Remove(config.ErrorSibling(run.ArtifactPath))

	log.Infow("committee output accepted", "role", run.Role, "scope", run.Scope,
		"facts", len(out.Facts), "verdict", out.Verdict)
	return out, nil, nil
}

// validate is steps 1-5 of the output pipeline: strict parse, schema,
// scope assertion, evidence-ref whitelist, soft-stale marker.
func (o *Orchestrator) validate(run roleRun, raw string) (*types.CommitteeOutput, *types.BlockingIssue) {
	report := contract.Validate(contract.KindCommitteeOutput, []byte(strings.TrimSpace(raw)))
	if !report.OK {
		o.writeError(run, StateOutputInvalid, report.Errors, raw)
		return nil, &types.BlockingIssue{
			ID:              run.Role + "-output-invalid",
			Description:     fmt.Sprintf("%s output rejected: %s", run.Role, report.Errors[0]),
			EvidenceMissing: []string{},
			Severity:        types.SeverityHigh,
		}
	}
	out := report.Normalized.(*types.CommitteeOutput)

	if out.Scope != run.Scope {
		errs := []string{fmt.Sprintf("scope %q does not match expected %q", out.Scope, run.Scope)}
		o.writeError(run, StateOutputInvalid, errs, raw)
		return nil, &types.BlockingIssue{
			ID:              run.Role + "-output-invalid",
			Description:     fmt.Sprintf("%s output rejected: %s", run.Role, errs[0]),
			EvidenceMissing: []string{},
			Severity:        types.SeverityHigh,
		}
	}

	if issue := o.checkRefs(run, out, raw); issue != nil {
		return nil, issue
	}

	if run.SoftStale {
		applySoftStaleMarker(out)
		contract.NormalizeCommitteeOutput(out)
		if issue := o.checkRefs(run, out, raw); issue != nil {
			return nil, issue
		}
	}
	return out, nil
}

// checkRefs asserts every evidence ref cited in facts or integration edges
// is a member of the allowed set.
func (o *Orchestrator) checkRefs(run roleRun, out *types.CommitteeOutput, raw string) *types.BlockingIssue {
	unknownSet := map[string]struct{}{}
	for _, fact := range out.Facts {
		for _, ref := range fact.EvidenceRefs {
			if _, found := run.Allowed[ref]; !found {
				unknownSet[ref] = struct{}{}
			}
		}
	}
	for _, edge := range out.IntegrationEdges {
		for _, ref := range edge.EvidenceRefs {
			if _, found := run.Allowed[ref]; !found {
				unknownSet[ref] = struct{}{}
			}
		}
	}
	if len(unknownSet) == 0 {
		return nil
	}

	unknown := make([]string, 0, len(unknownSet))
	for ref := range unknownSet {
		unknown = append(unknown, ref)
	}
	sort.Strings(unknown)

	errs := []string{fmt.Sprintf("unknown evidence refs: %s", strings.Join(unknown, ", "))}
	o.writeError(run, StateOutputInvalid, errs, raw)
	return &types.BlockingIssue{
		ID:          run.Role + "-unknown-refs",
		Description: fmt.Sprintf("%s cited evidence refs outside the bundle: %s", run.Role, strings.Join(unknown, ", ")),
		EvidenceMissing: []string{fmt.Sprintf(
			"regenerate evidence index for %s; unknown refs: %s", run.Scope, strings.Join(unknown, ", "))},
		Severity: types.SeverityMedium,
	}
}

// applySoftStaleMarker degrades an accepted output when the scope is
// soft-stale: the output carries stale=true plus an unknown whose missing
// evidence names the refresh directive.
func applySoftStaleMarker(out *types.CommitteeOutput) {
	out.Stale = true
	out.Unknowns = append(out.Unknowns, types.CommitteeConcern{
		Text: "knowledge for this scope is soft-stale; findings may lag the live repositories",
		EvidenceMissing: []string{
			fmt.Sprintf("need refresh required: %s knowledge is soft-stale; rescan to clear", out.Scope),
		},
	})
}

func (o *Orchestrator) writeError(run roleRun, state string, errs []string, raw string) {
	artifact := errorArtifact{
		Role:      run.Role,
		Scope:     run.Scope,
		State:     state,
		Errors:    errs,
		RawOutput: raw,
		FailedAt:  o.Now().UTC(),
	}
	if err := fsatomic.WriteJSON(config.ErrorSibling(run.ArtifactPath), artifact); err != nil {
		logging.Get(logging.CategoryCommittee).Errorw("error artifact write failed",
			"role", run.Role, "error", err)
	}
	// A failed run invalidates whatever the previous run produced.
	_ = os.Remove(run.ArtifactPath)
	_ = os.Remove(config.MarkdownSibling(run.ArtifactPath))
}
