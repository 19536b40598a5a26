package committee

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"lanea/internal/config"
	"lanea/internal/contract"
	"lanea/internal/decision"
	"lanea/internal/events"
	"lanea/internal/evidence"
	"lanea/internal/fsatomic"
	"lanea/internal/logging"
	"lanea/internal/staleness"
	"lanea/internal/types"
)

// DefaultMaxWorkers bounds the repo-committee pool.
const DefaultMaxWorkers = 8

// Orchestrator runs the committee roles for repos, the integration chair,
// and the qa strategist. Every run is staleness-gated.
type Orchestrator struct {
	Project    *config.Project
	Engine     *staleness.Engine
	Catalog    *evidence.Catalog
	Decisions  *decision.Store
	Oracle     types.Oracle
	MaxWorkers int
	Now        func() time.Time
}

// New builds an orchestrator over the project and oracle.
func New(project *config.Project, oracle types.Oracle) *Orchestrator {
	o := &Orchestrator{
		Project:    project,
		Engine:     staleness.New(project),
		Catalog:    evidence.New(project),
		Decisions:  decision.NewStore(project.Paths),
		Oracle:     oracle,
		MaxWorkers: DefaultMaxWorkers,
		Now:        time.Now,
	}
	return o
}

// RunRepo executes the repo committee (architect, then skeptic) for one
// repository and persists the derived committee status. force lets a
// hard-stale run proceed; the override is audited to the lane ledger.
func (o *Orchestrator) RunRepo(ctx context.Context, repoID string, force bool) (types.Result, error) {
	log := logging.Get(logging.CategoryCommittee)
	scope := types.RepoScope(repoID)

	snapshot, err := o.Engine.EvaluateRepo(ctx, repoID)
	if err != nil {
		return types.Result{}, err
	}
	if _, err := o.Engine.Observe(snapshot); err != nil {
		return types.Result{}, err
	}
	if refused, result, err := o.staleGate(scope, snapshot, force); refused {
		return result, err
	}

	refs, err := o.Catalog.LoadRefs(repoID)
	if err != nil {
		return types.Refuse(types.ReasonMissingInput, "%v", err), nil
	}
	bundle, err := o.Catalog.BuildBundle(ctx, repoID, refs)
	if err != nil {
		return types.Refuse(types.ReasonMissingInput, "%v", err), nil
	}
	allowed := evidence.AllowedIDs(refs)

	base := payload{
		Scope:             scope,
		Kickoff:           o.kickoff(),
		AnsweredDecisions: o.answeredContext(scope),
		Evidence:          bundle,
		Staleness:         snapshot,
	}
	if index, err := contract.LoadRepoIndex(o.Project.Paths.RepoIndex(repoID)); err == nil {
		base.RepoIndex = index
	}
	softStale := snapshot.Stale && !snapshot.HardStale

	var outputs []*types.CommitteeOutput
	var failures []types.BlockingIssue

	architectPayload := base
	architect, issue, err := o.runRole(ctx, roleRun{
		Role:         RoleArchitect,
		Scope:        scope,
		ArtifactPath: o.Project.Paths.ArchitectClaims(repoID),
		Allowed:      allowed,
		Payload:      &architectPayload,
		SoftStale:    softStale,
		SoftBanner:   softStale,
	})
	if err != nil {
		return types.Result{}, err
	}
	if issue != nil {
		failures = append(failures, *issue)
	} else {
		outputs = append(outputs, architect)

		// The skeptic runs strictly after the architect and sees its output.
		skepticPayload := base
		skepticPayload.ArchitectOutput = architect
		skeptic, issue, err := o.runRole(ctx, roleRun{
			Role:         RoleSkeptic,
			Scope:        scope,
			ArtifactPath: o.Project.Paths.SkepticChallenges(repoID),
			Allowed:      allowed,
			Payload:      &skepticPayload,
			SoftStale:    softStale,
			SoftBanner:   softStale,
		})
		if err != nil {
			return types.Result{}, err
		}
		if issue != nil {
			failures = append(failures, *issue)
		} else {
			outputs = append(outputs, skeptic)
		}
	}

	status := DeriveRepoStatus(repoID, outputs, failures)
	o.stampStaleness(status, snapshot)
	if err := o.writeStatus(o.Project.Paths.CommitteeStatus(repoID), status, softStale); err != nil {
		return types.Result{}, err
	}
	if err := o.checkpoint(scope); err != nil {
		return types.Result{}, err
	}

	log.Infow("repo committee complete", "repo", repoID,
		"evidence_valid", status.EvidenceValid, "next_action", status.NextAction)

	if len(failures) > 0 {
		return types.Refuse(types.ReasonOutputInvalid,
			"committee for %s rejected %d output(s); next_action=%s", scope, len(failures), status.NextAction), nil
	}
	return types.Ok("committee for %s complete; next_action=%s", scope, status.NextAction), nil
}

// RunRepos runs repo committees in parallel over a bounded pool and
// returns per-repo results keyed by repo id.
func (o *Orchestrator) RunRepos(ctx context.Context, repoIDs []string, force bool) (map[string]types.Result, error) {
	workers := min(o.MaxWorkers, runtime.NumCPU(), len(repoIDs))
	if workers < 1 {
		workers = 1
	}

	results := make(map[string]types.Result, len(repoIDs))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, repoID := range repoIDs {
		g.Go(func() error {
			result, err := o.RunRepo(ctx, repoID, force)
			if err != nil {
				return fmt.Errorf("repo %s: %w", repoID, err)
			}
			mu.Lock()
			results[repoID] = result
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RunIntegration executes the integration chair over the system scope.
// It refuses until every active repo's committee status is evidence-valid.
func (o *Orchestrator) RunIntegration(ctx context.Context, force bool) (types.Result, error) {
	log := logging.Get(logging.CategoryCommittee)

	snapshot, err := o.Engine.EvaluateScope(ctx, types.ScopeSystem)
	if err != nil {
		return types.Result{}, err
	}
	if _, err := o.Engine.Observe(snapshot); err != nil {
		return types.Result{}, err
	}
	if refused, result, err := o.staleGate(types.ScopeSystem, snapshot, force); refused {
		return result, err
	}

	repoIDs := o.Project.Registry.ActiveRepoIDs()
	if len(repoIDs) == 0 {
		return types.Refuse(types.ReasonMissingInput, "no active repositories registered"), nil
	}

	var notReady []string
	statuses := map[string]string{}
	allowed := map[string]struct{}{}
	var bundle []types.EvidenceItem
	for _, repoID := range repoIDs {
		status, err := contract.LoadCommitteeStatus(o.Project.Paths.CommitteeStatus(repoID))
		if err != nil || !status.EvidenceValid {
			notReady = append(notReady, repoID)
			continue
		}
		statuses[repoID] = status.NextAction

		refs, err := o.Catalog.LoadRefs(repoID)
		if err != nil {
			return types.Refuse(types.ReasonMissingInput, "%v", err), nil
		}
		items, err := o.Catalog.BuildBundle(ctx, repoID, refs)
		if err != nil {
			return types.Refuse(types.ReasonMissingInput, "%v", err), nil
		}
		for id := range evidence.AllowedIDs(refs) {
			allowed[id] = struct{}{}
		}
		bundle = append(bundle, items...)
	}
	if len(notReady) > 0 {
		sort.Strings(notReady)
		return types.Refuse(types.ReasonMissingInput,
			"integration chair needs valid repo committees first; pending: %v", notReady), nil
	}

	chairPayload := payload{
		Scope:             types.ScopeSystem,
		Kickoff:           o.kickoff(),
		AnsweredDecisions: o.answeredContext(types.ScopeSystem),
		RepoStatuses:      statuses,
		Evidence:          bundle,
		Staleness:         snapshot,
	}
	softStale := snapshot.Stale && !snapshot.HardStale

	out, issue, err := o.runRole(ctx, roleRun{
		Role:         RoleIntegrationChair,
		Scope:        types.ScopeSystem,
		ArtifactPath: o.Project.Paths.IntegrationFindings(),
		Allowed:      allowed,
		Payload:      &chairPayload,
		SoftStale:    softStale,
		SoftBanner:   softStale,
	})
	if err != nil {
		return types.Result{}, err
	}
	if issue != nil {
		return types.Refuse(types.ReasonOutputInvalid,
			"integration chair output rejected: %s", issue.Description), nil
	}

	status := DeriveIntegrationStatus(out, func(repoID string) bool {
		entry, found := o.Project.Registry.Repos[repoID]
		return found && entry.Status == "active"
	})
	if err := fsatomic.WriteJSON(o.Project.Paths.IntegrationStatus(), status); err != nil {
		return types.Result{}, err
	}
	md := renderIntegrationMarkdown(status, softStale)
	if err := fsatomic.WriteFile(config.MarkdownSibling(o.Project.Paths.IntegrationStatus()), []byte(md)); err != nil {
		return types.Result{}, err
	}
	if err := o.checkpoint(types.ScopeSystem); err != nil {
		return types.Result{}, err
	}

	log.Infow("integration chair complete",
		"evidence_valid", status.EvidenceValid, "gaps", len(status.IntegrationGaps))
	return types.Ok("integration review complete; %d gap(s)", len(status.IntegrationGaps)), nil
}

// RunQAStrategist executes the single qa-strategist role for one repo.
// It shares the repo committee's gating and pipeline but writes only the
// strategy artifact; the committee status is not touched.
func (o *Orchestrator) RunQAStrategist(ctx context.Context, repoID string, force bool) (types.Result, error) {
	scope := types.RepoScope(repoID)

	snapshot, err := o.Engine.EvaluateRepo(ctx, repoID)
	if err != nil {
		return types.Result{}, err
	}
	if refused, result, err := o.staleGate(scope, snapshot, force); refused {
		return result, err
	}

	refs, err := o.Catalog.LoadRefs(repoID)
	if err != nil {
		return types.Refuse(types.ReasonMissingInput, "%v", err), nil
	}
	bundle, err := o.Catalog.BuildBundle(ctx, repoID, refs)
	if err != nil {
		return types.Refuse(types.ReasonMissingInput, "%v", err), nil
	}

	qaPayload := payload{
		Scope:             scope,
		Kickoff:           o.kickoff(),
		AnsweredDecisions: o.answeredContext(scope),
		Evidence:          bundle,
		Staleness:         snapshot,
	}
	softStale := snapshot.Stale && !snapshot.HardStale

	out, issue, err := o.runRole(ctx, roleRun{
		Role:         RoleQAStrategist,
		Scope:        scope,
		ArtifactPath: o.Project.Paths.QAStrategy(repoID),
		Allowed:      evidence.AllowedIDs(refs),
		Payload:      &qaPayload,
		SoftStale:    softStale,
		SoftBanner:   softStale,
	})
	if err != nil {
		return types.Result{}, err
	}
	if issue != nil {
		return types.Refuse(types.ReasonOutputInvalid,
			"qa strategist output rejected: %s", issue.Description), nil
	}
	return types.Ok("qa strategy for %s written; verdict=%s", scope, out.Verdict), nil
}

// staleGate enforces the hard-stale refusal: no oracle call, an
// idempotent refresh-required packet, and a STALE_BLOCKED result. With
// force set the run proceeds and the override is audited.
func (o *Orchestrator) staleGate(scope string, snapshot *types.StalenessSnapshot, force bool) (bool, types.Result, error) {
	if !snapshot.HardStale {
		return false, types.Result{}, nil
	}
	if force {
		_, err := o.Engine.Events.AppendLedger("stale_override", scope, "committee",
			"committee run forced while hard-stale", o.Now())
		if err != nil {
			return true, types.Result{}, err
		}
		logging.Get(logging.CategoryCommittee).Warnw("hard-stale override", "scope", scope)
		return false, types.Result{}, nil
	}

	packet := buildRefreshPacket(scope, snapshot)
	if _, err := o.Decisions.CreateIdempotent(decision.KindRefreshRequired, packet); err != nil {
		return true, types.Result{}, err
	}
	reason := "hard-stale"
	if len(snapshot.Reasons) > 0 {
		reason = snapshot.Reasons[0]
	}
	return true, types.Refuse(types.ReasonStaleBlocked,
		"committee blocked: %s is hard-stale (%s); refresh required", scope, reason), nil
}

func buildRefreshPacket(scope string, snapshot *types.StalenessSnapshot) *types.DecisionPacket {
	known := []string{}
	if snapshot.RepoHeadSHA != "" {
		known = append(known, "repo HEAD: "+snapshot.RepoHeadSHA)
	}
	if snapshot.LastScannedHeadSHA != "" {
		known = append(known, "last scanned head: "+snapshot.LastScannedHeadSHA)
	}
	if snapshot.LastScanTime != nil {
		known = append(known, "last scan: "+snapshot.LastScanTime.Format(time.RFC3339))
	}
	if snapshot.LastMergeEventTime != nil {
		known = append(known, "last merge event: "+snapshot.LastMergeEventTime.Format(time.RFC3339))
	}

	return &types.DecisionPacket{
		Scope:         scope,
		Trigger:       "hard_stale",
		BlockingState: "hard_stale",
		Context: types.DecisionContext{
			Summary: fmt.Sprintf("Knowledge for %s is hard-stale (%v).", scope, snapshot.Reasons),
			WhyAutomationFailed: "Committee runs refuse while knowledge is hard-stale; " +
				"findings would be derived from evidence that no longer matches the repositories.",
			WhatIsKnown: known,
		},
		Questions: []types.DecisionQuestion{{
			ID:                 "Q1",
			Question:           fmt.Sprintf("Refresh the scan for %s now, or accept the stale knowledge?", scope),
			ExpectedAnswerType: "choice",
			Constraints:        "refresh | accept_stale",
			Blocks:             []string{"committee_run", "sufficiency_approval", "delivery"},
		}},
	}
}

func (o *Orchestrator) stampStaleness(status *types.CommitteeStatus, snapshot *types.StalenessSnapshot) {
	status.Stale = snapshot.Stale
	status.HardStale = snapshot.HardStale
	status.Staleness = snapshot
	if snapshot.Stale && !snapshot.HardStale {
		status.Degraded = true
		status.DegradedReason = "soft_stale"
	}
}

func (o *Orchestrator) writeStatus(path string, status *types.CommitteeStatus, banner bool) error {
	if err := fsatomic.WriteJSON(path, status); err != nil {
		return err
	}
	return fsatomic.WriteFile(config.MarkdownSibling(path), []byte(renderStatusMarkdown(status, banner)))
}

func (o *Orchestrator) checkpoint(scope string) error {
	return events.WriteRefreshCheckpoint(o.Project.Paths.LastRefreshCheckpoint(), scope, o.Now())
}

// answeredContext collects answered packets for the system scope plus the
// target scope, oldest first; payloads feed them back as resolved context.
func (o *Orchestrator) answeredContext(scope string) []answeredDecision {
	var packets []*types.DecisionPacket
	if system, err := o.Decisions.AnsweredFor(types.ScopeSystem); err == nil {
		packets = append(packets, system...)
	}
	if scope != types.ScopeSystem {
		if scoped, err := o.Decisions.AnsweredFor(scope); err == nil {
			packets = append(packets, scoped...)
		}
	}
	return toAnswered(packets)
}

func (o *Orchestrator) kickoff() string {
	data, err := os.ReadFile(o.Project.Paths.Kickoff())
	if err != nil {
		return ""
	}
	return string(data)
}
