// Package staleness decides whether knowledge for a repo or scope is
// consistent with the live repositories and recent merge events. The
// three-level verdict (fresh / soft-stale / hard-stale) gates every
// committee run, sufficiency approval, and delivery export.
package staleness

import (
	"context"
	"sort"
	"time"

	"lanea/internal/config"
	"lanea/internal/contract"
	"lanea/internal/events"
	"lanea/internal/gitio"
	"lanea/internal/logging"
	"lanea/internal/types"
)

// Engine evaluates staleness for repos and scopes. The clock, git client
// and threshold are injectable for tests.
type Engine struct {
	Project *config.Project
	Git     *gitio.Client
	Events  *events.Store
	Now     func() time.Time
}

// New builds an engine over the project with the real git binary.
func New(project *config.Project) *Engine {
	return &Engine{
		Project: project,
		Git:     gitio.NewClient(),
		Events: &events.Store{
			SegmentsDir: project.Paths.EventSegmentsDir(),
			LedgerPath:  project.Paths.Ledger(),
		},
		Now: time.Now,
	}
}

// EvaluateRepo computes the staleness snapshot for one repository.
//
// A missing working tree or unreadable HEAD never implies staleness by
// itself; only coverage gaps, head mismatches and post-scan merges do.
func (e *Engine) EvaluateRepo(ctx context.Context, repoID string) (*types.StalenessSnapshot, error) {
	log := logging.Get(logging.CategoryStaleness)
	now := e.Now().UTC()

	snapshot := &types.StalenessSnapshot{
		Scope:   types.RepoScope(repoID),
		RepoID:  repoID,
		Reasons: []string{},
	}

	if abs, ok := e.Project.RepoAbsPath(repoID); ok {
		if head, err := e.Git.HeadSHA(ctx, abs); err == nil {
			snapshot.RepoHeadSHA = head
		} else {
			log.Debugw("HEAD unresolved", "repo", repoID, "error", err)
		}
	}

	indexValid := false
	if index, err := contract.LoadRepoIndex(e.Project.Paths.RepoIndex(repoID)); err == nil {
		indexValid = true
		snapshot.LastScannedHeadSHA = index.HeadSHA
		if index.ScannedAt != nil {
			t := index.ScannedAt.UTC()
			snapshot.LastScanTime = &t
		}
	}

	scanValid := false
	if scan, err := contract.LoadRepoScan(e.Project.Paths.RepoScan(repoID)); err == nil {
		scanValid = true
		if scan.ScannedAt != nil {
			t := scan.ScannedAt.UTC()
			snapshot.LastScanTime = &t
		}
	}

	mergeTime, err := e.Events.LatestMergeEventTime(repoID)
	if err != nil {
		return nil, err
	}
	snapshot.LastMergeEventTime = mergeTime

	coverageComplete := indexValid && scanValid
	if !coverageComplete {
		snapshot.Reasons = append(snapshot.Reasons, types.ReasonCoverageIncomplete)
	}
	if snapshot.RepoHeadSHA != "" && snapshot.LastScannedHeadSHA != "" &&
		snapshot.RepoHeadSHA != snapshot.LastScannedHeadSHA {
		snapshot.Reasons = append(snapshot.Reasons, types.ReasonHeadSHAMismatch)
	}
	mergeAfterScan := mergeTime != nil && snapshot.LastScanTime != nil &&
		mergeTime.After(*snapshot.LastScanTime)
	if mergeAfterScan {
		snapshot.Reasons = append(snapshot.Reasons, types.ReasonMergeEventAfterScan)
	}
	sort.Strings(snapshot.Reasons)

	snapshot.Stale = len(snapshot.Reasons) > 0

	scanAgeExceeded := snapshot.LastScanTime != nil &&
		now.Sub(*snapshot.LastScanTime) > e.Project.HardStaleThreshold
	snapshot.HardStale = snapshot.Stale && (mergeAfterScan || scanAgeExceeded)

	if snapshot.Stale {
		log.Infow("repo stale", "repo", repoID, "reasons", snapshot.Reasons, "hard", snapshot.HardStale)
	}
	return snapshot, nil
}

// EvaluateScope computes staleness for "system" (aggregated over all
// active repos) or delegates to EvaluateRepo for "repo:<id>".
func (e *Engine) EvaluateScope(ctx context.Context, scope string) (*types.StalenessSnapshot, error) {
	if repoID, isRepo := types.RepoIDFromScope(scope); isRepo {
		return e.EvaluateRepo(ctx, repoID)
	}

	aggregate := &types.StalenessSnapshot{
		Scope:          types.ScopeSystem,
		Reasons:        []string{},
		StaleRepos:     []string{},
		HardStaleRepos: []string{},
	}
	reasonSet := map[string]struct{}{}

	for _, repoID := range e.Project.Registry.ActiveRepoIDs() {
		repo, err := e.EvaluateRepo(ctx, repoID)
		if err != nil {
			return nil, err
		}
		if repo.Stale {
			aggregate.Stale = true
			aggregate.StaleRepos = append(aggregate.StaleRepos, repoID)
		}
		if repo.HardStale {
			aggregate.HardStale = true
			aggregate.HardStaleRepos = append(aggregate.HardStaleRepos, repoID)
		}
		for _, reason := range repo.Reasons {
			reasonSet[reason] = struct{}{}
		}
	}

	for reason := range reasonSet {
		aggregate.Reasons = append(aggregate.Reasons, reason)
	}
	sort.Strings(aggregate.Reasons)
	sort.Strings(aggregate.StaleRepos)
	sort.Strings(aggregate.HardStaleRepos)
	return aggregate, nil
}

// CoverageComplete reports whether every active repo has a valid index
// and scan artifact.
func (e *Engine) CoverageComplete() bool {
	for _, repoID := range e.Project.Registry.ActiveRepoIDs() {
		if _, err := contract.LoadRepoIndex(e.Project.Paths.RepoIndex(repoID)); err != nil {
			return false
		}
		if _, err := contract.LoadRepoScan(e.Project.Paths.RepoScan(repoID)); err != nil {
			return false
		}
	}
	return true
}
