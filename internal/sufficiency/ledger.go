// Package sufficiency maintains the versioned, append-history record of
// whether knowledge at a scope is sufficient for downstream delivery.
// Approvals are gated on staleness, scan coverage, and open decision
// packets; every write lands in history plus a per-scope LATEST index.
package sufficiency

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lanea/internal/config"
	"lanea/internal/decision"
	"lanea/internal/fsatomic"
	"lanea/internal/logging"
	"lanea/internal/staleness"
	"lanea/internal/types"
)

// Ledger is the sufficiency store for one project.
type Ledger struct {
	Project   *config.Project
	Engine    *staleness.Engine
	Decisions *decision.Store
	Now       func() time.Time
}

// New builds a ledger with the default engine and decision store.
func New(project *config.Project) *Ledger {
	return &Ledger{
		Project:   project,
		Engine:    staleness.New(project),
		Decisions: decision.NewStore(project.Paths),
		Now:       time.Now,
	}
}

// currentFile is the persisted SUFFICIENCY.json: the newest record per
// scope, keyed by scope.
type currentFile struct {
	Scopes map[string]types.SufficiencyRecord `json:"scopes"`
}

// latestIndex is decisions/sufficiency/LATEST.json.
type latestIndex struct {
	Scopes map[string]latestPointer `json:"scopes"`
}

type latestPointer struct {
	Scope            string    `json:"scope"`
	KnowledgeVersion string    `json:"knowledge_version"`
	Status           string    `json:"status"`
	HistoryPath      string    `json:"history_path"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Propose computes the current gating facts and records the scope as
// proposed_sufficient. Proposals never gate; blockers document what would
// block an approval.
func (l *Ledger) Propose(ctx context.Context, scope, version string) (types.Result, error) {
	snapshot, err := l.Engine.EvaluateScope(ctx, scope)
	if err != nil {
		return types.Result{}, err
	}
	blockers, err := l.computeBlockers(snapshot)
	if err != nil {
		return types.Result{}, err
	}

	record := types.SufficiencyRecord{
		Scope:            scope,
		KnowledgeVersion: version,
		Status:           types.SufficiencyProposed,
		EvidenceBasis:    []string{},
		Blockers:         blockers,
		StaleStatus:      snapshot.StaleStatus(),
	}
	if err := l.write(record); err != nil {
		return types.Result{}, err
	}
	return types.Ok("proposed %s at %s with %d blockers", scope, version, len(blockers)), nil
}

// Approve gates and, when clean, marks (scope, version) sufficient.
func (l *Ledger) Approve(ctx context.Context, scope, version, decidedBy string) (types.Result, error) {
	snapshot, err := l.Engine.EvaluateScope(ctx, scope)
	if err != nil {
		return types.Result{}, err
	}
	if snapshot.HardStale {
		reason := "knowledge is hard-stale"
		if len(snapshot.Reasons) > 0 {
			reason = fmt.Sprintf("knowledge is hard-stale (%s)", snapshot.Reasons[0])
		}
		return types.Refuse(types.ReasonGateRefused, "%s", reason), nil
	}
	if !l.Engine.CoverageComplete() {
		return types.Refuse(types.ReasonGateRefused, "scan coverage is incomplete"), nil
	}
	openIDs, err := l.Decisions.OpenIDs(scope)
	if err != nil {
		return types.Result{}, err
	}
	if len(openIDs) > 0 {
		return types.Refuse(types.ReasonGateRefused,
			"open decision packets for %s: %v", scope, openIDs), nil
	}

	now := l.Now().UTC()
	record := types.SufficiencyRecord{
		Scope:            scope,
		KnowledgeVersion: version,
		Status:           types.SufficiencySufficient,
		DecidedBy:        decidedBy,
		DecidedAt:        &now,
		EvidenceBasis:    []string{},
		Blockers:         []types.SufficiencyBlocker{},
		StaleStatus:      snapshot.StaleStatus(),
	}
	if err := l.write(record); err != nil {
		return types.Result{}, err
	}
	logging.Get(logging.CategorySufficiency).Infow("sufficiency approved",
		"scope", scope, "version", version, "by", decidedBy)
	return types.Ok("%s is sufficient at %s", scope, version), nil
}

// Reject marks (scope, version) insufficient with a rejected_by_human
// blocker carrying the reviewer's notes.
func (l *Ledger) Reject(ctx context.Context, scope, version, decidedBy, notes string) (types.Result, error) {
	snapshot, err := l.Engine.EvaluateScope(ctx, scope)
	if err != nil {
		return types.Result{}, err
	}

	now := l.Now().UTC()
	record := types.SufficiencyRecord{
		Scope:            scope,
		KnowledgeVersion: version,
		Status:           types.SufficiencyInsufficient,
		DecidedBy:        decidedBy,
		DecidedAt:        &now,
		EvidenceBasis:    []string{},
		Blockers: []types.SufficiencyBlocker{{
			ID:      "rejected_by_human",
			Title:   "rejected by " + decidedBy,
			Details: "human notes: " + notes,
		}},
		StaleStatus: snapshot.StaleStatus(),
	}
	if err := l.write(record); err != nil {
		return types.Result{}, err
	}
	return types.Ok("%s marked insufficient at %s", scope, version), nil
}

// Current returns the newest record for scope, or nil.
func (l *Ledger) Current(scope string) (*types.SufficiencyRecord, error) {
	current, err := l.readCurrent()
	if err != nil {
		return nil, err
	}
	record, found := current.Scopes[scope]
	if !found {
		return nil, nil
	}
	return &record, nil
}

// IsSufficient reports whether (scope, version) is currently sufficient.
// Sufficiency never carries across versions.
func (l *Ledger) IsSufficient(scope, version string) (bool, error) {
	record, err := l.Current(scope)
	if err != nil {
		return false, err
	}
	return record != nil &&
		record.Status == types.SufficiencySufficient &&
		record.KnowledgeVersion == version, nil
}

func (l *Ledger) computeBlockers(snapshot *types.StalenessSnapshot) ([]types.SufficiencyBlocker, error) {
	blockers := []types.SufficiencyBlocker{}
	if snapshot.HardStale {
		blockers = append(blockers, types.SufficiencyBlocker{
			ID:    "hard_stale",
			Title: "knowledge is hard-stale for " + snapshot.Scope,
		})
	}
	if !l.Engine.CoverageComplete() {
		blockers = append(blockers, types.SufficiencyBlocker{
			ID:    "coverage_incomplete",
			Title: "scan coverage is incomplete",
		})
	}
	openIDs, err := l.Decisions.OpenIDs(snapshot.Scope)
	if err != nil {
		return nil, err
	}
	if len(openIDs) > 0 {
		blockers = append(blockers, types.SufficiencyBlocker{
			ID:      "open_decisions",
			Title:   fmt.Sprintf("%d open decision packets", len(openIDs)),
			Details: fmt.Sprintf("%v", openIDs),
		})
	}
	return blockers, nil
}

// write appends an immutable history entry, refreshes SUFFICIENCY.json,
// and repoints the per-scope LATEST index.
func (l *Ledger) write(record types.SufficiencyRecord) error {
	now := l.Now().UTC()
	stamp := now.Format("20060102_150405.000000000")
	historyName := fmt.Sprintf("SUFF-%s-%s-%s.json", types.ScopeSlug(record.Scope), record.KnowledgeVersion, stamp)
	historyPath := filepath.Join(l.Project.Paths.SufficiencyHistoryDir(), historyName)

	if err := fsatomic.WriteJSON(historyPath, record); err != nil {
		return err
	}
	if err := fsatomic.WriteFile(config.MarkdownSibling(historyPath), []byte(renderMarkdown(&record))); err != nil {
		return err
	}

	current, err := l.readCurrent()
	if err != nil {
		return err
	}
	current.Scopes[record.Scope] = record
	if err := fsatomic.WriteJSON(l.Project.Paths.SufficiencyCurrent(), current); err != nil {
		return err
	}

	index, err := l.readLatest()
	if err != nil {
		return err
	}
	index.Scopes[record.Scope] = latestPointer{
		Scope:            record.Scope,
		KnowledgeVersion: record.KnowledgeVersion,
		Status:           record.Status,
		HistoryPath:      historyPath,
		UpdatedAt:        now,
	}
	return fsatomic.WriteJSON(l.Project.Paths.SufficiencyLatest(), index)
}

func (l *Ledger) readCurrent() (*currentFile, error) {
	current := &currentFile{Scopes: map[string]types.SufficiencyRecord{}}
	data, err := os.ReadFile(l.Project.Paths.SufficiencyCurrent())
	if err != nil {
		if os.IsNotExist(err) {
			return current, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, current); err != nil {
		return nil, fmt.Errorf("invalid_sufficiency: %s: %w", l.Project.Paths.SufficiencyCurrent(), err)
	}
	if current.Scopes == nil {
		current.Scopes = map[string]types.SufficiencyRecord{}
	}
	return current, nil
}

func (l *Ledger) readLatest() (*latestIndex, error) {
	index := &latestIndex{Scopes: map[string]latestPointer{}}
	data, err := os.ReadFile(l.Project.Paths.SufficiencyLatest())
	if err != nil {
		if os.IsNotExist(err) {
			return index, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, index); err != nil {
		return nil, fmt.Errorf("invalid_sufficiency_latest: %w", err)
	}
	if index.Scopes == nil {
		index.Scopes = map[string]latestPointer{}
	}
	return index, nil
}

func renderMarkdown(r *types.SufficiencyRecord) string {
	md := fmt.Sprintf("# Sufficiency: %s @ %s\n\n- Status: **%s**\n- Stale: %s\n",
		r.Scope, r.KnowledgeVersion, r.Status, r.StaleStatus)
	if r.DecidedBy != "" {
		md += fmt.Sprintf("- Decided by: %s\n", r.DecidedBy)
	}
	if len(r.Blockers) > 0 {
		md += "\n## Blockers\n\n"
		for _, b := range r.Blockers {
			md += fmt.Sprintf("- **%s**: %s %s\n", b.ID, b.Title, b.Details)
		}
	}
	return md
}
