// Package phase drives the reverse-engineering -> forward-planning
// lifecycle. Forward kickoff is gated on reverse closure, scan coverage,
// confirmed sufficiency and the human v1 confirmation; refusals leave a
// FORWARD_BLOCKED artifact enumerating the failing reasons.
package phase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"lanea/internal/config"
	"lanea/internal/contract"
	"lanea/internal/fsatomic"
	"lanea/internal/knowledge"
	"lanea/internal/logging"
	"lanea/internal/staleness"
	"lanea/internal/sufficiency"
	"lanea/internal/types"
)

// Machine owns PHASE.json and the forward gate.
type Machine struct {
	Project  *config.Project
	Engine   *staleness.Engine
	Ledger   *sufficiency.Ledger
	Versions *knowledge.Versions
	Now      func() time.Time
}

// New builds a phase machine over the project.
func New(project *config.Project) *Machine {
	return &Machine{
		Project:  project,
		Engine:   staleness.New(project),
		Ledger:   sufficiency.New(project),
		Versions: knowledge.NewVersions(project.Paths),
		Now:      time.Now,
	}
}

// ForwardBlocked is the artifact written on a refused forward kickoff.
type ForwardBlocked struct {
	Reasons   []string  `json:"reasons"`
	CheckedAt time.Time `json:"checked_at"`
}

// Load reads PHASE.json, defaulting to an untouched reverse-phase state.
func (m *Machine) Load() (*types.PhaseState, error) {
	path := m.Project.Paths.PhaseState()
	if !contract.Exists(path) {
		return &types.PhaseState{
			CurrentPhase: types.PhaseReverse,
			Reverse:      types.PhaseInfo{Status: types.PhaseOpen},
			Forward:      types.PhaseInfo{Status: types.PhaseOpen},
			Prereqs:      types.PhasePrereqs{Sufficiency: types.SufficiencyInsufficient},
		}, nil
	}
	return contract.LoadPhaseState(path)
}

func (m *Machine) save(state *types.PhaseState) error {
	return fsatomic.WriteJSON(m.Project.Paths.PhaseState(), state)
}

// KickoffReverse opens the reverse phase; idempotent when already in
// progress.
func (m *Machine) KickoffReverse(sessionID string) (types.Result, error) {
	state, err := m.Load()
	if err != nil {
		return types.Result{}, err
	}
	if state.Reverse.Status == types.PhaseInProgress {
		return types.Ok("reverse phase already in progress"), nil
	}
	if state.Reverse.Status == types.PhaseClosed {
		return types.Refuse(types.ReasonGateRefused, "reverse phase is closed"), nil
	}

	now := m.Now().UTC()
	state.CurrentPhase = types.PhaseReverse
	state.Reverse.Status = types.PhaseInProgress
	state.Reverse.StartedAt = &now
	state.Reverse.SessionID = sessionID
	if err := m.save(state); err != nil {
		return types.Result{}, err
	}
	logging.Get(logging.CategoryPhase).Infow("reverse phase started", "session", sessionID)
	return types.Ok("reverse phase started"), nil
}

// KickoffForward refuses unless every prerequisite holds; on refusal the
// sorted failing reasons land in FORWARD_BLOCKED.json.
func (m *Machine) KickoffForward(ctx context.Context, sessionID string) (types.Result, []string, error) {
	state, err := m.Load()
	if err != nil {
		return types.Result{}, nil, err
	}
	if err := m.refreshPrereqs(ctx, state); err != nil {
		return types.Result{}, nil, err
	}

	var reasons []string
	if state.Reverse.Status != types.PhaseClosed {
		reasons = append(reasons, "reverse_not_closed")
	}
	if !state.Prereqs.ScanComplete {
		reasons = append(reasons, "scan_incomplete")
	}
	if state.Prereqs.Sufficiency != types.SufficiencySufficient {
		reasons = append(reasons, "sufficiency_not_confirmed")
	}
	if !state.Prereqs.HumanConfirmedV1 {
		reasons = append(reasons, "v1_not_confirmed")
	}
	sort.Strings(reasons)

	if len(reasons) > 0 {
		blocked := ForwardBlocked{Reasons: reasons, CheckedAt: m.Now().UTC()}
		if err := fsatomic.WriteJSON(m.Project.Paths.ForwardBlocked(), blocked); err != nil {
			return types.Result{}, nil, err
		}
		if err := m.save(state); err != nil {
			return types.Result{}, nil, err
		}
		return types.Refuse(types.ReasonGateRefused,
			"forward kickoff blocked: %v", reasons), reasons, nil
	}

	now := m.Now().UTC()
	state.CurrentPhase = types.PhaseForward
	state.Forward.Status = types.PhaseInProgress
	state.Forward.StartedAt = &now
	state.Forward.SessionID = sessionID
	if err := m.save(state); err != nil {
		return types.Result{}, nil, err
	}
	logging.Get(logging.CategoryPhase).Infow("forward phase started", "session", sessionID)
	return types.Ok("forward phase started"), nil, nil
}

// ConfirmV1 records the human's v1 confirmation; only valid once the
// current-version sufficiency is confirmed.
func (m *Machine) ConfirmV1(ctx context.Context, by, notes string) (types.Result, error) {
	state, err := m.Load()
	if err != nil {
		return types.Result{}, err
	}
	if err := m.refreshPrereqs(ctx, state); err != nil {
		return types.Result{}, err
	}
	if state.Prereqs.Sufficiency != types.SufficiencySufficient {
		return types.Refuse(types.ReasonGateRefused,
			"cannot confirm v1: sufficiency is %q", state.Prereqs.Sufficiency), nil
	}

	now := m.Now().UTC()
	state.Prereqs.HumanConfirmedV1 = true
	state.Prereqs.HumanConfirmedAt = &now
	state.Prereqs.HumanConfirmedBy = by
	state.Prereqs.HumanNotes = notes
	if err := m.save(state); err != nil {
		return types.Result{}, err
	}
	return types.Ok("v1 confirmed by %s", by), nil
}

// Close marks the named phase closed.
func (m *Machine) Close(phaseName, by string) (types.Result, error) {
	state, err := m.Load()
	if err != nil {
		return types.Result{}, err
	}

	now := m.Now().UTC()
	switch phaseName {
	case types.PhaseReverse:
		state.Reverse.Status = types.PhaseClosed
		state.Reverse.ClosedAt = &now
		state.Reverse.ClosedBy = by
	case types.PhaseForward:
		state.Forward.Status = types.PhaseClosed
		state.Forward.ClosedAt = &now
		state.Forward.ClosedBy = by
	default:
		return types.Result{}, fmt.Errorf("unknown phase %q", phaseName)
	}
	if err := m.save(state); err != nil {
		return types.Result{}, err
	}
	return types.Ok("%s phase closed by %s", phaseName, by), nil
}

// RefreshPrereqs recomputes the derived prereqs and persists them without
// touching human confirmations.
func (m *Machine) RefreshPrereqs(ctx context.Context) (*types.PhaseState, error) {
	state, err := m.Load()
	if err != nil {
		return nil, err
	}
	if err := m.refreshPrereqs(ctx, state); err != nil {
		return nil, err
	}
	if err := m.save(state); err != nil {
		return nil, err
	}
	return state, nil
}

func (m *Machine) refreshPrereqs(_ context.Context, state *types.PhaseState) error {
	state.Prereqs.ScanComplete = m.Engine.CoverageComplete()

	state.Prereqs.Sufficiency = types.SufficiencyInsufficient
	version := m.Versions.Current()
	record, err := m.Ledger.Current(types.ScopeSystem)
	if err != nil {
		return err
	}
	if record != nil && record.KnowledgeVersion == version {
		state.Prereqs.Sufficiency = record.Status
	}
	return nil
}
