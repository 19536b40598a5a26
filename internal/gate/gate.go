// Package gate is the read-only guard downstream exporters consult before
// shipping seeds or gap reports. It never mutates state except for the
// optional override-ledger append.
package gate

import (
	"context"
	"fmt"
	"time"

	"lanea/internal/config"
	"lanea/internal/events"
	"lanea/internal/knowledge"
	"lanea/internal/logging"
	"lanea/internal/staleness"
	"lanea/internal/sufficiency"
	"lanea/internal/types"
)

// Gate wires the staleness engine, sufficiency ledger, and version
// tracker into the delivery guard.
type Gate struct {
	Project  *config.Project
	Engine   *staleness.Engine
	Ledger   *sufficiency.Ledger
	Versions *knowledge.Versions
	Events   *events.Store
	Now      func() time.Time
}

// New builds a gate over the project.
func New(project *config.Project) *Gate {
	return &Gate{
		Project:  project,
		Engine:   staleness.New(project),
		Ledger:   sufficiency.New(project),
		Versions: knowledge.NewVersions(project.Paths),
		Events: &events.Store{
			SegmentsDir: project.Paths.EventSegmentsDir(),
			LedgerPath:  project.Paths.Ledger(),
		},
		Now: time.Now,
	}
}

// Verdict is the gate's structured answer.
type Verdict struct {
	OK       bool               `json:"ok"`
	Via      string             `json:"via,omitempty"` // scope that satisfied the gate
	Override *types.LedgerEvent `json:"override,omitempty"`
	Message  string             `json:"message,omitempty"`
}

// RequireConfirmedSufficiency decides whether delivery may proceed for
// scope at the current knowledge version. A repo scope may ride on a
// system-level approval; forceOverride is audited to the lane ledger.
func (g *Gate) RequireConfirmedSufficiency(ctx context.Context, scope, actor string, forceOverride bool) (Verdict, error) {
	log := logging.Get(logging.CategoryGate)

	snapshot, err := g.Engine.EvaluateScope(ctx, scope)
	if err != nil {
		return Verdict{}, err
	}
	if snapshot.HardStale {
		reason := "hard-stale"
		if len(snapshot.Reasons) > 0 {
			reason = snapshot.Reasons[0]
		}
		return Verdict{OK: false, Message: fmt.Sprintf(
			"delivery blocked: %s is hard-stale (%s)", scope, reason)}, nil
	}

	version := g.Versions.Current()

	if ok, err := g.Ledger.IsSufficient(scope, version); err != nil {
		return Verdict{}, err
	} else if ok {
		return Verdict{OK: true, Via: scope}, nil
	}

	if scope != types.ScopeSystem {
		if ok, err := g.Ledger.IsSufficient(types.ScopeSystem, version); err != nil {
			return Verdict{}, err
		} else if ok {
			return Verdict{OK: true, Via: types.ScopeSystem}, nil
		}
	}

	if forceOverride {
		event, err := g.Events.AppendLedger("sufficiency_override", scope, actor,
			"delivery forced without confirmed sufficiency", g.Now())
		if err != nil {
			return Verdict{}, err
		}
		log.Warnw("delivery override", "scope", scope, "actor", actor, "event", event.EventID)
		return Verdict{OK: true, Override: event}, nil
	}

	return Verdict{OK: false, Message: fmt.Sprintf(
		"delivery blocked: %s has no confirmed sufficiency at %s", scope, version)}, nil
}
