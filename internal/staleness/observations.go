package staleness

import (
	"encoding/json"
	"path/filepath"
	"time"

	"lanea/internal/fsatomic"
	"lanea/internal/types"
)

// Observation is one appended entry in a scope's rolling staleness record.
// The consecutive counter is recorded for a future escalation policy; no
// gating logic reads it.
type Observation struct {
	Scope            string    `json:"scope"`
	ObservedAt       time.Time `json:"observed_at"`
	Stale            bool      `json:"stale"`
	HardStale        bool      `json:"hard_stale"`
	ConsecutiveStale int       `json:"consecutive_stale"`
	HardTransition   bool      `json:"hard_transition"`
}

func (e *Engine) observationPath(scope string) string {
	return filepath.Join(e.Project.Paths.StalenessObservationsDir(), types.ScopeSlug(scope)+".jsonl")
}

// Observe appends a staleness observation for the snapshot's scope and
// returns it. Consecutive-stale counts reset on a fresh observation.
func (e *Engine) Observe(snapshot *types.StalenessSnapshot) (*Observation, error) {
	path := e.observationPath(snapshot.Scope)

	last, err := lastObservation(path)
	if err != nil {
		return nil, err
	}

	obs := &Observation{
		Scope:      snapshot.Scope,
		ObservedAt: e.Now().UTC(),
		Stale:      snapshot.Stale,
		HardStale:  snapshot.HardStale,
	}
	if snapshot.Stale {
		obs.ConsecutiveStale = 1
		if last != nil {
			obs.ConsecutiveStale = last.ConsecutiveStale + 1
		}
	}
	obs.HardTransition = snapshot.HardStale && (last == nil || !last.HardStale)

	if err := fsatomic.AppendJSONL(path, obs); err != nil {
		return nil, err
	}
	return obs, nil
}

// LastObservation returns the newest recorded observation for scope, or
// nil when none exists. Producers consult this to decide whether to
// prepend the soft-stale banner to human-facing Markdown.
func (e *Engine) LastObservation(scope string) (*Observation, error) {
	return lastObservation(e.observationPath(scope))
}

func lastObservation(path string) (*Observation, error) {
	var last *Observation
	err := fsatomic.ReadJSONL(path, func(line []byte) error {
		var obs Observation
		if err := json.Unmarshal(line, &obs); err != nil {
			return nil
		}
		last = &obs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return last, nil
}
