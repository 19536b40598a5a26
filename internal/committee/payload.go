package committee

import (
	"encoding/json"
	"fmt"

	"lanea/internal/types"
)

// answeredDecision is the resolved-context slice of a packet that feeds
// back into committee payloads.
type answeredDecision struct {
	DecisionID string            `json:"decision_id"`
	Scope      string            `json:"scope"`
	Trigger    string            `json:"trigger"`
	Answers    map[string]string `json:"answers"`
}

// payload is the user message handed to the oracle. Field order is fixed
// so identical inputs always serialize identically.
type payload struct {
	Scope             string                   `json:"scope"`
	Kickoff           string                   `json:"kickoff,omitempty"`
	AnsweredDecisions []answeredDecision       `json:"answered_decisions"`
	RepoIndex         *types.RepoIndex         `json:"repo_index,omitempty"`
	RepoStatuses      map[string]string        `json:"repo_statuses,omitempty"`
	Evidence          []types.EvidenceItem     `json:"evidence"`
	Staleness         *types.StalenessSnapshot `json:"staleness,omitempty"`
	ArchitectOutput   *types.CommitteeOutput   `json:"architect_output,omitempty"`
}

func (p *payload) render() (string, error) {
	if p.AnsweredDecisions == nil {
		p.AnsweredDecisions = []answeredDecision{}
	}
	if p.Evidence == nil {
		p.Evidence = []types.EvidenceItem{}
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render committee payload: %w", err)
	}
	return string(data), nil
}

func toAnswered(packets []*types.DecisionPacket) []answeredDecision {
	out := make([]answeredDecision, 0, len(packets))
	for _, p := range packets {
		out = append(out, answeredDecision{
			DecisionID: p.DecisionID,
			Scope:      p.Scope,
			Trigger:    p.Trigger,
			Answers:    p.Answers,
		})
	}
	return out
}
