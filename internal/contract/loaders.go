package contract

import (
	"fmt"

	"lanea/internal/types"
)

// Typed loaders: read-validate helpers so callers never touch raw bytes.
// A validation failure surfaces the first validator error verbatim.

func loadErr(kind, path string, rep Report) error {
	return fmt.Errorf("invalid_%s: %s: %s", kind, path, rep.Errors[0])
}

// LoadRepoIndex reads and validates a repo_index.json.
func LoadRepoIndex(path string) (*types.RepoIndex, error) {
	rep, err := ReadValidated(KindRepoIndex, path)
	if err != nil {
		return nil, err
	}
	if !rep.OK {
		return nil, loadErr(KindRepoIndex, path, rep)
	}
	return rep.Normalized.(*types.RepoIndex), nil
}

// LoadRepoScan reads and validates a scan.json.
func LoadRepoScan(path string) (*types.RepoScan, error) {
	rep, err := ReadValidated(KindRepoScan, path)
	if err != nil {
		return nil, err
	}
	if !rep.OK {
		return nil, loadErr(KindRepoScan, path, rep)
	}
	return rep.Normalized.(*types.RepoScan), nil
}

// LoadCommitteeOutput reads and validates a committee role artifact.
func LoadCommitteeOutput(path string) (*types.CommitteeOutput, error) {
	rep, err := ReadValidated(KindCommitteeOutput, path)
	if err != nil {
		return nil, err
	}
	if !rep.OK {
		return nil, loadErr(KindCommitteeOutput, path, rep)
	}
	return rep.Normalized.(*types.CommitteeOutput), nil
}

// LoadCommitteeStatus reads and validates a committee_status.json.
func LoadCommitteeStatus(path string) (*types.CommitteeStatus, error) {
	rep, err := ReadValidated(KindCommitteeStatus, path)
	if err != nil {
		return nil, err
	}
	if !rep.OK {
		return nil, loadErr(KindCommitteeStatus, path, rep)
	}
	return rep.Normalized.(*types.CommitteeStatus), nil
}

// LoadIntegrationStatus reads and validates an integration_status.json.
func LoadIntegrationStatus(path string) (*types.IntegrationStatus, error) {
	rep, err := ReadValidated(KindIntegrationStatus, path)
	if err != nil {
		return nil, err
	}
	if !rep.OK {
		return nil, loadErr(KindIntegrationStatus, path, rep)
	}
	return rep.Normalized.(*types.IntegrationStatus), nil
}

// LoadSufficiencyRecord reads and validates a sufficiency record.
func LoadSufficiencyRecord(path string) (*types.SufficiencyRecord, error) {
	rep, err := ReadValidated(KindSufficiencyRecord, path)
	if err != nil {
		return nil, err
	}
	if !rep.OK {
		return nil, loadErr(KindSufficiencyRecord, path, rep)
	}
	return rep.Normalized.(*types.SufficiencyRecord), nil
}

// LoadPhaseState reads and validates PHASE.json.
func LoadPhaseState(path string) (*types.PhaseState, error) {
	rep, err := ReadValidated(KindPhaseState, path)
	if err != nil {
		return nil, err
	}
	if !rep.OK {
		return nil, loadErr(KindPhaseState, path, rep)
	}
	return rep.Normalized.(*types.PhaseState), nil
}

// LoadMeetingSession reads and validates a MEETING.json.
func LoadMeetingSession(path string) (*types.MeetingSession, error) {
	rep, err := ReadValidated(KindMeetingSession, path)
	if err != nil {
		return nil, err
	}
	if !rep.OK {
		return nil, loadErr(KindMeetingSession, path, rep)
	}
	return rep.Normalized.(*types.MeetingSession), nil
}

// LoadDecisionPacket reads and validates a decision packet JSON.
func LoadDecisionPacket(path string) (*types.DecisionPacket, error) {
	rep, err := ReadValidated(KindDecisionPacket, path)
	if err != nil {
		return nil, err
	}
	if !rep.OK {
		return nil, loadErr(KindDecisionPacket, path, rep)
	}
	return rep.Normalized.(*types.DecisionPacket), nil
}

// LoadChangeRequest reads and validates a change request JSON.
func LoadChangeRequest(path string) (*types.ChangeRequest, error) {
	rep, err := ReadValidated(KindChangeRequest, path)
	if err != nil {
		return nil, err
	}
	if !rep.OK {
		return nil, loadErr(KindChangeRequest, path, rep)
	}
	return rep.Normalized.(*types.ChangeRequest), nil
}

// LoadWorkStatus reads and validates a work status snapshot.
func LoadWorkStatus(path string) (*types.WorkStatus, error) {
	rep, err := ReadValidated(KindWorkStatus, path)
	if err != nil {
		return nil, err
	}
	if !rep.OK {
		return nil, loadErr(KindWorkStatus, path, rep)
	}
	return rep.Normalized.(*types.WorkStatus), nil
}
