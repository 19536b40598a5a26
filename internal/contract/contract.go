// Package contract holds the per-kind validators every persisted artifact
// passes through on read. Validators are pure: the same bytes always yield
// the same report. A rejected file is absent-with-error to its reader,
// never an empty value.
package contract

import (
	"fmt"
	"os"
)

// Artifact kinds.
const (
	KindEvidenceRef       = "evidence_ref"
	KindRepoIndex         = "repo_index"
	KindRepoScan          = "repo_scan"
	KindCommitteeOutput   = "committee_output"
	KindCommitteeStatus   = "committee_status"
	KindIntegrationStatus = "integration_status"
	KindSufficiencyRecord = "sufficiency_record"
	KindPhaseState        = "phase_state"
	KindMeetingSession    = "meeting_session"
	KindDecisionPacket    = "decision_packet"
	KindChangeRequest     = "change_request"
	KindWorkStatus        = "work_status"
)

// Report is a validator's verdict. Normalized carries the canonical value
// when OK; normalization is limited to trimming, canonical-key sorting,
// and deduping.
type Report struct {
	OK         bool
	Errors     []string
	Normalized interface{}
}

func fail(format string, args ...interface{}) Report {
	return Report{Errors: []string{fmt.Sprintf(format, args...)}}
}

// ValidateFunc checks one artifact kind.
type ValidateFunc func(raw []byte) Report

var registry = map[string]ValidateFunc{}

func register(kind string, fn ValidateFunc) {
	registry[kind] = fn
}

// Validate dispatches raw bytes to the validator registered for kind.
func Validate(kind string, raw []byte) Report {
	fn, found := registry[kind]
	if !found {
		return fail("no validator registered for kind %q", kind)
	}
	return fn(raw)
}

// ReadValidated reads path and runs it through the kind's validator.
// A missing file returns (nil report, os.ErrNotExist-wrapped error); a
// rejected file returns the report with OK=false.
func ReadValidated(kind, path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("missing_%s: %s: %w", kind, path, err)
	}
	return Validate(kind, data), nil
}

// Exists reports whether path is a readable regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
