// Package types provides shared type definitions used across lanea packages.
// This package exists to break import cycles between the staleness engine,
// committee orchestrator, sufficiency ledger and meeting machinery. Types
// here are plain values with no behavior beyond canonical formatting.
package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ScopeSystem is the cross-repository scope.
const ScopeSystem = "system"

// RepoScope formats a per-repository scope string.
func RepoScope(repoID string) string {
	return "repo:" + repoID
}

// RepoIDFromScope extracts the repo id from a "repo:<id>" scope.
// Returns false for the system scope or a malformed scope.
func RepoIDFromScope(scope string) (string, bool) {
	if !strings.HasPrefix(scope, "repo:") {
		return "", false
	}
	id := strings.TrimPrefix(scope, "repo:")
	if id == "" {
		return "", false
	}
	return id, true
}

// ScopeSlug converts a scope into a filesystem-safe fragment.
func ScopeSlug(scope string) string {
	return strings.NewReplacer(":", "-", "/", "-").Replace(scope)
}

// Result is the structured outcome returned across the core boundary.
// Expected failure modes (stale, gate refusal, invalid output) are values,
// never errors.
type Result struct {
	OK         bool   `json:"ok"`
	Message    string `json:"message,omitempty"`
	ReasonCode string `json:"reason_code,omitempty"`
}

// Reason codes for expected failures.
const (
	ReasonStaleBlocked  = "STALE_BLOCKED"
	ReasonMissingInput  = "MISSING_INPUT"
	ReasonInvalidInput  = "INVALID_INPUT"
	ReasonOutputInvalid = "OUTPUT_INVALID"
	ReasonGateRefused   = "GATE_REFUSED"
)

// Refuse builds a refusal result with a reason code.
func Refuse(code, format string, args ...interface{}) Result {
	return Result{OK: false, ReasonCode: code, Message: fmt.Sprintf(format, args...)}
}

// Ok builds a success result.
func Ok(format string, args ...interface{}) Result {
	return Result{OK: true, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// REPOSITORY REGISTRY
// =============================================================================

// RepoCommands describes how to drive a registered repository's toolchain.
type RepoCommands struct {
	Cwd            string `json:"cwd,omitempty"`
	PackageManager string `json:"package_manager,omitempty"`
	Install        string `json:"install,omitempty"`
	Lint           string `json:"lint,omitempty"`
	Test           string `json:"test,omitempty"`
	Build          string `json:"build,omitempty"`
}

// RepoEntry is one repository in the registry.
type RepoEntry struct {
	Path         string       `json:"path"`
	ActiveBranch string       `json:"active_branch,omitempty"`
	TeamID       string       `json:"team_id,omitempty"`
	Kind         string       `json:"kind,omitempty"`
	Status       string       `json:"status"` // active | retired
	Commands     RepoCommands `json:"commands,omitempty"`
}

// RepoRegistry maps repo ids to entries, rooted at BaseDir.
type RepoRegistry struct {
	BaseDir string               `json:"base_dir"`
	Repos   map[string]RepoEntry `json:"repos"`
}

// ActiveRepoIDs returns the lexicographically sorted ids of active repos.
func (r *RepoRegistry) ActiveRepoIDs() []string {
	ids := make([]string, 0, len(r.Repos))
	for id, entry := range r.Repos {
		if entry.Status == "active" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// =============================================================================
// EVIDENCE
// =============================================================================

// EvidenceRef is a commit-pinned file-range pointer, the unit of ground
// truth for committee claims. Produced by the scanner; read-only here.
type EvidenceRef struct {
	EvidenceID string `json:"evidence_id"`
	RepoID     string `json:"repo_id"`
	CommitSHA  string `json:"commit_sha"`
	FilePath   string `json:"file_path"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
}

// EvidenceItem is a resolved evidence slice with its excerpt text.
type EvidenceItem struct {
	EvidenceID string `json:"evidence_id"`
	FilePath   string `json:"file_path"`
	CommitSHA  string `json:"commit_sha"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	Excerpt    string `json:"excerpt"`
}

// RepoIndex is the scanner's per-repo index; head_sha and scanned_at are
// the authoritative "last scanned" reference.
type RepoIndex struct {
	ScannedAt             *time.Time          `json:"scanned_at,omitempty"`
	HeadSHA               string              `json:"head_sha,omitempty"`
	CrossRepoDependencies bool                `json:"cross_repo_dependencies,omitempty"`
	Dependencies          RepoIndexDependency `json:"dependencies,omitempty"`
}

// RepoIndexDependency lists outgoing repo dependencies.
type RepoIndexDependency struct {
	DependsOn []string `json:"depends_on,omitempty"`
}

// RepoScan is the scanner's per-repo scan artifact.
type RepoScan struct {
	RepoID    string     `json:"repo_id,omitempty"`
	ScannedAt *time.Time `json:"scanned_at,omitempty"`
	HeadSHA   string     `json:"head_sha,omitempty"`
}

// =============================================================================
// COMMITTEE
// =============================================================================

// Committee verdicts.
const (
	VerdictEvidenceValid   = "evidence_valid"
	VerdictEvidenceInvalid = "evidence_invalid"
)

// Severities for blocking issues and integration gaps.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Next actions derived for a committee status.
const (
	NextActionProceed        = "proceed"
	NextActionRescanNeeded   = "rescan_needed"
	NextActionDecisionNeeded = "decision_needed"
)

// CommitteeClaim is a fact grounded in evidence refs.
type CommitteeClaim struct {
	Text         string   `json:"text"`
	EvidenceRefs []string `json:"evidence_refs"`
}

// CommitteeConcern is an assumption or unknown with the evidence that
// would resolve it.
type CommitteeConcern struct {
	Text            string   `json:"text"`
	EvidenceMissing []string `json:"evidence_missing"`
}

// IntegrationEdge is a claimed cross-repo contract edge.
type IntegrationEdge struct {
	From            string   `json:"from"`
	To              string   `json:"to"`
	Type            string   `json:"type"`
	Contract        string   `json:"contract,omitempty"`
	EvidenceRefs    []string `json:"evidence_refs"`
	EvidenceMissing []string `json:"evidence_missing"`
	Confidence      float64  `json:"confidence"`
}

// CommitteeOutput is the validated artifact produced by one committee role.
type CommitteeOutput struct {
	Scope            string             `json:"scope"`
	Facts            []CommitteeClaim   `json:"facts"`
	Assumptions      []CommitteeConcern `json:"assumptions"`
	Unknowns         []CommitteeConcern `json:"unknowns"`
	IntegrationEdges []IntegrationEdge  `json:"integration_edges"`
	Risks            []string           `json:"risks"`
	Verdict          string             `json:"verdict"`
	Stale            bool               `json:"stale,omitempty"`
}

// BlockingIssue is one reason a committee status is not clean.
type BlockingIssue struct {
	ID              string   `json:"id"`
	Description     string   `json:"description"`
	EvidenceMissing []string `json:"evidence_missing"`
	Severity        string   `json:"severity"`
}

// CommitteeStatus is derived deterministically from committee outputs;
// it is never hand-written.
type CommitteeStatus struct {
	RepoID         string              `json:"repo_id,omitempty"`
	EvidenceValid  bool                `json:"evidence_valid"`
	BlockingIssues []BlockingIssue     `json:"blocking_issues"`
	Confidence     string              `json:"confidence"` // low | medium | high
	NextAction     string              `json:"next_action"`
	Degraded       bool                `json:"degraded,omitempty"`
	DegradedReason string              `json:"degraded_reason,omitempty"`
	Stale          bool                `json:"stale,omitempty"`
	HardStale      bool                `json:"hard_stale,omitempty"`
	Staleness      *StalenessSnapshot  `json:"staleness,omitempty"`
}

// IntegrationGap is a cross-repo contract hole found by the chair.
type IntegrationGap struct {
	ID              string   `json:"id"`
	Repos           []string `json:"repos"`
	Description     string   `json:"description"`
	EvidenceRefs    []string `json:"evidence_refs"`
	EvidenceMissing []string `json:"evidence_missing"`
	Severity        string   `json:"severity"`
}

// IntegrationStatus is derived from the integration chair's output.
type IntegrationStatus struct {
	EvidenceValid   bool             `json:"evidence_valid"`
	IntegrationGaps []IntegrationGap `json:"integration_gaps"`
	DecisionNeeded  bool             `json:"decision_needed"`
}

// =============================================================================
// STALENESS
// =============================================================================

// Staleness reasons.
const (
	ReasonCoverageIncomplete  = "coverage_incomplete"
	ReasonHeadSHAMismatch     = "head_sha_mismatch"
	ReasonMergeEventAfterScan = "merge_event_after_scan"
)

// StalenessSnapshot is the verdict for one scope at one instant.
type StalenessSnapshot struct {
	Scope              string     `json:"scope"`
	Stale              bool       `json:"stale"`
	HardStale          bool       `json:"hard_stale"`
	Reasons            []string   `json:"reasons"`
	StaleRepos         []string   `json:"stale_repos,omitempty"`
	HardStaleRepos     []string   `json:"hard_stale_repos,omitempty"`
	RepoID             string     `json:"repo_id,omitempty"`
	RepoHeadSHA        string     `json:"repo_head_sha,omitempty"`
	LastScannedHeadSHA string     `json:"last_scanned_head_sha,omitempty"`
	LastScanTime       *time.Time `json:"last_scan_time,omitempty"`
	LastMergeEventTime *time.Time `json:"last_merge_event_time,omitempty"`
}

// SoftStale reports whether the snapshot is stale without being hard-stale.
func (s *StalenessSnapshot) SoftStale() bool {
	return s.Stale && !s.HardStale
}

// StaleStatus collapses the snapshot into the three-level label used by
// sufficiency records.
func (s *StalenessSnapshot) StaleStatus() string {
	switch {
	case s.HardStale:
		return StaleStatusHard
	case s.Stale:
		return StaleStatusSoft
	default:
		return StaleStatusFresh
	}
}

// Three-level staleness labels.
const (
	StaleStatusFresh = "fresh"
	StaleStatusSoft  = "soft_stale"
	StaleStatusHard  = "hard_stale"
)

// =============================================================================
// SUFFICIENCY
// =============================================================================

// Sufficiency statuses.
const (
	SufficiencyInsufficient = "insufficient"
	SufficiencyProposed     = "proposed_sufficient"
	SufficiencySufficient   = "sufficient"
)

// SufficiencyBlocker names one condition preventing approval.
type SufficiencyBlocker struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Details string `json:"details,omitempty"`
}

// SufficiencyRecord attests whether knowledge at (scope, version) is
// sufficient for downstream delivery. Blockers must be empty when the
// status is sufficient.
type SufficiencyRecord struct {
	Scope            string               `json:"scope"`
	KnowledgeVersion string               `json:"knowledge_version"`
	Status           string               `json:"status"`
	DecidedBy        string               `json:"decided_by,omitempty"`
	DecidedAt        *time.Time           `json:"decided_at,omitempty"`
	RationaleMDPath  string               `json:"rationale_md_path,omitempty"`
	EvidenceBasis    []string             `json:"evidence_basis"`
	Blockers         []SufficiencyBlocker `json:"blockers"`
	StaleStatus      string               `json:"stale_status"`
}

// =============================================================================
// PHASE
// =============================================================================

// Phase names and statuses.
const (
	PhaseReverse = "reverse"
	PhaseForward = "forward"

	PhaseOpen       = "open"
	PhaseInProgress = "in_progress"
	PhaseClosed     = "closed"
)

// PhaseInfo is the lifecycle record of one phase.
type PhaseInfo struct {
	Status    string     `json:"status"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	ClosedBy  string     `json:"closed_by,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// PhasePrereqs gate the forward phase.
type PhasePrereqs struct {
	ScanComplete     bool       `json:"scan_complete"`
	Sufficiency      string     `json:"sufficiency"`
	HumanConfirmedV1 bool       `json:"human_confirmed_v1"`
	HumanConfirmedAt *time.Time `json:"human_confirmed_at,omitempty"`
	HumanConfirmedBy string     `json:"human_confirmed_by,omitempty"`
	HumanNotes       string     `json:"human_notes,omitempty"`
}

// PhaseState is the two-phase lifecycle record.
type PhaseState struct {
	CurrentPhase string       `json:"current_phase"`
	Reverse      PhaseInfo    `json:"reverse"`
	Forward      PhaseInfo    `json:"forward"`
	Prereqs      PhasePrereqs `json:"prereqs"`
}

// =============================================================================
// MEETINGS
// =============================================================================

// Meeting statuses.
const (
	MeetingOpen             = "open"
	MeetingWaitingForAnswer = "waiting_for_answer"
	MeetingReadyToClose     = "ready_to_close"
	MeetingClosed           = "closed"
)

// Meeting kinds.
const (
	MeetingKindUpdate = "update"
	MeetingKindReview = "review"
)

// MeetingInputs snapshots the gating facts observed at meeting start.
type MeetingInputs struct {
	CoverageComplete    bool     `json:"coverage_complete"`
	SufficiencyStatus   string   `json:"sufficiency_status,omitempty"`
	SufficiencyVersion  string   `json:"sufficiency_version,omitempty"`
	CommitteeStatusPath string   `json:"committee_status_path,omitempty"`
	OpenDecisionIDs     []string `json:"open_decision_ids"`
	IntegrationGapIDs   []string `json:"integration_gap_ids"`
	StaleStatus         string   `json:"stale_status"`
}

// MeetingSession is the mutable state of one review/update meeting.
type MeetingSession struct {
	MeetingID              string        `json:"meeting_id"`
	Kind                   string        `json:"kind"`
	Scope                  string        `json:"scope"`
	Status                 string        `json:"status"`
	KnowledgeVersionTarget string        `json:"knowledge_version_target,omitempty"`
	Inputs                 MeetingInputs `json:"inputs"`
	QuestionCursor         int           `json:"question_cursor"`
	AskedCount             int           `json:"asked_count"`
	AnsweredCount          int           `json:"answered_count"`
	BoundChangeRequests    []string      `json:"bound_change_requests,omitempty"`
	CreatedAt              time.Time     `json:"created_at"`
	UpdatedAt              time.Time     `json:"updated_at"`
	ClosedAt               *time.Time    `json:"closed_at,omitempty"`
	ClosedDecision         string        `json:"closed_decision,omitempty"`
}

// MeetingQuestion is one appended QUESTIONS.jsonl record.
type MeetingQuestion struct {
	QID      string    `json:"qid"`
	Tier     string    `json:"tier"`
	Question string    `json:"question"`
	AskedAt  time.Time `json:"asked_at"`
}

// MeetingAnswer is one appended ANSWERS.jsonl record.
type MeetingAnswer struct {
	QID        string    `json:"qid"`
	AnswerID   string    `json:"answer_id"`
	AnswerPath string    `json:"answer_path"`
	AnsweredAt time.Time `json:"answered_at"`
}

// MeetingDecisionRecord is one appended DECISIONS.jsonl record.
type MeetingDecisionRecord struct {
	Decision  string    `json:"decision"`
	Notes     string    `json:"notes,omitempty"`
	DecidedBy string    `json:"decided_by,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// Question ladder tiers, in walk order. REFRESH is asked at most once and
// only while the scope is stale.
var LadderTiers = []string{
	"REFRESH", "VISION", "REQUIREMENTS", "DOMAIN_DATA", "DATA", "API", "INFRA", "OPS",
}

// =============================================================================
// DECISION PACKETS
// =============================================================================

// Decision packet statuses.
const (
	DecisionOpen     = "open"
	DecisionAnswered = "answered"
)

// DecisionContext explains to a human why automation stopped.
type DecisionContext struct {
	Summary             string   `json:"summary"`
	WhyAutomationFailed string   `json:"why_automation_failed"`
	WhatIsKnown         []string `json:"what_is_known"`
}

// DecisionQuestion is one question a packet asks.
type DecisionQuestion struct {
	ID                 string   `json:"id"`
	Question           string   `json:"question"`
	ExpectedAnswerType string   `json:"expected_answer_type"` // text | choice
	Constraints        string   `json:"constraints,omitempty"`
	Blocks             []string `json:"blocks"`
}

// DecisionPacket is a structured, file-backed escalation asking a human
// to resolve an automation block.
type DecisionPacket struct {
	DecisionID             string             `json:"decision_id"`
	Scope                  string             `json:"scope"`
	Trigger                string             `json:"trigger"`
	BlockingState          string             `json:"blocking_state"`
	Context                DecisionContext    `json:"context"`
	Questions              []DecisionQuestion `json:"questions"`
	AssumptionsIfUnanswered string            `json:"assumptions_if_unanswered,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
	Status                 string             `json:"status"`
	AnsweredAt             *time.Time         `json:"answered_at,omitempty"`
	Answers                map[string]string  `json:"answers,omitempty"`
}

// =============================================================================
// CHANGE REQUESTS
// =============================================================================

// Change request statuses.
const (
	ChangeRequestOpen      = "open"
	ChangeRequestInMeeting = "in_meeting"
	ChangeRequestProcessed = "processed"
)

// ChangeRequest is an externally filed request bound into update meetings.
type ChangeRequest struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Title           string    `json:"title"`
	Severity        string    `json:"severity"`
	Scope           string    `json:"scope"`
	Status          string    `json:"status"`
	LinkedMeetingID string    `json:"linked_meeting_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// =============================================================================
// WORK STATUS
// =============================================================================

// WorkStages is the closed, forward-preferred stage sequence.
var WorkStages = []string{
	"INTAKE_RECEIVED", "ROUTED", "TASKS_CREATED", "SWEEP_READY", "PROPOSED",
	"BUNDLED", "PATCH_PLANNED", "QA_PLANNED", "APPLY_APPROVAL_REQUESTED",
	"APPLY_APPROVAL_GRANTED", "APPLYING", "APPLIED", "CI_PENDING", "CI_FAILED",
	"CI_FIXING", "CI_GREEN", "MERGE_APPROVAL_REQUESTED", "MERGE_APPROVAL_GRANTED",
	"MERGED", "DONE", "FAILED", "BLOCKED",
}

// IsWorkStage reports membership in the closed stage set.
func IsWorkStage(stage string) bool {
	for _, s := range WorkStages {
		if s == stage {
			return true
		}
	}
	return false
}

// WorkHistoryEntry records one stage transition.
type WorkHistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
	Note      string    `json:"note,omitempty"`
}

// WorkRepoState is the per-repo slice of a work item's progress.
type WorkRepoState struct {
	Stage string `json:"stage,omitempty"`
	Note  string `json:"note,omitempty"`
}

// WorkStatus is the per-work-item checkpoint snapshot.
type WorkStatus struct {
	WorkID         string                   `json:"work_id"`
	CurrentStage   string                   `json:"current_stage"`
	LastUpdated    time.Time                `json:"last_updated"`
	Blocked        bool                     `json:"blocked"`
	BlockingReason string                   `json:"blocking_reason,omitempty"`
	Artifacts      map[string]string        `json:"artifacts,omitempty"`
	Repos          map[string]WorkRepoState `json:"repos,omitempty"`
	History        []WorkHistoryEntry       `json:"history"`
}

// =============================================================================
// EVENTS
// =============================================================================

// MergeEvent is the only event kind the core consumes from segments.
type MergeEvent struct {
	Type      string    `json:"type"`
	Scope     string    `json:"scope,omitempty"`
	RepoID    string    `json:"repo_id"`
	Timestamp time.Time `json:"timestamp"`
	EventID   string    `json:"event_id"`
}

// LedgerEvent is one audit entry in ai/lane_a/ledger.jsonl.
type LedgerEvent struct {
	Type      string    `json:"type"` // stale_override | sufficiency_override
	Scope     string    `json:"scope"`
	Actor     string    `json:"actor,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}
