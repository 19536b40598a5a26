package meeting

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lanea/internal/decision"
	"lanea/internal/fsatomic"
	"lanea/internal/logging"
	"lanea/internal/types"
)

// OverrideToken in close notes lets approve_intake proceed without
// confirmed sufficiency. It must be spelled out; substrings do not count.
const OverrideToken = "override_sufficiency"

var updateDecisions = map[string]bool{
	"approve_intake": true, "revise_scans": true, "open_decisions": true,
	"abort": true, "bump_patch": true, "bump_minor": true, "bump_major": true,
	"no_bump": true,
}

var reviewDecisions = map[string]bool{
	"confirm_sufficiency": true, "reject_sufficiency": true, "defer": true,
}

// IntakeApproval is the artifact approve_intake writes into the meeting
// directory.
type IntakeApproval struct {
	MeetingID        string    `json:"meeting_id"`
	Scope            string    `json:"scope"`
	ApprovedBy       string    `json:"approved_by"`
	ApprovedAt       time.Time `json:"approved_at"`
	Override         bool      `json:"override,omitempty"`
	ChangeRequestIDs []string  `json:"change_request_ids"`
}

// closedRecord is the compact per-close record kept under the knowledge
// store's decisions directory.
type closedRecord struct {
	MeetingID string    `json:"meeting_id"`
	Kind      string    `json:"kind"`
	Scope     string    `json:"scope"`
	Decision  string    `json:"decision"`
	Notes     string    `json:"notes,omitempty"`
	DecidedBy string    `json:"decided_by,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// Close ends the meeting with a decision. Every asked question must be
// answered; the decision must belong to the meeting kind's allowed set;
// kind-specific post-actions run before the session is marked closed.
func (e *Engine) Close(ctx context.Context, meetingID, decisionName, notes, decidedBy string) (types.Result, error) {
	session, err := e.Load(meetingID)
	if err != nil {
		return types.Result{}, err
	}
	if session.Status == types.MeetingClosed {
		return types.Refuse(types.ReasonGateRefused, "meeting %s is already closed", meetingID), nil
	}
	if session.AnsweredCount < session.AskedCount {
		return types.Refuse(types.ReasonGateRefused,
			"meeting %s has %d unanswered question(s)", meetingID, session.AskedCount-session.AnsweredCount), nil
	}

	allowed := reviewDecisions
	if session.Kind == types.MeetingKindUpdate {
		allowed = updateDecisions
	}
	if !allowed[decisionName] {
		return types.Refuse(types.ReasonInvalidInput,
			"decision %q is not valid for a %s meeting", decisionName, session.Kind), nil
	}

	if result, err := e.applyDecision(ctx, session, decisionName, notes, decidedBy); err != nil {
		return types.Result{}, err
	} else if !result.OK {
		return result, nil
	}

	now := e.Now().UTC()
	record := types.MeetingDecisionRecord{
		Decision: decisionName, Notes: notes, DecidedBy: decidedBy, DecidedAt: now,
	}
	if err := fsatomic.AppendJSONL(e.decisionsPath(meetingID), record); err != nil {
		return types.Result{}, err
	}
	if err := e.writeClosedRecord(session, decisionName, notes, decidedBy, now); err != nil {
		return types.Result{}, err
	}

	session.Status = types.MeetingClosed
	session.ClosedAt = &now
	session.ClosedDecision = decisionName
	if err := e.save(session); err != nil {
		return types.Result{}, err
	}

	logging.Get(logging.CategoryMeeting).Infow("meeting closed",
		"meeting", meetingID, "decision", decisionName, "by", decidedBy)
	return types.Ok("meeting %s closed with %s", meetingID, decisionName), nil
}

func (e *Engine) applyDecision(ctx context.Context, session *types.MeetingSession, decisionName, notes, decidedBy string) (types.Result, error) {
	switch decisionName {
	case "approve_intake":
		return e.approveIntake(ctx, session, notes, decidedBy)

	case "confirm_sufficiency":
		snapshot, err := e.Stale.EvaluateScope(ctx, session.Scope)
		if err != nil {
			return types.Result{}, err
		}
		if snapshot.Stale {
			return types.Refuse(types.ReasonStaleBlocked,
				"cannot confirm sufficiency: %s is %s", session.Scope, snapshot.StaleStatus()), nil
		}
		return e.Ledger.Approve(ctx, session.Scope, e.Versions.Current(), decidedBy)

	case "reject_sufficiency":
		return e.Ledger.Reject(ctx, session.Scope, e.Versions.Current(), decidedBy, notes)

	case "bump_patch", "bump_minor", "bump_major", "no_bump":
		version, err := e.Versions.Bump(decisionName, decidedBy, "meeting "+session.MeetingID)
		if err != nil {
			return types.Result{}, err
		}
		return types.Ok("knowledge version is now %s", version), nil

	case "abort":
		if err := e.Changes.Release(session.BoundChangeRequests); err != nil {
			return types.Result{}, err
		}
		return types.Ok("meeting aborted; change requests released"), nil

	default: // revise_scans, open_decisions, defer carry no post-action
		return types.Ok("recorded"), nil
	}
}

// approveIntake is the update meeting's terminal gate: hard-stale blocks
// with a refresh packet, coverage and committee readiness are required,
// and sufficiency must be confirmed unless the notes carry the override
// token.
func (e *Engine) approveIntake(ctx context.Context, session *types.MeetingSession, notes, decidedBy string) (types.Result, error) {
	snapshot, err := e.Stale.EvaluateScope(ctx, session.Scope)
	if err != nil {
		return types.Result{}, err
	}
	override := hasOverrideToken(notes)

	if snapshot.HardStale && !override {
		packet := refreshPacketForIntake(session.Scope, snapshot)
		if _, err := e.Decisions.CreateIdempotent(decision.KindRefreshRequired, packet); err != nil {
			return types.Result{}, err
		}
		return types.Refuse(types.ReasonStaleBlocked,
			"intake blocked: %s is hard-stale; refresh required", session.Scope), nil
	}
	if !e.Stale.CoverageComplete() {
		return types.Refuse(types.ReasonGateRefused,
			"intake blocked: scan coverage is incomplete"), nil
	}
	if !e.committeeReady(session.Scope) {
		return types.Refuse(types.ReasonGateRefused,
			"intake blocked: committee has not produced a status for %s", session.Scope), nil
	}

	if !override {
		sufficient, err := e.Ledger.IsSufficient(session.Scope, e.Versions.Current())
		if err != nil {
			return types.Result{}, err
		}
		if !sufficient && session.Scope != types.ScopeSystem {
			sufficient, err = e.Ledger.IsSufficient(types.ScopeSystem, e.Versions.Current())
			if err != nil {
				return types.Result{}, err
			}
		}
		if !sufficient {
			return types.Refuse(types.ReasonGateRefused,
				"intake blocked: sufficiency is not confirmed for %s (notes may carry %q to override)",
				session.Scope, OverrideToken), nil
		}
	}

	approval := IntakeApproval{
		MeetingID:        session.MeetingID,
		Scope:            session.Scope,
		ApprovedBy:       decidedBy,
		ApprovedAt:       e.Now().UTC(),
		Override:         override,
		ChangeRequestIDs: session.BoundChangeRequests,
	}
	approvalPath := filepath.Join(e.Project.Paths.MeetingDir(session.MeetingID), "INTAKE_APPROVAL.json")
	if err := fsatomic.WriteJSON(approvalPath, approval); err != nil {
		return types.Result{}, err
	}
	if err := e.Changes.MarkProcessed(session.BoundChangeRequests); err != nil {
		return types.Result{}, err
	}
	return types.Ok("intake approved for %s", session.Scope), nil
}

func hasOverrideToken(notes string) bool {
	for _, field := range strings.Fields(notes) {
		if strings.Trim(field, ".,;:()[]") == OverrideToken {
			return true
		}
	}
	return false
}

func refreshPacketForIntake(scope string, snapshot *types.StalenessSnapshot) *types.DecisionPacket {
	return &types.DecisionPacket{
		Scope:         scope,
		Trigger:       "hard_stale",
		BlockingState: "hard_stale",
		Context: types.DecisionContext{
			Summary:             fmt.Sprintf("Intake approval for %s was blocked: knowledge is hard-stale (%v).", scope, snapshot.Reasons),
			WhyAutomationFailed: "Intake cannot be approved against hard-stale knowledge.",
			WhatIsKnown:         []string{},
		},
		Questions: []types.DecisionQuestion{{
			ID:                 "Q1",
			Question:           fmt.Sprintf("Refresh the scan for %s before approving intake?", scope),
			ExpectedAnswerType: "choice",
			Constraints:        "refresh | accept_stale",
			Blocks:             []string{"intake_approval"},
		}},
	}
}

func (e *Engine) writeClosedRecord(session *types.MeetingSession, decisionName, notes, decidedBy string, now time.Time) error {
	record := closedRecord{
		MeetingID: session.MeetingID,
		Kind:      session.Kind,
		Scope:     session.Scope,
		Decision:  decisionName,
		Notes:     notes,
		DecidedBy: decidedBy,
		DecidedAt: now,
	}

	slug := types.ScopeSlug(session.Scope)
	dir := e.Project.Paths.MeetingDecisionsDir()
	name := fmt.Sprintf("MEETING-%s-%s.json", slug, now.Format("20060102_150405"))
	if err := fsatomic.WriteJSON(filepath.Join(dir, name), record); err != nil {
		return err
	}

	// Per-scope LATEST pointer.
	latest := map[string]closedRecord{}
	if data, err := os.ReadFile(e.Project.Paths.MeetingDecisionsLatest()); err == nil {
		if err := json.Unmarshal(data, &latest); err != nil {
			return fmt.Errorf("corrupt %s: %w", e.Project.Paths.MeetingDecisionsLatest(), err)
		}
	}
	latest[session.Scope] = record
	return fsatomic.WriteJSON(e.Project.Paths.MeetingDecisionsLatest(), latest)
}
