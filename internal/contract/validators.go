package contract

import (
	"encoding/json"
	"strings"

	"lanea/internal/types"
)

func init() {
	register(KindEvidenceRef, validateEvidenceRef)
	register(KindRepoIndex, validateRepoIndex)
	register(KindRepoScan, validateRepoScan)
	register(KindSufficiencyRecord, validateSufficiencyRecord)
	register(KindPhaseState, validatePhaseState)
	register(KindMeetingSession, validateMeetingSession)
	register(KindDecisionPacket, validateDecisionPacket)
	register(KindChangeRequest, validateChangeRequest)
	register(KindWorkStatus, validateWorkStatus)
	register(KindCommitteeStatus, validateCommitteeStatus)
	register(KindIntegrationStatus, validateIntegrationStatus)
}

func validateEvidenceRef(raw []byte) Report {
	var ref types.EvidenceRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return fail("evidence ref decode: %v", err)
	}
	ref.EvidenceID = strings.TrimSpace(ref.EvidenceID)
	ref.RepoID = strings.TrimSpace(ref.RepoID)
	ref.CommitSHA = strings.TrimSpace(ref.CommitSHA)
	ref.FilePath = strings.TrimSpace(ref.FilePath)
	switch {
	case ref.EvidenceID == "":
		return fail("evidence ref has no evidence_id")
	case ref.RepoID == "":
		return fail("evidence ref %s has no repo_id", ref.EvidenceID)
	case ref.CommitSHA == "":
		return fail("evidence ref %s has no commit_sha", ref.EvidenceID)
	case ref.FilePath == "":
		return fail("evidence ref %s has no file_path", ref.EvidenceID)
	case ref.StartLine < 1 || ref.EndLine < ref.StartLine:
		return fail("evidence ref %s has invalid line range %d..%d", ref.EvidenceID, ref.StartLine, ref.EndLine)
	}
	return Report{OK: true, Normalized: &ref}
}

func validateRepoIndex(raw []byte) Report {
	var idx types.RepoIndex
	if err := json.Unmarshal(raw, &idx); err != nil {
		return fail("repo index decode: %v", err)
	}
	if idx.HeadSHA == "" && idx.ScannedAt == nil {
		return fail("repo index has neither head_sha nor scanned_at")
	}
	idx.Dependencies.DependsOn = normalizeStringList(idx.Dependencies.DependsOn)
	return Report{OK: true, Normalized: &idx}
}

func validateRepoScan(raw []byte) Report {
	var scan types.RepoScan
	if err := json.Unmarshal(raw, &scan); err != nil {
		return fail("repo scan decode: %v", err)
	}
	if scan.ScannedAt == nil {
		return fail("repo scan has no scanned_at")
	}
	return Report{OK: true, Normalized: &scan}
}

func validateSufficiencyRecord(raw []byte) Report {
	var rec types.SufficiencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fail("sufficiency record decode: %v", err)
	}
	switch rec.Status {
	case types.SufficiencyInsufficient, types.SufficiencyProposed, types.SufficiencySufficient:
	default:
		return fail("sufficiency record has status %q", rec.Status)
	}
	if rec.Scope == "" || rec.KnowledgeVersion == "" {
		return fail("sufficiency record needs scope and knowledge_version")
	}
	if rec.Status == types.SufficiencySufficient && len(rec.Blockers) > 0 {
		return fail("sufficient record carries %d blockers", len(rec.Blockers))
	}
	rec.EvidenceBasis = normalizeStringList(rec.EvidenceBasis)
	if rec.Blockers == nil {
		rec.Blockers = []types.SufficiencyBlocker{}
	}
	return Report{OK: true, Normalized: &rec}
}

func validatePhaseState(raw []byte) Report {
	var state types.PhaseState
	if err := json.Unmarshal(raw, &state); err != nil {
		return fail("phase state decode: %v", err)
	}
	if state.CurrentPhase != types.PhaseReverse && state.CurrentPhase != types.PhaseForward {
		return fail("phase state has current_phase %q", state.CurrentPhase)
	}
	for _, status := range []string{state.Reverse.Status, state.Forward.Status} {
		switch status {
		case types.PhaseOpen, types.PhaseInProgress, types.PhaseClosed:
		default:
			return fail("phase state has phase status %q", status)
		}
	}
	return Report{OK: true, Normalized: &state}
}

func validateMeetingSession(raw []byte) Report {
	var session types.MeetingSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return fail("meeting session decode: %v", err)
	}
	switch session.Status {
	case types.MeetingOpen, types.MeetingWaitingForAnswer, types.MeetingReadyToClose, types.MeetingClosed:
	default:
		return fail("meeting %s has status %q", session.MeetingID, session.Status)
	}
	if session.MeetingID == "" || session.Scope == "" {
		return fail("meeting session needs meeting_id and scope")
	}
	if session.AnsweredCount > session.AskedCount {
		return fail("meeting %s answered_count %d exceeds asked_count %d",
			session.MeetingID, session.AnsweredCount, session.AskedCount)
	}
	return Report{OK: true, Normalized: &session}
}

func validateDecisionPacket(raw []byte) Report {
	var packet types.DecisionPacket
	if err := json.Unmarshal(raw, &packet); err != nil {
		return fail("decision packet decode: %v", err)
	}
	if packet.DecisionID == "" || packet.Scope == "" {
		return fail("decision packet needs decision_id and scope")
	}
	if packet.Status != types.DecisionOpen && packet.Status != types.DecisionAnswered {
		return fail("decision packet %s has status %q", packet.DecisionID, packet.Status)
	}
	if len(packet.Questions) == 0 {
		return fail("decision packet %s has no questions", packet.DecisionID)
	}
	for _, q := range packet.Questions {
		if q.ExpectedAnswerType != "text" && q.ExpectedAnswerType != "choice" {
			return fail("decision packet %s question %s has answer type %q",
				packet.DecisionID, q.ID, q.ExpectedAnswerType)
		}
	}
	return Report{OK: true, Normalized: &packet}
}

func validateChangeRequest(raw []byte) Report {
	var cr types.ChangeRequest
	if err := json.Unmarshal(raw, &cr); err != nil {
		return fail("change request decode: %v", err)
	}
	if cr.ID == "" || cr.Scope == "" {
		return fail("change request needs id and scope")
	}
	switch cr.Status {
	case types.ChangeRequestOpen, types.ChangeRequestInMeeting, types.ChangeRequestProcessed:
	default:
		return fail("change request %s has status %q", cr.ID, cr.Status)
	}
	return Report{OK: true, Normalized: &cr}
}

func validateWorkStatus(raw []byte) Report {
	var ws types.WorkStatus
	if err := json.Unmarshal(raw, &ws); err != nil {
		return fail("work status decode: %v", err)
	}
	if ws.WorkID == "" {
		return fail("work status has no work_id")
	}
	if !types.IsWorkStage(ws.CurrentStage) {
		return fail("work status %s has unknown stage %q", ws.WorkID, ws.CurrentStage)
	}
	return Report{OK: true, Normalized: &ws}
}

func validateCommitteeStatus(raw []byte) Report {
	var status types.CommitteeStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return fail("committee status decode: %v", err)
	}
	switch status.NextAction {
	case types.NextActionProceed, types.NextActionRescanNeeded, types.NextActionDecisionNeeded:
	default:
		return fail("committee status has next_action %q", status.NextAction)
	}
	if status.BlockingIssues == nil {
		status.BlockingIssues = []types.BlockingIssue{}
	}
	return Report{OK: true, Normalized: &status}
}

func validateIntegrationStatus(raw []byte) Report {
	var status types.IntegrationStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return fail("integration status decode: %v", err)
	}
	if len(status.IntegrationGaps) > MaxIntegrationGaps {
		return fail("integration status has %d gaps (max %d)", len(status.IntegrationGaps), MaxIntegrationGaps)
	}
	if status.EvidenceValid {
		for _, gap := range status.IntegrationGaps {
			if gap.Severity == types.SeverityHigh {
				return fail("integration status claims evidence_valid with high gap %s", gap.ID)
			}
		}
	}
	if status.IntegrationGaps == nil {
		status.IntegrationGaps = []types.IntegrationGap{}
	}
	return Report{OK: true, Normalized: &status}
}
