// Package meeting runs the one-question-at-a-time review and update
// meetings. A meeting is a directory of append-only records; every state
// change flows through MEETING.json.
package meeting

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"lanea/internal/changereq"
	"lanea/internal/committee"
	"lanea/internal/config"
	"lanea/internal/contract"
	"lanea/internal/decision"
	"lanea/internal/fsatomic"
	"lanea/internal/knowledge"
	"lanea/internal/logging"
	"lanea/internal/staleness"
	"lanea/internal/sufficiency"
	"lanea/internal/types"
)

// DefaultMaxQuestions bounds the ladder walk per meeting.
const DefaultMaxQuestions = 6

// Engine drives meeting sessions. Committee is optional; without it a
// continue step refuses instead of running a committee step.
type Engine struct {
	Project      *config.Project
	Stale        *staleness.Engine
	Committee    *committee.Orchestrator
	Ledger       *sufficiency.Ledger
	Versions     *knowledge.Versions
	Decisions    *decision.Store
	Changes      *changereq.Store
	MaxQuestions int
	Now          func() time.Time
}

// New builds a meeting engine over the project. oracle may be nil when
// the caller will never take a committee step.
func New(project *config.Project, oracle types.Oracle) *Engine {
	e := &Engine{
		Project:      project,
		Stale:        staleness.New(project),
		Ledger:       sufficiency.New(project),
		Versions:     knowledge.NewVersions(project.Paths),
		Decisions:    decision.NewStore(project.Paths),
		Changes:      changereq.NewStore(project.Paths),
		MaxQuestions: DefaultMaxQuestions,
		Now:          time.Now,
	}
	if oracle != nil {
		e.Committee = committee.New(project, oracle)
	}
	return e
}

func (e *Engine) sessionPath(meetingID string) string {
	return filepath.Join(e.Project.Paths.MeetingDir(meetingID), "MEETING.json")
}

func (e *Engine) questionsPath(meetingID string) string {
	return filepath.Join(e.Project.Paths.MeetingDir(meetingID), "QUESTIONS.jsonl")
}

func (e *Engine) answersPath(meetingID string) string {
	return filepath.Join(e.Project.Paths.MeetingDir(meetingID), "ANSWERS.jsonl")
}

func (e *Engine) decisionsPath(meetingID string) string {
	return filepath.Join(e.Project.Paths.MeetingDir(meetingID), "DECISIONS.jsonl")
}

// Load reads a session by meeting id.
func (e *Engine) Load(meetingID string) (*types.MeetingSession, error) {
	return contract.LoadMeetingSession(e.sessionPath(meetingID))
}

func (e *Engine) save(session *types.MeetingSession) error {
	session.UpdatedAt = e.Now().UTC()
	if err := fsatomic.WriteJSON(e.sessionPath(session.MeetingID), session); err != nil {
		return err
	}
	return fsatomic.WriteFile(
		filepath.Join(e.Project.Paths.MeetingDir(session.MeetingID), "MEETING.md"),
		[]byte(renderSessionMarkdown(session)))
}

// Start opens a new meeting session for kind ∈ {update, review} and
// snapshots the gating inputs. Update meetings bind the oldest open
// change requests in scope.
func (e *Engine) Start(ctx context.Context, kind, scope string) (*types.MeetingSession, error) {
	if kind != types.MeetingKindUpdate && kind != types.MeetingKindReview {
		return nil, fmt.Errorf("unknown meeting kind %q", kind)
	}

	now := e.Now().UTC()
	prefix := "RM"
	if kind == types.MeetingKindUpdate {
		prefix = "UM"
	}
	meetingID := fmt.Sprintf("%s-%s__%s", prefix, now.Format("20060102_150405"), types.ScopeSlug(scope))

	inputs, err := e.snapshotInputs(ctx, scope)
	if err != nil {
		return nil, err
	}

	session := &types.MeetingSession{
		MeetingID:              meetingID,
		Kind:                   kind,
		Scope:                  scope,
		Status:                 types.MeetingOpen,
		KnowledgeVersionTarget: e.Versions.Current(),
		Inputs:                 *inputs,
		CreatedAt:              now,
	}

	if kind == types.MeetingKindUpdate {
		bound, err := e.Changes.BindToMeeting(scope, meetingID)
		if err != nil {
			return nil, err
		}
		session.BoundChangeRequests = bound
	}

	if err := e.save(session); err != nil {
		return nil, err
	}
	logging.Get(logging.CategoryMeeting).Infow("meeting started",
		"meeting", meetingID, "kind", kind, "scope", scope,
		"bound_change_requests", len(session.BoundChangeRequests))
	return session, nil
}

func (e *Engine) snapshotInputs(ctx context.Context, scope string) (*types.MeetingInputs, error) {
	snapshot, err := e.Stale.EvaluateScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	inputs := &types.MeetingInputs{
		CoverageComplete:  e.Stale.CoverageComplete(),
		StaleStatus:       snapshot.StaleStatus(),
		OpenDecisionIDs:   []string{},
		IntegrationGapIDs: []string{},
	}

	if record, err := e.Ledger.Current(scope); err == nil && record != nil {
		inputs.SufficiencyStatus = record.Status
		inputs.SufficiencyVersion = record.KnowledgeVersion
	}

	if repoID, isRepo := types.RepoIDFromScope(scope); isRepo {
		inputs.CommitteeStatusPath = e.Project.Paths.CommitteeStatus(repoID)
	} else {
		inputs.CommitteeStatusPath = e.Project.Paths.IntegrationStatus()
	}

	if open, err := e.Decisions.OpenIDs(scope); err == nil {
		inputs.OpenDecisionIDs = open
	}
	if status, err := contract.LoadIntegrationStatus(e.Project.Paths.IntegrationStatus()); err == nil {
		for _, gap := range status.IntegrationGaps {
			inputs.IntegrationGapIDs = append(inputs.IntegrationGapIDs, gap.ID)
		}
	}
	return inputs, nil
}

// Continue advances the meeting by at most one step: either a single
// committee step, or a single ladder question, or the ready_to_close
// transition. While waiting for an answer it changes nothing.
func (e *Engine) Continue(ctx context.Context, meetingID string) (types.Result, error) {
	session, err := e.Load(meetingID)
	if err != nil {
		return types.Result{}, err
	}
	switch session.Status {
	case types.MeetingClosed:
		return types.Refuse(types.ReasonGateRefused, "meeting %s is closed", meetingID), nil
	case types.MeetingWaitingForAnswer:
		return types.Ok("waiting for an answer to the open question"), nil
	case types.MeetingReadyToClose:
		return types.Ok("meeting is ready to close"), nil
	}

	if !e.committeeReady(session.Scope) {
		result, err := e.committeeStep(ctx, session.Scope)
		if err != nil {
			return types.Result{}, err
		}
		if err := e.save(session); err != nil {
			return types.Result{}, err
		}
		return result, nil
	}

	stale := session.Inputs.StaleStatus != types.StaleStatusFresh
	answered, err := e.answeredTiers(meetingID)
	if err != nil {
		return types.Result{}, err
	}

	tier := nextTier(stale, session.AskedCount, answered)
	if tier == "" || session.AskedCount >= e.MaxQuestions {
		session.Status = types.MeetingReadyToClose
		if err := e.save(session); err != nil {
			return types.Result{}, err
		}
		return types.Ok("all tiers satisfied; ready to close"), nil
	}

	question := types.MeetingQuestion{
		QID:      fmt.Sprintf("Q-%03d", session.AskedCount+1),
		Tier:     tier,
		Question: questionFor(tier, session.Scope),
		AskedAt:  e.Now().UTC(),
	}
	if err := fsatomic.AppendJSONL(e.questionsPath(meetingID), question); err != nil {
		return types.Result{}, err
	}

	session.Status = types.MeetingWaitingForAnswer
	session.AskedCount++
	session.QuestionCursor++
	if err := e.save(session); err != nil {
		return types.Result{}, err
	}
	return types.Ok("[%s] %s", question.Tier, question.Question), nil
}

// committeeReady reports whether the scope has a derived status artifact.
func (e *Engine) committeeReady(scope string) bool {
	if repoID, isRepo := types.RepoIDFromScope(scope); isRepo {
		_, err := contract.LoadCommitteeStatus(e.Project.Paths.CommitteeStatus(repoID))
		return err == nil
	}
	_, err := contract.LoadIntegrationStatus(e.Project.Paths.IntegrationStatus())
	return err == nil
}

// committeeStep executes exactly one committee run toward readiness.
func (e *Engine) committeeStep(ctx context.Context, scope string) (types.Result, error) {
	if e.Committee == nil {
		return types.Refuse(types.ReasonMissingInput,
			"committee is not ready for %s and no oracle is configured", scope), nil
	}
	if repoID, isRepo := types.RepoIDFromScope(scope); isRepo {
		return e.Committee.RunRepo(ctx, repoID, false)
	}
	// System scope: bring one repo committee up first, then the chair.
	for _, repoID := range e.Project.Registry.ActiveRepoIDs() {
		status, err := contract.LoadCommitteeStatus(e.Project.Paths.CommitteeStatus(repoID))
		if err != nil || !status.EvidenceValid {
			return e.Committee.RunRepo(ctx, repoID, false)
		}
	}
	return e.Committee.RunIntegration(ctx, false)
}

// answeredTiers maps tiers to whether their question has an answer.
func (e *Engine) answeredTiers(meetingID string) (map[string]bool, error) {
	byQID := map[string]string{}
	err := fsatomic.ReadJSONL(e.questionsPath(meetingID), func(line []byte) error {
		var q types.MeetingQuestion
		if err := json.Unmarshal(line, &q); err != nil {
			return err
		}
		byQID[q.QID] = q.Tier
		return nil
	})
	if err != nil {
		return nil, err
	}

	answered := map[string]bool{}
	err = fsatomic.ReadJSONL(e.answersPath(meetingID), func(line []byte) error {
		var a types.MeetingAnswer
		if err := json.Unmarshal(line, &a); err != nil {
			return err
		}
		if tier, found := byQID[a.QID]; found {
			answered[tier] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return answered, nil
}

// lastQuestion returns the most recently asked question record.
func (e *Engine) lastQuestion(meetingID string) (*types.MeetingQuestion, error) {
	var last *types.MeetingQuestion
	err := fsatomic.ReadJSONL(e.questionsPath(meetingID), func(line []byte) error {
		var q types.MeetingQuestion
		if err := json.Unmarshal(line, &q); err != nil {
			return err
		}
		last = &q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return last, nil
}

// Answer records the human's answer to the single open question. The body
// lands in a per-question Markdown file; the session returns to open.
func (e *Engine) Answer(meetingID, body string) (types.Result, error) {
	session, err := e.Load(meetingID)
	if err != nil {
		return types.Result{}, err
	}
	if session.Status != types.MeetingWaitingForAnswer {
		return types.Refuse(types.ReasonGateRefused,
			"meeting %s has no open question", meetingID), nil
	}
	if session.AnsweredCount != session.AskedCount-1 {
		return types.Refuse(types.ReasonGateRefused,
			"meeting %s has inconsistent question bookkeeping", meetingID), nil
	}

	question, err := e.lastQuestion(meetingID)
	if err != nil {
		return types.Result{}, err
	}
	if question == nil {
		return types.Refuse(types.ReasonMissingInput,
			"meeting %s is waiting but has no question on record", meetingID), nil
	}

	answerPath := filepath.Join(e.Project.Paths.MeetingDir(meetingID), "answers", question.QID+".md")
	content := fmt.Sprintf("# %s (%s)\n\n%s\n\n---\n\n%s\n", question.QID, question.Tier, question.Question, body)
	if err := fsatomic.WriteFile(answerPath, []byte(content)); err != nil {
		return types.Result{}, err
	}

	record := types.MeetingAnswer{
		QID:        question.QID,
		AnswerID:   "A-" + question.QID,
		AnswerPath: answerPath,
		AnsweredAt: e.Now().UTC(),
	}
	if err := fsatomic.AppendJSONL(e.answersPath(meetingID), record); err != nil {
		return types.Result{}, err
	}

	session.Status = types.MeetingOpen
	session.AnsweredCount++
	if err := e.save(session); err != nil {
		return types.Result{}, err
	}
	return types.Ok("answer to %s recorded", question.QID), nil
}

func renderSessionMarkdown(s *types.MeetingSession) string {
	md := fmt.Sprintf("# Meeting %s\n\n- Kind: %s\n- Scope: `%s`\n- Status: %s\n- Target version: %s\n- Asked: %d, answered: %d\n",
		s.MeetingID, s.Kind, s.Scope, s.Status, s.KnowledgeVersionTarget, s.AskedCount, s.AnsweredCount)
	md += fmt.Sprintf("- Coverage complete: %t\n- Stale status: %s\n", s.Inputs.CoverageComplete, s.Inputs.StaleStatus)
	if len(s.BoundChangeRequests) > 0 {
		md += "\n## Bound Change Requests\n\n"
		for _, id := range s.BoundChangeRequests {
			md += "- " + id + "\n"
		}
	}
	if s.ClosedDecision != "" {
		md += fmt.Sprintf("\nClosed with decision **%s**.\n", s.ClosedDecision)
	}
	return md
}
