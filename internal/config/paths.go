// Package config resolves project paths and loads the static registries
// (config/REPOS.json, config/LLM_PROFILES.json). The on-disk layout is the
// authoritative contract; nothing outside this package builds artifact
// paths by hand.
package config

import "path/filepath"

// Paths roots every persisted artifact under the project ops root and the
// knowledge repo root.
type Paths struct {
	OpsRoot       string
	KnowledgeRoot string
}

// NewPaths builds a resolver for the given roots.
func NewPaths(opsRoot, knowledgeRoot string) *Paths {
	return &Paths{OpsRoot: opsRoot, KnowledgeRoot: knowledgeRoot}
}

// --- static registries ---

func (p *Paths) ReposConfig() string {
	return filepath.Join(p.OpsRoot, "config", "REPOS.json")
}

func (p *Paths) LLMProfilesConfig() string {
	return filepath.Join(p.OpsRoot, "config", "LLM_PROFILES.json")
}

// --- lane A state ---

func (p *Paths) laneA(parts ...string) string {
	return filepath.Join(append([]string{p.OpsRoot, "ai", "lane_a"}, parts...)...)
}

func (p *Paths) PhaseState() string        { return p.laneA("phases", "PHASE.json") }
func (p *Paths) ForwardBlocked() string    { return p.laneA("phases", "FORWARD_BLOCKED.json") }
func (p *Paths) MeetingsDir() string       { return p.laneA("meetings") }
func (p *Paths) MeetingDir(id string) string { return filepath.Join(p.MeetingsDir(), id) }
func (p *Paths) SufficiencyDir() string    { return p.laneA("sufficiency") }
func (p *Paths) SufficiencyCurrent() string {
	return filepath.Join(p.SufficiencyDir(), "SUFFICIENCY.json")
}
func (p *Paths) SufficiencyHistoryDir() string {
	return filepath.Join(p.SufficiencyDir(), "history")
}
func (p *Paths) CurrentVersion() string {
	return filepath.Join(p.SufficiencyDir(), "CURRENT_VERSION.json")
}
func (p *Paths) EventSegmentsDir() string { return p.laneA("events", "segments") }
func (p *Paths) EventCheckpointsDir() string {
	return p.laneA("events", "checkpoints")
}
func (p *Paths) LastRefreshCheckpoint() string {
	return filepath.Join(p.EventCheckpointsDir(), "last_refresh.json")
}
func (p *Paths) Kickoff() string            { return p.laneA("kickoff", "KICKOFF.md") }
func (p *Paths) Ledger() string             { return p.laneA("ledger.jsonl") }
func (p *Paths) ChangeRequestsDir() string  { return p.laneA("change_requests") }
func (p *Paths) StalenessObservationsDir() string {
	return p.laneA("staleness", "observations")
}
func (p *Paths) WorkDir(workID string) string {
	return p.laneA("work", workID)
}
func (p *Paths) LogsDir() string { return filepath.Join(p.OpsRoot, "logs") }

// --- knowledge store ---

func (p *Paths) RepoIndex(repoID string) string {
	return filepath.Join(p.KnowledgeRoot, "evidence", "index", "repos", repoID, "repo_index.json")
}

func (p *Paths) EvidenceRefs(repoID string) string {
	return filepath.Join(p.KnowledgeRoot, "evidence", "repos", repoID, "evidence_refs.jsonl")
}

func (p *Paths) RepoScan(repoID string) string {
	return filepath.Join(p.KnowledgeRoot, "ssot", "repos", repoID, "scan.json")
}

func (p *Paths) RepoCommitteeDir(repoID string) string {
	return filepath.Join(p.KnowledgeRoot, "ssot", "repos", repoID, "committee")
}

func (p *Paths) ArchitectClaims(repoID string) string {
	return filepath.Join(p.RepoCommitteeDir(repoID), "architect_claims.json")
}

func (p *Paths) SkepticChallenges(repoID string) string {
	return filepath.Join(p.RepoCommitteeDir(repoID), "skeptic_challenges.json")
}

func (p *Paths) QAStrategy(repoID string) string {
	return filepath.Join(p.RepoCommitteeDir(repoID), "qa_strategy.json")
}

func (p *Paths) CommitteeStatus(repoID string) string {
	return filepath.Join(p.RepoCommitteeDir(repoID), "committee_status.json")
}

func (p *Paths) IntegrationDir() string {
	return filepath.Join(p.KnowledgeRoot, "ssot", "system", "committee", "integration")
}

func (p *Paths) IntegrationFindings() string {
	return filepath.Join(p.IntegrationDir(), "integration_findings.json")
}

func (p *Paths) IntegrationStatus() string {
	return filepath.Join(p.IntegrationDir(), "integration_status.json")
}

func (p *Paths) DecisionsDir() string {
	return filepath.Join(p.KnowledgeRoot, "decisions")
}

func (p *Paths) SufficiencyLatest() string {
	return filepath.Join(p.DecisionsDir(), "sufficiency", "LATEST.json")
}

func (p *Paths) MeetingDecisionsDir() string {
	return filepath.Join(p.DecisionsDir(), "meetings")
}

func (p *Paths) MeetingDecisionsLatest() string {
	return filepath.Join(p.MeetingDecisionsDir(), "LATEST.json")
}

// MarkdownSibling maps an artifact's .json path to its .md rendering.
func MarkdownSibling(jsonPath string) string {
	ext := filepath.Ext(jsonPath)
	return jsonPath[:len(jsonPath)-len(ext)] + ".md"
}

// ErrorSibling maps an artifact's .json path to its typed error artifact.
func ErrorSibling(jsonPath string) string {
	ext := filepath.Ext(jsonPath)
	return jsonPath[:len(jsonPath)-len(ext)] + ".error.json"
}
