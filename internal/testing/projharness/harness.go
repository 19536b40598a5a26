// Package projharness builds throwaway on-disk project fixtures for
// package tests: a registry, knowledge artifacts, event segments, a fake
// git runner and a fixed clock.
package projharness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lanea/internal/config"
	"lanea/internal/events"
	"lanea/internal/fsatomic"
	"lanea/internal/gitio"
	"lanea/internal/staleness"
	"lanea/internal/types"
)

// Harness is a self-contained project rooted in a temp dir.
type Harness struct {
	T       *testing.T
	Project *config.Project
	Git     *FakeGit
	Clock   time.Time
}

// FakeGit serves HEAD shas and file contents without a working tree.
type FakeGit struct {
	// Heads maps repo abs path -> HEAD sha.
	Heads map[string]string
	// Files maps "<sha>:<path>" -> contents for git show.
	Files map[string]string
}

// Run implements gitio.Runner.
func (g *FakeGit) Run(_ context.Context, dir string, args ...string) (string, error) {
	joined := strings.Join(args, " ")
	switch {
	case joined == "rev-parse HEAD":
		if sha, found := g.Heads[dir]; found {
			return sha + "\n", nil
		}
		return "", fmt.Errorf("git rev-parse HEAD: not a git repository")
	case len(args) == 2 && args[0] == "show":
		if contents, found := g.Files[args[1]]; found {
			return contents, nil
		}
		return "", fmt.Errorf("git show %s: path does not exist", args[1])
	default:
		return "", fmt.Errorf("fake git: unsupported invocation %q", joined)
	}
}

// New creates a project fixture with the given active repo ids.
func New(t *testing.T, repoIDs ...string) *Harness {
	t.Helper()
	root := t.TempDir()

	repos := map[string]types.RepoEntry{}
	for _, id := range repoIDs {
		dir := filepath.Join(root, "repos", id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		repos[id] = types.RepoEntry{Path: filepath.Join("repos", id), Status: "active"}
	}

	registry := types.RepoRegistry{BaseDir: root, Repos: repos}
	if err := fsatomic.WriteJSON(filepath.Join(root, "config", "REPOS.json"), registry); err != nil {
		t.Fatal(err)
	}

	project, err := config.LoadProject(root, "")
	if err != nil {
		t.Fatal(err)
	}

	return &Harness{
		T:       t,
		Project: project,
		Git:     &FakeGit{Heads: map[string]string{}, Files: map[string]string{}},
		Clock:   time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}
}

// Engine returns a staleness engine wired to the fake git and fixed clock.
func (h *Harness) Engine() *staleness.Engine {
	engine := staleness.New(h.Project)
	engine.Git = &gitio.Client{Runner: h.Git}
	engine.Now = func() time.Time { return h.Clock }
	return engine
}

// SetHead points the fake git HEAD for a repo.
func (h *Harness) SetHead(repoID, sha string) {
	abs, _ := h.Project.RepoAbsPath(repoID)
	h.Git.Heads[abs] = sha
}

// WriteIndex writes a valid repo_index.json for the repo.
func (h *Harness) WriteIndex(repoID, headSHA string, scannedAt time.Time) {
	h.T.Helper()
	index := types.RepoIndex{HeadSHA: headSHA, ScannedAt: &scannedAt}
	if err := fsatomic.WriteJSON(h.Project.Paths.RepoIndex(repoID), index); err != nil {
		h.T.Fatal(err)
	}
}

// WriteScan writes a valid scan.json for the repo.
func (h *Harness) WriteScan(repoID string, scannedAt time.Time) {
	h.T.Helper()
	scan := types.RepoScan{RepoID: repoID, ScannedAt: &scannedAt}
	if err := fsatomic.WriteJSON(h.Project.Paths.RepoScan(repoID), scan); err != nil {
		h.T.Fatal(err)
	}
}

// ScanAll marks a repo fully scanned at t with the given head.
func (h *Harness) ScanAll(repoID, headSHA string, t time.Time) {
	h.SetHead(repoID, headSHA)
	h.WriteIndex(repoID, headSHA, t)
	h.WriteScan(repoID, t)
}

// AppendMergeEvent drops a merge event into the canonical segment for ts.
func (h *Harness) AppendMergeEvent(repoID string, ts time.Time) {
	h.T.Helper()
	path := filepath.Join(h.Project.Paths.EventSegmentsDir(), events.SegmentName(ts))
	ev := types.MergeEvent{
		Type:      "merge",
		Scope:     types.RepoScope(repoID),
		RepoID:    repoID,
		Timestamp: ts,
		EventID:   fmt.Sprintf("ev-%d", ts.UnixNano()),
	}
	if err := fsatomic.AppendJSONL(path, ev); err != nil {
		h.T.Fatal(err)
	}
}

// WriteEvidenceRefs appends evidence refs for a repo and registers the
// excerpt contents with the fake git.
func (h *Harness) WriteEvidenceRefs(repoID string, refs []types.EvidenceRef, contents map[string]string) {
	h.T.Helper()
	path := h.Project.Paths.EvidenceRefs(repoID)
	for _, ref := range refs {
		if err := fsatomic.AppendJSONL(path, ref); err != nil {
			h.T.Fatal(err)
		}
	}
	for key, body := range contents {
		h.Git.Files[key] = body
	}
}
