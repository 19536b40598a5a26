// Package evidence loads per-repo evidence-ref indexes and slices repo
// files at pinned commits into excerpt bundles for committee prompts.
package evidence

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"lanea/internal/config"
	"lanea/internal/contract"
	"lanea/internal/fsatomic"
	"lanea/internal/gitio"
	"lanea/internal/types"
)

// Catalog resolves evidence refs against pinned commits.
type Catalog struct {
	Project *config.Project
	Git     *gitio.Client
}

// New builds a catalog over the real git binary.
func New(project *config.Project) *Catalog {
	return &Catalog{Project: project, Git: gitio.NewClient()}
}

// LoadRefs reads a repo's evidence_refs.jsonl, validates every line, and
// returns the refs sorted by file_path. Duplicate (repo_id, evidence_id)
// pairs are rejected.
func (c *Catalog) LoadRefs(repoID string) ([]types.EvidenceRef, error) {
	path := c.Project.Paths.EvidenceRefs(repoID)
	if !contract.Exists(path) {
		return nil, fmt.Errorf("missing_evidence_refs: %s (run the scanner to produce it)", path)
	}

	var refs []types.EvidenceRef
	seen := map[string]struct{}{}
	lineNo := 0
	err := fsatomic.ReadJSONL(path, func(line []byte) error {
		lineNo++
		rep := contract.Validate(contract.KindEvidenceRef, line)
		if !rep.OK {
			return fmt.Errorf("invalid_evidence_refs: %s line %d: %s", path, lineNo, rep.Errors[0])
		}
		ref := *rep.Normalized.(*types.EvidenceRef)
		if ref.RepoID != repoID {
			return fmt.Errorf("invalid_evidence_refs: %s line %d: ref %s belongs to repo %q",
				path, lineNo, ref.EvidenceID, ref.RepoID)
		}
		if _, dup := seen[ref.EvidenceID]; dup {
			return fmt.Errorf("invalid_evidence_refs: %s line %d: duplicate evidence_id %s",
				path, lineNo, ref.EvidenceID)
		}
		seen[ref.EvidenceID] = struct{}{}
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].FilePath != refs[j].FilePath {
			return refs[i].FilePath < refs[j].FilePath
		}
		return refs[i].EvidenceID < refs[j].EvidenceID
	})
	return refs, nil
}

// AllowedIDs returns the evidence-id whitelist for a ref set.
func AllowedIDs(refs []types.EvidenceRef) map[string]struct{} {
	allowed := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		allowed[ref.EvidenceID] = struct{}{}
	}
	return allowed
}

// BuildBundle resolves every ref to its excerpt via git show at the
// pinned commit. Any show failure is a hard error; the catalog never
// returns a partial bundle.
func (c *Catalog) BuildBundle(ctx context.Context, repoID string, refs []types.EvidenceRef) ([]types.EvidenceItem, error) {
	repoDir, found := c.Project.RepoAbsPath(repoID)
	if !found {
		return nil, fmt.Errorf("missing_repo: %q is not on disk under %s", repoID, c.Project.Registry.BaseDir)
	}

	items := make([]types.EvidenceItem, 0, len(refs))
	for _, ref := range refs {
		contents, err := c.Git.ShowFile(ctx, repoDir, ref.CommitSHA, ref.FilePath)
		if err != nil {
			return nil, fmt.Errorf("evidence %s: %w", ref.EvidenceID, err)
		}
		excerpt, err := sliceLines(contents, ref.StartLine, ref.EndLine)
		if err != nil {
			return nil, fmt.Errorf("evidence %s (%s): %w", ref.EvidenceID, ref.FilePath, err)
		}
		items = append(items, types.EvidenceItem{
			EvidenceID: ref.EvidenceID,
			FilePath:   ref.FilePath,
			CommitSHA:  ref.CommitSHA,
			StartLine:  ref.StartLine,
			EndLine:    ref.EndLine,
			Excerpt:    excerpt,
		})
	}
	return items, nil
}

// sliceLines returns the inclusive 1-based line range, trailing-trimmed
// but otherwise byte-exact.
func sliceLines(contents string, start, end int) (string, error) {
	lines := strings.Split(contents, "\n")
	if start < 1 || start > len(lines) {
		return "", fmt.Errorf("start line %d out of range (file has %d lines)", start, len(lines))
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.TrimRight(strings.Join(lines[start-1:end], "\n"), "\n \t"), nil
}
