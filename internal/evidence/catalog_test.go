package evidence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"lanea/internal/evidence"
	"lanea/internal/gitio"
	"lanea/internal/testing/projharness"
	"lanea/internal/types"
)

func newCatalog(h *projharness.Harness) *evidence.Catalog {
	cat := evidence.New(h.Project)
	cat.Git = &gitio.Client{Runner: h.Git}
	return cat
}

func ref(id, repo, sha, path string, start, end int) types.EvidenceRef {
	return types.EvidenceRef{
		EvidenceID: id, RepoID: repo, CommitSHA: sha,
		FilePath: path, StartLine: start, EndLine: end,
	}
}

func TestLoadRefsSortsByFilePath(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.WriteEvidenceRefs("repo-a", []types.EvidenceRef{
		ref("E2", "repo-a", "sha1", "src/z.js", 1, 2),
		ref("E1", "repo-a", "sha1", "src/a.js", 1, 2),
	}, nil)

	refs, err := newCatalog(h).LoadRefs("repo-a")
	require.NoError(t, err)
	require.Equal(t, "E1", refs[0].EvidenceID)
	require.Equal(t, "E2", refs[1].EvidenceID)
}

func TestLoadRefsRejectsDuplicates(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.WriteEvidenceRefs("repo-a", []types.EvidenceRef{
		ref("E1", "repo-a", "sha1", "src/a.js", 1, 2),
		ref("E1", "repo-a", "sha1", "src/b.js", 1, 2),
	}, nil)

	_, err := newCatalog(h).LoadRefs("repo-a")
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate evidence_id")
}

func TestLoadRefsMissingFile(t *testing.T) {
	h := projharness.New(t, "repo-a")
	_, err := newCatalog(h).LoadRefs("repo-a")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing_evidence_refs")
}

func TestBuildBundleSlicesInclusive(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.WriteEvidenceRefs("repo-a", []types.EvidenceRef{
		ref("E1", "repo-a", "sha1", "src/index.js", 2, 3),
	}, map[string]string{
		"sha1:src/index.js": "line1\nline2\nline3\nline4\n",
	})

	cat := newCatalog(h)
	refs, err := cat.LoadRefs("repo-a")
	require.NoError(t, err)

	bundle, err := cat.BuildBundle(context.Background(), "repo-a", refs)
	require.NoError(t, err)
	require.Len(t, bundle, 1)
	require.Equal(t, "line2\nline3", bundle[0].Excerpt)
}

func TestBuildBundleRefusesPartial(t *testing.T) {
	h := projharness.New(t, "repo-a")
	h.WriteEvidenceRefs("repo-a", []types.EvidenceRef{
		ref("E1", "repo-a", "sha1", "src/ok.js", 1, 1),
		ref("E2", "repo-a", "sha1", "src/gone.js", 1, 1),
	}, map[string]string{
		"sha1:src/ok.js": "hello\n",
	})

	cat := newCatalog(h)
	refs, err := cat.LoadRefs("repo-a")
	require.NoError(t, err)

	_, err = cat.BuildBundle(context.Background(), "repo-a", refs)
	require.Error(t, err)
	require.Contains(t, err.Error(), "E2")
}
