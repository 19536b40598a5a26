package knowledge_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lanea/internal/config"
	"lanea/internal/knowledge"
)

func newVersions(t *testing.T) *knowledge.Versions {
	root := t.TempDir()
	return knowledge.NewVersions(config.NewPaths(root, root+"/knowledge"))
}

func TestCurrentDefaultsBeforeAnyBump(t *testing.T) {
	v := newVersions(t)
	require.Equal(t, knowledge.DefaultVersion, v.Current())
}

func TestBumpSequence(t *testing.T) {
	v := newVersions(t)

	label, err := v.Bump("bump_patch", "alex", "meeting m-1")
	require.NoError(t, err)
	require.Equal(t, "v0.0.1", label)

	label, err = v.Bump("bump_minor", "alex", "meeting m-2")
	require.NoError(t, err)
	require.Equal(t, "v0.1.0", label)

	label, err = v.Bump("bump_major", "alex", "meeting m-3")
	require.NoError(t, err)
	require.Equal(t, "v1.0.0", label)
	require.Equal(t, "v1.0.0", v.Current())
}

func TestNoBumpLeavesVersionUntouched(t *testing.T) {
	v := newVersions(t)
	_, err := v.Bump("bump_minor", "alex", "meeting m-1")
	require.NoError(t, err)

	label, err := v.Bump("no_bump", "alex", "meeting m-2")
	require.NoError(t, err)
	require.Equal(t, "v0.1.0", label)
	require.Equal(t, "v0.1.0", v.Current())
}

func TestUnknownBumpKindErrors(t *testing.T) {
	v := newVersions(t)
	_, err := v.Bump("bump_epoch", "alex", "manual")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown version bump")
}
