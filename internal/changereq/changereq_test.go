package changereq_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lanea/internal/changereq"
	"lanea/internal/testing/projharness"
	"lanea/internal/types"
)

func newStore(t *testing.T) (*changereq.Store, *projharness.Harness) {
	h := projharness.New(t, "repo-a")
	s := changereq.NewStore(h.Project.Paths)
	clock := h.Clock
	s.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s, h
}

func TestBindTakesOldestOpenFirst(t *testing.T) {
	s, _ := newStore(t)

	var filed []string
	for i := 0; i < 12; i++ {
		cr, err := s.Create("bug", fmt.Sprintf("issue %d", i), "medium", "repo:repo-a")
		require.NoError(t, err)
		filed = append(filed, cr.ID)
	}

	bound, err := s.BindToMeeting("repo:repo-a", "M-1")
	require.NoError(t, err)
	require.Len(t, bound, changereq.MaxBoundPerMeeting)
	require.Equal(t, filed[:10], bound, "binding is oldest-first")

	stillOpen, err := s.List(types.ChangeRequestOpen, "repo:repo-a")
	require.NoError(t, err)
	require.Len(t, stillOpen, 2)
}

func TestBindSkipsOtherScopes(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.Create("bug", "theirs", "low", "repo:other")
	require.NoError(t, err)
	mine, err := s.Create("feature", "mine", "high", "repo:repo-a")
	require.NoError(t, err)

	bound, err := s.BindToMeeting("repo:repo-a", "M-1")
	require.NoError(t, err)
	require.Equal(t, []string{mine.ID}, bound)
}

func TestProcessedAndReleaseRoundTrip(t *testing.T) {
	s, _ := newStore(t)

	cr, err := s.Create("bug", "flaky login", "high", "system")
	require.NoError(t, err)

	bound, err := s.BindToMeeting("system", "M-1")
	require.NoError(t, err)
	require.Equal(t, []string{cr.ID}, bound)

	require.NoError(t, s.Release(bound))
	open, err := s.List(types.ChangeRequestOpen, "system")
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Empty(t, open[0].LinkedMeetingID)

	bound, err = s.BindToMeeting("system", "M-2")
	require.NoError(t, err)
	require.NoError(t, s.MarkProcessed(bound))

	processed, err := s.List(types.ChangeRequestProcessed, "system")
	require.NoError(t, err)
	require.Len(t, processed, 1)
	require.Equal(t, "M-2", processed[0].LinkedMeetingID)
}
