// Package changereq stores externally filed change requests and hands the
// oldest open ones to update meetings for intake.
package changereq

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"lanea/internal/config"
	"lanea/internal/contract"
	"lanea/internal/fsatomic"
	"lanea/internal/logging"
	"lanea/internal/types"
)

// MaxBoundPerMeeting caps how many requests one meeting takes in.
const MaxBoundPerMeeting = 10

// Store is the change-requests directory.
type Store struct {
	Paths *config.Paths
	Now   func() time.Time
}

// NewStore builds a store over the project paths.
func NewStore(paths *config.Paths) *Store {
	return &Store{Paths: paths, Now: time.Now}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.Paths.ChangeRequestsDir(), id+".json")
}

// Create files a new open change request and returns it.
func (s *Store) Create(crType, title, severity, scope string) (*types.ChangeRequest, error) {
	cr := &types.ChangeRequest{
		ID:        "CR-" + uuid.NewString()[:8],
		Type:      crType,
		Title:     title,
		Severity:  severity,
		Scope:     scope,
		Status:    types.ChangeRequestOpen,
		CreatedAt: s.Now().UTC(),
	}
	report := contract.Validate(contract.KindChangeRequest, mustJSON(cr))
	if !report.OK {
		return nil, fmt.Errorf("invalid_change_request: %s", report.Errors[0])
	}
	if err := fsatomic.WriteJSON(s.path(cr.ID), cr); err != nil {
		return nil, err
	}
	logging.Get(logging.CategoryMeeting).Infow("change request filed",
		"id", cr.ID, "scope", scope, "severity", severity)
	return cr, nil
}

// List returns requests matching status and scope (empty string matches
// any), oldest first with the id as tiebreak.
func (s *Store) List(status, scope string) ([]*types.ChangeRequest, error) {
	entries, err := os.ReadDir(s.Paths.ChangeRequestsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []*types.ChangeRequest
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		cr, err := contract.LoadChangeRequest(filepath.Join(s.Paths.ChangeRequestsDir(), e.Name()))
		if err != nil {
			continue
		}
		if status != "" && cr.Status != status {
			continue
		}
		if scope != "" && cr.Scope != scope {
			continue
		}
		out = append(out, cr)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// BindToMeeting moves up to MaxBoundPerMeeting oldest open requests in
// scope to in_meeting and returns their ids.
func (s *Store) BindToMeeting(scope, meetingID string) ([]string, error) {
	open, err := s.List(types.ChangeRequestOpen, scope)
	if err != nil {
		return nil, err
	}
	if len(open) > MaxBoundPerMeeting {
		open = open[:MaxBoundPerMeeting]
	}

	ids := make([]string, 0, len(open))
	for _, cr := range open {
		cr.Status = types.ChangeRequestInMeeting
		cr.LinkedMeetingID = meetingID
		if err := fsatomic.WriteJSON(s.path(cr.ID), cr); err != nil {
			return nil, err
		}
		ids = append(ids, cr.ID)
	}
	return ids, nil
}

// MarkProcessed closes out the given requests after intake approval.
func (s *Store) MarkProcessed(ids []string) error {
	for _, id := range ids {
		cr, err := contract.LoadChangeRequest(s.path(id))
		if err != nil {
			return err
		}
		cr.Status = types.ChangeRequestProcessed
		if err := fsatomic.WriteJSON(s.path(id), cr); err != nil {
			return err
		}
	}
	return nil
}

// Release returns in-meeting requests to open, for aborted meetings.
func (s *Store) Release(ids []string) error {
	for _, id := range ids {
		cr, err := contract.LoadChangeRequest(s.path(id))
		if err != nil {
			return err
		}
		if cr.Status != types.ChangeRequestInMeeting {
			continue
		}
		cr.Status = types.ChangeRequestOpen
		cr.LinkedMeetingID = ""
		if err := fsatomic.WriteJSON(s.path(id), cr); err != nil {
			return err
		}
	}
	return nil
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
