// Package events reads the merge-event segment files an external producer
// drops under ai/lane_a/events/segments/ and appends audit entries to the
// lane ledger. Two historical segment filename shapes are accepted; both
// sort lexicographically in chronological order.
package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"lanea/internal/fsatomic"
	"lanea/internal/types"
)

// MaxSegmentFiles caps how many most-recent segment files a scan reads.
const MaxSegmentFiles = 48

var (
	segmentHourly   = regexp.MustCompile(`^events-\d{8}-\d{2}\.jsonl$`)
	segmentInstant  = regexp.MustCompile(`^\d{8}-\d{6}\.jsonl$`)
)

// IsSegmentName reports whether name is a recognized segment filename.
func IsSegmentName(name string) bool {
	return segmentHourly.MatchString(name) || segmentInstant.MatchString(name)
}

// SegmentName formats the canonical (hourly) segment name for t. New
// writers produce only this shape; the reader keeps accepting both.
func SegmentName(t time.Time) string {
	return fmt.Sprintf("events-%s.jsonl", t.UTC().Format("20060102-15"))
}

// Store reads segments and appends ledger entries.
type Store struct {
	SegmentsDir string
	LedgerPath  string
}

// LatestMergeEventTime returns the newest merge-event timestamp for the
// repo across the most recent segment files, or nil when none exists.
func (s *Store) LatestMergeEventTime(repoID string) (*time.Time, error) {
	entries, err := os.ReadDir(s.SegmentsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read segments dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsSegmentName(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if len(names) > MaxSegmentFiles {
		names = names[len(names)-MaxSegmentFiles:]
	}

	var latest *time.Time
	for _, name := range names {
		path := filepath.Join(s.SegmentsDir, name)
		err := fsatomic.ReadJSONL(path, func(line []byte) error {
			var ev types.MergeEvent
			if err := json.Unmarshal(line, &ev); err != nil {
				// Malformed producer lines are skipped, not fatal.
				return nil
			}
			if ev.Type != "merge" || ev.RepoID != repoID {
				return nil
			}
			if latest == nil || ev.Timestamp.After(*latest) {
				t := ev.Timestamp
				latest = &t
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return latest, nil
}

// AppendLedger records an override audit event and returns it.
func (s *Store) AppendLedger(eventType, scope, actor, reason string, now time.Time) (*types.LedgerEvent, error) {
	ev := types.LedgerEvent{
		Type:      eventType,
		Scope:     scope,
		Actor:     actor,
		Reason:    reason,
		EventID:   uuid.NewString(),
		Timestamp: now.UTC(),
	}
	if err := fsatomic.AppendJSONL(s.LedgerPath, ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// RefreshCheckpoint is the last successful committee refresh per scope.
type RefreshCheckpoint struct {
	Scope       string    `json:"scope"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// WriteRefreshCheckpoint records that scope was refreshed at now.
func WriteRefreshCheckpoint(path, scope string, now time.Time) error {
	return fsatomic.WriteJSON(path, RefreshCheckpoint{Scope: scope, RefreshedAt: now.UTC()})
}
