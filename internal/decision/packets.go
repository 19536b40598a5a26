// Package decision writes and answers Decision Packets: structured,
// file-backed escalations asking a human to resolve an automation block.
// Creation is idempotent per (scope, kind) while a packet stays open.
package decision

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gowebpki/jcs"

	"lanea/internal/config"
	"lanea/internal/contract"
	"lanea/internal/fsatomic"
	"lanea/internal/logging"
	"lanea/internal/types"
)

// KindRefreshRequired is the packet kind written on hard-stale refusals.
const KindRefreshRequired = "refresh-required"

// Store manages the decisions directory of the knowledge repo.
type Store struct {
	Paths *config.Paths
	Now   func() time.Time
}

// NewStore builds a packet store.
func NewStore(paths *config.Paths) *Store {
	return &Store{Paths: paths, Now: time.Now}
}

// ID derives the deterministic decision id from scope, blocking state and
// kind. The identity tuple is JCS-canonicalized before hashing so the id
// survives field reordering.
func ID(scope, blockingState, kind string) string {
	identity, _ := json.Marshal(map[string]string{
		"scope":          scope,
		"blocking_state": blockingState,
		"kind":           kind,
	})
	canonical, err := jcs.Transform(identity)
	if err != nil {
		canonical = identity
	}
	sum := sha256.Sum256(canonical)
	return "D-" + hex.EncodeToString(sum[:8])
}

// Filenames carry a timestamp so an answered packet is never overwritten
// when the same condition recurs; identity lives in decision_id.
func (s *Store) filename(kind, scope string, createdAt time.Time) string {
	return fmt.Sprintf("DECISION-%s-%s-%s.json", kind, types.ScopeSlug(scope),
		createdAt.UTC().Format("20060102_150405"))
}

func (s *Store) prefix(kind, scope string) string {
	return fmt.Sprintf("DECISION-%s-%s-", kind, types.ScopeSlug(scope))
}

// FindOpen returns the open packet for (scope, kind), or nil.
func (s *Store) FindOpen(scope, kind string) (*types.DecisionPacket, string, error) {
	entries, err := os.ReadDir(s.Paths.DecisionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("read decisions dir: %w", err)
	}

	prefix := s.prefix(kind, scope)
	names := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(s.Paths.DecisionsDir(), name)
		packet, err := contract.LoadDecisionPacket(path)
		if err != nil {
			return nil, "", err
		}
		if packet.Status == types.DecisionOpen {
			return packet, path, nil
		}
	}
	return nil, "", nil
}

// CreateIdempotent returns the existing open packet for (scope, kind) if
// one exists, otherwise writes packet (JSON plus Markdown sibling) and
// returns it.
func (s *Store) CreateIdempotent(kind string, packet *types.DecisionPacket) (*types.DecisionPacket, error) {
	existing, _, err := s.FindOpen(packet.Scope, kind)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	packet.DecisionID = ID(packet.Scope, packet.BlockingState, kind)
	packet.CreatedAt = s.Now().UTC()
	packet.Status = types.DecisionOpen

	path := filepath.Join(s.Paths.DecisionsDir(), s.filename(kind, packet.Scope, packet.CreatedAt))
	if err := fsatomic.WriteJSON(path, packet); err != nil {
		return nil, err
	}
	if err := fsatomic.WriteFile(config.MarkdownSibling(path), []byte(renderMarkdown(packet))); err != nil {
		return nil, err
	}
	logging.Get(logging.CategoryDecision).Infow("decision packet created",
		"decision_id", packet.DecisionID, "scope", packet.Scope, "kind", kind)
	return packet, nil
}

// Answer records per-question answers on a packet and closes it for
// idempotent reuse.
func (s *Store) Answer(path string, answers map[string]string) (*types.DecisionPacket, error) {
	packet, err := contract.LoadDecisionPacket(path)
	if err != nil {
		return nil, err
	}
	if packet.Status == types.DecisionAnswered {
		return nil, fmt.Errorf("decision %s is already answered", packet.DecisionID)
	}
	for _, q := range packet.Questions {
		if _, found := answers[q.ID]; !found {
			return nil, fmt.Errorf("decision %s: question %s has no answer", packet.DecisionID, q.ID)
		}
	}

	now := s.Now().UTC()
	packet.Status = types.DecisionAnswered
	packet.AnsweredAt = &now
	packet.Answers = answers

	if err := fsatomic.WriteJSON(path, packet); err != nil {
		return nil, err
	}
	if err := fsatomic.WriteFile(config.MarkdownSibling(path), []byte(renderMarkdown(packet))); err != nil {
		return nil, err
	}
	return packet, nil
}

// OpenIDs lists the ids of all open packets for scope.
func (s *Store) OpenIDs(scope string) ([]string, error) {
	entries, err := os.ReadDir(s.Paths.DecisionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	ids := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "DECISION-") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		packet, err := contract.LoadDecisionPacket(filepath.Join(s.Paths.DecisionsDir(), e.Name()))
		if err != nil {
			continue
		}
		if packet.Scope == scope && packet.Status == types.DecisionOpen {
			ids = append(ids, packet.DecisionID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// AnsweredFor returns the answered packets for a scope, oldest first.
// Committee payloads feed these back to the oracle as resolved context.
func (s *Store) AnsweredFor(scope string) ([]*types.DecisionPacket, error) {
	entries, err := os.ReadDir(s.Paths.DecisionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	names := make([]string, 0)
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "DECISION-") && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var packets []*types.DecisionPacket
	for _, name := range names {
		packet, err := contract.LoadDecisionPacket(filepath.Join(s.Paths.DecisionsDir(), name))
		if err != nil {
			continue
		}
		if packet.Scope == scope && packet.Status == types.DecisionAnswered {
			packets = append(packets, packet)
		}
	}
	return packets, nil
}

func renderMarkdown(p *types.DecisionPacket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Decision %s\n\n", p.DecisionID)
	fmt.Fprintf(&b, "- Scope: `%s`\n- Trigger: %s\n- Blocking: %s\n- Status: %s\n\n",
		p.Scope, p.Trigger, p.BlockingState, p.Status)
	fmt.Fprintf(&b, "## Context\n\n%s\n\n%s\n\n", p.Context.Summary, p.Context.WhyAutomationFailed)
	if len(p.Context.WhatIsKnown) > 0 {
		b.WriteString("What is known:\n\n")
		for _, item := range p.Context.WhatIsKnown {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
	}
	b.WriteString("## Questions\n\n")
	for _, q := range p.Questions {
		fmt.Fprintf(&b, "### %s (%s)\n\n%s\n\n", q.ID, q.ExpectedAnswerType, q.Question)
		if answer, found := p.Answers[q.ID]; found {
			fmt.Fprintf(&b, "**Answer:** %s\n\n", answer)
		}
	}
	return b.String()
}
