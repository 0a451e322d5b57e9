package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"dossier/internal/players/models"
	id "dossier/pkg/domain"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/platform/sentinel"
	pstrings "dossier/pkg/platform/strings"
)

// InMemoryStore keeps players, their histories and annotations in maps. It
// honours the same uniqueness rules as the Postgres store.
type InMemoryStore struct {
	mu           sync.RWMutex
	players      map[id.PlayerID]*models.Player
	byExternalID map[string]id.PlayerID
	handles      map[id.PlayerID][]*models.HandleHistory
	orgs         map[id.PlayerID][]*models.OrgAffiliation
	comments     map[id.CommentID]*models.Comment
	tags         map[id.TagID]*models.Tag
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		players:      make(map[id.PlayerID]*models.Player),
		byExternalID: make(map[string]id.PlayerID),
		handles:      make(map[id.PlayerID][]*models.HandleHistory),
		orgs:         make(map[id.PlayerID][]*models.OrgAffiliation),
		comments:     make(map[id.CommentID]*models.Comment),
		tags:         make(map[id.TagID]*models.Tag),
	}
}

func copyPlayer(p *models.Player) *models.Player {
	cp := *p
	if p.LastExternalSyncAt != nil {
		t := *p.LastExternalSyncAt
		cp.LastExternalSyncAt = &t
	}
	return &cp
}

func (s *InMemoryStore) Create(_ context.Context, player *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byExternalID[player.ExternalID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.players[player.ID]; exists {
		return sentinel.ErrConflict
	}
	s.players[player.ID] = copyPlayer(player)
	s.byExternalID[player.ExternalID] = player.ID
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, player *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.players[player.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	updated := copyPlayer(player)
	updated.ExternalID = existing.ExternalID
	updated.FirstObservedAt = existing.FirstObservedAt
	s.players[player.ID] = updated
	return nil
}

func (s *InMemoryStore) Touch(_ context.Context, playerID id.PlayerID, observedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if observedAt.After(p.LastObservedAt) {
		p.LastObservedAt = observedAt
	}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, playerID id.PlayerID) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[playerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyPlayer(p), nil
}

func (s *InMemoryStore) FindByExternalID(_ context.Context, externalID string) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playerID, ok := s.byExternalID[externalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyPlayer(s.players[playerID]), nil
}

// FindByCurrentHandle matches case-insensitively. When several players share a
// handle, active players win, then the most recently observed.
func (s *InMemoryStore) FindByCurrentHandle(_ context.Context, handle string) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := pstrings.FoldKey(handle)
	var best *models.Player
	for _, p := range s.players {
		if pstrings.FoldKey(p.CurrentHandle) != key {
			continue
		}
		if best == nil || preferPlayer(p, best) {
			best = p
		}
	}
	if best == nil {
		return nil, sentinel.ErrNotFound
	}
	return copyPlayer(best), nil
}

func preferPlayer(a, b *models.Player) bool {
	if a.IsActive != b.IsActive {
		return a.IsActive
	}
	return a.LastObservedAt.After(b.LastObservedAt)
}

func (s *InMemoryStore) SearchCurrent(_ context.Context, term string, limit int) ([]*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Player
	for _, p := range s.players {
		if p.IsActive && pstrings.ContainsFold(p.CurrentHandle, term) {
			out = append(out, copyPlayer(p))
		}
	}
	sortSearch(out, term)
	return truncate(out, limit), nil
}

func (s *InMemoryStore) SearchHistorical(_ context.Context, term string, limit int) ([]*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Player
	for playerID, entries := range s.handles {
		p := s.players[playerID]
		if p == nil || !p.IsActive {
			continue
		}
		if slices.ContainsFunc(entries, func(h *models.HandleHistory) bool {
			return pstrings.ContainsFold(h.Handle, term)
		}) {
			out = append(out, copyPlayer(p))
		}
	}
	sortSearch(out, term)
	return truncate(out, limit), nil
}

// sortSearch puts exact handle matches first, then most recently observed.
func sortSearch(players []*models.Player, term string) {
	key := pstrings.FoldKey(term)
	sort.SliceStable(players, func(i, j int) bool {
		ei := pstrings.FoldKey(players[i].CurrentHandle) == key
		ej := pstrings.FoldKey(players[j].CurrentHandle) == key
		if ei != ej {
			return ei
		}
		return players[i].LastObservedAt.After(players[j].LastObservedAt)
	})
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// UpsertHandle inserts a history row or refreshes the existing (player, handle) row.
func (s *InMemoryStore) UpsertHandle(_ context.Context, entry *models.HandleHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[entry.PlayerID]; !ok {
		return sentinel.ErrNotFound
	}
	for _, h := range s.handles[entry.PlayerID] {
		if h.Handle == entry.Handle {
			h.LastObservedAt = entry.LastObservedAt
			h.DisplayName = entry.DisplayName
			return nil
		}
	}
	cp := *entry
	s.handles[entry.PlayerID] = append(s.handles[entry.PlayerID], &cp)
	return nil
}

func (s *InMemoryStore) ListHandles(_ context.Context, playerID id.PlayerID) ([]*models.HandleHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.handles[playerID]
	out := make([]*models.HandleHistory, 0, len(entries))
	for _, h := range entries {
		cp := *h
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FirstObservedAt.Before(out[j].FirstObservedAt)
	})
	return out, nil
}

// ReconcileAffiliations upserts the reported memberships as current and marks
// every other membership of the player as no longer current.
func (s *InMemoryStore) ReconcileAffiliations(_ context.Context, playerID id.PlayerID, current []*models.OrgAffiliation, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[playerID]; !ok {
		return sentinel.ErrNotFound
	}
	reported := make(map[string]*models.OrgAffiliation, len(current))
	for _, a := range current {
		reported[a.OrgSID] = a
	}
	existing := s.orgs[playerID]
	seen := make(map[string]bool, len(existing))
	for _, a := range existing {
		seen[a.OrgSID] = true
		if r, ok := reported[a.OrgSID]; ok {
			a.OrgName = r.OrgName
			a.Role = r.Role
			a.IsMain = r.IsMain
			a.IsCurrent = true
			a.LastObservedAt = now
			continue
		}
		a.IsCurrent = false
	}
	for _, a := range current {
		if seen[a.OrgSID] {
			continue
		}
		seen[a.OrgSID] = true
		cp := *reported[a.OrgSID]
		cp.PlayerID = playerID
		cp.IsCurrent = true
		cp.FirstObservedAt = now
		cp.LastObservedAt = now
		existing = append(existing, &cp)
	}
	s.orgs[playerID] = existing
	return nil
}

func (s *InMemoryStore) ListAffiliations(_ context.Context, playerID id.PlayerID) ([]*models.OrgAffiliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.OrgAffiliation, 0, len(s.orgs[playerID]))
	for _, a := range s.orgs[playerID] {
		cp := *a
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsCurrent != out[j].IsCurrent {
			return out[i].IsCurrent
		}
		return out[i].OrgSID < out[j].OrgSID
	})
	return out, nil
}

func (s *InMemoryStore) CreateComment(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[comment.PlayerID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *comment
	s.comments[comment.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindComment(_ context.Context, commentID id.CommentID) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[commentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemoryStore) ListComments(_ context.Context, playerID id.PlayerID, page pagination.Params) (pagination.Page[*models.Comment], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []*models.Comment
	for _, c := range s.comments {
		if c.PlayerID == playerID {
			cp := *c
			all = append(all, &cp)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return pagination.Slice(all, page), nil
}

// CreateTag stores tag unless the player already carries the label, in which
// case the existing tag is returned.
func (s *InMemoryStore) CreateTag(_ context.Context, tag *models.Tag) (*models.Tag, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[tag.PlayerID]; !ok {
		return nil, false, sentinel.ErrNotFound
	}
	for _, t := range s.tags {
		if t.PlayerID == tag.PlayerID && t.Label == tag.Label {
			cp := *t
			return &cp, false, nil
		}
	}
	cp := *tag
	s.tags[tag.ID] = &cp
	out := cp
	return &out, true, nil
}

func (s *InMemoryStore) FindTag(_ context.Context, tagID id.TagID) (*models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tags[tagID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *InMemoryStore) ListTags(_ context.Context, playerID id.PlayerID) ([]*models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Tag{}
	for _, t := range s.tags {
		if t.PlayerID == playerID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}
