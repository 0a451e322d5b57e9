package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"dossier/internal/attestation/models"
	id "dossier/pkg/domain"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/platform/sentinel"
)

// Key is the natural key of an attestation; at most one row exists per key.
type Key struct {
	Kind       models.ArtifactKind
	ArtifactID uuid.UUID
	VoterID    id.CallerID
}

func keyOf(a *models.Attestation) Key {
	return Key{Kind: a.ArtifactKind, ArtifactID: a.ArtifactID, VoterID: a.VoterID}
}

// InMemoryStore keeps attestations keyed by (kind, artifact, voter).
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[Key]*models.Attestation
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{rows: make(map[Key]*models.Attestation)}
}

func copyAttestation(a *models.Attestation) *models.Attestation {
	cp := *a
	return &cp
}

// Upsert inserts a or, when the voter already voted on the artifact, replaces
// the type and comment while keeping the original id and created_at.
func (s *InMemoryStore) Upsert(_ context.Context, a *models.Attestation) (*models.Attestation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(a)
	if existing, ok := s.rows[k]; ok {
		existing.Type = a.Type
		existing.Comment = a.Comment
		existing.UpdatedAt = a.UpdatedAt
		return copyAttestation(existing), nil
	}
	s.rows[k] = copyAttestation(a)
	return copyAttestation(a), nil
}

func (s *InMemoryStore) Find(_ context.Context, k Key) (*models.Attestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.rows[k]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyAttestation(a), nil
}

// Delete removes the vote under k and reports whether one existed.
func (s *InMemoryStore) Delete(_ context.Context, k Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[k]; !ok {
		return false, nil
	}
	delete(s.rows, k)
	return true, nil
}

// ListByArtifact pages the votes on one artifact, oldest first.
func (s *InMemoryStore) ListByArtifact(_ context.Context, kind models.ArtifactKind, artifactID uuid.UUID, page pagination.Params) (pagination.Page[*models.Attestation], error) {
	s.mu.RLock()
	var matched []*models.Attestation
	for k, a := range s.rows {
		if k.Kind == kind && k.ArtifactID == artifactID {
			matched = append(matched, copyAttestation(a))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].VoterID < matched[j].VoterID
	})
	return pagination.Slice(matched, page), nil
}

// Tally counts votes per artifact. Artifacts without votes are absent from
// the result.
func (s *InMemoryStore) Tally(_ context.Context, kind models.ArtifactKind, artifactIDs []uuid.UUID) (map[uuid.UUID]models.Tally, error) {
	wanted := make(map[uuid.UUID]struct{}, len(artifactIDs))
	for _, artifactID := range artifactIDs {
		wanted[artifactID] = struct{}{}
	}
	out := make(map[uuid.UUID]models.Tally)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, a := range s.rows {
		if k.Kind != kind {
			continue
		}
		if _, ok := wanted[k.ArtifactID]; !ok {
			continue
		}
		t := out[k.ArtifactID]
		t.Add(a.Type, 1)
		out[k.ArtifactID] = t
	}
	return out, nil
}
