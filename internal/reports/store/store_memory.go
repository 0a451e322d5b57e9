package store

import (
	"context"
	"sort"
	"sync"

	"dossier/internal/reports/models"
	id "dossier/pkg/domain"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/platform/sentinel"
)

// InMemoryStore keeps reports in a map; used by unit tests and local runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	reports map[id.ReportID]*models.Report
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{reports: make(map[id.ReportID]*models.Report)}
}

func copyReport(r *models.Report) *models.Report {
	cp := *r
	if r.SecondaryPlayerID != nil {
		pid := *r.SecondaryPlayerID
		cp.SecondaryPlayerID = &pid
	}
	return &cp
}

func (s *InMemoryStore) Create(_ context.Context, report *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[report.ID]; exists {
		return sentinel.ErrConflict
	}
	s.reports[report.ID] = copyReport(report)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, reportID id.ReportID) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[reportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyReport(r), nil
}

// ListByPlayer pages the reports filed against a main player, newest first. An
// empty kind matches every kind.
func (s *InMemoryStore) ListByPlayer(_ context.Context, playerID id.PlayerID, kind models.Kind, page pagination.Params) (pagination.Page[*models.Report], error) {
	s.mu.RLock()
	var matched []*models.Report
	for _, r := range s.reports {
		if r.MainPlayerID != playerID {
			continue
		}
		if kind != "" && r.Kind != kind {
			continue
		}
		matched = append(matched, copyReport(r))
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	return pagination.Slice(matched, page), nil
}
