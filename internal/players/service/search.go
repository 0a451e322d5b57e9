package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"dossier/internal/identitysource"
	"dossier/internal/invalidation"
	"dossier/internal/players/models"
	dErrors "dossier/pkg/domain-errors"
	"dossier/pkg/requestcontext"
)

// SearchResult is a deduplicated list of players matching a handle fragment.
type SearchResult struct {
	Hits   []models.SearchHit
	Signal invalidation.Signal
}

// SearchByHandle looks for term among current handles, historical handles and
// upstream in parallel. Each player appears once, tagged with the first source
// that produced it in that order. An upstream hit for a player not yet known is
// stored before it is returned.
func (s *Service) SearchByHandle(ctx context.Context, term string, limit int) (*SearchResult, error) {
	ctx, span := tracer.Start(ctx, "players.SearchByHandle")
	defer span.End()
	defer s.observeSearch(time.Now())

	term = strings.TrimSpace(term)
	if term == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "search term is required")
	}
	if len(term) > models.MaxHandleLength {
		return nil, dErrors.New(dErrors.CodeValidation, "search term must be 64 characters or less")
	}
	switch {
	case limit <= 0:
		limit = DefaultSearchLimit
	case limit > MaxSearchLimit:
		limit = MaxSearchLimit
	}
	now := requestcontext.Now(ctx)

	var (
		current    []*models.Player
		historical []*models.Player
		sourced    *identitysource.Identity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.store.SearchCurrent(gctx, term, limit)
		return err
	})
	g.Go(func() error {
		var err error
		historical, err = s.store.SearchHistorical(gctx, term, limit)
		return err
	})
	g.Go(func() error {
		sourced = s.lookupByHandle(gctx, term)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search players")
	}

	seen := make(map[string]struct{}, len(current)+len(historical)+1)
	hits := make([]models.SearchHit, 0, len(current)+len(historical)+1)
	add := func(p *models.Player, match models.MatchSource) {
		if _, dup := seen[p.ExternalID]; dup {
			return
		}
		seen[p.ExternalID] = struct{}{}
		hits = append(hits, models.SearchHit{Player: p, Match: match})
	}
	for _, p := range current {
		add(p, models.MatchCurrent)
	}
	for _, p := range historical {
		add(p, models.MatchHistorical)
	}

	signal := invalidation.New()
	if sourced != nil {
		if _, known := seen[sourced.ExternalID]; !known {
			res, err := s.applyIdentity(ctx, sourced, now)
			switch {
			case err != nil:
				s.logWarn(ctx, "failed to store sourced search hit", "external_id", sourced.ExternalID, "error", err)
			case res.Found() && res.Player.IsActive:
				add(res.Player, models.MatchNewlySourced)
				signal = signal.Merge(res.Signal)
			}
		}
	}

	span.SetAttributes(attribute.Int("hits", len(hits)))
	return &SearchResult{Hits: hits, Signal: signal}, nil
}
