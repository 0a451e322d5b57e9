package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"dossier/internal/identitysource"
	"dossier/internal/invalidation"
	"dossier/internal/players/models"
	id "dossier/pkg/domain"
	dErrors "dossier/pkg/domain-errors"
	"dossier/pkg/platform/sentinel"
	pstrings "dossier/pkg/platform/strings"
	"dossier/pkg/requestcontext"
)

const (
	methodHandle     = "handle"
	methodExternalID = "external_id"
)

// Resolution is the answer to a handle or external id lookup. Player is nil
// exactly when Outcome is OutcomeNotFound.
type Resolution struct {
	Player  *models.Player
	Outcome models.Outcome
	Signal  invalidation.Signal
}

// Found reports whether the lookup produced a player.
func (r *Resolution) Found() bool {
	return r != nil && r.Player != nil
}

func notFound() *Resolution {
	return &Resolution{Outcome: models.OutcomeNotFound, Signal: invalidation.New()}
}

func errMissingDependency(name string) error {
	return dErrors.New(dErrors.CodeInternal, name+" is required")
}

// ResolveByHandle maps a handle to a player. A player whose current handle
// matches is returned without consulting upstream. Otherwise upstream is asked
// and its answer is folded into the store, which may create the player, move
// its current handle, or refresh its profile.
//
// Upstream failures of any kind are answered with OutcomeNotFound.
func (s *Service) ResolveByHandle(ctx context.Context, handle string) (*Resolution, error) {
	ctx, span := tracer.Start(ctx, "players.ResolveByHandle")
	defer span.End()
	start := time.Now()

	handle = strings.TrimSpace(handle)
	if err := models.ValidateHandle(handle); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	now := requestcontext.Now(ctx)

	existing, err := s.store.FindByCurrentHandle(ctx, handle)
	switch {
	case err == nil:
		if err := s.store.Touch(ctx, existing.ID, now); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			span.SetStatus(codes.Error, "touch failed")
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record player observation")
		}
		if now.After(existing.LastObservedAt) {
			existing.Touch(now)
		}
		s.observeResolve(methodHandle, models.OutcomeExisting, start)
		span.SetAttributes(attribute.String("outcome", string(models.OutcomeExisting)))
		return &Resolution{Player: existing, Outcome: models.OutcomeExisting, Signal: invalidation.New()}, nil
	case !errors.Is(err, sentinel.ErrNotFound):
		span.SetStatus(codes.Error, "lookup failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up player by handle")
	}

	ident := s.lookupByHandle(ctx, handle)
	if ident == nil {
		s.observeResolve(methodHandle, models.OutcomeNotFound, start)
		span.SetAttributes(attribute.String("outcome", string(models.OutcomeNotFound)))
		return notFound(), nil
	}

	res, err := s.applyIdentity(ctx, ident, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply identity failed")
		return nil, err
	}
	s.observeResolve(methodHandle, res.Outcome, start)
	span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
	return res, nil
}

// ResolveByExternalID always consults upstream so the returned player carries
// the freshest handle. When upstream cannot answer, the stored player (if any)
// is returned unchanged apart from its observation time.
func (s *Service) ResolveByExternalID(ctx context.Context, externalID string) (*Resolution, error) {
	ctx, span := tracer.Start(ctx, "players.ResolveByExternalID")
	defer span.End()
	start := time.Now()

	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "external id is required")
	}
	now := requestcontext.Now(ctx)

	if ident := s.lookupByExternalID(ctx, externalID); ident != nil {
		res, err := s.applyIdentity(ctx, ident, now)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "apply identity failed")
			return nil, err
		}
		s.observeResolve(methodExternalID, res.Outcome, start)
		span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
		return res, nil
	}

	local, err := s.store.FindByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.observeResolve(methodExternalID, models.OutcomeNotFound, start)
			return notFound(), nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up player by external id")
	}
	if err := s.store.Touch(ctx, local.ID, now); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record player observation")
	}
	if now.After(local.LastObservedAt) {
		local.Touch(now)
	}
	s.observeResolve(methodExternalID, models.OutcomeExisting, start)
	return &Resolution{Player: local, Outcome: models.OutcomeExisting, Signal: invalidation.New()}, nil
}

// lookupByHandle asks upstream once per distinct handle in flight. It returns
// nil for every kind of miss: not found, timeout, outage, malformed answer.
func (s *Service) lookupByHandle(ctx context.Context, handle string) *identitysource.Identity {
	return s.lookup(ctx, "handle:"+pstrings.FoldKey(handle), func(lctx context.Context) (*identitysource.Identity, error) {
		return s.source.LookupByHandle(lctx, handle)
	})
}

func (s *Service) lookupByExternalID(ctx context.Context, externalID string) *identitysource.Identity {
	ident := s.lookup(ctx, "id:"+externalID, func(lctx context.Context) (*identitysource.Identity, error) {
		return s.source.LookupByExternalID(lctx, externalID)
	})
	if ident != nil && ident.ExternalID != externalID {
		s.logWarn(ctx, "identity source answered for a different external id",
			"requested", externalID,
			"returned", ident.ExternalID,
		)
		s.incrementSourceDegradation(string(identitysource.ErrorContractMismatch))
		return nil
	}
	return ident
}

func (s *Service) lookup(ctx context.Context, key string, fn func(context.Context) (*identitysource.Identity, error)) *identitysource.Identity {
	ch := s.lookups.DoChan(key, func() (any, error) {
		// Shared by every caller waiting on key, so one caller's cancellation
		// must not fail the others.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.lookupTimeout)
		defer cancel()
		return fn(lctx)
	})

	var (
		val any
		err error
	)
	select {
	case r := <-ch:
		val, err = r.Val, r.Err
	case <-ctx.Done():
		err = identitysource.NewSourceError(identitysource.ErrorTimeout, "", "caller cancelled lookup", ctx.Err())
	}

	if err != nil {
		if errors.Is(err, identitysource.ErrNotFound) {
			s.logDebug(ctx, "identity not found upstream", "key", key)
			return nil
		}
		category := identitysource.GetCategory(err)
		s.logWarn(ctx, "identity source lookup failed, answering not found",
			"key", key,
			"category", category,
			"error", err,
		)
		s.incrementSourceDegradation(string(category))
		return nil
	}
	ident, _ := val.(*identitysource.Identity)
	return ident
}

// applyIdentity folds an upstream identity into the store. The external id is
// the merge key: an existing player with it is synced, otherwise one is
// created. A creation that loses a race to a concurrent creator re-reads the
// winner and syncs it instead.
func (s *Service) applyIdentity(ctx context.Context, ident *identitysource.Identity, now time.Time) (*Resolution, error) {
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.store.FindByExternalID(ctx, ident.ExternalID)
		if err == nil {
			return s.syncExisting(ctx, existing, ident, now)
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up player by external id")
		}

		res, err := s.createFromIdentity(ctx, ident, now)
		if errors.Is(err, sentinel.ErrConflict) {
			s.incrementCreationConflicts()
			s.logDebug(ctx, "player creation lost race, re-reading winner", "external_id", ident.ExternalID)
			continue
		}
		return res, err
	}
	return nil, dErrors.New(dErrors.CodeConflict, "player creation kept conflicting")
}

func (s *Service) createFromIdentity(ctx context.Context, ident *identitysource.Identity, now time.Time) (*Resolution, error) {
	player, err := models.NewPlayer(id.NewPlayerID(), ident.ExternalID, ident.Handle, ident.DisplayName, ident.AvatarURL, now)
	if err != nil {
		s.logWarn(ctx, "identity source returned an unusable identity", "external_id", ident.ExternalID, "error", err)
		s.incrementSourceDegradation(string(identitysource.ErrorBadData))
		return notFound(), nil
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, player); err != nil {
			return err
		}
		if err := s.store.UpsertHandle(txCtx, models.NewHandleHistory(player, now)); err != nil {
			return err
		}
		_, err := s.reconcileOrgs(txCtx, player.ID, ident, now)
		return err
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create player")
	}

	s.incrementPlayersCreated()
	s.logAudit(ctx, "player_created",
		"player_id", player.ID,
		"external_id", player.ExternalID,
		"handle", player.CurrentHandle,
	)
	return &Resolution{
		Player:  player,
		Outcome: models.OutcomeCreated,
		Signal:  invalidation.New(player.ExternalID),
	}, nil
}

func (s *Service) syncExisting(ctx context.Context, player *models.Player, ident *identitysource.Identity, now time.Time) (*Resolution, error) {
	previousHandle := player.CurrentHandle
	change, err := player.ApplySync(ident.Handle, ident.DisplayName, ident.AvatarURL, now)
	if err != nil {
		s.logWarn(ctx, "identity source returned an unusable identity", "external_id", ident.ExternalID, "error", err)
		s.incrementSourceDegradation(string(identitysource.ErrorBadData))
		return &Resolution{Player: player, Outcome: models.OutcomeExisting, Signal: invalidation.New()}, nil
	}

	var orgsChanged bool
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Update(txCtx, player); err != nil {
			return err
		}
		if change.HandleChanged {
			if err := s.store.UpsertHandle(txCtx, models.NewHandleHistory(player, now)); err != nil {
				return err
			}
		}
		var err error
		orgsChanged, err = s.reconcileOrgs(txCtx, player.ID, ident, now)
		return err
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sync player")
	}

	outcome := models.OutcomeExisting
	switch {
	case change.HandleChanged:
		outcome = models.OutcomeHandleChanged
		s.logAudit(ctx, "player_handle_changed",
			"player_id", player.ID,
			"external_id", player.ExternalID,
			"previous_handle", previousHandle,
			"handle", player.CurrentHandle,
		)
	case change.ProfileChanged || orgsChanged:
		outcome = models.OutcomeRefreshed
	}

	signal := invalidation.New()
	if outcome.Mutated() {
		signal = invalidation.New(player.ExternalID)
	}
	return &Resolution{Player: player, Outcome: outcome, Signal: signal}, nil
}

// reconcileOrgs mirrors upstream memberships onto the player's affiliations and
// reports whether the current set moved. Identities that did not report
// memberships leave affiliations untouched.
func (s *Service) reconcileOrgs(ctx context.Context, playerID id.PlayerID, ident *identitysource.Identity, now time.Time) (bool, error) {
	if ident.Organizations == nil {
		return false, nil
	}
	before, err := s.store.ListAffiliations(ctx, playerID)
	if err != nil {
		return false, err
	}
	reported := make([]*models.OrgAffiliation, 0, len(ident.Organizations))
	for _, m := range ident.Organizations {
		reported = append(reported, &models.OrgAffiliation{
			PlayerID:        playerID,
			OrgSID:          m.SID,
			OrgName:         m.Name,
			Role:            m.Rank,
			IsMain:          m.Main,
			IsCurrent:       true,
			FirstObservedAt: now,
			LastObservedAt:  now,
		})
	}
	if err := s.store.ReconcileAffiliations(ctx, playerID, reported, now); err != nil {
		return false, err
	}
	return affiliationsDiffer(before, reported), nil
}

func affiliationsDiffer(before, reported []*models.OrgAffiliation) bool {
	current := make(map[string]*models.OrgAffiliation, len(before))
	for _, a := range before {
		if a.IsCurrent {
			current[a.OrgSID] = a
		}
	}
	if len(current) != len(reported) {
		return true
	}
	for _, r := range reported {
		c, ok := current[r.OrgSID]
		if !ok || c.OrgName != r.OrgName || c.Role != r.Role || c.IsMain != r.IsMain {
			return true
		}
	}
	return false
}
