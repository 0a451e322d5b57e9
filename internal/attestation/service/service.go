// Package service implements the attestation engine: one keyed upsert shared
// by every artifact a community member can support, dispute or stay neutral on.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"dossier/internal/attestation/metrics"
	"dossier/internal/attestation/models"
	"dossier/internal/attestation/store"
	"dossier/internal/invalidation"
	id "dossier/pkg/domain"
	dErrors "dossier/pkg/domain-errors"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/platform/sentinel"
	"dossier/pkg/requestcontext"
)

var tracer = otel.Tracer("dossier/attestation")

type Store interface {
	Upsert(ctx context.Context, a *models.Attestation) (*models.Attestation, error)
	Delete(ctx context.Context, k store.Key) (bool, error)
	ListByArtifact(ctx context.Context, kind models.ArtifactKind, artifactID uuid.UUID, page pagination.Params) (pagination.Page[*models.Attestation], error)
	Tally(ctx context.Context, kind models.ArtifactKind, artifactIDs []uuid.UUID) (map[uuid.UUID]models.Tally, error)
}

// OwnerResolver finds the player an artifact belongs to. It returns
// sentinel.ErrNotFound for unknown artifacts.
type OwnerResolver interface {
	Owner(ctx context.Context, kind models.ArtifactKind, artifactID uuid.UUID) (*models.Owner, error)
}

type Service struct {
	store   Store
	owners  OwnerResolver
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, owners OwnerResolver, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "attestation store is required")
	}
	if owners == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "owner resolver is required")
	}
	s := &Service{store: store, owners: owners}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// VoteResult carries the stored row and the owning player to invalidate.
type VoteResult struct {
	Attestation *models.Attestation
	Signal      invalidation.Signal
}

// Vote records voter's position on an artifact. A repeat vote replaces the
// type and comment of the existing row; created_at is kept. Voting on an
// artifact one filed is allowed.
func (s *Service) Vote(ctx context.Context, voter id.CallerID, kind models.ArtifactKind, artifactID uuid.UUID, typ models.Type, comment string) (*VoteResult, error) {
	ctx, span := tracer.Start(ctx, "attestation.Vote")
	defer span.End()
	start := time.Now()

	if voter.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller identity required")
	}
	kind, err := models.ParseArtifactKind(string(kind))
	if err != nil {
		return nil, err
	}
	typ, err = models.ParseType(string(typ))
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("artifact_kind", string(kind)),
		attribute.String("attestation_type", string(typ)),
	)

	owner, err := s.owner(ctx, kind, artifactID)
	if err != nil {
		return nil, err
	}

	a, err := models.NewAttestation(id.NewAttestationID(), kind, artifactID, voter, typ, comment, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	stored, err := s.store.Upsert(ctx, a)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record vote")
	}

	if s.metrics != nil {
		s.metrics.IncrementVotes(string(kind), string(typ))
		s.metrics.ObserveVote(start)
	}
	s.logAudit(ctx, "attestation_recorded",
		"attestation_id", stored.ID,
		"artifact_kind", kind,
		"artifact_id", artifactID,
		"voter_id", voter,
		"attestation_type", typ,
	)
	return &VoteResult{Attestation: stored, Signal: invalidation.New(owner.ExternalID)}, nil
}

// RemoveVote deletes voter's vote on an artifact. Removing a vote that does
// not exist is a no-op and still returns the owner's signal.
func (s *Service) RemoveVote(ctx context.Context, voter id.CallerID, kind models.ArtifactKind, artifactID uuid.UUID) (invalidation.Signal, error) {
	ctx, span := tracer.Start(ctx, "attestation.RemoveVote")
	defer span.End()

	if voter.IsNil() {
		return invalidation.Signal{}, dErrors.New(dErrors.CodeUnauthorized, "caller identity required")
	}
	kind, err := models.ParseArtifactKind(string(kind))
	if err != nil {
		return invalidation.Signal{}, err
	}
	owner, err := s.owner(ctx, kind, artifactID)
	if err != nil {
		return invalidation.Signal{}, err
	}

	removed, err := s.store.Delete(ctx, store.Key{Kind: kind, ArtifactID: artifactID, VoterID: voter})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return invalidation.Signal{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove vote")
	}
	if s.metrics != nil {
		s.metrics.IncrementRemovals(string(kind), removed)
	}
	if removed {
		s.logAudit(ctx, "attestation_removed",
			"artifact_kind", kind,
			"artifact_id", artifactID,
			"voter_id", voter,
		)
	}
	return invalidation.New(owner.ExternalID), nil
}

// ListVotes pages the votes on an existing artifact, oldest first.
func (s *Service) ListVotes(ctx context.Context, kind models.ArtifactKind, artifactID uuid.UUID, page pagination.Params) (pagination.Page[*models.Attestation], error) {
	kind, err := models.ParseArtifactKind(string(kind))
	if err != nil {
		return pagination.Page[*models.Attestation]{}, err
	}
	if _, err := s.owner(ctx, kind, artifactID); err != nil {
		return pagination.Page[*models.Attestation]{}, err
	}
	out, err := s.store.ListByArtifact(ctx, kind, artifactID, page)
	if err != nil {
		return pagination.Page[*models.Attestation]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list votes")
	}
	return out, nil
}

// Tally returns raw counts per artifact; artifacts without votes are absent.
func (s *Service) Tally(ctx context.Context, kind models.ArtifactKind, artifactIDs []uuid.UUID) (map[uuid.UUID]models.Tally, error) {
	out, err := s.store.Tally(ctx, kind, artifactIDs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count votes")
	}
	return out, nil
}

// TallyArtifact counts the votes on one existing artifact; zeros when nobody
// has voted.
func (s *Service) TallyArtifact(ctx context.Context, kind models.ArtifactKind, artifactID uuid.UUID) (models.Tally, error) {
	kind, err := models.ParseArtifactKind(string(kind))
	if err != nil {
		return models.Tally{}, err
	}
	if _, err := s.owner(ctx, kind, artifactID); err != nil {
		return models.Tally{}, err
	}
	tallies, err := s.Tally(ctx, kind, []uuid.UUID{artifactID})
	if err != nil {
		return models.Tally{}, err
	}
	return tallies[artifactID], nil
}

func (s *Service) owner(ctx context.Context, kind models.ArtifactKind, artifactID uuid.UUID) (*models.Owner, error) {
	if artifactID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeValidation, "artifact id is required")
	}
	owner, err := s.owners.Owner(ctx, kind, artifactID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, string(kind)+" not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve artifact owner")
	}
	return owner, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
}
