package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks IdentitySource

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/singleflight"

	"dossier/internal/identitysource"
	"dossier/internal/players/metrics"
	"dossier/internal/players/models"
	id "dossier/pkg/domain"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/requestcontext"
)

// DefaultLookupTimeout bounds one upstream lookup. A lookup that exceeds it is
// answered as not found.
const DefaultLookupTimeout = 3 * time.Second

// DefaultSearchLimit caps each search leg when callers pass no limit.
const DefaultSearchLimit = 20

// MaxSearchLimit is the largest per-leg limit a caller may request.
const MaxSearchLimit = 100

var tracer = otel.Tracer("dossier/players")

type PlayerStore interface {
	Create(ctx context.Context, player *models.Player) error
	Update(ctx context.Context, player *models.Player) error
	Touch(ctx context.Context, playerID id.PlayerID, observedAt time.Time) error
	FindByID(ctx context.Context, playerID id.PlayerID) (*models.Player, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Player, error)
	FindByCurrentHandle(ctx context.Context, handle string) (*models.Player, error)
	SearchCurrent(ctx context.Context, term string, limit int) ([]*models.Player, error)
	SearchHistorical(ctx context.Context, term string, limit int) ([]*models.Player, error)

	UpsertHandle(ctx context.Context, entry *models.HandleHistory) error
	ListHandles(ctx context.Context, playerID id.PlayerID) ([]*models.HandleHistory, error)
	ReconcileAffiliations(ctx context.Context, playerID id.PlayerID, current []*models.OrgAffiliation, now time.Time) error
	ListAffiliations(ctx context.Context, playerID id.PlayerID) ([]*models.OrgAffiliation, error)

	CreateComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, playerID id.PlayerID, page pagination.Params) (pagination.Page[*models.Comment], error)
	CreateTag(ctx context.Context, tag *models.Tag) (*models.Tag, bool, error)
	ListTags(ctx context.Context, playerID id.PlayerID) ([]*models.Tag, error)
}

// IdentitySource is the upstream profile lookup.
type IdentitySource interface {
	LookupByHandle(ctx context.Context, handle string) (*identitysource.Identity, error)
	LookupByExternalID(ctx context.Context, externalID string) (*identitysource.Identity, error)
}

// TxRunner runs fn so that every store write inside it lands together or not at
// all.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service is the identity resolver. It maps handles and external ids to local
// players, creating and refreshing them from the identity source.
type Service struct {
	store         PlayerStore
	source        IdentitySource
	tx            TxRunner
	logger        *slog.Logger
	metrics       *metrics.Metrics
	lookupTimeout time.Duration
	lookups       singleflight.Group
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

// WithLookupTimeout overrides DefaultLookupTimeout.
func WithLookupTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lookupTimeout = d
		}
	}
}

// New constructs a Service. All three collaborators are required.
func New(store PlayerStore, source IdentitySource, tx TxRunner, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errMissingDependency("player store")
	}
	if source == nil {
		return nil, errMissingDependency("identity source")
	}
	if tx == nil {
		return nil, errMissingDependency("transaction runner")
	}
	s := &Service{
		store:         store,
		source:        source,
		tx:            tx,
		lookupTimeout: DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
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

func (s *Service) logWarn(ctx context.Context, msg string, attributes ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, attributes...)
	}
}

func (s *Service) logDebug(ctx context.Context, msg string, attributes ...any) {
	if s.logger != nil {
		s.logger.DebugContext(ctx, msg, attributes...)
	}
}

func (s *Service) observeResolve(method string, outcome models.Outcome, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveResolve(method, string(outcome), start)
	}
}

func (s *Service) incrementPlayersCreated() {
	if s.metrics != nil {
		s.metrics.IncrementPlayersCreated()
	}
}

func (s *Service) incrementCreationConflicts() {
	if s.metrics != nil {
		s.metrics.IncrementCreationConflicts()
	}
}

func (s *Service) incrementSourceDegradation(category string) {
	if s.metrics != nil {
		s.metrics.IncrementSourceDegradation(category)
	}
}

func (s *Service) observeSearch(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveSearch(start)
	}
}
