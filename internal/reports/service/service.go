package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	attmodels "dossier/internal/attestation/models"
	"dossier/internal/invalidation"
	pmodels "dossier/internal/players/models"
	pservice "dossier/internal/players/service"
	"dossier/internal/reports/metrics"
	"dossier/internal/reports/models"
	id "dossier/pkg/domain"
	dErrors "dossier/pkg/domain-errors"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/platform/sentinel"
	"dossier/pkg/requestcontext"
)

var tracer = otel.Tracer("dossier/reports")

type ReportStore interface {
	Create(ctx context.Context, report *models.Report) error
	FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error)
	ListByPlayer(ctx context.Context, playerID id.PlayerID, kind models.Kind, page pagination.Params) (pagination.Page[*models.Report], error)
}

// HandleResolver resolves secondary handles for enrichment.
type HandleResolver interface {
	ResolveByHandle(ctx context.Context, handle string) (*pservice.Resolution, error)
}

// PlayerDirectory is the resolver surface report creation needs.
type PlayerDirectory interface {
	HandleResolver
	GetPlayer(ctx context.Context, playerID id.PlayerID) (*pmodels.Player, error)
}

// VoteCounter supplies raw attestation counts for report listings.
type VoteCounter interface {
	Tally(ctx context.Context, kind attmodels.ArtifactKind, artifactIDs []uuid.UUID) (map[uuid.UUID]attmodels.Tally, error)
}

// CreateReportRequest is the caller's payload. Fields a kind does not use are
// stored as given and otherwise ignored.
type CreateReportRequest struct {
	Kind            models.Kind
	MainPlayerID    id.PlayerID
	Body            string
	OrgName         string
	SecondaryHandle string
}

func (r *CreateReportRequest) normalize() {
	r.Body = strings.TrimSpace(r.Body)
	r.OrgName = strings.TrimSpace(r.OrgName)
	r.SecondaryHandle = strings.TrimSpace(r.SecondaryHandle)
}

// CreateResult carries the stored report and the players to invalidate.
type CreateResult struct {
	Report *models.Report
	Signal invalidation.Signal
}

// Service files reports against resolved players.
type Service struct {
	reports ReportStore
	players PlayerDirectory
	votes   VoteCounter
	kinds   map[models.Kind]KindSpec
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

// WithVoteCounter attaches attestation tallies to listed reports. Without it
// every tally is zero.
func WithVoteCounter(votes VoteCounter) Option {
	return func(s *Service) {
		s.votes = votes
	}
}

// WithKindSpec registers spec, replacing any built-in spec for the same kind.
func WithKindSpec(spec KindSpec) Option {
	return func(s *Service) {
		s.kinds[spec.Kind()] = spec
	}
}

// New constructs a Service with the built-in kinds.
func New(reports ReportStore, players PlayerDirectory, opts ...Option) (*Service, error) {
	if reports == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "report store is required")
	}
	if players == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "player directory is required")
	}
	s := &Service{
		reports: reports,
		players: players,
		kinds:   make(map[models.Kind]KindSpec),
	}
	for _, opt := range opts {
		opt(s)
	}
	// Defaults are built after options so they capture the configured logger.
	for _, spec := range DefaultKindSpecs(players, s.logger) {
		if _, overridden := s.kinds[spec.Kind()]; !overridden {
			s.kinds[spec.Kind()] = spec
		}
	}
	return s, nil
}

// CreateReport validates the request, enriches it through its KindSpec and
// stores it. The signal always names the main player; it also names the
// secondary player when enrichment created or changed one.
func (s *Service) CreateReport(ctx context.Context, caller id.CallerID, req CreateReportRequest) (*CreateResult, error) {
	ctx, span := tracer.Start(ctx, "reports.CreateReport")
	defer span.End()
	start := time.Now()

	if caller.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller identity required")
	}
	spec, ok := s.kinds[req.Kind]
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "unsupported report kind: "+string(req.Kind))
	}
	if req.MainPlayerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "main_player_id is required")
	}
	req.normalize()
	if err := spec.Validate(req); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("kind", string(req.Kind)))

	main, err := s.players.GetPlayer(ctx, req.MainPlayerID)
	if err != nil {
		return nil, err
	}

	report, err := models.NewReport(id.NewReportID(), req.Kind, caller, main.ID, req.Body, req.OrgName, req.SecondaryHandle, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	signal := invalidation.New(main.ExternalID).Merge(spec.Enrich(ctx, report))
	if req.Kind.HasSecondary() {
		s.recordEnrichment(report)
	}

	if err := s.reports.Create(ctx, report); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create report")
	}

	s.incrementReportsCreated(report.Kind)
	s.observeCreate(start)
	s.logAudit(ctx, "report_created",
		"report_id", report.ID,
		"kind", report.Kind,
		"reporter_id", caller,
		"main_player_id", report.MainPlayerID,
	)
	return &CreateResult{Report: report, Signal: signal}, nil
}

// GetReport loads one report with its vote counts.
func (s *Service) GetReport(ctx context.Context, reportID id.ReportID) (*models.ReportView, error) {
	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "report not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load report")
	}
	views, err := s.withTallies(ctx, []*models.Report{report})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// GetReportsByPlayer pages the reports filed against playerID, newest first.
// An empty kind lists every kind. Unknown players yield an empty page.
func (s *Service) GetReportsByPlayer(ctx context.Context, playerID id.PlayerID, kind models.Kind, page pagination.Params) (pagination.Page[*models.ReportView], error) {
	if kind != "" {
		if _, ok := s.kinds[kind]; !ok {
			return pagination.Page[*models.ReportView]{}, dErrors.New(dErrors.CodeValidation, "unsupported report kind: "+string(kind))
		}
	}
	out, err := s.reports.ListByPlayer(ctx, playerID, kind, page)
	if err != nil {
		return pagination.Page[*models.ReportView]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reports")
	}
	views, err := s.withTallies(ctx, out.Data)
	if err != nil {
		return pagination.Page[*models.ReportView]{}, err
	}
	return pagination.Page[*models.ReportView]{Data: views, Total: out.Total}, nil
}

func (s *Service) withTallies(ctx context.Context, reports []*models.Report) ([]*models.ReportView, error) {
	views := make([]*models.ReportView, len(reports))
	byKind := make(map[attmodels.ArtifactKind][]uuid.UUID)
	for i, r := range reports {
		views[i] = &models.ReportView{Report: r}
		if kind, ok := attmodels.ArtifactKindForReport(string(r.Kind)); ok {
			byKind[kind] = append(byKind[kind], uuid.UUID(r.ID))
		}
	}
	if s.votes == nil {
		return views, nil
	}

	tallies := make(map[uuid.UUID]attmodels.Tally, len(reports))
	for kind, ids := range byKind {
		counts, err := s.votes.Tally(ctx, kind, ids)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count attestations")
		}
		for artifactID, t := range counts {
			tallies[artifactID] = t
		}
	}
	for _, v := range views {
		v.Tally = tallies[uuid.UUID(v.ID)]
	}
	return views, nil
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

func (s *Service) recordEnrichment(report *models.Report) {
	if s.metrics == nil {
		return
	}
	result := "unresolved"
	if report.SecondaryPlayerID != nil {
		result = "linked"
	}
	s.metrics.IncrementSecondaryEnrichment(string(report.Kind), result)
}

func (s *Service) incrementReportsCreated(kind models.Kind) {
	if s.metrics != nil {
		s.metrics.IncrementReportsCreated(string(kind))
	}
}

func (s *Service) observeCreate(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveCreate(start)
	}
}
