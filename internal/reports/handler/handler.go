package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dossier/internal/invalidation"
	"dossier/internal/reports/models"
	"dossier/internal/reports/service"
	id "dossier/pkg/domain"
	dErrors "dossier/pkg/domain-errors"
	"dossier/pkg/platform/httputil"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/requestcontext"
)

// Service defines the report operations exposed over HTTP.
type Service interface {
	CreateReport(ctx context.Context, caller id.CallerID, req service.CreateReportRequest) (*service.CreateResult, error)
	GetReport(ctx context.Context, reportID id.ReportID) (*models.ReportView, error)
	GetReportsByPlayer(ctx context.Context, playerID id.PlayerID, kind models.Kind, page pagination.Params) (pagination.Page[*models.ReportView], error)
}

type Invalidator interface {
	Dispatch(ctx context.Context, signal invalidation.Signal)
}

type Handler struct {
	service     Service
	invalidator Invalidator
	logger      *slog.Logger
}

func New(service Service, invalidator Invalidator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, invalidator: invalidator, logger: logger}
}

// Register mounts report endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/", h.HandleListByPlayer)
		r.Post("/", h.HandleCreate)
		r.Get("/{reportID}", h.HandleGet)
	})
}

// HandleCreate handles POST /reports.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.CallerID(ctx)
	if caller.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "caller identity required"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateReportRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.CreateReport(ctx, caller, req.toService())
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to create report",
				"request_id", requestID,
				"kind", req.kind,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	if h.invalidator != nil {
		h.invalidator.Dispatch(ctx, res.Signal)
	}
	httputil.WriteJSON(w, http.StatusCreated, createResponse{
		Report:      res.Report,
		Invalidated: res.Signal.ExternalIDs,
	})
}

// HandleGet handles GET /reports/{reportID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	reportID, err := id.ParseReportID(chi.URLParam(r, "reportID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.service.GetReport(r.Context(), reportID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleListByPlayer handles GET /reports?player_id=...&kind=...&page=...&page_size=...
func (h *Handler) HandleListByPlayer(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	playerID, err := id.ParsePlayerID(q.Get("player_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var kind models.Kind
	if raw := q.Get("kind"); raw != "" {
		if kind, err = models.ParseKind(raw); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	page, err := pagination.FromQuery(q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out, err := h.service.GetReportsByPlayer(r.Context(), playerID, kind, page)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if out.Data == nil {
		out.Data = []*models.ReportView{}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
