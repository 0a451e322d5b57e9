package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dossier/internal/attestation/models"
	"dossier/internal/attestation/service"
	"dossier/internal/invalidation"
	id "dossier/pkg/domain"
	dErrors "dossier/pkg/domain-errors"
	"dossier/pkg/platform/httputil"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/requestcontext"
)

type Service interface {
	Vote(ctx context.Context, voter id.CallerID, kind models.ArtifactKind, artifactID uuid.UUID, typ models.Type, comment string) (*service.VoteResult, error)
	RemoveVote(ctx context.Context, voter id.CallerID, kind models.ArtifactKind, artifactID uuid.UUID) (invalidation.Signal, error)
	ListVotes(ctx context.Context, kind models.ArtifactKind, artifactID uuid.UUID, page pagination.Params) (pagination.Page[*models.Attestation], error)
	TallyArtifact(ctx context.Context, kind models.ArtifactKind, artifactID uuid.UUID) (models.Tally, error)
}

type Invalidator interface {
	Dispatch(ctx context.Context, signal invalidation.Signal)
}

// Handler exposes the attestation engine. Every artifact kind shares the same
// routes.
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

func (h *Handler) Register(r chi.Router) {
	r.Route("/attestations/{artifactKind}/{artifactID}", func(r chi.Router) {
		r.Get("/votes", h.HandleListVotes)
		r.Put("/votes", h.HandleVote)
		r.Delete("/votes", h.HandleRemoveVote)
		r.Get("/tally", h.HandleTally)
	})
}

// HandleVote handles PUT /attestations/{artifactKind}/{artifactID}/votes. The
// caller's previous vote on the artifact, if any, is replaced.
func (h *Handler) HandleVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.CallerID(ctx)
	if caller.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "caller identity required"))
		return
	}
	kind, artifactID, ok := parseArtifact(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[VoteRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res, err := h.service.Vote(ctx, caller, kind, artifactID, req.attestationType, req.Comment)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.dispatch(ctx, res.Signal)
	httputil.WriteJSON(w, http.StatusOK, voteResponse{
		Attestation: res.Attestation,
		Invalidated: res.Signal.ExternalIDs,
	})
}

// HandleRemoveVote handles DELETE /attestations/{artifactKind}/{artifactID}/votes.
func (h *Handler) HandleRemoveVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.CallerID(ctx)
	if caller.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "caller identity required"))
		return
	}
	kind, artifactID, ok := parseArtifact(w, r)
	if !ok {
		return
	}
	signal, err := h.service.RemoveVote(ctx, caller, kind, artifactID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.dispatch(ctx, signal)
	httputil.WriteJSON(w, http.StatusOK, removeResponse{Invalidated: signal.ExternalIDs})
}

func (h *Handler) HandleListVotes(w http.ResponseWriter, r *http.Request) {
	kind, artifactID, ok := parseArtifact(w, r)
	if !ok {
		return
	}
	page, err := pagination.FromQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out, err := h.service.ListVotes(r.Context(), kind, artifactID, page)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if out.Data == nil {
		out.Data = []*models.Attestation{}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleTally(w http.ResponseWriter, r *http.Request) {
	kind, artifactID, ok := parseArtifact(w, r)
	if !ok {
		return
	}
	tally, err := h.service.TallyArtifact(r.Context(), kind, artifactID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tally)
}

func (h *Handler) dispatch(ctx context.Context, signal invalidation.Signal) {
	if h.invalidator != nil {
		h.invalidator.Dispatch(ctx, signal)
	}
}

func parseArtifact(w http.ResponseWriter, r *http.Request) (models.ArtifactKind, uuid.UUID, bool) {
	kind, err := models.ParseArtifactKind(chi.URLParam(r, "artifactKind"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", uuid.Nil, false
	}
	artifactID, err := id.ParseArtifactID(chi.URLParam(r, "artifactID"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", uuid.Nil, false
	}
	return kind, artifactID, true
}
