package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"dossier/internal/invalidation"
	"dossier/internal/players/models"
	"dossier/internal/players/service"
	id "dossier/pkg/domain"
	dErrors "dossier/pkg/domain-errors"
	"dossier/pkg/platform/httputil"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/requestcontext"
)

// Service defines the player operations exposed over HTTP.
type Service interface {
	ResolveByHandle(ctx context.Context, handle string) (*service.Resolution, error)
	ResolveByExternalID(ctx context.Context, externalID string) (*service.Resolution, error)
	SearchByHandle(ctx context.Context, term string, limit int) (*service.SearchResult, error)
	GetPlayer(ctx context.Context, playerID id.PlayerID) (*models.Player, error)
	ListHandleHistory(ctx context.Context, playerID id.PlayerID) ([]*models.HandleHistory, error)
	ListAffiliations(ctx context.Context, playerID id.PlayerID) ([]*models.OrgAffiliation, error)
	Deactivate(ctx context.Context, playerID id.PlayerID) (invalidation.Signal, error)
	AddComment(ctx context.Context, caller id.CallerID, playerID id.PlayerID, body string) (*service.CommentResult, error)
	ListComments(ctx context.Context, playerID id.PlayerID, page pagination.Params) (pagination.Page[*models.Comment], error)
	AddTag(ctx context.Context, caller id.CallerID, playerID id.PlayerID, label string) (*service.TagResult, error)
	ListTags(ctx context.Context, playerID id.PlayerID) ([]*models.Tag, error)
}

// Invalidator forwards signals to downstream caches.
type Invalidator interface {
	Dispatch(ctx context.Context, signal invalidation.Signal)
}

// Handler wires player endpoints to the identity resolver.
type Handler struct {
	service     Service
	invalidator Invalidator
	logger      *slog.Logger
}

// New constructs a player handler. invalidator may be nil.
func New(service Service, invalidator Invalidator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, invalidator: invalidator, logger: logger}
}

// Register mounts player endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/players", func(r chi.Router) {
		r.Get("/resolve", h.HandleResolve)
		r.Get("/search", h.HandleSearch)
		r.Get("/{playerID}", h.HandleGetPlayer)
		r.Get("/{playerID}/handles", h.HandleListHandles)
		r.Get("/{playerID}/affiliations", h.HandleListAffiliations)
		r.Post("/{playerID}/deactivate", h.HandleDeactivate)
		r.Get("/{playerID}/comments", h.HandleListComments)
		r.Post("/{playerID}/comments", h.HandleAddComment)
		r.Get("/{playerID}/tags", h.HandleListTags)
		r.Post("/{playerID}/tags", h.HandleAddTag)
	})
}

func (h *Handler) dispatch(ctx context.Context, signal invalidation.Signal) {
	if h.invalidator != nil {
		h.invalidator.Dispatch(ctx, signal)
	}
}

// HandleResolve handles GET /players/resolve?handle=... or ?external_id=...
// A miss is a 200 with a null player.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	handle, externalID := q.Get("handle"), q.Get("external_id")

	var (
		res *service.Resolution
		err error
	)
	switch {
	case handle != "" && externalID != "":
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "pass either handle or external_id, not both"))
		return
	case handle != "":
		res, err = h.service.ResolveByHandle(ctx, handle)
	case externalID != "":
		res, err = h.service.ResolveByExternalID(ctx, externalID)
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "handle or external_id is required"))
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "player resolution failed",
			"request_id", requestcontext.RequestID(ctx),
			"handle", handle,
			"external_id", externalID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.dispatch(ctx, res.Signal)
	httputil.WriteJSON(w, http.StatusOK, toResolutionResponse(res))
}

// HandleSearch handles GET /players/search?q=...&limit=...
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	res, err := h.service.SearchByHandle(ctx, q.Get("q"), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.dispatch(ctx, res.Signal)
	httputil.WriteJSON(w, http.StatusOK, searchResponse{
		Data:        res.Hits,
		Invalidated: res.Signal.ExternalIDs,
	})
}

func (h *Handler) HandleGetPlayer(w http.ResponseWriter, r *http.Request) {
	playerID, ok := parsePlayerID(w, r)
	if !ok {
		return
	}
	player, err := h.service.GetPlayer(r.Context(), playerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, player)
}

func (h *Handler) HandleListHandles(w http.ResponseWriter, r *http.Request) {
	playerID, ok := parsePlayerID(w, r)
	if !ok {
		return
	}
	handles, err := h.service.ListHandleHistory(r.Context(), playerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse[*models.HandleHistory]{Data: nonNil(handles)})
}

func (h *Handler) HandleListAffiliations(w http.ResponseWriter, r *http.Request) {
	playerID, ok := parsePlayerID(w, r)
	if !ok {
		return
	}
	orgs, err := h.service.ListAffiliations(r.Context(), playerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse[*models.OrgAffiliation]{Data: nonNil(orgs)})
}

// HandleDeactivate handles POST /players/{playerID}/deactivate.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireCaller(w, r); !ok {
		return
	}
	playerID, ok := parsePlayerID(w, r)
	if !ok {
		return
	}
	signal, err := h.service.Deactivate(ctx, playerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.dispatch(ctx, signal)
	httputil.WriteJSON(w, http.StatusOK, mutationResponse{Invalidated: signal.ExternalIDs})
}

// HandleAddComment handles POST /players/{playerID}/comments.
func (h *Handler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	playerID, ok := parsePlayerID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CommentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res, err := h.service.AddComment(ctx, caller, playerID, req.Body)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.dispatch(ctx, res.Signal)
	httputil.WriteJSON(w, http.StatusCreated, commentResponse{Comment: res.Comment, Invalidated: res.Signal.ExternalIDs})
}

func (h *Handler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	playerID, ok := parsePlayerID(w, r)
	if !ok {
		return
	}
	page, err := pagination.FromQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out, err := h.service.ListComments(r.Context(), playerID, page)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out.Data = nonNil(out.Data)
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleAddTag handles POST /players/{playerID}/tags. A repeated label answers
// 200 with the original tag instead of 201.
func (h *Handler) HandleAddTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	playerID, ok := parsePlayerID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TagRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res, err := h.service.AddTag(ctx, caller, playerID, req.Label)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.dispatch(ctx, res.Signal)
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, tagResponse{Tag: res.Tag, Invalidated: res.Signal.ExternalIDs})
}

func (h *Handler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	playerID, ok := parsePlayerID(w, r)
	if !ok {
		return
	}
	tags, err := h.service.ListTags(r.Context(), playerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse[*models.Tag]{Data: nonNil(tags)})
}

func parsePlayerID(w http.ResponseWriter, r *http.Request) (id.PlayerID, bool) {
	playerID, err := id.ParsePlayerID(chi.URLParam(r, "playerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.PlayerID{}, false
	}
	return playerID, true
}

func requireCaller(w http.ResponseWriter, r *http.Request) (id.CallerID, bool) {
	caller := requestcontext.CallerID(r.Context())
	if caller.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "caller identity required"))
		return "", false
	}
	return caller, true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
