// Package httpapi assembles the HTTP edge: middleware, module routes and the
// operational endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dossier/internal/platform/metrics"
	"dossier/internal/platform/middleware"
	"dossier/pkg/platform/httputil"
	"dossier/pkg/platform/middleware/metadata"
	"dossier/pkg/platform/middleware/requesttime"
)

// Module mounts its routes on the shared router.
type Module interface {
	Register(r chi.Router)
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

type Config struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	CallerHeader string
	// Checks are run by /healthz; a failing check answers 503.
	Checks  map[string]HealthCheck
	Modules []Module
}

// NewRouter wires middleware in order: request id, client metadata and
// request time first so everything after them can log and timestamp
// consistently.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.AccessLog(logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Instrument)
	}

	r.Get("/healthz", healthHandler(cfg.Checks))
	if cfg.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.IdentifyCaller(cfg.CallerHeader, logger))
		for _, m := range cfg.Modules {
			m.Register(r)
		}
	})
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status": state,
			"checks": results,
		})
	}
}
