package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "dossier/pkg/domain"
	"dossier/pkg/platform/httputil"
	"dossier/pkg/requestcontext"
)

// DefaultCallerHeader carries the already-authenticated caller id.
const DefaultCallerHeader = "X-Caller-ID"

// IdentifyCaller copies the caller id from header into the request context.
// Requests without the header pass through anonymously; handlers that write
// reject them. A present but malformed id is rejected here.
func IdentifyCaller(header string, logger *slog.Logger) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultCallerHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(header)
			if strings.TrimSpace(raw) == "" {
				next.ServeHTTP(w, r)
				return
			}

			caller, err := id.ParseCallerID(raw)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "rejected malformed caller id",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}

			ctx := requestcontext.WithCallerID(r.Context(), caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
