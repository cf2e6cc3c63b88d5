package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"foundry-hq/hermes/pkg/proxy"
	"foundry-hq/hermes/pkg/proxy/types"
)

// Recovery converts handler panics into a 500 error envelope instead of
// tearing down the connection.
func Recovery(next http.Handler) http.Handler {
	logger := slog.Default().With("component", "http")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(r.Context(), "panic recovered",
					"request_id", GetRequestID(r.Context()),
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				resp := types.NewServerError("Internal server error")
				proxy.WriteError(w, resp.HTTPStatusCode(), resp)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
