package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"foundry-hq/hermes/pkg/proxy"
	"foundry-hq/hermes/pkg/proxy/middleware"
	"foundry-hq/hermes/pkg/proxy/types"
)

// Middleware enforces bearer authentication on the wrapped handler. Health
// and metrics routes are expected to stay outside it.
func Middleware(v *Validator) func(http.Handler) http.Handler {
	logger := slog.Default().With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := v.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			requestID := middleware.GetRequestID(r.Context())
			var resp *types.ErrorResponse
			switch {
			case errors.Is(err, ErrMissingBearer):
				logger.WarnContext(r.Context(), "request without bearer token",
					"request_id", requestID, "path", r.URL.Path)
				resp = types.NewAuthenticationError("Missing Bearer token")
			case errors.Is(err, ErrInvalidKey):
				logger.WarnContext(r.Context(), "request with invalid api key",
					"request_id", requestID, "path", r.URL.Path)
				resp = types.NewPermissionDeniedError("Invalid API key")
			default:
				logger.ErrorContext(r.Context(), "authentication unavailable",
					"request_id", requestID, "error", err)
				resp = types.NewServerError("Shared secret not configured on proxy")
			}
			proxy.WriteError(w, resp.HTTPStatusCode(), resp)
		})
	}
}
