package server

import (
	"net/http"

	"foundry-hq/hermes/pkg/config"
	"foundry-hq/hermes/pkg/proxy/handlers"
	"foundry-hq/hermes/pkg/proxy/middleware"
	"foundry-hq/hermes/pkg/security/auth"
)

// NewHandler builds the route table and middleware chain. The chat and
// model routes require bearer authentication; /health and the metrics
// endpoint do not.
func NewHandler(cfg *config.Config, deps handlers.Deps, validator *auth.Validator) http.Handler {
	mux := http.NewServeMux()

	authn := auth.Middleware(validator)
	mux.Handle("/v1/chat/completions", authn(handlers.NewChatHandler(deps)))
	mux.Handle("/v1/models", authn(handlers.NewModelsHandler(deps.Registry)))
	mux.Handle("/health", handlers.NewHealthHandler(deps.Registry))

	if cfg.Metrics.Enabled != nil && *cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, deps.Metrics.Handler())
	}

	// Request IDs are assigned outermost so every log line below carries
	// one; recovery sits inside logging so panics still produce a logged
	// 500 response.
	var handler http.Handler = mux
	handler = middleware.CORS(cfg.Server.AllowedOrigins)(handler)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)
	return handler
}
