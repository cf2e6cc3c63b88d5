package handlers

import (
	"net/http"

	"foundry-hq/hermes/pkg/proxy"
	"foundry-hq/hermes/pkg/proxy/types"
	"foundry-hq/hermes/pkg/registry"
)

// HealthHandler serves GET /health for liveness probes. It stays outside
// authentication so container runtimes can reach it without the shared
// secret.
type HealthHandler struct {
	registry *registry.Registry
}

// NewHealthHandler creates a new health check handler.
func NewHealthHandler(reg *registry.Registry) *HealthHandler {
	return &HealthHandler{registry: reg}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	proxy.WriteJSON(w, http.StatusOK, types.HealthResponse{
		Status: "ok",
		Models: h.registry.IDs(),
	})
}
