package handlers

import (
	"net/http"

	"foundry-hq/hermes/pkg/proxy"
	"foundry-hq/hermes/pkg/proxy/types"
	"foundry-hq/hermes/pkg/registry"
)

// ModelsHandler serves GET /v1/models with the configured model listing.
type ModelsHandler struct {
	registry *registry.Registry
}

// NewModelsHandler creates a new model listing handler.
func NewModelsHandler(reg *registry.Registry) *ModelsHandler {
	return &ModelsHandler{registry: reg}
}

// ServeHTTP implements http.Handler.
func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		proxy.WriteError(w, http.StatusMethodNotAllowed,
			types.NewInvalidRequestError("Method "+r.Method+" not allowed. Use GET instead."))
		return
	}
	proxy.WriteJSON(w, http.StatusOK, types.NewModelList(h.registry.IDs()))
}
