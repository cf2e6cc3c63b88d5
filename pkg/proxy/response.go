package proxy

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"foundry-hq/hermes/pkg/proxy/types"
)

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("encoding response", "error", err)
	}
}

// WriteRawJSON relays pre-encoded JSON bytes with the given status.
func WriteRawJSON(w http.ResponseWriter, status int, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(raw); err != nil {
		slog.Default().Error("writing response", "error", err)
	}
}

// WriteError writes an error envelope with the given status.
func WriteError(w http.ResponseWriter, status int, resp *types.ErrorResponse) {
	WriteJSON(w, status, resp)
}
