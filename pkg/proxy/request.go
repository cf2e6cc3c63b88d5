package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"foundry-hq/hermes/pkg/proxy/types"
)

// ParseChatRequest decodes a chat completion request body, reading at most
// maxBytes. Unknown fields are ignored: the translator forwards only the
// fields the upstream contract names, so anything else is dropped here.
func ParseChatRequest(r *http.Request, maxBytes int64) (*types.ChatRequest, *types.ErrorResponse) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return nil, types.NewInvalidRequestError("Failed to read request body")
	}
	if int64(len(body)) > maxBytes {
		return nil, types.NewInvalidRequestError(fmt.Sprintf("Request body exceeds %d bytes", maxBytes))
	}

	var req types.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, types.NewInvalidRequestError("Invalid JSON body: " + err.Error())
	}
	return &req, nil
}
