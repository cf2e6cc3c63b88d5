package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"foundry-hq/hermes/pkg/proxy/types"
)

// SetSSEHeaders commits the response to server-sent events. After this is
// written, errors can only travel in-band as SSE error events.
func SetSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// WriteSSE writes one data event and flushes it to the client.
func WriteSSE(w http.ResponseWriter, payload []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flush(w)
	return nil
}

// WriteSSEDone writes the terminal [DONE] marker.
func WriteSSEDone(w http.ResponseWriter) {
	fmt.Fprint(w, "data: [DONE]\n\n")
	flush(w)
}

// WriteSSEError emits an in-band error event. The terminal marker still
// follows so clients always see a complete stream.
func WriteSSEError(w http.ResponseWriter, message, errType string) {
	payload, err := json.Marshal(types.ErrorResponse{
		Error: types.ErrorDetail{Message: message, Type: errType},
	})
	if err != nil {
		return
	}
	WriteSSE(w, payload)
}

// NewFlushChunk builds the synthetic chunk that carries text still buffered
// in the stream filter when the upstream finishes.
func NewFlushChunk(content, modelID string) types.StreamChunk {
	return types.StreamChunk{
		ID:     fmt.Sprintf("proxy-flush-%d", time.Now().Unix()),
		Object: "chat.completion.chunk",
		Model:  modelID,
		Choices: []types.StreamChoice{
			{Index: 0, Delta: types.Delta{Content: content}, FinishReason: nil},
		},
	}
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
