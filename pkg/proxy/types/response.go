package types

// StreamChunk is the chat.completion.chunk envelope used when the proxy
// synthesizes its own SSE events, such as the tail chunk emitted when
// buffered text is released at end of stream. Relayed upstream chunks are
// forwarded as raw bytes and never pass through this type.
type StreamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created,omitempty"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
}

// StreamChoice is a single choice inside a streaming chunk.
type StreamChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta carries the incremental content of a streaming choice.
type Delta struct {
	Content string `json:"content"`
}

// Model is one entry in the /v1/models listing.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the /v1/models response envelope.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// NewModelList builds the /v1/models response for the given model IDs.
func NewModelList(ids []string) ModelList {
	data := make([]Model, 0, len(ids))
	for _, id := range ids {
		data = append(data, Model{
			ID:      id,
			Object:  "model",
			Created: 0,
			OwnedBy: "azure-foundry",
		})
	}
	return ModelList{Object: "list", Data: data}
}

// HealthResponse is the /health response body.
type HealthResponse struct {
	Status string   `json:"status"`
	Models []string `json:"models"`
}
