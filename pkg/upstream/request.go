package upstream

import (
	"encoding/json"

	"foundry-hq/hermes/pkg/proxy/types"
	"foundry-hq/hermes/pkg/registry"
)

// Defaults substituted for tuning fields the client omits.
const (
	DefaultTemperature = 0.7
	DefaultTopP        = 0.95
)

// Request is the body sent to the Foundry chat completions endpoint. The
// model field carries the deployment name, not the client-facing ID.
type Request struct {
	Messages         json.RawMessage `json:"messages"`
	Model            string          `json:"model"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature"`
	TopP             float64         `json:"top_p"`
	Stream           bool            `json:"stream"`
	Stop             json.RawMessage `json:"stop,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
}

// Translate maps a client request onto the upstream body for model m.
// Messages pass through untouched, absent tuning fields get defaults, and
// optional fields stay absent unless the client sent them.
func Translate(req *types.ChatRequest, m registry.Model) *Request {
	out := &Request{
		Messages:         req.Messages,
		Model:            m.Deployment,
		Stream:           req.Stream,
		Stop:             req.Stop,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
	}
	if out.Messages == nil {
		out.Messages = json.RawMessage("[]")
	}

	out.MaxTokens = m.MaxTokensDefault
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	out.Temperature = DefaultTemperature
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	out.TopP = DefaultTopP
	if req.TopP != nil {
		out.TopP = *req.TopP
	}
	return out
}
