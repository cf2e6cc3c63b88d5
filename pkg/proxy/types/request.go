package types

import "encoding/json"

// ChatRequest is the OpenAI-compatible chat completion request accepted on
// /v1/chat/completions. Messages and Stop are kept as raw JSON and relayed
// upstream without reshaping. Optional tuning fields are pointers so that
// an absent field can be told apart from an explicit zero: absent fields are
// replaced by proxy defaults, explicit values pass through unchanged.
type ChatRequest struct {
	Model            string          `json:"model"`
	Messages         json.RawMessage `json:"messages,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	Stream           bool            `json:"stream,omitempty"`
	Stop             json.RawMessage `json:"stop,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
}
