package upstream

import (
	"encoding/json"
	"fmt"
)

// RewriteDelta returns a copy of the raw chunk with the first choice's
// delta content replaced. The caller guarantees the chunk has a delta,
// having extracted one from it already.
func RewriteDelta(raw []byte, content string) ([]byte, error) {
	var chunk map[string]any
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return nil, fmt.Errorf("parsing chunk: %w", err)
	}

	choices, ok := chunk["choices"].([]any)
	if !ok || len(choices) == 0 {
		return nil, fmt.Errorf("chunk has no choices")
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("chunk choice is not an object")
	}
	delta, ok := choice["delta"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("chunk choice has no delta")
	}

	delta["content"] = content
	return json.Marshal(chunk)
}

// RewriteMessages applies clean to every non-empty message content in a
// completion response body, leaving all other fields alone.
func RewriteMessages(raw []byte, clean func(string) string) ([]byte, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("parsing completion: %w", err)
	}

	choices, _ := body["choices"].([]any)
	for _, c := range choices {
		choice, ok := c.(map[string]any)
		if !ok {
			continue
		}
		message, ok := choice["message"].(map[string]any)
		if !ok {
			continue
		}
		content, ok := message["content"].(string)
		if !ok || content == "" {
			continue
		}
		message["content"] = clean(content)
	}
	return json.Marshal(body)
}
