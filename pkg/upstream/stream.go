package upstream

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

const (
	ssePrefix = "data: "

	scanInitialBuffer = 64 * 1024
	scanMaxBuffer     = 1024 * 1024
)

// Event is one data event from an upstream SSE stream. Raw is the payload
// exactly as received, so unmodified events can be relayed byte for byte.
// HasDelta is true only when the first choice carries non-empty content;
// role-only chunks, finish chunks, and empty deltas relay unchanged.
type Event struct {
	Raw      []byte
	Delta    string
	HasDelta bool
}

// StreamReader parses an SSE response body into events. Lines without the
// "data: " prefix and payloads that do not parse as JSON are skipped, which
// matches how lenient SSE clients treat comments and keep-alives.
type StreamReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func newStreamReader(body io.ReadCloser) *StreamReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, scanInitialBuffer), scanMaxBuffer)
	return &StreamReader{body: body, scanner: scanner}
}

// Next returns the next data event. It returns io.EOF after the terminal
// [DONE] marker, ErrTruncated when the upstream closes without one, and a
// classified transport error when the read itself fails.
func (r *StreamReader) Next() (Event, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if !strings.HasPrefix(line, ssePrefix) {
			continue
		}
		payload := line[len(ssePrefix):]

		if strings.TrimSpace(payload) == "[DONE]" {
			return Event{}, io.EOF
		}

		var probe struct {
			Choices []struct {
				Delta struct {
					Content *string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &probe); err != nil {
			continue
		}

		event := Event{Raw: []byte(payload)}
		if len(probe.Choices) > 0 {
			if content := probe.Choices[0].Delta.Content; content != nil && *content != "" {
				event.Delta = *content
				event.HasDelta = true
			}
		}
		return event, nil
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, classify(err)
	}
	return Event{}, ErrTruncated
}

// Close releases the underlying response body.
func (r *StreamReader) Close() error {
	return r.body.Close()
}
