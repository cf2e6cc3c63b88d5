// Package foundrytest provides a scripted fake Foundry endpoint for
// handler and integration tests.
package foundrytest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// Script describes how the fake endpoint answers its next requests. A
// non-empty Chunks or Lines slice makes the response a stream; otherwise
// StatusCode and Body are served as a buffered response.
type Script struct {
	StatusCode int
	Body       string

	// Chunks are SSE payloads; each is wrapped as "data: <chunk>\n\n".
	Chunks []string
	// Lines are raw lines written verbatim, for malformed-stream cases.
	// They are written after Chunks.
	Lines []string
	// OmitDone suppresses the terminal [DONE] marker.
	OmitDone bool

	// Delay is applied before the first byte of the response.
	Delay time.Duration
}

// Request is one captured upstream request.
type Request struct {
	Path          string
	Authorization string
	ContentType   string
	Body          []byte
}

// Server is a scripted fake Foundry endpoint.
type Server struct {
	server *httptest.Server

	mu       sync.Mutex
	script   Script
	requests []Request
}

// New starts a fake endpoint that answers with a plain completion until
// scripted otherwise. The server shuts down with the test.
func New(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		script: Script{StatusCode: http.StatusOK, Body: CompletionBody("ok")},
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handler))
	t.Cleanup(s.server.Close)
	return s
}

// URL returns the base URL to configure as a model endpoint. The proxy
// appends /chat/completions to it.
func (s *Server) URL() string {
	return s.server.URL
}

// Set replaces the current script.
func (s *Server) Set(script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if script.StatusCode == 0 {
		script.StatusCode = http.StatusOK
	}
	s.script = script
}

// Requests returns the captured requests in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent captured request, failing the test
// if none arrived.
func (s *Server) LastRequest(t *testing.T) Request {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		t.Fatal("no upstream request captured")
	}
	return s.requests[len(s.requests)-1]
}

func (s *Server) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		ContentType:   r.Header.Get("Content-Type"),
		Body:          body,
	})
	script := s.script
	s.mu.Unlock()

	if script.Delay > 0 {
		select {
		case <-time.After(script.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if len(script.Chunks) > 0 || len(script.Lines) > 0 {
		s.stream(w, script)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(script.StatusCode)
	fmt.Fprint(w, script.Body)
}

func (s *Server) stream(w http.ResponseWriter, script Script) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(script.StatusCode)

	flusher, ok := w.(http.Flusher)
	if !ok {
		return
	}
	for _, chunk := range script.Chunks {
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		flusher.Flush()
	}
	for _, line := range script.Lines {
		fmt.Fprintf(w, "%s\n", line)
		flusher.Flush()
	}
	if !script.OmitDone {
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}
}

// CompletionBody builds a chat completion response with a single assistant
// message.
func CompletionBody(content string) string {
	body := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "test-deployment",
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 20,
			"total_tokens":      30,
		},
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}

// DeltaChunk builds a streaming chunk carrying content.
func DeltaChunk(content string) string {
	chunk := map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion.chunk",
		"model":  "test-deployment",
		"choices": []map[string]any{
			{
				"index":         0,
				"delta":         map[string]any{"content": content},
				"finish_reason": nil,
			},
		},
	}
	raw, _ := json.Marshal(chunk)
	return string(raw)
}

// RoleChunk builds the role-only chunk that opens a stream.
func RoleChunk() string {
	chunk := map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion.chunk",
		"model":  "test-deployment",
		"choices": []map[string]any{
			{
				"index":         0,
				"delta":         map[string]any{"role": "assistant"},
				"finish_reason": nil,
			},
		},
	}
	raw, _ := json.Marshal(chunk)
	return string(raw)
}

// FinishChunk builds the finish chunk that closes a stream.
func FinishChunk(reason string) string {
	chunk := map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion.chunk",
		"model":  "test-deployment",
		"choices": []map[string]any{
			{
				"index":         0,
				"delta":         map[string]any{},
				"finish_reason": reason,
			},
		},
	}
	raw, _ := json.Marshal(chunk)
	return string(raw)
}
