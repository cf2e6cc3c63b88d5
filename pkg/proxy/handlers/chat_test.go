package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"foundry-hq/hermes/internal/foundrytest"
	"foundry-hq/hermes/pkg/config"
	"foundry-hq/hermes/pkg/registry"
	"foundry-hq/hermes/pkg/telemetry/metrics"
	"foundry-hq/hermes/pkg/token"
	"foundry-hq/hermes/pkg/upstream"
)

type failingTokens struct{}

func (failingTokens) Token(context.Context) (token.Token, error) {
	return token.Token{}, errors.New("credential unavailable")
}

func testRegistry(t *testing.T, endpoint string) *registry.Registry {
	t.Helper()
	noStrip := false
	cfg := &config.Config{
		Models: map[string]config.ModelConfig{
			"test-model": {
				Endpoint:   endpoint,
				Deployment: "test-deployment",
			},
			"raw-model": {
				Endpoint:       endpoint,
				Deployment:     "raw-deployment",
				StripThinkTags: &noStrip,
			},
		},
	}
	reg, err := registry.Load(cfg)
	if err != nil {
		t.Fatalf("loading registry: %v", err)
	}
	return reg
}

func testDeps(t *testing.T, fake *foundrytest.Server) Deps {
	t.Helper()
	return Deps{
		Registry:     testRegistry(t, fake.URL()),
		Tokens:       token.NewStaticSource("test-token"),
		Upstream:     upstream.NewClient(5 * time.Second),
		Metrics:      metrics.NewCollector(),
		MaxBodyBytes: 1 << 20,
	}
}

func chatBody(t *testing.T, model string, stream bool) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"model":    model,
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
		"stream":   stream,
	})
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	return bytes.NewReader(body)
}

func doChat(deps Deps, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	NewChatHandler(deps).ServeHTTP(rec, r)
	return rec
}

func decodeError(t *testing.T, body *bytes.Buffer) (string, string) {
	t.Helper()
	var resp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error envelope: %v (body %q)", err, body.String())
	}
	return resp.Error.Message, resp.Error.Type
}

// ssePayloads extracts the data payloads from an SSE response body.
func ssePayloads(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			out = append(out, strings.TrimPrefix(line, "data: "))
		}
	}
	return out
}

// visibleContent concatenates the delta content of every payload.
func visibleContent(t *testing.T, payloads []string) string {
	t.Helper()
	var sb strings.Builder
	for _, p := range payloads {
		if p == "[DONE]" {
			continue
		}
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(p), &chunk); err != nil {
			t.Fatalf("decoding chunk %q: %v", p, err)
		}
		if len(chunk.Choices) > 0 {
			sb.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	return sb.String()
}

func TestNonStreamingFiltersContent(t *testing.T) {
	fake := foundrytest.New(t)
	fake.Set(foundrytest.Script{
		Body: foundrytest.CompletionBody("<think>working it out</think>Hello world"),
	})
	deps := testDeps(t, fake)

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", chatBody(t, "test-model", false))
	rec := doChat(deps, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got := resp.Choices[0].Message.Content; got != "Hello world" {
		t.Errorf("content = %q, want %q", got, "Hello world")
	}
	if strings.Contains(rec.Body.String(), "working it out") {
		t.Error("reasoning text leaked into response")
	}
}

func TestNonStreamingTranslatesRequest(t *testing.T) {
	fake := foundrytest.New(t)
	deps := testDeps(t, fake)

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", chatBody(t, "test-model", false))
	rec := doChat(deps, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	captured := fake.LastRequest(t)
	if captured.Path != "/chat/completions" {
		t.Errorf("path = %q, want /chat/completions", captured.Path)
	}
	if captured.Authorization != "Bearer test-token" {
		t.Errorf("authorization = %q, want bearer test token", captured.Authorization)
	}

	var body map[string]any
	if err := json.Unmarshal(captured.Body, &body); err != nil {
		t.Fatalf("decoding upstream body: %v", err)
	}
	if body["model"] != "test-deployment" {
		t.Errorf("upstream model = %v, want deployment name", body["model"])
	}
	if body["max_tokens"] != float64(config.DefaultMaxTokens) {
		t.Errorf("max_tokens = %v, want %d", body["max_tokens"], config.DefaultMaxTokens)
	}
	if body["temperature"] != upstream.DefaultTemperature {
		t.Errorf("temperature = %v, want %v", body["temperature"], upstream.DefaultTemperature)
	}
	if body["top_p"] != upstream.DefaultTopP {
		t.Errorf("top_p = %v, want %v", body["top_p"], upstream.DefaultTopP)
	}
	if _, present := body["frequency_penalty"]; present {
		t.Error("frequency_penalty sent without the client asking for it")
	}
}

func TestNonStreamingFilterDisabledRelaysRaw(t *testing.T) {
	raw := foundrytest.CompletionBody("<think>kept</think>visible")
	fake := foundrytest.New(t)
	fake.Set(foundrytest.Script{Body: raw})
	deps := testDeps(t, fake)

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", chatBody(t, "raw-model", false))
	rec := doChat(deps, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != raw {
		t.Errorf("body was reshaped:\ngot  %s\nwant %s", rec.Body.String(), raw)
	}
}

func TestChatMethodNotAllowed(t *testing.T) {
	fake := foundrytest.New(t)
	deps := testDeps(t, fake)

	r := httptest.NewRequest(http.MethodGet, "/v1/chat/completions", nil)
	rec := doChat(deps, r)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestChatInvalidBody(t *testing.T) {
	fake := foundrytest.New(t)
	deps := testDeps(t, fake)

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader("{not json"))
	rec := doChat(deps, r)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	_, errType := decodeError(t, rec.Body)
	if errType != "invalid_request_error" {
		t.Errorf("error type = %q, want invalid_request_error", errType)
	}
}

func TestChatUnknownModelListsAvailable(t *testing.T) {
	fake := foundrytest.New(t)
	deps := testDeps(t, fake)

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", chatBody(t, "nope", false))
	rec := doChat(deps, r)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	msg, errType := decodeError(t, rec.Body)
	if errType != "not_found" {
		t.Errorf("error type = %q, want not_found", errType)
	}
	if !strings.Contains(msg, `"nope"`) || !strings.Contains(msg, "test-model") {
		t.Errorf("message %q should name the request and list configured models", msg)
	}
}

func TestChatMissingModelResolvesAsUnknown(t *testing.T) {
	fake := foundrytest.New(t)
	deps := testDeps(t, fake)

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	rec := doChat(deps, r)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for absent model field", rec.Code)
	}
}

func TestChatTokenFailure(t *testing.T) {
	fake := foundrytest.New(t)
	deps := testDeps(t, fake)
	deps.Tokens = failingTokens{}

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", chatBody(t, "test-model", false))
	rec := doChat(deps, r)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	msg, _ := decodeError(t, rec.Body)
	if !strings.Contains(msg, "Entra token acquisition failed") {
		t.Errorf("message = %q, want token acquisition failure", msg)
	}
	if len(fake.Requests()) != 0 {
		t.Error("upstream was called despite token failure")
	}
}

func TestNonStreamingUpstreamStatusPassthrough(t *testing.T) {
	fake := foundrytest.New(t)
	fake.Set(foundrytest.Script{StatusCode: http.StatusTooManyRequests, Body: `{"error":"rate limited"}`})
	deps := testDeps(t, fake)

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", chatBody(t, "test-model", false))
	rec := doChat(deps, r)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want upstream 429 passed through", rec.Code)
	}
	msg, errType := decodeError(t, rec.Body)
	if !strings.HasPrefix(msg, "Foundry error: ") || !strings.Contains(msg, "rate limited") {
		t.Errorf("message = %q, want Foundry error with body excerpt", msg)
	}
	if errType != "upstream_error" {
		t.Errorf("error type = %q, want upstream_error", errType)
	}
}

func TestNonStreamingUpstreamTimeout(t *testing.T) {
	fake := foundrytest.New(t)
	fake.Set(foundrytest.Script{Delay: time.Second, Body: foundrytest.CompletionBody("late")})
	deps := testDeps(t, fake)
	deps.Upstream = upstream.NewClient(100 * time.Millisecond)

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", chatBody(t, "test-model", false))
	rec := doChat(deps, r)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
	msg, _ := decodeError(t, rec.Body)
	if msg != "Foundry request timed out" {
		t.Errorf("message = %q, want timeout message", msg)
	}
}

func TestNonStreamingInvalidUpstreamJSON(t *testing.T) {
	fake := foundrytest.New(t)
	fake.Set(foundrytest.Script{Body: "not json at all"})
	deps := testDeps(t, fake)

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", chatBody(t, "test-model", false))
	rec := doChat(deps, r)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 when filtering cannot parse the body", rec.Code)
	}
}

func TestStreamingFiltersAcrossChunkBoundaries(t *testing.T) {
	fake := foundrytest.New(t)
	fake.Set(foundrytest.Script{
		Chunks: []string{
			foundrytest.RoleChunk(),
			foundrytest.DeltaChunk("<th"),
			foundrytest.DeltaChunk("ink>reasoning</th"),
			foundrytest.DeltaChunk("ink> answer"),
			foundrytest.FinishChunk("stop"),
		},
	})
	deps := testDeps(t, fake)

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", chatBody(t, "test-model", true))
	rec := doChat(deps, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q, want text/event-stream", ct)
	}

	payloads := ssePayloads(rec.Body.String())
	if len(payloads) == 0 || payloads[len(payloads)-1] != "[DONE]" {
		t.Fatalf("stream must end with [DONE], got %v", payloads)
	}
	if got := visibleContent(t, payloads); got != " answer" {
		t.Errorf("visible content = %q, want %q", got, " answer")
	}
	if strings.Contains(rec.Body.String(), "reasoning") {
		t.Error("reasoning text leaked into the stream")
	}
	// The role chunk carries no content and must relay untouched.
	if !strings.Contains(rec.Body.String(), `"role":"assistant"`) {
		t.Error("role chunk was not relayed")
	}
}

func TestStreamingFlushesBufferedTail(t *testing.T) {
	fake := foundrytest.New(t)
	fake.Set(foundrytest.Script{
		Chunks: []string{foundrytest.DeltaChunk("Hello <th")},
	})
	deps := testDeps(t, fake)

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", chatBody(t, "test-model", true))
	rec := doChat(deps, r)

	payloads := ssePayloads(rec.Body.String())
	if payloads[len(payloads)-1] != "[DONE]" {
		t.Fatalf("stream must end with [DONE], got %v", payloads)
	}
	if got := visibleContent(t, payloads); got != "Hello <th" {
		t.Errorf("visible content = %q, want buffered tail released", got)
	}
	// The tail travels in a synthesized flush chunk.
	if !strings.Contains(rec.Body.String(), `"id":"proxy-flush-`) {
		t.Error("expected a proxy-flush chunk carrying the tail")
	}
}

func TestStreamingUpstreamErrorInBand(t *testing.T) {
	fake := foundrytest.New(t)
	fake.Set(foundrytest.Script{StatusCode: http.StatusInternalServerError, Body: "boom"})
	deps := testDeps(t, fake)

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", chatBody(t, "test-model", true))
	rec := doChat(deps, r)

	// Headers were committed before the upstream exchange, so the HTTP
	// status stays 200 and the failure travels in-band.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with in-band error", rec.Code)
	}
	payloads := ssePayloads(rec.Body.String())
	if len(payloads) != 2 {
		t.Fatalf("payloads = %v, want error event plus [DONE]", payloads)
	}
	var errEvent struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(payloads[0]), &errEvent); err != nil {
		t.Fatalf("decoding error event: %v", err)
	}
	if errEvent.Error.Message != "Foundry returned 500" {
		t.Errorf("message = %q, want Foundry returned 500", errEvent.Error.Message)
	}
	if errEvent.Error.Type != "upstream_error" {
		t.Errorf("type = %q, want upstream_error", errEvent.Error.Type)
	}
	if payloads[1] != "[DONE]" {
		t.Errorf("last payload = %q, want [DONE]", payloads[1])
	}
}

func TestStreamingTruncatedUpstreamStillTerminates(t *testing.T) {
	fake := foundrytest.New(t)
	fake.Set(foundrytest.Script{
		Chunks:   []string{foundrytest.DeltaChunk("partial answer")},
		OmitDone: true,
	})
	deps := testDeps(t, fake)

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", chatBody(t, "test-model", true))
	rec := doChat(deps, r)

	payloads := ssePayloads(rec.Body.String())
	if len(payloads) == 0 || payloads[len(payloads)-1] != "[DONE]" {
		t.Fatalf("truncated upstream must still terminate with [DONE], got %v", payloads)
	}
	if got := visibleContent(t, payloads); got != "partial answer" {
		t.Errorf("visible content = %q, want partial answer", got)
	}
}

func TestStreamingSkipsMalformedPayloads(t *testing.T) {
	fake := foundrytest.New(t)
	fake.Set(foundrytest.Script{
		Chunks: []string{"{malformed", foundrytest.DeltaChunk("fine")},
		Lines:  []string{": keep-alive comment"},
	})
	deps := testDeps(t, fake)

	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", chatBody(t, "test-model", true))
	rec := doChat(deps, r)

	payloads := ssePayloads(rec.Body.String())
	if got := visibleContent(t, payloads); got != "fine" {
		t.Errorf("visible content = %q, want fine", got)
	}
	for _, p := range payloads {
		if strings.Contains(p, "malformed") {
			t.Error("malformed payload was relayed")
		}
	}
}

func TestModelsHandler(t *testing.T) {
	fake := foundrytest.New(t)
	deps := testDeps(t, fake)

	rec := httptest.NewRecorder()
	NewModelsHandler(deps.Registry).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/v1/models", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var list struct {
		Object string `json:"object"`
		Data   []struct {
			ID      string `json:"id"`
			Object  string `json:"object"`
			OwnedBy string `json:"owned_by"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decoding model list: %v", err)
	}
	if list.Object != "list" || len(list.Data) != 2 {
		t.Fatalf("list = %+v, want 2 models", list)
	}
	if list.Data[0].ID != "raw-model" || list.Data[1].ID != "test-model" {
		t.Errorf("ids = %v, want sorted raw-model, test-model", list.Data)
	}
	if list.Data[0].Object != "model" || list.Data[0].OwnedBy != "azure-foundry" {
		t.Errorf("entry = %+v, want object model owned by azure-foundry", list.Data[0])
	}

	rec = httptest.NewRecorder()
	NewModelsHandler(deps.Registry).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/v1/models", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	fake := foundrytest.New(t)
	deps := testDeps(t, fake)

	rec := httptest.NewRecorder()
	NewHealthHandler(deps.Registry).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var health struct {
		Status string   `json:"status"`
		Models []string `json:"models"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
	if len(health.Models) != 2 {
		t.Errorf("models = %v, want both configured ids", health.Models)
	}
}
