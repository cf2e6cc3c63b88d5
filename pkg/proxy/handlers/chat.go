package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"foundry-hq/hermes/pkg/audit"
	"foundry-hq/hermes/pkg/filter"
	"foundry-hq/hermes/pkg/proxy"
	"foundry-hq/hermes/pkg/proxy/middleware"
	"foundry-hq/hermes/pkg/proxy/types"
	"foundry-hq/hermes/pkg/registry"
	"foundry-hq/hermes/pkg/telemetry/metrics"
	"foundry-hq/hermes/pkg/telemetry/tracing"
	"foundry-hq/hermes/pkg/upstream"
)

// observation is everything recorded about a finished chat request. The
// metrics label is kept separate from the audit model field: audit keeps
// the ID the client actually sent, while metrics use "unknown" for IDs
// that never resolved so label cardinality stays bounded.
type observation struct {
	metricLabel    string
	model          string
	deployment     string
	stream         bool
	outcome        string
	httpStatus     int
	upstreamStatus int
	elided         int
}

// countingWriter tracks the byte traffic of one request for the audit
// trail. It forwards Flush so SSE streaming keeps working through it.
type countingWriter struct {
	http.ResponseWriter
	bytesIn  int64
	bytesOut int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.ResponseWriter.Write(p)
	cw.bytesOut += int64(n)
	return n, err
}

func (cw *countingWriter) Flush() {
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// record writes the observation to metrics and, when enabled, the audit
// trail.
func record(ctx context.Context, deps Deps, w http.ResponseWriter, obs observation, start time.Time) {
	elapsed := time.Since(start)

	mode := metrics.ModeNonStreaming
	if obs.stream {
		mode = metrics.ModeStreaming
	}
	deps.Metrics.ObserveRequest(obs.metricLabel, mode, obs.outcome, elapsed)
	if obs.elided > 0 {
		deps.Metrics.AddElidedRegions(obs.metricLabel, obs.elided)
	}

	if deps.Audit != nil {
		rec := audit.Record{
			RequestID:      middleware.GetRequestID(ctx),
			Model:          obs.model,
			Deployment:     obs.deployment,
			Stream:         obs.stream,
			Outcome:        obs.outcome,
			HTTPStatus:     obs.httpStatus,
			UpstreamStatus: obs.upstreamStatus,
			LatencyMS:      elapsed.Milliseconds(),
			ElidedRegions:  obs.elided,
		}
		if cw, ok := w.(*countingWriter); ok {
			rec.BytesIn = cw.bytesIn
			rec.BytesOut = cw.bytesOut
		}
		deps.Audit.Record(rec)
	}
}

// handleChatCompletion handles a chat completion request end to end.
func handleChatCompletion(w http.ResponseWriter, r *http.Request, deps Deps) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	start := time.Now()

	// Only accept POST requests
	if r.Method != http.MethodPost {
		errResp := types.NewInvalidRequestError(
			fmt.Sprintf("Method %s not allowed. Use POST instead.", r.Method))
		proxy.WriteError(w, http.StatusMethodNotAllowed, errResp)
		return
	}

	cw := &countingWriter{ResponseWriter: w}
	if r.ContentLength > 0 {
		cw.bytesIn = r.ContentLength
	}
	w = cw

	// Parse request body
	req, errResp := proxy.ParseChatRequest(r, deps.MaxBodyBytes)
	if errResp != nil {
		slog.WarnContext(ctx, "rejecting malformed chat request",
			"request_id", requestID,
			"error", errResp.Error.Message,
		)
		proxy.WriteError(w, errResp.HTTPStatusCode(), errResp)
		record(ctx, deps, w, observation{
			metricLabel: "unknown",
			outcome:     audit.OutcomeClientError,
			httpStatus:  errResp.HTTPStatusCode(),
		}, start)
		return
	}

	// Resolve the client-facing model ID to its Foundry deployment. An
	// absent model field resolves like any other unknown ID.
	m, err := deps.Registry.Resolve(req.Model)
	if err != nil {
		slog.WarnContext(ctx, "chat request for unknown model",
			"request_id", requestID,
			"model", req.Model,
		)
		errResp := types.NewNotFoundError(fmt.Sprintf(
			"Model %q not configured. Available: %s",
			req.Model, strings.Join(deps.Registry.IDs(), ", ")))
		proxy.WriteError(w, http.StatusNotFound, errResp)
		record(ctx, deps, w, observation{
			metricLabel: "unknown",
			model:       req.Model,
			stream:      req.Stream,
			outcome:     audit.OutcomeClientError,
			httpStatus:  http.StatusNotFound,
		}, start)
		return
	}

	slog.InfoContext(ctx, "routing chat completion",
		"request_id", requestID,
		"model", m.ID,
		"deployment", m.Deployment,
		"url", m.ChatCompletionsURL(),
		"stream", req.Stream,
	)

	// Acquire the upstream bearer token. This still precedes any response
	// bytes, so failure is an ordinary HTTP error.
	tok, err := deps.Tokens.Token(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "token acquisition failed",
			"request_id", requestID,
			"model", m.ID,
			"error", err,
		)
		errResp := types.NewBadGatewayError(
			fmt.Sprintf("Entra token acquisition failed: %v", err))
		proxy.WriteError(w, http.StatusBadGateway, errResp)
		record(ctx, deps, w, observation{
			metricLabel: m.ID,
			model:       m.ID,
			deployment:  m.Deployment,
			stream:      req.Stream,
			outcome:     audit.OutcomeUpstreamError,
			httpStatus:  http.StatusBadGateway,
		}, start)
		return
	}

	body := upstream.Translate(req, m)

	if req.Stream {
		handleStreaming(w, r, deps, m, tok.Value, body, start)
		return
	}
	handleNonStreaming(w, r, deps, m, tok.Value, body, start)
}

// handleNonStreaming forwards a buffered completion and filters the
// assistant content before relaying it.
func handleNonStreaming(w http.ResponseWriter, r *http.Request, deps Deps, m registry.Model, bearer string, body *upstream.Request, start time.Time) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	ctx, span := tracing.Start(ctx, "chat_completion",
		attribute.String("model", m.ID),
		attribute.String("deployment", m.Deployment),
		attribute.Bool("stream", false),
	)
	defer span.End()

	raw, err := deps.Upstream.Complete(ctx, m.ChatCompletionsURL(), bearer, body)
	if err != nil {
		span.RecordError(err)
		writeUpstreamFailure(ctx, w, deps, m, start, err)
		return
	}

	out := raw
	elided := 0
	if m.StripThinkTags {
		rewritten, err := upstream.RewriteMessages(raw, func(content string) string {
			elided += filter.RegionCount(content)
			return filter.Clean(content)
		})
		if err != nil {
			slog.ErrorContext(ctx, "upstream completion is not valid JSON",
				"request_id", requestID,
				"model", m.ID,
				"error", err,
			)
			errResp := types.NewBadGatewayError("Foundry returned invalid JSON")
			proxy.WriteError(w, http.StatusBadGateway, errResp)
			record(ctx, deps, w, observation{
				metricLabel: m.ID,
				model:       m.ID,
				deployment:  m.Deployment,
				outcome:     audit.OutcomeUpstreamError,
				httpStatus:  http.StatusBadGateway,
			}, start)
			return
		}
		out = rewritten
	}

	proxy.WriteRawJSON(w, http.StatusOK, out)
	record(ctx, deps, w, observation{
		metricLabel: m.ID,
		model:       m.ID,
		deployment:  m.Deployment,
		outcome:     audit.OutcomeSuccess,
		httpStatus:  http.StatusOK,
		elided:      elided,
	}, start)
	slog.InfoContext(ctx, "chat completion finished",
		"request_id", requestID,
		"model", m.ID,
		"elided_regions", elided,
		"latency_ms", time.Since(start).Milliseconds(),
	)
}

// writeUpstreamFailure maps a failed buffered exchange onto the HTTP error
// contract: 504 for timeouts, status passthrough for upstream errors, 502
// for everything else. A canceled client gets no response at all.
func writeUpstreamFailure(ctx context.Context, w http.ResponseWriter, deps Deps, m registry.Model, start time.Time, err error) {
	requestID := middleware.GetRequestID(ctx)

	if errors.Is(err, context.Canceled) {
		slog.WarnContext(ctx, "client canceled chat completion",
			"request_id", requestID,
			"model", m.ID,
		)
		record(ctx, deps, w, observation{
			metricLabel: m.ID,
			model:       m.ID,
			deployment:  m.Deployment,
			outcome:     audit.OutcomeCanceled,
		}, start)
		return
	}

	var (
		errResp        *types.ErrorResponse
		status         int
		upstreamStatus int
	)
	var statusErr *upstream.StatusError
	var timeoutErr *upstream.TimeoutError
	switch {
	case errors.As(err, &timeoutErr):
		deps.Metrics.UpstreamError(metrics.ErrorKindTimeout)
		status = http.StatusGatewayTimeout
		errResp = types.NewGatewayTimeoutError("Foundry request timed out")
	case errors.As(err, &statusErr):
		deps.Metrics.UpstreamError(metrics.ErrorKindStatus)
		status = statusErr.StatusCode
		upstreamStatus = statusErr.StatusCode
		errResp = types.NewUpstreamError("Foundry error: " + statusErr.Body)
	default:
		deps.Metrics.UpstreamError(metrics.ErrorKindConnection)
		status = http.StatusBadGateway
		errResp = types.NewBadGatewayError(fmt.Sprintf("Foundry request failed: %v", err))
	}

	slog.ErrorContext(ctx, "chat completion failed",
		"request_id", requestID,
		"model", m.ID,
		"status", status,
		"error", err,
	)
	proxy.WriteError(w, status, errResp)
	record(ctx, deps, w, observation{
		metricLabel:    m.ID,
		model:          m.ID,
		deployment:     m.Deployment,
		outcome:        audit.OutcomeUpstreamError,
		httpStatus:     status,
		upstreamStatus: upstreamStatus,
	}, start)
}

// handleStreaming forwards a streaming completion. The 200 status and SSE
// headers are committed before the upstream exchange starts, matching how
// the streamed response contract works: from here on every failure travels
// in-band, and every stream ends with [DONE] unless the client is gone.
func handleStreaming(w http.ResponseWriter, r *http.Request, deps Deps, m registry.Model, bearer string, body *upstream.Request, start time.Time) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	ctx, span := tracing.Start(ctx, "chat_completion",
		attribute.String("model", m.ID),
		attribute.String("deployment", m.Deployment),
		attribute.Bool("stream", true),
	)
	defer span.End()

	proxy.SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	deps.Metrics.StreamStarted()
	defer deps.Metrics.StreamEnded()

	reader, err := deps.Upstream.Stream(ctx, m.ChatCompletionsURL(), bearer, body)
	if err != nil {
		span.RecordError(err)
		writeStreamFailure(ctx, w, deps, m, nil, start, err)
		return
	}
	defer reader.Close()

	var state *filter.State
	if m.StripThinkTags {
		state = filter.New()
	}

	clientGone := func() {
		slog.WarnContext(ctx, "client disconnected during streaming",
			"request_id", requestID,
			"model", m.ID,
		)
		record(ctx, deps, w, observation{
			metricLabel: m.ID,
			model:       m.ID,
			deployment:  m.Deployment,
			stream:      true,
			outcome:     audit.OutcomeCanceled,
			httpStatus:  http.StatusOK,
			elided:      regions(state),
		}, start)
	}

	for {
		event, err := reader.Next()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				finishStream(ctx, w, deps, m, state, start)
			case errors.Is(err, upstream.ErrTruncated):
				// The upstream closed without [DONE]. The client still gets
				// a complete stream: buffered text, then the terminator.
				slog.WarnContext(ctx, "upstream stream ended without [DONE]",
					"request_id", requestID,
					"model", m.ID,
				)
				finishStream(ctx, w, deps, m, state, start)
			case errors.Is(err, context.Canceled):
				clientGone()
			default:
				span.RecordError(err)
				writeStreamFailure(ctx, w, deps, m, state, start, err)
			}
			return
		}

		// Role chunks, finish chunks, and chunks without content relay
		// untouched, as does everything when filtering is off.
		if !event.HasDelta || state == nil {
			if err := proxy.WriteSSE(w, event.Raw); err != nil {
				clientGone()
				return
			}
			deps.Metrics.StreamEvent(m.ID, metrics.EventRelayed)
			continue
		}

		filtered := state.Feed(event.Delta)
		switch {
		case filtered == event.Delta:
			// Nothing elided: relay the upstream bytes byte for byte.
			if err := proxy.WriteSSE(w, event.Raw); err != nil {
				clientGone()
				return
			}
			deps.Metrics.StreamEvent(m.ID, metrics.EventRelayed)
		case filtered == "":
			// Entirely reasoning or a held-back delimiter candidate.
			deps.Metrics.StreamEvent(m.ID, metrics.EventSuppressed)
		default:
			rewritten, err := upstream.RewriteDelta(event.Raw, filtered)
			if err != nil {
				// An event that produced a delta always rewrites; if it
				// somehow does not, drop it rather than leak reasoning.
				slog.ErrorContext(ctx, "rewriting stream chunk failed",
					"request_id", requestID,
					"model", m.ID,
					"error", err,
				)
				deps.Metrics.StreamEvent(m.ID, metrics.EventSuppressed)
				continue
			}
			if err := proxy.WriteSSE(w, rewritten); err != nil {
				clientGone()
				return
			}
			deps.Metrics.StreamEvent(m.ID, metrics.EventRewritten)
		}
	}
}

// finishStream releases any text still buffered in the filter, writes the
// terminator, and records the outcome.
func finishStream(ctx context.Context, w http.ResponseWriter, deps Deps, m registry.Model, state *filter.State, start time.Time) {
	requestID := middleware.GetRequestID(ctx)

	elided := regions(state)
	if state != nil {
		if tail := state.Flush(); tail != "" {
			if payload, err := json.Marshal(proxy.NewFlushChunk(tail, m.ID)); err == nil {
				if err := proxy.WriteSSE(w, payload); err == nil {
					deps.Metrics.StreamEvent(m.ID, metrics.EventSynthesized)
				}
			}
		}
	}
	proxy.WriteSSEDone(w)

	record(ctx, deps, w, observation{
		metricLabel: m.ID,
		model:       m.ID,
		deployment:  m.Deployment,
		stream:      true,
		outcome:     audit.OutcomeSuccess,
		httpStatus:  http.StatusOK,
		elided:      elided,
	}, start)
	slog.InfoContext(ctx, "stream finished",
		"request_id", requestID,
		"model", m.ID,
		"elided_regions", elided,
		"latency_ms", time.Since(start).Milliseconds(),
	)
}

// writeStreamFailure surfaces an upstream failure in-band. The terminator
// still follows so the client sees a complete stream. A canceled client
// gets nothing: there is no one left to read it.
func writeStreamFailure(ctx context.Context, w http.ResponseWriter, deps Deps, m registry.Model, state *filter.State, start time.Time, err error) {
	requestID := middleware.GetRequestID(ctx)

	if errors.Is(err, context.Canceled) {
		slog.WarnContext(ctx, "client disconnected during streaming",
			"request_id", requestID,
			"model", m.ID,
		)
		record(ctx, deps, w, observation{
			metricLabel: m.ID,
			model:       m.ID,
			deployment:  m.Deployment,
			stream:      true,
			outcome:     audit.OutcomeCanceled,
			httpStatus:  http.StatusOK,
			elided:      regions(state),
		}, start)
		return
	}

	var (
		message        string
		errType        string
		kind           string
		upstreamStatus int
	)
	var statusErr *upstream.StatusError
	var timeoutErr *upstream.TimeoutError
	switch {
	case errors.As(err, &timeoutErr):
		message = "Foundry request timed out"
		errType = types.StreamErrorTypeTimeout
		kind = metrics.ErrorKindTimeout
	case errors.As(err, &statusErr):
		message = fmt.Sprintf("Foundry returned %d", statusErr.StatusCode)
		errType = types.StreamErrorTypeUpstream
		kind = metrics.ErrorKindStatus
		upstreamStatus = statusErr.StatusCode
	default:
		message = fmt.Sprintf("Connection error: %v", err)
		errType = types.StreamErrorTypeConnection
		kind = metrics.ErrorKindConnection
	}

	slog.ErrorContext(ctx, "stream failed",
		"request_id", requestID,
		"model", m.ID,
		"error", err,
	)
	deps.Metrics.UpstreamError(kind)
	proxy.WriteSSEError(w, message, errType)
	proxy.WriteSSEDone(w)

	record(ctx, deps, w, observation{
		metricLabel:    m.ID,
		model:          m.ID,
		deployment:     m.Deployment,
		stream:         true,
		outcome:        audit.OutcomeUpstreamError,
		httpStatus:     http.StatusOK,
		upstreamStatus: upstreamStatus,
		elided:         regions(state),
	}, start)
}

func regions(state *filter.State) int {
	if state == nil {
		return 0
	}
	return state.Regions()
}

// ChatHandler serves POST /v1/chat/completions.
type ChatHandler struct {
	deps Deps
}

// NewChatHandler creates a new chat completion handler.
func NewChatHandler(deps Deps) *ChatHandler {
	return &ChatHandler{deps: deps}
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handleChatCompletion(w, r, h.deps)
}
