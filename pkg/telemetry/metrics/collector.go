// Package metrics exposes the proxy's Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hermes"

// Request modes.
const (
	ModeStreaming    = "streaming"
	ModeNonStreaming = "non_streaming"
)

// Stream event kinds.
const (
	EventRelayed     = "relayed"
	EventRewritten   = "rewritten"
	EventSuppressed  = "suppressed"
	EventSynthesized = "synthesized"
)

// Upstream error kinds.
const (
	ErrorKindStatus     = "status"
	ErrorKindTimeout    = "timeout"
	ErrorKindConnection = "connection"
)

// Collector bundles the proxy's metrics behind a private registry, so
// tests can build as many collectors as they like without registration
// conflicts.
type Collector struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	streamEvents   *prometheus.CounterVec
	elidedRegions  *prometheus.CounterVec
	activeStreams  prometheus.Gauge
	upstreamErrors *prometheus.CounterVec
}

// NewCollector builds and registers all proxy metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Proxied chat completion requests by model, mode, and outcome.",
		}, []string{"model", "mode", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request duration by model and mode.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"model", "mode"}),
		streamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_total",
			Help:      "SSE events handled per model, by what happened to them.",
		}, []string{"model", "kind"}),
		elidedRegions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elided_regions_total",
			Help:      "Reasoning regions removed from responses per model.",
		}, []string{"model"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Streams currently being relayed.",
		}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Upstream failures by kind.",
		}, []string{"kind"}),
	}

	c.registry.MustRegister(
		c.requests, c.duration, c.streamEvents, c.elidedRegions,
		c.activeStreams, c.upstreamErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler serves the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished request.
func (c *Collector) ObserveRequest(model, mode, outcome string, duration time.Duration) {
	c.requests.WithLabelValues(model, mode, outcome).Inc()
	c.duration.WithLabelValues(model, mode).Observe(duration.Seconds())
}

// StreamEvent counts one handled SSE event.
func (c *Collector) StreamEvent(model, kind string) {
	c.streamEvents.WithLabelValues(model, kind).Inc()
}

// AddElidedRegions counts reasoning regions removed for model.
func (c *Collector) AddElidedRegions(model string, n int) {
	if n > 0 {
		c.elidedRegions.WithLabelValues(model).Add(float64(n))
	}
}

// StreamStarted marks a relay beginning.
func (c *Collector) StreamStarted() { c.activeStreams.Inc() }

// StreamEnded marks a relay finishing.
func (c *Collector) StreamEnded() { c.activeStreams.Dec() }

// UpstreamError counts one upstream failure of the given kind.
func (c *Collector) UpstreamError(kind string) {
	c.upstreamErrors.WithLabelValues(kind).Inc()
}
