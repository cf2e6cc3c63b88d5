package handlers

import (
	"foundry-hq/hermes/pkg/audit"
	"foundry-hq/hermes/pkg/registry"
	"foundry-hq/hermes/pkg/telemetry/metrics"
	"foundry-hq/hermes/pkg/token"
	"foundry-hq/hermes/pkg/upstream"
)

// Deps bundles the shared dependencies the request handlers draw on.
// Metrics is always required; the collector is constructed even when the
// /metrics route is not mounted. Audit may be nil, which disables the
// audit trail.
type Deps struct {
	Registry *registry.Registry
	Tokens   token.Source
	Upstream *upstream.Client
	Metrics  *metrics.Collector
	Audit    *audit.Recorder

	// MaxBodyBytes bounds how much of a request body is read.
	MaxBodyBytes int64
}
