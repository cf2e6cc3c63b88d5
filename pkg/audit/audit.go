package audit

import (
	"context"
	"time"
)

// Outcomes classifying how a proxied request ended.
const (
	OutcomeSuccess       = "success"
	OutcomeClientError   = "client_error"
	OutcomeUpstreamError = "upstream_error"
	OutcomeCanceled      = "canceled"
)

// Record is one audit entry for a proxied chat completion.
type Record struct {
	ID             string    `json:"id"`
	RequestID      string    `json:"request_id"`
	Model          string    `json:"model"`
	Deployment     string    `json:"deployment"`
	Stream         bool      `json:"stream"`
	Outcome        string    `json:"outcome"`
	HTTPStatus     int       `json:"http_status"`
	UpstreamStatus int       `json:"upstream_status,omitempty"`
	LatencyMS      int64     `json:"latency_ms"`
	BytesIn        int64     `json:"bytes_in"`
	BytesOut       int64     `json:"bytes_out"`
	ElidedRegions  int       `json:"elided_regions"`
	CreatedAt      time.Time `json:"created_at"`
}

// Filter narrows List queries.
type Filter struct {
	Model   string
	Outcome string
	Since   time.Time
	Limit   int
}

// Storage persists audit records. Implementations must be safe for
// concurrent use.
type Storage interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context, f Filter) ([]Record, error)
	Count(ctx context.Context) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	TrimToCount(ctx context.Context, max int) (int64, error)
	Close() error
}
