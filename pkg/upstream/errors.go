package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrTruncated reports that the upstream closed its stream without the
// terminal [DONE] marker.
var ErrTruncated = errors.New("upstream stream ended without [DONE]")

// StatusError is a non-200 response from the upstream. Body holds at most
// the first 500 bytes of the response, enough to diagnose without relaying
// arbitrarily large payloads into logs and error envelopes.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

// TimeoutError means the exchange exceeded the configured upstream timeout.
type TimeoutError struct {
	Cause error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream request timed out: %v", e.Cause)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// ConnectionError covers transport failures that are neither timeouts nor
// HTTP status errors: refused connections, DNS failures, resets mid-body.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("upstream connection error: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// classify wraps a transport error as a TimeoutError or ConnectionError.
// Context cancellation stays reachable through Unwrap so callers can tell
// a client disconnect from an upstream failure.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Cause: err}
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return &TimeoutError{Cause: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &TimeoutError{Cause: err}
	}
	return &ConnectionError{Cause: err}
}
