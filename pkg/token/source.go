package token

import (
	"context"
	"fmt"
	"time"
)

// Token is a bearer token together with its expiry. A zero ExpiresOn means
// the token never expires.
type Token struct {
	Value     string
	ExpiresOn time.Time
}

// Source yields bearer tokens for upstream requests.
type Source interface {
	Token(ctx context.Context) (Token, error)
}

// AcquisitionError wraps a failure to obtain a token for a scope.
type AcquisitionError struct {
	Scope string
	Cause error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquiring token for scope %s: %v", e.Scope, e.Cause)
}

func (e *AcquisitionError) Unwrap() error { return e.Cause }
