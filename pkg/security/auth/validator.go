package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"foundry-hq/hermes/pkg/security/secrets"
)

// SecretName is the name the shared secret is stored under in whichever
// provider backs the validator.
const SecretName = "shared-secret"

var (
	// ErrNotConfigured means the secret provider has no shared secret, so
	// no request can ever be authenticated.
	ErrNotConfigured = errors.New("shared secret not configured")

	// ErrMissingBearer means the Authorization header is absent or not a
	// bearer token.
	ErrMissingBearer = errors.New("missing bearer token")

	// ErrInvalidKey means a bearer token was presented but does not match
	// the shared secret.
	ErrInvalidKey = errors.New("invalid api key")
)

// Validator checks presented bearer tokens against the shared secret.
type Validator struct {
	provider secrets.Provider
}

// NewValidator returns a validator backed by the given secret provider.
func NewValidator(provider secrets.Provider) *Validator {
	return &Validator{provider: provider}
}

// Authenticate checks an Authorization header value. It resolves the
// shared secret on every call so that rotated secrets apply immediately.
func (v *Validator) Authenticate(ctx context.Context, authorization string) error {
	expected, err := v.provider.GetSecret(ctx, SecretName)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotConfigured, err)
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return ErrMissingBearer
	}

	if !equal(authorization[len(prefix):], expected) {
		return ErrInvalidKey
	}
	return nil
}

// equal compares two secrets in constant time. Hashing first makes the
// comparison length-independent.
func equal(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}
