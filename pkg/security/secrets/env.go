package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvProvider resolves secrets from environment variables. A secret named
// "shared-secret" with prefix "HERMES_SECRET_" maps to the variable
// HERMES_SECRET_SHARED_SECRET.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider returns a provider that maps secret names to prefixed
// environment variables.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

// GetSecret looks up the environment variable for name. Empty values count
// as not found, since an empty secret can never authenticate anyone.
func (p *EnvProvider) GetSecret(_ context.Context, name string) (string, error) {
	v := os.Getenv(p.varName(name))
	if v == "" {
		return "", fmt.Errorf("%w: %s (environment variable %s)", ErrNotFound, name, p.varName(name))
	}
	return v, nil
}

// Close is a no-op.
func (p *EnvProvider) Close() error { return nil }

func (p *EnvProvider) varName(name string) string {
	mapped := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	return p.prefix + mapped
}
