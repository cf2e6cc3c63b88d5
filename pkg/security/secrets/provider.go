package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a provider has no value for the requested
// secret name.
var ErrNotFound = errors.New("secret not found")

// Provider resolves named secrets. Implementations must be safe for
// concurrent use; GetSecret sits on the request path.
type Provider interface {
	GetSecret(ctx context.Context, name string) (string, error)
	Close() error
}

type aliasProvider struct {
	inner Provider
	names map[string]string
}

// Alias wraps a provider so that lookups under the given names resolve
// under the underlying provider's names. Unmapped names pass through.
// This bridges fixed lookup names onto operator-chosen file names.
func Alias(inner Provider, names map[string]string) Provider {
	return &aliasProvider{inner: inner, names: names}
}

func (p *aliasProvider) GetSecret(ctx context.Context, name string) (string, error) {
	if mapped, ok := p.names[name]; ok {
		name = mapped
	}
	return p.inner.GetSecret(ctx, name)
}

func (p *aliasProvider) Close() error {
	return p.inner.Close()
}
