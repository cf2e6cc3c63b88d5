package secrets

import (
	"context"
	"fmt"
)

// StaticProvider serves secrets from a fixed in-memory map. It backs
// configurations where the secret is given inline.
type StaticProvider struct {
	values map[string]string
}

// NewStaticProvider returns a provider over a copy of the given values.
func NewStaticProvider(values map[string]string) *StaticProvider {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &StaticProvider{values: copied}
}

// GetSecret returns the stored value for name.
func (p *StaticProvider) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := p.values[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return v, nil
}

// Close is a no-op.
func (p *StaticProvider) Close() error { return nil }
