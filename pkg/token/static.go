package token

import "context"

// StaticSource returns a fixed token. It serves deployments that front a
// backend with a long-lived key, and tests that need a predictable value.
type StaticSource struct {
	value string
}

// NewStaticSource returns a source that always yields value.
func NewStaticSource(value string) *StaticSource {
	return &StaticSource{value: value}
}

// Token returns the fixed token with no expiry.
func (s *StaticSource) Token(context.Context) (Token, error) {
	return Token{Value: s.value}, nil
}
