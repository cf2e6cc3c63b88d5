package token

import (
	"context"
	"sync"
	"time"
)

// CachingSource wraps another source and reuses its token until shortly
// before expiry. The skew refreshes tokens early so no request goes out
// with a token about to lapse mid-exchange. The lock is held across the
// refresh, so concurrent requests trigger a single upstream acquisition.
type CachingSource struct {
	source Source
	skew   time.Duration
	now    func() time.Time

	mu     sync.Mutex
	cached Token
	valid  bool
}

// NewCachingSource wraps source with a cache refreshing skew before expiry.
func NewCachingSource(source Source, skew time.Duration) *CachingSource {
	return &CachingSource{source: source, skew: skew, now: time.Now}
}

// Token returns the cached token, refreshing it when it is within skew of
// expiring. A failed refresh leaves no cached value behind.
func (c *CachingSource) Token(ctx context.Context) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.fresh(c.cached) {
		return c.cached, nil
	}

	tok, err := c.source.Token(ctx)
	if err != nil {
		c.valid = false
		return Token{}, err
	}
	c.cached = tok
	c.valid = true
	return tok, nil
}

func (c *CachingSource) fresh(t Token) bool {
	if t.ExpiresOn.IsZero() {
		return true
	}
	return t.ExpiresOn.Sub(c.now()) > c.skew
}
