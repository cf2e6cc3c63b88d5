package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"foundry-hq/hermes/pkg/audit"
)

// Policy bounds the audit trail. A zero value disables that bound.
type Policy struct {
	MaxAge     time.Duration
	MaxRecords int
}

// Pruner applies a retention policy to audit storage in two phases: age
// first, then count. The count phase therefore trims what the age phase
// left, never the other way around.
type Pruner struct {
	storage audit.Storage
	policy  Policy
	logger  *slog.Logger
	now     func() time.Time
}

// NewPruner returns a pruner over storage with the given policy.
func NewPruner(storage audit.Storage, policy Policy) *Pruner {
	return &Pruner{
		storage: storage,
		policy:  policy,
		logger:  slog.Default().With("component", "retention"),
		now:     time.Now,
	}
}

// Prune applies the policy once and returns how many records were removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.policy.MaxAge > 0 {
		cutoff := p.now().Add(-p.policy.MaxAge)
		n, err := p.storage.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("age phase: %w", err)
		}
		total += n
	}

	if p.policy.MaxRecords > 0 {
		n, err := p.storage.TrimToCount(ctx, p.policy.MaxRecords)
		if err != nil {
			return total, fmt.Errorf("count phase: %w", err)
		}
		total += n
	}

	if total > 0 {
		p.logger.Info("pruned audit records", "removed", total)
	}
	return total, nil
}
