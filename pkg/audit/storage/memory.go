package storage

import (
	"context"
	"sync"
	"time"

	"foundry-hq/hermes/pkg/audit"
)

// Memory keeps audit records in a bounded in-process slice, oldest first.
// When the cap is reached the oldest records are evicted, so a runaway
// trail can never exhaust memory between retention runs.
type Memory struct {
	mu   sync.RWMutex
	recs []audit.Record
	cap  int
}

// NewMemory returns a store holding at most capRecords entries.
func NewMemory(capRecords int) *Memory {
	if capRecords < 1 {
		capRecords = 1
	}
	return &Memory{cap: capRecords}
}

// Append stores rec, evicting the oldest entry if the store is full.
func (m *Memory) Append(_ context.Context, rec audit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.recs) >= m.cap {
		overflow := len(m.recs) - m.cap + 1
		m.recs = append(m.recs[:0], m.recs[overflow:]...)
	}
	m.recs = append(m.recs, rec)
	return nil
}

// List returns matching records, newest first.
func (m *Memory) List(_ context.Context, f audit.Filter) ([]audit.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]audit.Record, 0)
	for i := len(m.recs) - 1; i >= 0; i-- {
		rec := m.recs[i]
		if f.Model != "" && rec.Model != f.Model {
			continue
		}
		if f.Outcome != "" && rec.Outcome != f.Outcome {
			continue
		}
		if !f.Since.IsZero() && rec.CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, rec)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// Count returns the number of stored records.
func (m *Memory) Count(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.recs)), nil
}

// DeleteOlderThan removes records created before cutoff.
func (m *Memory) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.recs[:0]
	var removed int64
	for _, rec := range m.recs {
		if rec.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	m.recs = kept
	return removed, nil
}

// TrimToCount removes the oldest records until at most max remain.
func (m *Memory) TrimToCount(_ context.Context, max int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if max < 0 || len(m.recs) <= max {
		return 0, nil
	}
	removed := int64(len(m.recs) - max)
	m.recs = append(m.recs[:0], m.recs[len(m.recs)-max:]...)
	return removed, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
