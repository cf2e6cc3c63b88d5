package audit

import (
	"context"
	"sync"
	"testing"
	"time"
)

type blockingStorage struct {
	mu      sync.Mutex
	recs    []Record
	release chan struct{}
}

func (s *blockingStorage) Append(_ context.Context, rec Record) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *blockingStorage) stored() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.recs...)
}

func (s *blockingStorage) List(context.Context, Filter) ([]Record, error)       { return s.stored(), nil }
func (s *blockingStorage) Count(context.Context) (int64, error)                 { return int64(len(s.stored())), nil }
func (s *blockingStorage) DeleteOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }
func (s *blockingStorage) TrimToCount(context.Context, int) (int64, error)      { return 0, nil }
func (s *blockingStorage) Close() error                                         { return nil }

func TestRecorderStampsAndPersists(t *testing.T) {
	store := &blockingStorage{}
	rec := NewRecorder(store, 16)

	rec.Record(Record{RequestID: "req-1", Model: "gpt-4", Outcome: OutcomeSuccess, HTTPStatus: 200})
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	stored := store.stored()
	if len(stored) != 1 {
		t.Fatalf("stored = %d records", len(stored))
	}
	got := stored[0]
	if got.ID == "" {
		t.Error("ID should be stamped")
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be stamped")
	}
	if got.RequestID != "req-1" || got.Model != "gpt-4" {
		t.Errorf("record = %+v", got)
	}
}

func TestRecorderCloseDrains(t *testing.T) {
	store := &blockingStorage{}
	rec := NewRecorder(store, 64)

	for i := 0; i < 50; i++ {
		rec.Record(Record{RequestID: "req", Model: "gpt-4"})
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := len(store.stored()); got != 50 {
		t.Errorf("stored = %d, want all queued records drained", got)
	}
	if rec.Dropped() != 0 {
		t.Errorf("dropped = %d", rec.Dropped())
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	store := &blockingStorage{release: make(chan struct{})}
	rec := NewRecorder(store, 1)

	// First record occupies the worker, second fills the buffer, the rest
	// must drop without blocking.
	for i := 0; i < 10; i++ {
		rec.Record(Record{RequestID: "req", Model: "gpt-4"})
	}
	if rec.Dropped() == 0 {
		t.Error("expected drops with a full queue")
	}

	close(store.release)
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := len(store.stored()); got == 0 {
		t.Error("accepted records should still be persisted")
	}
}

func TestRecorderRecordAfterClose(t *testing.T) {
	store := &blockingStorage{}
	rec := NewRecorder(store, 4)
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rec.Record(Record{RequestID: "late"})
	if rec.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", rec.Dropped())
	}
	if err := rec.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
