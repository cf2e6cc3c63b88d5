package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Recorder accepts records from the request path without blocking it.
// Records queue onto a buffered channel drained by a single worker; when
// the buffer is full the record is dropped and counted, because a proxied
// completion must never wait on the audit trail.
type Recorder struct {
	storage Storage
	ch      chan Record
	done    chan struct{}
	logger  *slog.Logger

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewRecorder starts a recorder writing to storage with the given queue
// size.
func NewRecorder(storage Storage, buffer int) *Recorder {
	r := &Recorder{
		storage: storage,
		ch:      make(chan Record, buffer),
		done:    make(chan struct{}),
		logger:  slog.Default().With("component", "audit"),
	}
	go r.run()
	return r
}

// Record queues rec for persistence, stamping ID and CreatedAt when unset.
func (r *Recorder) Record(rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.ch <- rec:
	default:
		r.dropped.Add(1)
		r.logger.Warn("audit queue full, dropping record",
			"request_id", rec.RequestID, "model", rec.Model)
	}
}

// Dropped reports how many records were discarded under backpressure or
// after close.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close drains queued records into storage and stops the worker. The
// storage itself stays open; its owner closes it after the recorder.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.ch)
	<-r.done
	return nil
}

func (r *Recorder) run() {
	defer close(r.done)
	for rec := range r.ch {
		if err := r.storage.Append(context.Background(), rec); err != nil {
			r.logger.Error("appending audit record", "error", err, "record_id", rec.ID)
		}
	}
}
