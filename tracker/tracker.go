// Package tracker maintains the table of in-flight search requests.
//
// The table is the only state shared between the connection's read path and
// the per-request execution goroutines. One mutex linearizes Register, Take,
// and Cancel, so two operations touching the same request id always observe
// a single serialized order. Take removes the entry as it reads it: whichever
// of "execution completed" (Take) and "peer cancelled" (Cancel) removes the
// entry first wins, and the loser sees the id as already resolved. That
// removal is the sole mechanism behind "at most one result per request id".
package tracker

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadyExists reports a Register for a request id that is still in
// flight. The duplicate must be rejected, not queued.
var ErrAlreadyExists = errors.New("tracker: request id already in flight")

// Tracker maps in-flight request ids to their cancellation handles.
type Tracker struct {
	mu       sync.Mutex
	inflight map[uint64]context.CancelFunc
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{
		inflight: make(map[uint64]context.CancelFunc),
	}
}

// Register records a new in-flight request and its cancellation handle.
// Returns ErrAlreadyExists if the id is already in flight; the caller then
// owns the handle it passed in and must release it.
//
// A cancel processed for this id before Register was called leaves no trace:
// cancels for unknown ids are no-ops by design, so the registration starts
// fresh.
func (t *Tracker) Register(id uint64, cancel context.CancelFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inflight[id]; ok {
		return ErrAlreadyExists
	}
	t.inflight[id] = cancel
	return nil
}

// Take atomically removes and returns the cancellation handle for id.
// The second return value is false if the id is not in flight — already
// completed, already cancelled, or never registered. A completion path must
// call Take before emitting anything: only the caller that gets true may
// produce output for the id.
func (t *Tracker) Take(id uint64) (context.CancelFunc, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cancel, ok := t.inflight[id]
	if ok {
		delete(t.inflight, id)
	}
	return cancel, ok
}

// Cancel removes the entry for id and raises its cancellation handle.
// Returns false if the id was not in flight, in which case nothing happens —
// cancellation is best-effort, not an error.
func (t *Tracker) Cancel(id uint64) bool {
	cancel, ok := t.Take(id)
	if !ok {
		return false
	}
	cancel()
	return true
}

// CancelAll raises every remaining cancellation handle and empties the
// table. Used at connection teardown to release in-flight executions.
func (t *Tracker) CancelAll() {
	t.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(t.inflight))
	for id, cancel := range t.inflight {
		cancels = append(cancels, cancel)
		delete(t.inflight, id)
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Len reports the number of in-flight requests.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}
