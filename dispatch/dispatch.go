// Package dispatch interprets decoded frames and drives the request tracker
// and search executions.
//
// Dispatch is called sequentially from the connection's single read loop,
// but each accepted query runs in its own goroutine, so a slow search never
// blocks later frames. Every completion funnels through one outbound channel
// that the connection loop drains with a single writer:
//
//	read loop ──Dispatch──┬─ SEARCH_QUERY → register → go execution ─┐
//	                      ├─ CANCEL       → tracker.Cancel           │ take →
//	                      └─ other        → ignored                  │ emit
//	                                                  out channel ←──┘
//
// The take-before-emit ordering on the completion path is what makes
// cancellation race-free: the tracker is the single arbiter of whether a
// request has already been resolved, so no frame is ever written for a
// request that was cancelled first.
package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"nerve-search-adapter/protocol"
	"nerve-search-adapter/search"
	"nerve-search-adapter/tracker"
)

// Dispatcher is the per-connection frame state machine.
type Dispatcher struct {
	ctx     context.Context
	tracker *tracker.Tracker
	handler search.HandlerFunc
	out     chan<- *protocol.Frame
	log     *zap.Logger
	wg      sync.WaitGroup
}

// New creates a dispatcher. ctx is the connection's lifetime: when it ends,
// executions are released and pending emits are abandoned. Completed frames
// are sent on out for the connection loop's writer to drain.
func New(ctx context.Context, tr *tracker.Tracker, handler search.HandlerFunc, out chan<- *protocol.Frame, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		ctx:     ctx,
		tracker: tr,
		handler: handler,
		out:     out,
		log:     log,
	}
}

// Dispatch classifies one inbound frame. Recognized-but-unhandled message
// types are ignored without state change, keeping the adapter forward
// compatible with protocol messages it does not understand.
func (d *Dispatcher) Dispatch(f *protocol.Frame) {
	switch f.Type {
	case protocol.MsgTypeSearchQuery:
		d.handleQuery(f)
	case protocol.MsgTypeCancel:
		d.handleCancel(f)
	default:
		d.log.Debug("ignoring unhandled frame",
			zap.Uint8("msg_type", uint8(f.Type)),
			zap.Uint64("request_id", f.RequestID))
	}
}

// Wait blocks until every spawned execution has finished. Called during
// connection teardown after the tracker has been drained.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) handleQuery(f *protocol.Frame) {
	ctx, cancel := context.WithCancel(d.ctx)
	if err := d.tracker.Register(f.RequestID, cancel); err != nil {
		cancel()
		d.log.Warn("duplicate search query rejected", zap.Uint64("request_id", f.RequestID))
		d.emit(&protocol.Frame{
			Type:      protocol.MsgTypeReject,
			Flags:     protocol.FlagFinal | protocol.FlagError,
			RequestID: f.RequestID,
			Payload:   []byte("duplicate request id"),
		})
		return
	}

	exec := search.NewExecution(f.RequestID, f.Payload, d.handler)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		d.complete(exec.Run(ctx))
	}()
}

func (d *Dispatcher) handleCancel(f *protocol.Frame) {
	if d.tracker.Cancel(f.RequestID) {
		d.log.Debug("cancelled in-flight request", zap.Uint64("request_id", f.RequestID))
	} else {
		// Already completed, already cancelled, or never seen. Best effort.
		d.log.Debug("cancel for unknown request ignored", zap.Uint64("request_id", f.RequestID))
	}
}

// complete resolves one finished execution. Take must come first: if the
// entry is gone, the request was cancelled (or resolved) and nothing may be
// emitted for it.
func (d *Dispatcher) complete(outcome search.Outcome) {
	if _, ok := d.tracker.Take(outcome.RequestID); !ok {
		d.log.Debug("dropping completion for resolved request",
			zap.Uint64("request_id", outcome.RequestID))
		return
	}
	if outcome.Cancelled {
		// Entry was still present, so the cancellation came from connection
		// teardown rather than a CANCEL frame. Nothing to write.
		return
	}

	frame := &protocol.Frame{
		Type:      protocol.MsgTypeSearchResult,
		Flags:     protocol.FlagFinal,
		RequestID: outcome.RequestID,
	}
	if outcome.Err != nil {
		// Engine failures are reported upward, never swallowed.
		frame.Flags |= protocol.FlagError
		frame.Payload = []byte(outcome.Err.Error())
	} else {
		frame.Payload = outcome.Payload
	}
	d.emit(frame)
}

func (d *Dispatcher) emit(f *protocol.Frame) {
	select {
	case d.out <- f:
	case <-d.ctx.Done():
	}
}
