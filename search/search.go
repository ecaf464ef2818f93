// Package search defines the delegated search engine boundary and the
// cancellable execution wrapper the dispatcher runs per accepted query.
package search

import "context"

// Engine is the delegated search collaborator. It receives the request id
// and the raw query payload from the wire and returns the result payload to
// relay back. The adapter never interprets either byte sequence.
//
// Implementations should honor ctx cancellation, but are not required to:
// an engine with no interruption point simply has its eventual result
// discarded once the request is cancelled.
type Engine interface {
	Search(ctx context.Context, requestID uint64, query []byte) ([]byte, error)
}

// HandlerFunc is the function form of Engine. Middleware wraps handlers, so
// the engine call site always goes through this type.
type HandlerFunc func(ctx context.Context, requestID uint64, query []byte) ([]byte, error)

// Search calls f itself.
func (f HandlerFunc) Search(ctx context.Context, requestID uint64, query []byte) ([]byte, error) {
	return f(ctx, requestID, query)
}

// EngineHandler adapts an Engine to a HandlerFunc.
func EngineHandler(e Engine) HandlerFunc {
	return e.Search
}

// Outcome is the single result of an Execution. Exactly one of the three
// shapes is populated: a payload, an error, or Cancelled.
type Outcome struct {
	RequestID uint64
	Payload   []byte
	Err       error
	Cancelled bool
}

// Execution binds one accepted search query to the handler that will run it.
// It owns no shared state: it talks to neither the socket nor the tracker,
// only returning its outcome to the caller.
type Execution struct {
	requestID uint64
	query     []byte
	handler   HandlerFunc
}

// NewExecution creates an execution for one query.
func NewExecution(requestID uint64, query []byte, handler HandlerFunc) *Execution {
	return &Execution{
		requestID: requestID,
		query:     query,
		handler:   handler,
	}
}

// Run invokes the handler and waits for completion or cancellation,
// whichever comes first.
//
// The handler runs in its own goroutine so that an engine which never
// observes ctx cannot wedge the caller: once ctx is cancelled, Run returns
// a Cancelled outcome immediately and the engine's eventual result is
// received into a buffered channel and dropped. A cancelled execution never
// reports a payload, even if the handler happened to finish at the same
// moment.
func (e *Execution) Run(ctx context.Context) Outcome {
	type result struct {
		payload []byte
		err     error
	}
	done := make(chan result, 1)
	go func() {
		payload, err := e.handler(ctx, e.requestID, e.query)
		done <- result{payload: payload, err: err}
	}()

	select {
	case <-ctx.Done():
		return Outcome{RequestID: e.requestID, Cancelled: true}
	case r := <-done:
		if ctx.Err() != nil {
			return Outcome{RequestID: e.requestID, Cancelled: true}
		}
		return Outcome{RequestID: e.requestID, Payload: r.payload, Err: r.err}
	}
}
