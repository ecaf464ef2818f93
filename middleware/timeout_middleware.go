package middleware

import (
	"context"
	"time"

	"nerve-search-adapter/search"
)

// Timeout bounds each engine call. The handler runs in its own goroutine so
// even an engine that ignores ctx cannot hold the call past the deadline;
// its late result is dropped into the buffered channel.
func Timeout(timeout time.Duration) Middleware {
	return func(next search.HandlerFunc) search.HandlerFunc {
		return func(ctx context.Context, requestID uint64, query []byte) ([]byte, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type result struct {
				payload []byte
				err     error
			}
			done := make(chan result, 1)
			go func() {
				payload, err := next(ctx, requestID, query)
				done <- result{payload: payload, err: err}
			}()

			select {
			case r := <-done:
				return r.payload, r.err
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
}
