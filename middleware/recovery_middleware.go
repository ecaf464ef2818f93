package middleware

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"nerve-search-adapter/search"
)

// Recovery converts an engine panic into a per-request failure. A panicking
// engine must cost only that request, never the connection or the process.
func Recovery(log *zap.Logger) Middleware {
	return func(next search.HandlerFunc) search.HandlerFunc {
		return func(ctx context.Context, requestID uint64, query []byte) (payload []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("search handler panicked",
						zap.Uint64("request_id", requestID),
						zap.Any("panic", r))
					payload = nil
					err = fmt.Errorf("search handler panicked: %v", r)
				}
			}()
			return next(ctx, requestID, query)
		}
	}
}
