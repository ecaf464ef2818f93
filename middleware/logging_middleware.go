package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"nerve-search-adapter/search"
)

// Logging records every search call with its duration and outcome.
func Logging(log *zap.Logger) Middleware {
	return func(next search.HandlerFunc) search.HandlerFunc {
		return func(ctx context.Context, requestID uint64, query []byte) ([]byte, error) {
			start := time.Now()
			payload, err := next(ctx, requestID, query)
			duration := time.Since(start)
			if err != nil {
				log.Warn("search failed",
					zap.Uint64("request_id", requestID),
					zap.Duration("duration", duration),
					zap.Error(err))
			} else {
				log.Debug("search completed",
					zap.Uint64("request_id", requestID),
					zap.Duration("duration", duration),
					zap.Int("result_bytes", len(payload)))
			}
			return payload, err
		}
	}
}
