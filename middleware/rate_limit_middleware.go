package middleware

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"nerve-search-adapter/search"
)

// RateLimit applies a token-bucket limit to engine calls. Wait rather than
// reject: the query stays queued until a token is free or the request is
// cancelled, so the limiter never produces spurious failures under bursts.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next search.HandlerFunc) search.HandlerFunc {
		return func(ctx context.Context, requestID uint64, query []byte) ([]byte, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit: %w", err)
			}
			return next(ctx, requestID, query)
		}
	}
}
