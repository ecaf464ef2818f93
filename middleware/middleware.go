// Package middleware provides composable wrappers around the search handler.
package middleware

import (
	"nerve-search-adapter/search"
)

// Middleware wraps a search handler with additional behavior.
type Middleware func(next search.HandlerFunc) search.HandlerFunc

// Chain combines middlewares into one. Chain(A, B, C)(handler) produces
// A(B(C(handler))): A sees the call first, C sits closest to the engine.
func Chain(middlewares ...Middleware) Middleware {
	return func(next search.HandlerFunc) search.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
