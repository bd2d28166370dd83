package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds each request's context, and with it the agent
// call a turn makes. Handlers observe the deadline through ctx.Done(); a
// non-positive timeout leaves requests unbounded.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
