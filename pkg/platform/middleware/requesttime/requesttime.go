// Package requesttime stamps each request with a single "now" so audit
// timestamps, signature times and report times agree within one request.
package requesttime

import (
	"net/http"
	"time"

	"notary/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
