package testutil

import (
	"net/http"

	"notary/pkg/requestcontext"
)

// WithTenant scopes req to tenantID as the tenant middleware would.
func WithTenant(req *http.Request, tenantID string) *http.Request {
	return req.WithContext(requestcontext.WithTenantID(req.Context(), tenantID))
}

// WithUser marks req as authenticated for userID in tenantID.
func WithUser(req *http.Request, userID, tenantID string) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	return req.WithContext(requestcontext.WithTenantID(ctx, tenantID))
}

// TenantScope is router middleware that scopes every request to tenantID.
// Handler tests use it in place of the tenant resolution middleware.
func TenantScope(tenantID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, WithTenant(r, tenantID))
		})
	}
}
