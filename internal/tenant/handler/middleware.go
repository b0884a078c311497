package handler

import (
	"context"
	"net/http"
	"strings"

	"notary/internal/tenant/metrics"
	"notary/pkg/requestcontext"
)

// TenantHeader names the tenant explicitly.
const TenantHeader = "X-Tenant-ID"

// Registry reports whether a tenant id is registered.
type Registry interface {
	Known(ctx context.Context, id string) bool
}

// Resolution picks a request's tenant: the X-Tenant-ID header, then the
// Host header through Hosts, then Default.
type Resolution struct {
	Registry Registry
	Hosts    map[string]string
	Default  string
	Metrics  *metrics.Metrics
}

// Middleware stores the resolved tenant id in the request context.
func (res Resolution) Middleware(next http.Handler) http.Handler {
	hosts := make(map[string]string, len(res.Hosts))
	for host, id := range res.Hosts {
		hosts[strings.ToLower(host)] = id
	}
	fallback := res.Default
	if fallback == "" {
		fallback = requestcontext.DefaultTenantID
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tenantID, source := fallback, "default"
		if id := strings.TrimSpace(r.Header.Get(TenantHeader)); id != "" {
			tenantID, source = id, "header"
		} else if id, ok := hosts[strings.ToLower(r.Host)]; ok && id != "" {
			tenantID, source = id, "host"
		}

		known := res.Registry == nil || res.Registry.Known(ctx, tenantID)
		res.Metrics.IncrementResolution(source, known)

		next.ServeHTTP(w, r.WithContext(requestcontext.WithTenantID(ctx, tenantID)))
	})
}
