package shared

import (
	"context"
	"net/http"
	"strings"
)

type tenantContextKey struct{}

// ContextWithTenant stores the tenant id in context.
func ContextWithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, strings.TrimSpace(tenantID))
}

// TenantFromContext extracts the tenant id from context.
func TenantFromContext(ctx context.Context) string {
	tenant, _ := ctx.Value(tenantContextKey{}).(string)
	return tenant
}

// TenantHeader carries the tenant id on inbound requests.
const TenantHeader = "X-Tenant-ID"

// TenantMiddleware copies the tenant header into the request context.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tenant := strings.TrimSpace(r.Header.Get(TenantHeader)); tenant != "" {
			r = r.WithContext(ContextWithTenant(r.Context(), tenant))
		}
		next.ServeHTTP(w, r)
	})
}
