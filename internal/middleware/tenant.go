package middleware

import (
	"net/http"
	"strings"

	"graph-ontology-api/internal/auth"

	"github.com/google/uuid"
)

// TenantHeader carries the tenant scope of a request.
const TenantHeader = "X-Tenant-ID"

// TenantMiddleware extracts the tenant id from the X-Tenant-ID header and
// stores it in the request context. Requests without the header pass
// through; handlers that need a tenant reject them individually. A header
// that is present but not a UUID is rejected here.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(TenantHeader))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid "+TenantHeader+" header", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithTenantID(r.Context(), id)))
	})
}
