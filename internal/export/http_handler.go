package export

import (
	"fmt"
	"net/http"
	"strings"

	"graph-ontology-api/internal/auth"

	"github.com/google/uuid"
)

type Handler struct {
	service *Service
}

// NewHTTPHandler serves workbook downloads of a tenant's graph.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	tenantID, ok := auth.TenantIDFromContext(r.Context())
	if !ok {
		raw := strings.TrimSpace(r.URL.Query().Get("tenantId"))
		if raw == "" {
			http.Error(w, "tenant scope is required", http.StatusBadRequest)
			return
		}
		parsed, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid tenantId: %v", err), http.StatusBadRequest)
			return
		}
		tenantID = parsed
	}
	if err := auth.EnforceTenantScope(r.Context(), tenantID); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	file, err := h.service.BuildWorkbook(r.Context(), tenantID)
	if err != nil {
		http.Error(w, fmt.Sprintf("build workbook: %v", err), http.StatusInternalServerError)
		return
	}
	defer file.Close()

	filename := h.service.FileName(tenantID)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := file.WriteTo(w); err != nil {
		// Headers are already sent; all we can do is log via the HTTP middleware status.
		return
	}
}
