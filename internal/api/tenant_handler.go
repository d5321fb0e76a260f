package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"graph-ontology-api/internal/repository"
)

// TenantHandler serves tenant registration and lookup.
type TenantHandler struct {
	tenants repository.TenantRepository
}

// NewTenantHandler creates the tenant HTTP handler.
func NewTenantHandler(tenants repository.TenantRepository) http.Handler {
	return &TenantHandler{tenants: tenants}
}

type createTenantPayload struct {
	Name string `json:"name"`
}

func (h *TenantHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/tenants"):
		h.handleCreate(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/tenants"):
		h.handleList(w, r)
	case r.Method == http.MethodGet && strings.Contains(path, "/tenants/"):
		h.handleGet(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *TenantHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload createTenantPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	tenant, err := h.tenants.Create(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

func (h *TenantHandler) handleList(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.tenants.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tenants)
}

func (h *TenantHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r.URL.Path, "/tenants/")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tenant, err := h.tenants.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}
