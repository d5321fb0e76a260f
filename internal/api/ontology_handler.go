package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"graph-ontology-api/internal/inference"

	"github.com/google/uuid"
)

// InferenceRunner runs the ontology rules for a single node.
type InferenceRunner interface {
	Apply(ctx context.Context, tenantID, nodeID uuid.UUID) (inference.ApplyResult, error)
}

// OntologyHandler triggers edge inference over the tenant's graph.
type OntologyHandler struct {
	engine InferenceRunner
}

// NewOntologyHandler creates the inference HTTP handler.
func NewOntologyHandler(engine InferenceRunner) http.Handler {
	return &OntologyHandler{engine: engine}
}

type applyPayload struct {
	NodeID string `json:"nodeId"`
}

type applyResponse struct {
	Applied bool `json:"applied"`
	inference.ApplyResult
}

func (h *OntologyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	if r.Method != http.MethodPost || !strings.HasSuffix(path, "/apply") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	tenantID, err := tenantFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	var payload applyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	nodeID, err := uuid.Parse(strings.TrimSpace(payload.NodeID))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid nodeId: %v", err), http.StatusBadRequest)
		return
	}

	result, err := h.engine.Apply(r.Context(), tenantID, nodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, applyResponse{Applied: true, ApplyResult: result})
}
