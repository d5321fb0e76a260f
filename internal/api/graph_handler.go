package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"graph-ontology-api/internal/auth"
	"graph-ontology-api/internal/domain"
	"graph-ontology-api/internal/middleware"
	"graph-ontology-api/internal/repository"

	"github.com/google/uuid"
)

// GraphHandler serves the tenant-scoped graph API.
type GraphHandler struct {
	graph repository.GraphRepository
}

// NewGraphHandler creates the graph HTTP handler.
func NewGraphHandler(graph repository.GraphRepository) http.Handler {
	return &GraphHandler{graph: graph}
}

func (h *GraphHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodGet && path == "/api/graph":
		h.handleReadGraph(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/nodes"):
		h.handleUpsertNode(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/edges"):
		h.handleUpsertEdge(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/nodes/search"):
		h.handleSearchNodes(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/edges/search"):
		h.handleSearchEdges(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/nodes/by-name"):
		h.handleFindNodeByName(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/nodes/history"):
		h.handleNodeHistory(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/nodes/diff"):
		h.handleNodeDiff(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/edges/between"):
		h.handleEdgesBetween(w, r)
	case r.Method == http.MethodGet && strings.Contains(path, "/nodes/") && strings.HasSuffix(path, "/edges"):
		h.handleEdgesOf(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/nodes"):
		h.handleOpenNodes(w, r)
	case r.Method == http.MethodPatch && strings.Contains(path, "/nodes/") && strings.HasSuffix(path, "/property"):
		h.handlePatchNodeProperty(w, r)
	case r.Method == http.MethodDelete && strings.Contains(path, "/nodes/"):
		h.handleDeleteNode(w, r)
	case r.Method == http.MethodDelete && strings.Contains(path, "/edges/"):
		h.handleDeleteEdge(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type upsertNodePayload struct {
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties"`
}

type upsertEdgePayload struct {
	SourceID   string         `json:"sourceId"`
	TargetID   string         `json:"targetId"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

type patchPropertyPayload struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type versionResponse struct {
	ID      uuid.UUID `json:"id"`
	Version int64     `json:"version"`
}

// tenantFromRequest resolves the tenant scope: the authenticated context
// scope when present, otherwise the tenantId query parameter.
func tenantFromRequest(r *http.Request) (uuid.UUID, error) {
	if id, ok := auth.TenantIDFromContext(r.Context()); ok {
		return id, nil
	}
	raw := strings.TrimSpace(r.URL.Query().Get("tenantId"))
	if raw == "" {
		return uuid.Nil, fmt.Errorf("tenant scope is required (X-Tenant-ID header or tenantId parameter)")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid tenantId: %v", err)
	}
	return id, nil
}

// pathID extracts the UUID path segment following the given marker, e.g.
// the node id from /api/graph/nodes/{id}/edges.
func pathID(path, marker string) (uuid.UUID, error) {
	idx := strings.Index(path, marker)
	if idx == -1 {
		return uuid.Nil, fmt.Errorf("missing identifier in path")
	}
	rest := path[idx+len(marker):]
	if cut := strings.Index(rest, "/"); cut != -1 {
		rest = rest[:cut]
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid identifier %q: %v", rest, err)
	}
	return id, nil
}

func (h *GraphHandler) handleUpsertNode(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	var payload upsertNodePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	nodeID, version, err := h.graph.CreateOrUpdateNode(r.Context(), tenantID, payload.Type, payload.Name, payload.Properties)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versionResponse{ID: nodeID, Version: version})
}

func (h *GraphHandler) handleUpsertEdge(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	var payload upsertEdgePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	sourceID, err := uuid.Parse(strings.TrimSpace(payload.SourceID))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid sourceId: %v", err), http.StatusBadRequest)
		return
	}
	targetID, err := uuid.Parse(strings.TrimSpace(payload.TargetID))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid targetId: %v", err), http.StatusBadRequest)
		return
	}
	edgeID, version, err := h.graph.CreateOrUpdateEdge(r.Context(), tenantID, sourceID, targetID, payload.Type, payload.Properties)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versionResponse{ID: edgeID, Version: version})
}

func (h *GraphHandler) handleOpenNodes(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var names []string
	for _, raw := range r.URL.Query()["names"] {
		for _, name := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				names = append(names, trimmed)
			}
		}
	}
	nodes, err := h.graph.OpenNodes(r.Context(), tenantID, names)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (h *GraphHandler) handleSearchNodes(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	nodes, err := h.graph.SearchNodes(r.Context(), tenantID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (h *GraphHandler) handleSearchEdges(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	edges, err := h.graph.SearchEdges(r.Context(), tenantID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, edges)
}

func (h *GraphHandler) handleFindNodeByName(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	node, err := h.graph.FindNodeByName(r.Context(), tenantID, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (h *GraphHandler) handleNodeHistory(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	history, err := h.graph.NodeHistory(r.Context(), tenantID, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// handleNodeDiff renders a unified diff between two versions of a node.
// from/to are version numbers from the node's history; to defaults to the
// latest version when omitted.
func (h *GraphHandler) handleNodeDiff(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	query := r.URL.Query()
	name := strings.TrimSpace(query.Get("name"))
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	from, err := strconv.ParseInt(strings.TrimSpace(query.Get("from")), 10, 64)
	if err != nil {
		http.Error(w, "from must be a version number", http.StatusBadRequest)
		return
	}
	history, err := h.graph.NodeHistory(r.Context(), tenantID, name)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(history) == 0 {
		http.Error(w, fmt.Sprintf("node %q has no history", name), http.StatusNotFound)
		return
	}
	to := history[len(history)-1].Version
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "to must be a version number", http.StatusBadRequest)
			return
		}
		to = parsed
	}
	var base, target *domain.NodeSnapshot
	for _, version := range history {
		if version.Version == from {
			snap := domain.SnapshotNode(version)
			base = &snap
		}
		if version.Version == to {
			snap := domain.SnapshotNode(version)
			target = &snap
		}
	}
	if base == nil || target == nil {
		http.Error(w, fmt.Sprintf("versions %d..%d not found in history of %q", from, to, name), http.StatusNotFound)
		return
	}
	diff, err := domain.DiffNodeSnapshots(
		fmt.Sprintf("%s@v%d", name, from), base,
		fmt.Sprintf("%s@v%d", name, to), target,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"diff": diff})
}

func (h *GraphHandler) handleReadGraph(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	elements, err := h.graph.ReadGraph(r.Context(), tenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, elements)
}

func (h *GraphHandler) handleEdgesOf(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	nodeID, err := pathID(r.URL.Path, "/nodes/")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	edges, err := h.graph.EdgesOf(r.Context(), tenantID, nodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	annotated, err := h.annotateEndpoints(r, tenantID, edges)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, annotated)
}

// annotateEndpoints resolves both endpoint names of every edge, through
// the request-scoped batch loader when one is attached.
func (h *GraphHandler) annotateEndpoints(r *http.Request, tenantID uuid.UUID, edges []domain.Edge) ([]domain.EdgeWithEndpoints, error) {
	names := map[uuid.UUID]string{}

	if loader := middleware.NodeLoaderFromContext(r.Context()); loader != nil {
		for _, edge := range edges {
			for _, id := range []uuid.UUID{edge.SourceNodeID, edge.TargetNodeID} {
				if _, seen := names[id]; seen {
					continue
				}
				node, ok, err := loader.Load(r.Context(), id)
				if err != nil {
					return nil, err
				}
				if ok {
					names[id] = node.Name
				} else {
					names[id] = ""
				}
			}
		}
	} else {
		ids := make([]uuid.UUID, 0, len(edges)*2)
		for _, edge := range edges {
			ids = append(ids, edge.SourceNodeID, edge.TargetNodeID)
		}
		nodes, err := h.graph.GetNodesByIDs(r.Context(), tenantID, ids)
		if err != nil {
			return nil, err
		}
		for _, node := range nodes {
			names[node.NodeID] = node.Name
		}
	}

	annotated := make([]domain.EdgeWithEndpoints, len(edges))
	for i, edge := range edges {
		annotated[i] = domain.EdgeWithEndpoints{
			Edge:       edge,
			SourceName: names[edge.SourceNodeID],
			TargetName: names[edge.TargetNodeID],
		}
	}
	return annotated, nil
}

func (h *GraphHandler) handleEdgesBetween(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	query := r.URL.Query()
	sourceID, err := uuid.Parse(strings.TrimSpace(query.Get("source")))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid source: %v", err), http.StatusBadRequest)
		return
	}
	targetID, err := uuid.Parse(strings.TrimSpace(query.Get("target")))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid target: %v", err), http.StatusBadRequest)
		return
	}
	var edgeType *string
	if raw := strings.TrimSpace(query.Get("type")); raw != "" {
		edgeType = &raw
	}
	ids, err := h.graph.FindEdgesBetween(r.Context(), tenantID, sourceID, targetID, edgeType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *GraphHandler) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	nodeID, err := pathID(r.URL.Path, "/nodes/")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	removed, err := h.graph.DeleteNode(r.Context(), tenantID, nodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *GraphHandler) handleDeleteEdge(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	edgeID, err := pathID(r.URL.Path, "/edges/")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	removed, err := h.graph.DeleteEdge(r.Context(), tenantID, edgeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *GraphHandler) handlePatchNodeProperty(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	nodeID, err := pathID(r.URL.Path, "/nodes/")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	var payload patchPropertyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	patched, err := h.graph.PatchNodeProperty(r.Context(), tenantID, nodeID, payload.Key, payload.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"patched": patched})
}
