package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"graph-ontology-api/internal/domain"
	"graph-ontology-api/internal/repository"
)

// CatalogHandler serves the global taxonomy and ontology rule catalogs.
// The catalogs are shared across tenants, so no tenant scope applies here.
type CatalogHandler struct {
	taxonomy repository.TaxonomyRepository
	ontology repository.OntologyRepository
}

// NewCatalogHandler creates the catalog HTTP handler.
func NewCatalogHandler(taxonomy repository.TaxonomyRepository, ontology repository.OntologyRepository) http.Handler {
	return &CatalogHandler{taxonomy: taxonomy, ontology: ontology}
}

func (h *CatalogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/types"):
		h.handleCreateType(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/types"):
		h.handleListTypes(w, r)
	case r.Method == http.MethodGet && strings.Contains(path, "/types/") && strings.HasSuffix(path, "/history"):
		h.handleTypeHistory(w, r)
	case r.Method == http.MethodGet && strings.Contains(path, "/types/"):
		h.handleGetType(w, r)
	case r.Method == http.MethodPut && strings.Contains(path, "/types/"):
		h.handleUpdateType(w, r)
	case r.Method == http.MethodDelete && strings.Contains(path, "/types/"):
		h.handleDeleteType(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/rules"):
		h.handleCreateRule(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/rules"):
		h.handleListRules(w, r)
	case r.Method == http.MethodGet && strings.Contains(path, "/rules/") && strings.HasSuffix(path, "/history"):
		h.handleRuleHistory(w, r)
	case r.Method == http.MethodGet && strings.Contains(path, "/rules/"):
		h.handleGetRule(w, r)
	case r.Method == http.MethodPut && strings.Contains(path, "/rules/"):
		h.handleUpdateRule(w, r)
	case r.Method == http.MethodDelete && strings.Contains(path, "/rules/"):
		h.handleDeleteRule(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/render-name"):
		h.handleRenderName(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// pathSegment extracts the path segment after the marker, stopping at the
// next slash: pathSegment("/api/catalog/types/server/history", "/types/")
// yields "server".
func pathSegment(path, marker string) (string, error) {
	idx := strings.Index(path, marker)
	if idx == -1 {
		return "", fmt.Errorf("missing path segment")
	}
	rest := path[idx+len(marker):]
	if cut := strings.Index(rest, "/"); cut != -1 {
		rest = rest[:cut]
	}
	if rest == "" {
		return "", fmt.Errorf("missing path segment")
	}
	return rest, nil
}

// ruleKeyFromPath parses the /{source}/{edge}/{target} triple following
// the /rules/ marker.
func ruleKeyFromPath(path string) (domain.RuleKey, error) {
	idx := strings.Index(path, "/rules/")
	if idx == -1 {
		return domain.RuleKey{}, fmt.Errorf("missing rule key in path")
	}
	rest := strings.TrimSuffix(path[idx+len("/rules/"):], "/history")
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return domain.RuleKey{}, fmt.Errorf("rule key must be source/edge/target, got %q", rest)
	}
	return domain.RuleKey{SourceType: parts[0], EdgeType: parts[1], TargetType: parts[2]}, nil
}

func (h *CatalogHandler) handleCreateType(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var entry domain.TaxonomyEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	created, err := h.taxonomy.Create(r.Context(), entry)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *CatalogHandler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	entries, err := h.taxonomy.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *CatalogHandler) handleGetType(w http.ResponseWriter, r *http.Request) {
	nodeType, err := pathSegment(r.URL.Path, "/types/")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entry, err := h.taxonomy.Get(r.Context(), nodeType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *CatalogHandler) handleUpdateType(w http.ResponseWriter, r *http.Request) {
	nodeType, err := pathSegment(r.URL.Path, "/types/")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	var entry domain.TaxonomyEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	// The path is authoritative for the identity key.
	entry.NodeType = nodeType
	updated, err := h.taxonomy.Update(r.Context(), entry)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *CatalogHandler) handleDeleteType(w http.ResponseWriter, r *http.Request) {
	nodeType, err := pathSegment(r.URL.Path, "/types/")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	removed, err := h.taxonomy.Delete(r.Context(), nodeType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *CatalogHandler) handleTypeHistory(w http.ResponseWriter, r *http.Request) {
	nodeType, err := pathSegment(r.URL.Path, "/types/")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	history, err := h.taxonomy.History(r.Context(), nodeType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *CatalogHandler) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var rule domain.OntologyRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	created, err := h.ontology.Create(r.Context(), rule)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *CatalogHandler) handleListRules(w http.ResponseWriter, r *http.Request) {
	if nodeType := strings.TrimSpace(r.URL.Query().Get("nodeType")); nodeType != "" {
		rules, err := h.ontology.ListForType(r.Context(), nodeType)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rules)
		return
	}
	rules, err := h.ontology.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *CatalogHandler) handleGetRule(w http.ResponseWriter, r *http.Request) {
	key, err := ruleKeyFromPath(r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rule, err := h.ontology.Get(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *CatalogHandler) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	key, err := ruleKeyFromPath(r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	var rule domain.OntologyRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	rule.SourceType = key.SourceType
	rule.EdgeType = key.EdgeType
	rule.TargetType = key.TargetType
	updated, err := h.ontology.Update(r.Context(), rule)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *CatalogHandler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	key, err := ruleKeyFromPath(r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	removed, err := h.ontology.Delete(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *CatalogHandler) handleRuleHistory(w http.ResponseWriter, r *http.Request) {
	key, err := ruleKeyFromPath(r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	history, err := h.ontology.History(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

type renderNamePayload struct {
	Template   string         `json:"template"`
	Properties map[string]any `json:"properties"`
}

func (h *CatalogHandler) handleRenderName(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload renderNamePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	name := domain.RenderName(payload.Template, payload.Properties)
	writeJSON(w, http.StatusOK, map[string]string{"name": name})
}
