package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"graph-ontology-api/internal/auth"
	"graph-ontology-api/internal/domain"

	"github.com/google/uuid"
)

// stubGraph is an in-memory GraphRepository for handler tests. Only the
// fields a test populates are consulted.
type stubGraph struct {
	nodes   []domain.Node
	edges   []domain.Edge
	history []domain.Node

	upsertedType string
	upsertedName string
	deleted      bool
	err          error
}

func (s *stubGraph) CreateOrUpdateNode(_ context.Context, _ uuid.UUID, nodeType, name string, _ map[string]any) (uuid.UUID, int64, error) {
	if s.err != nil {
		return uuid.Nil, 0, s.err
	}
	s.upsertedType = nodeType
	s.upsertedName = name
	return uuid.New(), 0, nil
}

func (s *stubGraph) CreateOrUpdateEdge(_ context.Context, _ uuid.UUID, _, _ uuid.UUID, _ string, _ map[string]any) (uuid.UUID, int64, error) {
	if s.err != nil {
		return uuid.Nil, 0, s.err
	}
	return uuid.New(), 0, nil
}

func (s *stubGraph) GetNode(_ context.Context, _ uuid.UUID, nodeID uuid.UUID) (domain.Node, error) {
	for _, node := range s.nodes {
		if node.NodeID == nodeID {
			return node, nil
		}
	}
	return domain.Node{}, fmt.Errorf("node %s: %w", nodeID, domain.ErrNotFound)
}

func (s *stubGraph) GetNodesByIDs(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]domain.Node, error) {
	found := []domain.Node{}
	for _, node := range s.nodes {
		for _, id := range ids {
			if node.NodeID == id {
				found = append(found, node)
				break
			}
		}
	}
	return found, nil
}

func (s *stubGraph) FindNodeByName(_ context.Context, _ uuid.UUID, name string) (domain.Node, error) {
	for _, node := range s.nodes {
		if node.Name == name {
			return node, nil
		}
	}
	return domain.Node{}, fmt.Errorf("node %q: %w", name, domain.ErrNotFound)
}

func (s *stubGraph) OpenNodes(_ context.Context, _ uuid.UUID, names []string) ([]domain.Node, error) {
	found := []domain.Node{}
	for _, node := range s.nodes {
		for _, name := range names {
			if node.Name == name {
				found = append(found, node)
				break
			}
		}
	}
	return found, nil
}

func (s *stubGraph) SearchNodes(_ context.Context, _ uuid.UUID, _ string) ([]domain.Node, error) {
	return s.nodes, s.err
}

func (s *stubGraph) SearchEdges(_ context.Context, _ uuid.UUID, _ string) ([]domain.Edge, error) {
	return s.edges, s.err
}

func (s *stubGraph) ListNodes(_ context.Context, _ uuid.UUID) ([]domain.Node, error) {
	return s.nodes, s.err
}

func (s *stubGraph) ListEdges(_ context.Context, _ uuid.UUID) ([]domain.Edge, error) {
	return s.edges, s.err
}

func (s *stubGraph) ReadGraph(_ context.Context, _ uuid.UUID) ([]domain.GraphElement, error) {
	if s.err != nil {
		return nil, s.err
	}
	elements := []domain.GraphElement{}
	for i := range s.nodes {
		elements = append(elements, domain.GraphElement{Kind: domain.GraphElementNode, Node: &s.nodes[i]})
	}
	for i := range s.edges {
		elements = append(elements, domain.GraphElement{Kind: domain.GraphElementEdge, Edge: &s.edges[i]})
	}
	return elements, nil
}

func (s *stubGraph) EdgesOf(_ context.Context, _ uuid.UUID, nodeID uuid.UUID) ([]domain.Edge, error) {
	found := []domain.Edge{}
	for _, edge := range s.edges {
		if edge.SourceNodeID == nodeID || edge.TargetNodeID == nodeID {
			found = append(found, edge)
		}
	}
	return found, s.err
}

func (s *stubGraph) FindEdgesBetween(_ context.Context, _ uuid.UUID, sourceID, targetID uuid.UUID, edgeType *string) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	for _, edge := range s.edges {
		if edge.SourceNodeID != sourceID || edge.TargetNodeID != targetID {
			continue
		}
		if edgeType != nil && edge.EdgeType != *edgeType {
			continue
		}
		ids = append(ids, edge.EdgeID)
	}
	return ids, s.err
}

func (s *stubGraph) DeleteNode(_ context.Context, _ uuid.UUID, _ uuid.UUID) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.deleted = true
	return true, nil
}

func (s *stubGraph) DeleteEdge(_ context.Context, _ uuid.UUID, _ uuid.UUID) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.deleted = true
	return true, nil
}

func (s *stubGraph) PatchNodeProperty(_ context.Context, _ uuid.UUID, _ uuid.UUID, _ string, _ any) (bool, error) {
	return s.err == nil, s.err
}

func (s *stubGraph) NodeHistory(_ context.Context, _ uuid.UUID, _ string) ([]domain.Node, error) {
	return s.history, s.err
}

func (s *stubGraph) EdgeHistory(_ context.Context, _ uuid.UUID, _ uuid.UUID) ([]domain.Edge, error) {
	return s.edges, s.err
}

func tenantRequest(t *testing.T, method, target string, body string) *http.Request {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	return req.WithContext(auth.ContextWithTenantID(req.Context(), uuid.New()))
}

func TestUpsertNode(t *testing.T) {
	stub := &stubGraph{}
	handler := NewGraphHandler(stub)

	req := tenantRequest(t, http.MethodPost, "/api/graph/nodes", `{"type":"pump","name":"P1","properties":{"rating":4.5}}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.upsertedType != "pump" || stub.upsertedName != "P1" {
		t.Fatalf("payload not forwarded: type=%q name=%q", stub.upsertedType, stub.upsertedName)
	}
	var response versionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.ID == uuid.Nil {
		t.Fatal("expected node id in response")
	}
}

func TestUpsertNodeRequiresTenant(t *testing.T) {
	handler := NewGraphHandler(&stubGraph{})

	req := httptest.NewRequest(http.MethodPost, "/api/graph/nodes", strings.NewReader(`{"type":"pump","name":"P1"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without tenant scope, got %d", rec.Code)
	}
}

func TestUpsertNodeTenantQueryParamFallback(t *testing.T) {
	stub := &stubGraph{}
	handler := NewGraphHandler(stub)

	target := "/api/graph/nodes?tenantId=" + uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(`{"type":"pump","name":"P1"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with tenantId parameter, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("missing: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("dup: %w", domain.ErrAlreadyExists), http.StatusConflict},
		{fmt.Errorf("races: %w", domain.ErrConflict), http.StatusConflict},
		{fmt.Errorf("bad: %w", domain.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		stub := &stubGraph{err: tc.err}
		handler := NewGraphHandler(stub)
		req := tenantRequest(t, http.MethodPost, "/api/graph/nodes", `{"type":"pump","name":"P1"}`)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Errorf("error %v: expected status %d got %d", tc.err, tc.status, rec.Code)
		}
	}
}

func TestDeleteNode(t *testing.T) {
	stub := &stubGraph{}
	handler := NewGraphHandler(stub)

	req := tenantRequest(t, http.MethodDelete, "/api/graph/nodes/"+uuid.NewString(), "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !stub.deleted {
		t.Fatal("delete not forwarded to repository")
	}
}

func TestDeleteNodeInvalidID(t *testing.T) {
	handler := NewGraphHandler(&stubGraph{})

	req := tenantRequest(t, http.MethodDelete, "/api/graph/nodes/not-a-uuid", "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestEdgesOfAnnotatesEndpointNames(t *testing.T) {
	source := domain.Node{NodeID: uuid.New(), NodeType: "pump", Name: "P1"}
	target := domain.Node{NodeID: uuid.New(), NodeType: "line", Name: "L1"}
	edge := domain.Edge{
		EdgeID:       uuid.New(),
		SourceNodeID: source.NodeID,
		TargetNodeID: target.NodeID,
		EdgeType:     "FEEDS",
	}
	stub := &stubGraph{nodes: []domain.Node{source, target}, edges: []domain.Edge{edge}}
	handler := NewGraphHandler(stub)

	req := tenantRequest(t, http.MethodGet, "/api/graph/nodes/"+source.NodeID.String()+"/edges", "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var annotated []domain.EdgeWithEndpoints
	if err := json.Unmarshal(rec.Body.Bytes(), &annotated); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(annotated) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(annotated))
	}
	if annotated[0].SourceName != "P1" || annotated[0].TargetName != "L1" {
		t.Fatalf("endpoint names not annotated: %+v", annotated[0])
	}
}

func TestNodeHistoryRequiresName(t *testing.T) {
	handler := NewGraphHandler(&stubGraph{})

	req := tenantRequest(t, http.MethodGet, "/api/graph/nodes/history", "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without name, got %d", rec.Code)
	}
}

func TestNodeDiff(t *testing.T) {
	nodeID := uuid.New()
	v0 := domain.Node{NodeID: nodeID, NodeType: "pump", Name: "P1", Version: 0, Properties: map[string]any{"status": "new"}}
	v1 := domain.Node{NodeID: nodeID, NodeType: "pump", Name: "P1", Version: 1, Properties: map[string]any{"status": "active"}}
	stub := &stubGraph{history: []domain.Node{v0, v1}}
	handler := NewGraphHandler(stub)

	req := tenantRequest(t, http.MethodGet, "/api/graph/nodes/diff?name=P1&from=0", "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var response map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	diff := response["diff"]
	if !strings.Contains(diff, `-  status: "new"`) || !strings.Contains(diff, `+  status: "active"`) {
		t.Fatalf("diff missing property change:\n%s", diff)
	}
}

func TestNodeDiffUnknownVersion(t *testing.T) {
	nodeID := uuid.New()
	stub := &stubGraph{history: []domain.Node{{NodeID: nodeID, Name: "P1", Version: 0}}}
	handler := NewGraphHandler(stub)

	req := tenantRequest(t, http.MethodGet, "/api/graph/nodes/diff?name=P1&from=5", "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown version, got %d", rec.Code)
	}
}
