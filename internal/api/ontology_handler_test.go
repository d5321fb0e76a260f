package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"graph-ontology-api/internal/domain"
	"graph-ontology-api/internal/inference"

	"github.com/google/uuid"
)

type fakeRunner struct {
	result   inference.ApplyResult
	err      error
	tenantID uuid.UUID
	nodeID   uuid.UUID
}

func (f *fakeRunner) Apply(_ context.Context, tenantID, nodeID uuid.UUID) (inference.ApplyResult, error) {
	f.tenantID = tenantID
	f.nodeID = nodeID
	return f.result, f.err
}

func TestApplyEndpoint(t *testing.T) {
	runner := &fakeRunner{result: inference.ApplyResult{
		RulesEvaluated: 2,
		EdgesCreated:   1,
		Diagnostics: []inference.RuleDiagnostic{
			{Rule: domain.RuleKey{SourceType: "pump", EdgeType: "BROKEN", TargetType: "line"}, Err: "unknown match kind"},
		},
	}}
	handler := NewOntologyHandler(runner)

	nodeID := uuid.New()
	body := `{"nodeId":"` + nodeID.String() + `"}`
	req := tenantRequest(t, http.MethodPost, "/api/ontology/apply", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if runner.nodeID != nodeID {
		t.Fatalf("node id not forwarded: %s", runner.nodeID)
	}
	var response struct {
		Applied      bool `json:"applied"`
		EdgesCreated int  `json:"edges_created"`
		Diagnostics  []struct {
			Err string `json:"error"`
		} `json:"diagnostics"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !response.Applied || response.EdgesCreated != 1 {
		t.Fatalf("unexpected response: %+v", response)
	}
	if len(response.Diagnostics) != 1 || response.Diagnostics[0].Err != "unknown match kind" {
		t.Fatalf("diagnostics not surfaced: %+v", response.Diagnostics)
	}
}

func TestApplyEndpointNotFoundNode(t *testing.T) {
	runner := &fakeRunner{err: domain.ErrNotFound}
	handler := NewOntologyHandler(runner)

	req := tenantRequest(t, http.MethodPost, "/api/ontology/apply", `{"nodeId":"`+uuid.NewString()+`"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestApplyEndpointRejectsBadNodeID(t *testing.T) {
	handler := NewOntologyHandler(&fakeRunner{})

	req := tenantRequest(t, http.MethodPost, "/api/ontology/apply", `{"nodeId":"nope"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
