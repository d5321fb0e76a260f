package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"graph-ontology-api/internal/domain"
)

type stubTaxonomy struct {
	entries []domain.TaxonomyEntry
	created *domain.TaxonomyEntry
	err     error
}

func (s *stubTaxonomy) Create(_ context.Context, entry domain.TaxonomyEntry) (domain.TaxonomyEntry, error) {
	if s.err != nil {
		return domain.TaxonomyEntry{}, s.err
	}
	s.created = &entry
	return entry, nil
}

func (s *stubTaxonomy) Update(_ context.Context, entry domain.TaxonomyEntry) (domain.TaxonomyEntry, error) {
	if s.err != nil {
		return domain.TaxonomyEntry{}, s.err
	}
	s.created = &entry
	return entry, nil
}

func (s *stubTaxonomy) Delete(_ context.Context, _ string) (bool, error) {
	return s.err == nil, s.err
}

func (s *stubTaxonomy) Get(_ context.Context, nodeType string) (domain.TaxonomyEntry, error) {
	for _, entry := range s.entries {
		if entry.NodeType == nodeType {
			return entry, nil
		}
	}
	return domain.TaxonomyEntry{}, fmt.Errorf("type %q: %w", nodeType, domain.ErrNotFound)
}

func (s *stubTaxonomy) List(_ context.Context) ([]domain.TaxonomyEntry, error) {
	return s.entries, s.err
}

func (s *stubTaxonomy) History(_ context.Context, _ string) ([]domain.TaxonomyEntry, error) {
	return s.entries, s.err
}

type stubOntology struct {
	rules   []domain.OntologyRule
	created *domain.OntologyRule
	err     error
}

func (s *stubOntology) Create(_ context.Context, rule domain.OntologyRule) (domain.OntologyRule, error) {
	if s.err != nil {
		return domain.OntologyRule{}, s.err
	}
	s.created = &rule
	return rule, nil
}

func (s *stubOntology) Update(_ context.Context, rule domain.OntologyRule) (domain.OntologyRule, error) {
	if s.err != nil {
		return domain.OntologyRule{}, s.err
	}
	s.created = &rule
	return rule, nil
}

func (s *stubOntology) Delete(_ context.Context, _ domain.RuleKey) (bool, error) {
	return s.err == nil, s.err
}

func (s *stubOntology) Get(_ context.Context, key domain.RuleKey) (domain.OntologyRule, error) {
	for _, rule := range s.rules {
		if rule.Key() == key {
			return rule, nil
		}
	}
	return domain.OntologyRule{}, fmt.Errorf("rule %s: %w", key, domain.ErrNotFound)
}

func (s *stubOntology) List(_ context.Context) ([]domain.OntologyRule, error) {
	return s.rules, s.err
}

func (s *stubOntology) ListForType(_ context.Context, nodeType string) ([]domain.OntologyRule, error) {
	matched := []domain.OntologyRule{}
	for _, rule := range s.rules {
		if rule.SourceType == nodeType || rule.TargetType == nodeType {
			matched = append(matched, rule)
		}
	}
	return matched, s.err
}

func (s *stubOntology) History(_ context.Context, _ domain.RuleKey) ([]domain.OntologyRule, error) {
	return s.rules, s.err
}

func TestCreateTaxonomyEntry(t *testing.T) {
	taxonomy := &stubTaxonomy{}
	handler := NewCatalogHandler(taxonomy, &stubOntology{})

	body := `{"node_type":"pump","description":"rotating equipment","name_template":"{site}/{tag}"}`
	req := httptest.NewRequest(http.MethodPost, "/api/catalog/types", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if taxonomy.created == nil || taxonomy.created.NodeType != "pump" {
		t.Fatalf("entry not forwarded: %+v", taxonomy.created)
	}
}

func TestCreateTaxonomyEntryDuplicate(t *testing.T) {
	taxonomy := &stubTaxonomy{err: fmt.Errorf("pump: %w", domain.ErrAlreadyExists)}
	handler := NewCatalogHandler(taxonomy, &stubOntology{})

	req := httptest.NewRequest(http.MethodPost, "/api/catalog/types", strings.NewReader(`{"node_type":"pump"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate type, got %d", rec.Code)
	}
}

func TestUpdateTaxonomyEntryPathWins(t *testing.T) {
	taxonomy := &stubTaxonomy{}
	handler := NewCatalogHandler(taxonomy, &stubOntology{})

	// The payload names a different type; the path segment is authoritative.
	body := `{"node_type":"other","description":"updated"}`
	req := httptest.NewRequest(http.MethodPut, "/api/catalog/types/pump", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if taxonomy.created.NodeType != "pump" {
		t.Fatalf("path identity not enforced: %q", taxonomy.created.NodeType)
	}
}

func TestGetRuleByTriple(t *testing.T) {
	rule := domain.OntologyRule{
		SourceType: "pump",
		EdgeType:   "FEEDS",
		TargetType: "line",
		Condition:  json.RawMessage(`{"match":"all_pairs"}`),
	}
	handler := NewCatalogHandler(&stubTaxonomy{}, &stubOntology{rules: []domain.OntologyRule{rule}})

	req := httptest.NewRequest(http.MethodGet, "/api/catalog/rules/pump/FEEDS/line", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var decoded domain.OntologyRule
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded.Key() != rule.Key() {
		t.Fatalf("wrong rule returned: %s", decoded.Key())
	}
}

func TestGetRuleMalformedKey(t *testing.T) {
	handler := NewCatalogHandler(&stubTaxonomy{}, &stubOntology{})

	req := httptest.NewRequest(http.MethodGet, "/api/catalog/rules/pump/FEEDS", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for incomplete rule key, got %d", rec.Code)
	}
}

func TestListRulesForType(t *testing.T) {
	rules := []domain.OntologyRule{
		{SourceType: "pump", EdgeType: "FEEDS", TargetType: "line"},
		{SourceType: "valve", EdgeType: "ISOLATES", TargetType: "line"},
		{SourceType: "site", EdgeType: "CONTAINS", TargetType: "unit"},
	}
	handler := NewCatalogHandler(&stubTaxonomy{}, &stubOntology{rules: rules})

	req := httptest.NewRequest(http.MethodGet, "/api/catalog/rules?nodeType=line", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var decoded []domain.OntologyRule
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 rules touching type line, got %d", len(decoded))
	}
}

func TestRenderNameEndpoint(t *testing.T) {
	handler := NewCatalogHandler(&stubTaxonomy{}, &stubOntology{})

	body := `{"template":"{site}/{tag}","properties":{"site":"plant-a","tag":"P-101"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/catalog/render-name", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var response map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response["name"] != "plant-a/P-101" {
		t.Fatalf("unexpected rendered name %q", response["name"])
	}
}
