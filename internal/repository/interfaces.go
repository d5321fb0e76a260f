package repository

import (
	"context"

	"graph-ontology-api/internal/domain"

	"github.com/google/uuid"
)

// GraphRepository defines tenant-scoped node and edge operations. All
// mutations follow the temporal versioning discipline: a new version
// deprecates the prior live row and merges properties. Only DeleteNode,
// DeleteEdge and PatchNodeProperty step outside it.
type GraphRepository interface {
	CreateOrUpdateNode(ctx context.Context, tenantID uuid.UUID, nodeType, name string, properties map[string]any) (uuid.UUID, int64, error)
	CreateOrUpdateEdge(ctx context.Context, tenantID, sourceID, targetID uuid.UUID, edgeType string, properties map[string]any) (uuid.UUID, int64, error)
	GetNode(ctx context.Context, tenantID, nodeID uuid.UUID) (domain.Node, error)
	GetNodesByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]domain.Node, error)
	FindNodeByName(ctx context.Context, tenantID uuid.UUID, name string) (domain.Node, error)
	OpenNodes(ctx context.Context, tenantID uuid.UUID, names []string) ([]domain.Node, error)
	SearchNodes(ctx context.Context, tenantID uuid.UUID, keyword string) ([]domain.Node, error)
	SearchEdges(ctx context.Context, tenantID uuid.UUID, keyword string) ([]domain.Edge, error)
	ListNodes(ctx context.Context, tenantID uuid.UUID) ([]domain.Node, error)
	ListEdges(ctx context.Context, tenantID uuid.UUID) ([]domain.Edge, error)
	ReadGraph(ctx context.Context, tenantID uuid.UUID) ([]domain.GraphElement, error)
	EdgesOf(ctx context.Context, tenantID, nodeID uuid.UUID) ([]domain.Edge, error)
	FindEdgesBetween(ctx context.Context, tenantID, sourceID, targetID uuid.UUID, edgeType *string) ([]uuid.UUID, error)
	DeleteNode(ctx context.Context, tenantID, nodeID uuid.UUID) (bool, error)
	DeleteEdge(ctx context.Context, tenantID, edgeID uuid.UUID) (bool, error)
	PatchNodeProperty(ctx context.Context, tenantID, nodeID uuid.UUID, key string, value any) (bool, error)
	NodeHistory(ctx context.Context, tenantID uuid.UUID, name string) ([]domain.Node, error)
	EdgeHistory(ctx context.Context, tenantID, edgeID uuid.UUID) ([]domain.Edge, error)
}

// TaxonomyRepository manages the global node-type catalog. Create is
// strict (a live entry fails with ErrAlreadyExists), Update requires a live
// entry, and Delete deprecates instead of purging.
type TaxonomyRepository interface {
	Create(ctx context.Context, entry domain.TaxonomyEntry) (domain.TaxonomyEntry, error)
	Update(ctx context.Context, entry domain.TaxonomyEntry) (domain.TaxonomyEntry, error)
	Delete(ctx context.Context, nodeType string) (bool, error)
	Get(ctx context.Context, nodeType string) (domain.TaxonomyEntry, error)
	List(ctx context.Context) ([]domain.TaxonomyEntry, error)
	History(ctx context.Context, nodeType string) ([]domain.TaxonomyEntry, error)
}

// OntologyRepository manages the global edge-type rule catalog. Create
// distinguishes a true duplicate (identical column-match values, fails with
// ErrAlreadyExists) from a refined matching rule for the same triple, which
// upgrades to a new version.
type OntologyRepository interface {
	Create(ctx context.Context, rule domain.OntologyRule) (domain.OntologyRule, error)
	Update(ctx context.Context, rule domain.OntologyRule) (domain.OntologyRule, error)
	Delete(ctx context.Context, key domain.RuleKey) (bool, error)
	Get(ctx context.Context, key domain.RuleKey) (domain.OntologyRule, error)
	List(ctx context.Context) ([]domain.OntologyRule, error)
	ListForType(ctx context.Context, nodeType string) ([]domain.OntologyRule, error)
	History(ctx context.Context, key domain.RuleKey) ([]domain.OntologyRule, error)
}

// TenantRepository registers tenants. Creation is idempotent: registering
// an existing name returns the existing tenant.
type TenantRepository interface {
	Create(ctx context.Context, name string) (domain.Tenant, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Tenant, error)
	List(ctx context.Context) ([]domain.Tenant, error)
}
