package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"graph-ontology-api/internal/db"
	"graph-ontology-api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// graphRepository implements GraphRepository on the shared node/edge
// tables, partitioned by tenant_id.
type graphRepository struct {
	conn     *db.Connection
	versions *versionStore
}

// NewGraphRepository creates a new graph repository.
func NewGraphRepository(conn *db.Connection) GraphRepository {
	return &graphRepository{
		conn:     conn,
		versions: newVersionStore(conn),
	}
}

const nodeColumns = "tenant_id, node_id, node_type, node_name, properties, version, valid_from, valid_to"
const edgeColumns = "tenant_id, edge_id, source_node_id, target_node_id, edge_type, properties, version, valid_from, valid_to"

// nodeUpsertOps binds the version store to one (tenant, name) node
// identity.
type nodeUpsertOps struct {
	tenantID uuid.UUID
	name     string
	nodeType string
	liveType string
}

func (o *nodeUpsertOps) SelectLive(ctx context.Context, tx pgx.Tx) (*liveVersion, error) {
	var (
		live          liveVersion
		propertiesRaw []byte
	)
	err := tx.QueryRow(ctx,
		`SELECT node_id, node_type, version, properties
		 FROM graph_nodes
		 WHERE tenant_id = $1 AND node_name = $2 AND valid_to IS NULL
		 FOR UPDATE`,
		o.tenantID, o.name,
	).Scan(&live.EntityID, &o.liveType, &live.Version, &propertiesRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select live node: %w", err)
	}
	live.Properties, err = domain.PropertiesFromJSON(propertiesRaw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode node properties: %w", err)
	}
	return &live, nil
}

func (o *nodeUpsertOps) Deprecate(ctx context.Context, tx pgx.Tx, live *liveVersion, now time.Time) error {
	_, err := tx.Exec(ctx,
		`UPDATE graph_nodes SET valid_to = $3
		 WHERE tenant_id = $1 AND node_id = $2 AND valid_to IS NULL`,
		o.tenantID, live.EntityID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to deprecate node version: %w", err)
	}
	return nil
}

func (o *nodeUpsertOps) Insert(ctx context.Context, tx pgx.Tx, entityID uuid.UUID, version int64, properties map[string]any, now time.Time) error {
	nodeType := o.nodeType
	if nodeType == "" {
		nodeType = o.liveType
	}
	propertiesJSON, err := json.Marshal(properties)
	if err != nil {
		return fmt.Errorf("failed to marshal node properties: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO graph_nodes (tenant_id, node_id, node_type, node_name, properties, version, valid_from)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.tenantID, entityID, nodeType, o.name, propertiesJSON, version, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert node version: %w", err)
	}
	return nil
}

// edgeUpsertOps binds the version store to one (tenant, source, target,
// type) edge identity.
type edgeUpsertOps struct {
	tenantID uuid.UUID
	sourceID uuid.UUID
	targetID uuid.UUID
	edgeType string
}

func (o *edgeUpsertOps) SelectLive(ctx context.Context, tx pgx.Tx) (*liveVersion, error) {
	var (
		live          liveVersion
		propertiesRaw []byte
	)
	err := tx.QueryRow(ctx,
		`SELECT edge_id, version, properties
		 FROM graph_edges
		 WHERE tenant_id = $1 AND source_node_id = $2 AND target_node_id = $3 AND edge_type = $4 AND valid_to IS NULL
		 FOR UPDATE`,
		o.tenantID, o.sourceID, o.targetID, o.edgeType,
	).Scan(&live.EntityID, &live.Version, &propertiesRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select live edge: %w", err)
	}
	live.Properties, err = domain.PropertiesFromJSON(propertiesRaw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode edge properties: %w", err)
	}
	return &live, nil
}

func (o *edgeUpsertOps) Deprecate(ctx context.Context, tx pgx.Tx, live *liveVersion, now time.Time) error {
	_, err := tx.Exec(ctx,
		`UPDATE graph_edges SET valid_to = $3
		 WHERE tenant_id = $1 AND edge_id = $2 AND valid_to IS NULL`,
		o.tenantID, live.EntityID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to deprecate edge version: %w", err)
	}
	return nil
}

func (o *edgeUpsertOps) Insert(ctx context.Context, tx pgx.Tx, entityID uuid.UUID, version int64, properties map[string]any, now time.Time) error {
	propertiesJSON, err := json.Marshal(properties)
	if err != nil {
		return fmt.Errorf("failed to marshal edge properties: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO graph_edges (tenant_id, edge_id, source_node_id, target_node_id, edge_type, properties, version, valid_from)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.tenantID, entityID, o.sourceID, o.targetID, o.edgeType, propertiesJSON, version, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert edge version: %w", err)
	}
	return nil
}

// CreateOrUpdateNode commits a new node version keyed by (tenant, name).
func (r *graphRepository) CreateOrUpdateNode(ctx context.Context, tenantID uuid.UUID, nodeType, name string, properties map[string]any) (uuid.UUID, int64, error) {
	if tenantID == uuid.Nil {
		return uuid.Nil, 0, fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(name) == "" {
		return uuid.Nil, 0, fmt.Errorf("%w: node name is required", domain.ErrValidation)
	}
	ops := &nodeUpsertOps{tenantID: tenantID, name: name, nodeType: nodeType}
	return r.versions.Upsert(ctx, ops, properties, upsertMerge)
}

// CreateOrUpdateEdge commits a new edge version keyed by (tenant, source,
// target, type). Endpoint existence is not checked here.
func (r *graphRepository) CreateOrUpdateEdge(ctx context.Context, tenantID, sourceID, targetID uuid.UUID, edgeType string, properties map[string]any) (uuid.UUID, int64, error) {
	if tenantID == uuid.Nil {
		return uuid.Nil, 0, fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}
	if sourceID == uuid.Nil || targetID == uuid.Nil {
		return uuid.Nil, 0, fmt.Errorf("%w: edge endpoints are required", domain.ErrValidation)
	}
	if strings.TrimSpace(edgeType) == "" {
		return uuid.Nil, 0, fmt.Errorf("%w: edge type is required", domain.ErrValidation)
	}
	ops := &edgeUpsertOps{tenantID: tenantID, sourceID: sourceID, targetID: targetID, edgeType: edgeType}
	return r.versions.Upsert(ctx, ops, properties, upsertMerge)
}

// GetNode retrieves the live version of a node by its stable id.
func (r *graphRepository) GetNode(ctx context.Context, tenantID, nodeID uuid.UUID) (domain.Node, error) {
	row := r.conn.Pool.QueryRow(ctx,
		`SELECT `+nodeColumns+` FROM graph_nodes
		 WHERE tenant_id = $1 AND node_id = $2 AND valid_to IS NULL`,
		tenantID, nodeID,
	)
	node, err := scanNode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Node{}, fmt.Errorf("node %s: %w", nodeID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Node{}, fmt.Errorf("failed to get node: %w", err)
	}
	return node, nil
}

// GetNodesByIDs retrieves live nodes by stable id, for batch loading.
// Missing ids are simply absent from the result.
func (r *graphRepository) GetNodesByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]domain.Node, error) {
	if len(ids) == 0 {
		return []domain.Node{}, nil
	}
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+nodeColumns+` FROM graph_nodes
		 WHERE tenant_id = $1 AND node_id = ANY($2) AND valid_to IS NULL`,
		tenantID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get nodes by ids: %w", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

// FindNodeByName retrieves the live node with the given name.
func (r *graphRepository) FindNodeByName(ctx context.Context, tenantID uuid.UUID, name string) (domain.Node, error) {
	row := r.conn.Pool.QueryRow(ctx,
		`SELECT `+nodeColumns+` FROM graph_nodes
		 WHERE tenant_id = $1 AND node_name = $2 AND valid_to IS NULL`,
		tenantID, name,
	)
	node, err := scanNode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Node{}, fmt.Errorf("node %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Node{}, fmt.Errorf("failed to find node by name: %w", err)
	}
	return node, nil
}

// OpenNodes retrieves the live nodes matching any of the given names,
// ordered by name.
func (r *graphRepository) OpenNodes(ctx context.Context, tenantID uuid.UUID, names []string) ([]domain.Node, error) {
	if len(names) == 0 {
		return []domain.Node{}, nil
	}
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+nodeColumns+` FROM graph_nodes
		 WHERE tenant_id = $1 AND node_name = ANY($2) AND valid_to IS NULL
		 ORDER BY node_name`,
		tenantID, names,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open nodes: %w", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

// SearchNodes retrieves live nodes whose name, type or serialized
// properties contain the keyword, case-insensitively, ordered by name.
// The keyword is used as a bare substring: wildcard characters broaden the
// match instead of being escaped.
func (r *graphRepository) SearchNodes(ctx context.Context, tenantID uuid.UUID, keyword string) ([]domain.Node, error) {
	pattern := "%" + keyword + "%"
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+nodeColumns+` FROM graph_nodes
		 WHERE tenant_id = $1 AND valid_to IS NULL
		   AND (node_name ILIKE $2 OR node_type ILIKE $2 OR properties::text ILIKE $2)
		 ORDER BY node_name`,
		tenantID, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search nodes: %w", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

// SearchEdges retrieves live edges whose type or serialized properties
// contain the keyword, case-insensitively, ordered by type.
func (r *graphRepository) SearchEdges(ctx context.Context, tenantID uuid.UUID, keyword string) ([]domain.Edge, error) {
	pattern := "%" + keyword + "%"
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+edgeColumns+` FROM graph_edges
		 WHERE tenant_id = $1 AND valid_to IS NULL
		   AND (edge_type ILIKE $2 OR properties::text ILIKE $2)
		 ORDER BY edge_type`,
		tenantID, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search edges: %w", err)
	}
	defer rows.Close()
	return collectEdges(rows)
}

// ListNodes retrieves every live node of a tenant, ordered by name.
func (r *graphRepository) ListNodes(ctx context.Context, tenantID uuid.UUID) ([]domain.Node, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+nodeColumns+` FROM graph_nodes
		 WHERE tenant_id = $1 AND valid_to IS NULL
		 ORDER BY node_name`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

// ListEdges retrieves every live edge of a tenant, ordered by type then id.
func (r *graphRepository) ListEdges(ctx context.Context, tenantID uuid.UUID) ([]domain.Edge, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+edgeColumns+` FROM graph_edges
		 WHERE tenant_id = $1 AND valid_to IS NULL
		 ORDER BY edge_type, edge_id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()
	return collectEdges(rows)
}

// ReadGraph returns every live node and live edge of a tenant as a single
// tagged sequence, nodes first.
func (r *graphRepository) ReadGraph(ctx context.Context, tenantID uuid.UUID) ([]domain.GraphElement, error) {
	nodes, err := r.ListNodes(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	edges, err := r.ListEdges(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	elements := make([]domain.GraphElement, 0, len(nodes)+len(edges))
	for i := range nodes {
		elements = append(elements, domain.GraphElement{Kind: domain.GraphElementNode, Node: &nodes[i]})
	}
	for i := range edges {
		elements = append(elements, domain.GraphElement{Kind: domain.GraphElementEdge, Edge: &edges[i]})
	}
	return elements, nil
}

// EdgesOf retrieves every live edge where the node is source or target,
// ordered by edge type then edge id.
func (r *graphRepository) EdgesOf(ctx context.Context, tenantID, nodeID uuid.UUID) ([]domain.Edge, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+edgeColumns+` FROM graph_edges
		 WHERE tenant_id = $1 AND (source_node_id = $2 OR target_node_id = $2) AND valid_to IS NULL
		 ORDER BY edge_type, edge_id`,
		tenantID, nodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges of node: %w", err)
	}
	defer rows.Close()
	return collectEdges(rows)
}

// FindEdgesBetween retrieves ids of live edges from source to target,
// optionally filtered by edge type.
func (r *graphRepository) FindEdgesBetween(ctx context.Context, tenantID, sourceID, targetID uuid.UUID, edgeType *string) ([]uuid.UUID, error) {
	query := `SELECT edge_id FROM graph_edges
		 WHERE tenant_id = $1 AND source_node_id = $2 AND target_node_id = $3 AND valid_to IS NULL`
	args := []any{tenantID, sourceID, targetID}
	if edgeType != nil {
		query += ` AND edge_type = $4`
		args = append(args, *edgeType)
	}
	query += ` ORDER BY edge_type`

	rows, err := r.conn.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find edges between nodes: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan edge id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteNode hard-deletes every version of a node and every version of
// every edge referencing it, in either direction. The cascade is
// all-or-nothing.
func (r *graphRepository) DeleteNode(ctx context.Context, tenantID, nodeID uuid.UUID) (bool, error) {
	var removed bool
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM graph_edges
			 WHERE tenant_id = $1 AND (source_node_id = $2 OR target_node_id = $2)`,
			tenantID, nodeID,
		); err != nil {
			return fmt.Errorf("failed to delete edges of node: %w", err)
		}
		tag, err := tx.Exec(ctx,
			`DELETE FROM graph_nodes WHERE tenant_id = $1 AND node_id = $2`,
			tenantID, nodeID,
		)
		if err != nil {
			return fmt.Errorf("failed to delete node: %w", err)
		}
		removed = tag.RowsAffected() > 0
		return nil
	})
	return removed, err
}

// DeleteEdge hard-deletes every version of one edge.
func (r *graphRepository) DeleteEdge(ctx context.Context, tenantID, edgeID uuid.UUID) (bool, error) {
	tag, err := r.conn.Pool.Exec(ctx,
		`DELETE FROM graph_edges WHERE tenant_id = $1 AND edge_id = $2`,
		tenantID, edgeID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete edge: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// PatchNodeProperty updates one property key on the live node row in
// place, without creating a new version. Returns false when no live node
// exists.
func (r *graphRepository) PatchNodeProperty(ctx context.Context, tenantID, nodeID uuid.UUID, key string, value any) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, fmt.Errorf("%w: property key is required", domain.ErrValidation)
	}
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("%w: property value is not serializable: %v", domain.ErrValidation, err)
	}
	tag, err := r.conn.Pool.Exec(ctx,
		`UPDATE graph_nodes
		 SET properties = properties || jsonb_build_object($3::text, $4::jsonb)
		 WHERE tenant_id = $1 AND node_id = $2 AND valid_to IS NULL`,
		tenantID, nodeID, key, valueJSON,
	)
	if err != nil {
		return false, fmt.Errorf("failed to patch node property: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// NodeHistory returns every version of the logical node with the given
// name, oldest first. Empty after a hard delete.
func (r *graphRepository) NodeHistory(ctx context.Context, tenantID uuid.UUID, name string) ([]domain.Node, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+nodeColumns+` FROM graph_nodes
		 WHERE tenant_id = $1 AND node_name = $2
		 ORDER BY version`,
		tenantID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read node history: %w", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

// EdgeHistory returns every version of one edge, oldest first.
func (r *graphRepository) EdgeHistory(ctx context.Context, tenantID, edgeID uuid.UUID) ([]domain.Edge, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+edgeColumns+` FROM graph_edges
		 WHERE tenant_id = $1 AND edge_id = $2
		 ORDER BY version`,
		tenantID, edgeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read edge history: %w", err)
	}
	defer rows.Close()
	return collectEdges(rows)
}

func scanNode(row pgx.Row) (domain.Node, error) {
	var (
		node          domain.Node
		propertiesRaw []byte
	)
	err := row.Scan(
		&node.TenantID, &node.NodeID, &node.NodeType, &node.Name,
		&propertiesRaw, &node.Version, &node.ValidFrom, &node.ValidTo,
	)
	if err != nil {
		return domain.Node{}, err
	}
	node.Properties, err = domain.PropertiesFromJSON(propertiesRaw)
	if err != nil {
		return domain.Node{}, fmt.Errorf("failed to decode properties for node %s: %w", node.NodeID, err)
	}
	return node, nil
}

func collectNodes(rows pgx.Rows) ([]domain.Node, error) {
	nodes := []domain.Node{}
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

func scanEdge(row pgx.Row) (domain.Edge, error) {
	var (
		edge          domain.Edge
		propertiesRaw []byte
	)
	err := row.Scan(
		&edge.TenantID, &edge.EdgeID, &edge.SourceNodeID, &edge.TargetNodeID, &edge.EdgeType,
		&propertiesRaw, &edge.Version, &edge.ValidFrom, &edge.ValidTo,
	)
	if err != nil {
		return domain.Edge{}, err
	}
	edge.Properties, err = domain.PropertiesFromJSON(propertiesRaw)
	if err != nil {
		return domain.Edge{}, fmt.Errorf("failed to decode properties for edge %s: %w", edge.EdgeID, err)
	}
	return edge, nil
}

func collectEdges(rows pgx.Rows) ([]domain.Edge, error) {
	edges := []domain.Edge{}
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}
