package domain

import (
	"time"

	"github.com/google/uuid"
)

// Edge is one version of a logical graph edge. The logical identity of an
// edge is (tenant, source, target, type); EdgeID is the stable surrogate
// carried across versions. Endpoints are opaque node ids and are not
// validated against existing nodes at this layer.
type Edge struct {
	TenantID     uuid.UUID      `json:"tenant_id"`
	EdgeID       uuid.UUID      `json:"edge_id"`
	SourceNodeID uuid.UUID      `json:"source_node_id"`
	TargetNodeID uuid.UUID      `json:"target_node_id"`
	EdgeType     string         `json:"edge_type"`
	Properties   map[string]any `json:"properties"`
	Version      int64          `json:"version"`
	ValidFrom    time.Time      `json:"valid_from"`
	ValidTo      *time.Time     `json:"valid_to,omitempty"`
}

// IsLive reports whether this row is the current version.
func (e Edge) IsLive() bool {
	return e.ValidTo == nil
}

// EdgeWithEndpoints annotates an edge with the current names of both
// endpoint nodes, for adjacency listings.
type EdgeWithEndpoints struct {
	Edge
	SourceName string `json:"source_name"`
	TargetName string `json:"target_name"`
}
