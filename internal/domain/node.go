package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Node is one version of a logical graph node. The logical identity of a
// node is (tenant, name); NodeID is the stable surrogate carried across
// versions of the same logical node.
type Node struct {
	TenantID   uuid.UUID      `json:"tenant_id"`
	NodeID     uuid.UUID      `json:"node_id"`
	NodeType   string         `json:"node_type"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties"`
	Version    int64          `json:"version"`
	ValidFrom  time.Time      `json:"valid_from"`
	ValidTo    *time.Time     `json:"valid_to,omitempty"`
}

// IsLive reports whether this row is the current version.
func (n Node) IsLive() bool {
	return n.ValidTo == nil
}

// PropertiesJSON serializes the property map for JSONB storage.
func (n Node) PropertiesJSON() (json.RawMessage, error) {
	if n.Properties == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(n.Properties)
}

// PropertiesFromJSON decodes a JSONB property payload.
func PropertiesFromJSON(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var properties map[string]any
	if err := json.Unmarshal(raw, &properties); err != nil {
		return nil, err
	}
	if properties == nil {
		properties = map[string]any{}
	}
	return properties, nil
}

// MergeProperties computes the property map of a successor version: the
// shallow union of the prior live map and the incoming map, with incoming
// values winning on key collision.
func MergeProperties(old, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(old)+len(incoming))
	for k, v := range old {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

// CopyProperties returns a shallow copy of a property map.
func CopyProperties(properties map[string]any) map[string]any {
	copied := make(map[string]any, len(properties))
	for k, v := range properties {
		copied[k] = v
	}
	return copied
}
