package domain

import (
	"time"
)

// TaxonomyEntry is one version of a node-type definition. The identity key
// is NodeType. ValidFromVersion/ValidToVersion are drawn from the shared
// catalog version clock, ordering taxonomy and ontology history on a single
// sequence independent of wall time.
type TaxonomyEntry struct {
	NodeType          string         `json:"node_type"`
	Description       string         `json:"description"`
	NameTemplate      string         `json:"name_template"`
	ColumnSpec        map[string]any `json:"column_spec,omitempty"`
	GenericProperties map[string]any `json:"generic_properties,omitempty"`
	Version           int64          `json:"version"`
	ValidFromVersion  int64          `json:"valid_from_version"`
	ValidToVersion    *int64         `json:"valid_to_version,omitempty"`
	ModifiedBy        string         `json:"modified_by"`
	ValidFrom         time.Time      `json:"valid_from"`
	ValidTo           *time.Time     `json:"valid_to,omitempty"`
}

// IsLive reports whether this row is the current version.
func (t TaxonomyEntry) IsLive() bool {
	return t.ValidTo == nil
}
