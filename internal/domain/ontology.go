package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RuleKey identifies a logical ontology rule across versions.
type RuleKey struct {
	SourceType string `json:"source_type"`
	EdgeType   string `json:"edge_type"`
	TargetType string `json:"target_type"`
}

func (k RuleKey) String() string {
	return fmt.Sprintf("%s-[%s]->%s", k.SourceType, k.EdgeType, k.TargetType)
}

// OntologyRule is one version of an edge-type inference rule: when a node
// of SourceType or TargetType appears, derive edges of EdgeType between
// matching nodes. Condition stays raw here so a malformed stored condition
// fails the single rule at evaluation time, never a whole listing.
type OntologyRule struct {
	SourceType          string          `json:"source_type"`
	EdgeType            string          `json:"edge_type"`
	TargetType          string          `json:"target_type"`
	SourceMatch         string          `json:"source_match"`
	TargetMatch         string          `json:"target_match"`
	Condition           json.RawMessage `json:"condition"`
	CreateMissingTarget bool            `json:"create_missing_target"`
	Version             int64           `json:"version"`
	ValidFromVersion    int64           `json:"valid_from_version"`
	ValidToVersion      *int64          `json:"valid_to_version,omitempty"`
	ModifiedBy          string          `json:"modified_by"`
	ValidFrom           time.Time       `json:"valid_from"`
	ValidTo             *time.Time      `json:"valid_to,omitempty"`
}

// Key returns the rule's logical identity.
func (r OntologyRule) Key() RuleKey {
	return RuleKey{SourceType: r.SourceType, EdgeType: r.EdgeType, TargetType: r.TargetType}
}

// IsLive reports whether this row is the current version.
func (r OntologyRule) IsLive() bool {
	return r.ValidTo == nil
}
