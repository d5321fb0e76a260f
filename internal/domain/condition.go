package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MatchKind selects the candidate-matching strategy of a rule condition.
type MatchKind string

const (
	// MatchAllPairs emits every (source, target) pair of the rule's node
	// types, self-pairs excluded.
	MatchAllPairs MatchKind = "all_pairs"
	// MatchPropertyEqual emits pairs whose rendered SourceKey and TargetKey
	// property values are equal.
	MatchPropertyEqual MatchKind = "property_equal"
	// MatchPropertyRef emits, for each source, the target node whose name
	// equals the source's PropertyKey value. The only kind that supports
	// creating a missing target node.
	MatchPropertyRef MatchKind = "property_ref"
)

// PropertyFilter narrows candidate nodes by one property key.
type PropertyFilter struct {
	Key    string  `json:"key"`
	Value  *string `json:"value,omitempty"`
	Exists *bool   `json:"exists,omitempty"`
}

// RuleCondition is the stored, declarative shape of a rule's
// creation_condition: a closed set of tagged match variants plus optional
// node filters and derived edge properties. It is interpreted against a
// tenant snapshot, never turned into query text.
type RuleCondition struct {
	Match         MatchKind        `json:"match"`
	SourceKey     string           `json:"sourceKey,omitempty"`
	TargetKey     string           `json:"targetKey,omitempty"`
	PropertyKey   string           `json:"propertyKey,omitempty"`
	SourceFilters []PropertyFilter `json:"sourceFilters,omitempty"`
	TargetFilters []PropertyFilter `json:"targetFilters,omitempty"`
	Properties    map[string]any   `json:"properties,omitempty"`
}

// DecodeCondition parses and validates a stored condition payload.
func DecodeCondition(raw json.RawMessage) (RuleCondition, error) {
	if len(raw) == 0 {
		return RuleCondition{}, fmt.Errorf("empty condition")
	}
	var cond RuleCondition
	if err := json.Unmarshal(raw, &cond); err != nil {
		return RuleCondition{}, fmt.Errorf("decode condition: %w", err)
	}
	if err := cond.Validate(); err != nil {
		return RuleCondition{}, err
	}
	return cond, nil
}

// Validate checks that the condition names a known match kind and carries
// the keys that kind requires.
func (c RuleCondition) Validate() error {
	switch c.Match {
	case MatchAllPairs:
		return nil
	case MatchPropertyEqual:
		if c.SourceKey == "" || c.TargetKey == "" {
			return fmt.Errorf("property_equal condition requires sourceKey and targetKey")
		}
		return nil
	case MatchPropertyRef:
		if c.PropertyKey == "" {
			return fmt.Errorf("property_ref condition requires propertyKey")
		}
		return nil
	default:
		return fmt.Errorf("unknown match kind %q", c.Match)
	}
}

// ApplyPropertyFilters reports whether a node passes every filter.
func ApplyPropertyFilters(node *Node, filters []PropertyFilter) bool {
	for _, filter := range filters {
		value, present := PropertyString(node.Properties, filter.Key)
		if filter.Exists != nil {
			if *filter.Exists != present {
				return false
			}
		}
		if filter.Value != nil {
			if !present || value != *filter.Value {
				return false
			}
		}
	}
	return true
}

// PropertyString renders a property value as a comparable string.
func PropertyString(properties map[string]any, key string) (string, bool) {
	raw, ok := properties[key]
	if !ok || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}
