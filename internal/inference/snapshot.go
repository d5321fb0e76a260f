package inference

import (
	"fmt"
	"sort"

	"graph-ontology-api/internal/domain"

	"github.com/google/uuid"
)

// snapshot is the tenant's live graph at the moment Apply started. Rules
// are evaluated against it in memory; edges the engine itself creates are
// tracked so later candidates of the same run see them.
type snapshot struct {
	nodesByID   map[uuid.UUID]domain.Node
	nodesByName map[string]domain.Node
	nodesByType map[string][]domain.Node
	liveEdges   map[edgeKey]struct{}
}

type edgeKey struct {
	source   uuid.UUID
	target   uuid.UUID
	edgeType string
}

func newSnapshot(nodes []domain.Node, edges []domain.Edge) *snapshot {
	snap := &snapshot{
		nodesByID:   make(map[uuid.UUID]domain.Node, len(nodes)),
		nodesByName: make(map[string]domain.Node, len(nodes)),
		nodesByType: make(map[string][]domain.Node),
		liveEdges:   make(map[edgeKey]struct{}, len(edges)),
	}
	for _, node := range nodes {
		snap.addNode(node)
	}
	for _, edge := range edges {
		snap.markEdge(edge.SourceNodeID, edge.TargetNodeID, edge.EdgeType)
	}
	return snap
}

func (s *snapshot) addNode(node domain.Node) {
	s.nodesByID[node.NodeID] = node
	s.nodesByName[node.Name] = node
	byType := append(s.nodesByType[node.NodeType], node)
	sort.Slice(byType, func(i, j int) bool { return byType[i].Name < byType[j].Name })
	s.nodesByType[node.NodeType] = byType
}

func (s *snapshot) nodesOfType(nodeType string) []domain.Node {
	return s.nodesByType[nodeType]
}

func (s *snapshot) hasEdge(source, target uuid.UUID, edgeType string) bool {
	_, ok := s.liveEdges[edgeKey{source: source, target: target, edgeType: edgeType}]
	return ok
}

func (s *snapshot) markEdge(source, target uuid.UUID, edgeType string) {
	s.liveEdges[edgeKey{source: source, target: target, edgeType: edgeType}] = struct{}{}
}

// candidate is one derived edge a rule wants to exist. When CreateTarget
// is set the target node does not exist yet and must be materialized first.
type candidate struct {
	SourceID     uuid.UUID
	TargetID     uuid.UUID
	TargetName   string
	CreateTarget bool
	Properties   map[string]any
}

// evaluateCondition interprets a rule condition against the snapshot,
// with the triggering node substituted for the side whose type it matches.
// The source side wins when both sides share the node's type.
func evaluateCondition(snap *snapshot, rule domain.OntologyRule, cond domain.RuleCondition, trigger domain.Node) ([]candidate, error) {
	sources := snap.nodesOfType(rule.SourceType)
	targets := snap.nodesOfType(rule.TargetType)
	if trigger.NodeType == rule.SourceType {
		sources = []domain.Node{trigger}
	} else if trigger.NodeType == rule.TargetType {
		targets = []domain.Node{trigger}
	} else {
		return nil, fmt.Errorf("node type %q matches neither side of the rule", trigger.NodeType)
	}

	sources = filterNodes(sources, cond.SourceFilters)
	targets = filterNodes(targets, cond.TargetFilters)

	switch cond.Match {
	case domain.MatchAllPairs:
		return matchAllPairs(sources, targets, cond), nil
	case domain.MatchPropertyEqual:
		return matchPropertyEqual(sources, targets, cond), nil
	case domain.MatchPropertyRef:
		return matchPropertyRef(snap, sources, rule, cond)
	default:
		return nil, fmt.Errorf("unknown match kind %q", cond.Match)
	}
}

func filterNodes(nodes []domain.Node, filters []domain.PropertyFilter) []domain.Node {
	if len(filters) == 0 {
		return nodes
	}
	kept := make([]domain.Node, 0, len(nodes))
	for i := range nodes {
		if domain.ApplyPropertyFilters(&nodes[i], filters) {
			kept = append(kept, nodes[i])
		}
	}
	return kept
}

func matchAllPairs(sources, targets []domain.Node, cond domain.RuleCondition) []candidate {
	candidates := []candidate{}
	for _, source := range sources {
		for _, target := range targets {
			if source.NodeID == target.NodeID {
				continue
			}
			candidates = append(candidates, candidate{
				SourceID:   source.NodeID,
				TargetID:   target.NodeID,
				Properties: cond.Properties,
			})
		}
	}
	return candidates
}

func matchPropertyEqual(sources, targets []domain.Node, cond domain.RuleCondition) []candidate {
	candidates := []candidate{}
	for _, source := range sources {
		sourceValue, ok := domain.PropertyString(source.Properties, cond.SourceKey)
		if !ok {
			continue
		}
		for _, target := range targets {
			if source.NodeID == target.NodeID {
				continue
			}
			targetValue, ok := domain.PropertyString(target.Properties, cond.TargetKey)
			if !ok || targetValue != sourceValue {
				continue
			}
			candidates = append(candidates, candidate{
				SourceID:   source.NodeID,
				TargetID:   target.NodeID,
				Properties: cond.Properties,
			})
		}
	}
	return candidates
}

func matchPropertyRef(snap *snapshot, sources []domain.Node, rule domain.OntologyRule, cond domain.RuleCondition) ([]candidate, error) {
	candidates := []candidate{}
	for _, source := range sources {
		name, ok := domain.PropertyString(source.Properties, cond.PropertyKey)
		if !ok || name == "" {
			continue
		}
		target, found := snap.nodesByName[name]
		switch {
		case found && target.NodeType == rule.TargetType:
			if source.NodeID == target.NodeID {
				continue
			}
			candidates = append(candidates, candidate{
				SourceID:   source.NodeID,
				TargetID:   target.NodeID,
				Properties: cond.Properties,
			})
		case found:
			// Name taken by a node of another type; not a match.
		case rule.CreateMissingTarget:
			candidates = append(candidates, candidate{
				SourceID:     source.NodeID,
				TargetName:   name,
				CreateTarget: true,
				Properties:   cond.Properties,
			})
		}
	}
	return candidates, nil
}
