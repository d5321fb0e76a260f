package inference

import (
	"context"
	"fmt"
	"log"

	"graph-ontology-api/internal/domain"

	"github.com/google/uuid"
)

// GraphStore is the subset of graph storage the engine needs.
type GraphStore interface {
	GetNode(ctx context.Context, tenantID, nodeID uuid.UUID) (domain.Node, error)
	ListNodes(ctx context.Context, tenantID uuid.UUID) ([]domain.Node, error)
	ListEdges(ctx context.Context, tenantID uuid.UUID) ([]domain.Edge, error)
	CreateOrUpdateNode(ctx context.Context, tenantID uuid.UUID, nodeType, name string, properties map[string]any) (uuid.UUID, int64, error)
	CreateOrUpdateEdge(ctx context.Context, tenantID, sourceID, targetID uuid.UUID, edgeType string, properties map[string]any) (uuid.UUID, int64, error)
}

// RuleSource yields the live ontology rules applicable to a node type.
type RuleSource interface {
	ListForType(ctx context.Context, nodeType string) ([]domain.OntologyRule, error)
}

// Engine evaluates ontology rules for one node and materializes missing
// edges. It is invoked explicitly after a node mutation, never as a
// trigger, so callers control ordering and batching and inference chains
// cannot recurse unboundedly.
type Engine struct {
	graph GraphStore
	rules RuleSource
	logf  func(format string, args ...any)
}

// NewEngine constructs an inference engine.
func NewEngine(graph GraphStore, rules RuleSource) *Engine {
	return &Engine{
		graph: graph,
		rules: rules,
		logf:  log.Printf,
	}
}

// RuleDiagnostic records one rule that failed to evaluate or materialize.
type RuleDiagnostic struct {
	Rule domain.RuleKey `json:"rule"`
	Err  string         `json:"error"`
}

// ApplyResult summarizes one inference run.
type ApplyResult struct {
	RulesEvaluated int              `json:"rules_evaluated"`
	EdgesCreated   int              `json:"edges_created"`
	NodesCreated   int              `json:"nodes_created"`
	Diagnostics    []RuleDiagnostic `json:"diagnostics,omitempty"`
}

// Apply evaluates every live rule whose source or target type matches the
// node's type against a snapshot of the tenant's live graph, creating any
// derived edges that do not exist yet. A failing rule is recorded as a
// diagnostic and logged; it never prevents the remaining rules from being
// applied. Apply only errors when the node itself cannot be resolved or
// the snapshot cannot be loaded.
func (e *Engine) Apply(ctx context.Context, tenantID, nodeID uuid.UUID) (ApplyResult, error) {
	result := ApplyResult{}

	node, err := e.graph.GetNode(ctx, tenantID, nodeID)
	if err != nil {
		return result, err
	}

	rules, err := e.rules.ListForType(ctx, node.NodeType)
	if err != nil {
		return result, fmt.Errorf("failed to load ontology rules for %q: %w", node.NodeType, err)
	}
	if len(rules) == 0 {
		return result, nil
	}

	nodes, err := e.graph.ListNodes(ctx, tenantID)
	if err != nil {
		return result, fmt.Errorf("failed to snapshot nodes: %w", err)
	}
	edges, err := e.graph.ListEdges(ctx, tenantID)
	if err != nil {
		return result, fmt.Errorf("failed to snapshot edges: %w", err)
	}
	snap := newSnapshot(nodes, edges)

	for _, rule := range rules {
		result.RulesEvaluated++
		if err := e.applyRule(ctx, tenantID, snap, rule, node, &result); err != nil {
			ruleErr := &domain.RuleEvaluationError{Rule: rule.Key(), Err: err}
			result.Diagnostics = append(result.Diagnostics, RuleDiagnostic{
				Rule: rule.Key(),
				Err:  err.Error(),
			})
			e.logf("[INFERENCE] WARN tenant=%s node=%s %v", tenantID, nodeID, ruleErr)
		}
	}

	return result, nil
}

func (e *Engine) applyRule(ctx context.Context, tenantID uuid.UUID, snap *snapshot, rule domain.OntologyRule, trigger domain.Node, result *ApplyResult) error {
	cond, err := domain.DecodeCondition(rule.Condition)
	if err != nil {
		return err
	}

	candidates, err := evaluateCondition(snap, rule, cond, trigger)
	if err != nil {
		return err
	}

	for _, cand := range candidates {
		if cand.CreateTarget {
			targetID, _, err := e.graph.CreateOrUpdateNode(ctx, tenantID, rule.TargetType, cand.TargetName, nil)
			if err != nil {
				return fmt.Errorf("create missing target %q: %w", cand.TargetName, err)
			}
			cand.TargetID = targetID
			snap.addNode(domain.Node{
				TenantID: tenantID,
				NodeID:   targetID,
				NodeType: rule.TargetType,
				Name:     cand.TargetName,
			})
			result.NodesCreated++
		}

		if snap.hasEdge(cand.SourceID, cand.TargetID, rule.EdgeType) {
			continue
		}
		if _, _, err := e.graph.CreateOrUpdateEdge(ctx, tenantID, cand.SourceID, cand.TargetID, rule.EdgeType, cand.Properties); err != nil {
			return fmt.Errorf("create edge: %w", err)
		}
		snap.markEdge(cand.SourceID, cand.TargetID, rule.EdgeType)
		result.EdgesCreated++
	}

	return nil
}
