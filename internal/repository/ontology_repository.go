package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"graph-ontology-api/internal/db"
	"graph-ontology-api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ontologyRepository implements OntologyRepository on the global
// edge_type_rules table.
type ontologyRepository struct {
	conn     *db.Connection
	versions *versionStore
	clock    VersionClock
}

// NewOntologyRepository creates a new ontology rule repository.
func NewOntologyRepository(conn *db.Connection) OntologyRepository {
	return &ontologyRepository{
		conn:     conn,
		versions: newVersionStore(conn),
	}
}

const ontologyColumns = "source_type, edge_type, target_type, source_match, target_match, creation_condition, create_missing_target, version, valid_from_version, valid_to_version, modified_by, valid_from, valid_to"

// ontologyUpsertOps binds the version store to one (source, edge, target)
// rule identity. Rules carry no property map; the merged map is ignored.
type ontologyUpsertOps struct {
	rule  domain.OntologyRule
	clock VersionClock
	tick  int64
}

func (o *ontologyUpsertOps) SelectLive(ctx context.Context, tx pgx.Tx) (*liveVersion, error) {
	var live liveVersion
	err := tx.QueryRow(ctx,
		`SELECT version FROM edge_type_rules
		 WHERE source_type = $1 AND edge_type = $2 AND target_type = $3 AND valid_to IS NULL
		 FOR UPDATE`,
		o.rule.SourceType, o.rule.EdgeType, o.rule.TargetType,
	).Scan(&live.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select live ontology rule: %w", err)
	}
	return &live, nil
}

func (o *ontologyUpsertOps) Deprecate(ctx context.Context, tx pgx.Tx, live *liveVersion, now time.Time) error {
	tick, err := o.clock.Next(ctx, tx)
	if err != nil {
		return err
	}
	o.tick = tick
	_, err = tx.Exec(ctx,
		`UPDATE edge_type_rules SET valid_to = $4, valid_to_version = $5
		 WHERE source_type = $1 AND edge_type = $2 AND target_type = $3 AND valid_to IS NULL`,
		o.rule.SourceType, o.rule.EdgeType, o.rule.TargetType, now, tick,
	)
	if err != nil {
		return fmt.Errorf("failed to deprecate ontology rule version: %w", err)
	}
	return nil
}

func (o *ontologyUpsertOps) Insert(ctx context.Context, tx pgx.Tx, _ uuid.UUID, version int64, _ map[string]any, now time.Time) error {
	if o.tick == 0 {
		tick, err := o.clock.Next(ctx, tx)
		if err != nil {
			return err
		}
		o.tick = tick
	}
	condition := o.rule.Condition
	if len(condition) == 0 {
		condition = []byte("{}")
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO edge_type_rules (source_type, edge_type, target_type, source_match, target_match, creation_condition, create_missing_target, version, valid_from_version, modified_by, valid_from)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.rule.SourceType, o.rule.EdgeType, o.rule.TargetType, o.rule.SourceMatch, o.rule.TargetMatch,
		[]byte(condition), o.rule.CreateMissingTarget, version, o.tick, o.rule.ModifiedBy, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ontology rule version: %w", err)
	}
	return nil
}

// Create registers an edge-type rule. A live rule for the same triple with
// identical column-match values is a true duplicate and fails with
// ErrAlreadyExists; the same triple with different column-match values is a
// refined matching rule and upgrades to a new version instead.
func (r *ontologyRepository) Create(ctx context.Context, rule domain.OntologyRule) (domain.OntologyRule, error) {
	if err := validateRuleKey(rule.Key()); err != nil {
		return domain.OntologyRule{}, err
	}

	mode := upsertStrictCreate
	existing, err := r.Get(ctx, rule.Key())
	switch {
	case err == nil:
		if existing.SourceMatch == rule.SourceMatch && existing.TargetMatch == rule.TargetMatch {
			return domain.OntologyRule{}, fmt.Errorf("ontology rule %s: %w", rule.Key(), domain.ErrAlreadyExists)
		}
		mode = upsertRequireExisting
	case errors.Is(err, domain.ErrNotFound):
		// first version
	default:
		return domain.OntologyRule{}, err
	}

	ops := &ontologyUpsertOps{rule: rule, clock: r.clock}
	if _, _, err := r.versions.Upsert(ctx, ops, nil, mode); err != nil {
		return domain.OntologyRule{}, err
	}
	return r.Get(ctx, rule.Key())
}

// Update commits a new version of an existing rule. Fails with ErrNotFound
// when no live rule exists for the triple.
func (r *ontologyRepository) Update(ctx context.Context, rule domain.OntologyRule) (domain.OntologyRule, error) {
	if err := validateRuleKey(rule.Key()); err != nil {
		return domain.OntologyRule{}, err
	}
	ops := &ontologyUpsertOps{rule: rule, clock: r.clock}
	if _, _, err := r.versions.Upsert(ctx, ops, nil, upsertRequireExisting); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.OntologyRule{}, fmt.Errorf("ontology rule %s: %w", rule.Key(), domain.ErrNotFound)
		}
		return domain.OntologyRule{}, err
	}
	return r.Get(ctx, rule.Key())
}

// Delete deprecates the live rule for a triple. History is kept.
func (r *ontologyRepository) Delete(ctx context.Context, key domain.RuleKey) (bool, error) {
	var removed bool
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		tick, err := r.clock.Next(ctx, tx)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE edge_type_rules SET valid_to = now(), valid_to_version = $4
			 WHERE source_type = $1 AND edge_type = $2 AND target_type = $3 AND valid_to IS NULL`,
			key.SourceType, key.EdgeType, key.TargetType, tick,
		)
		if err != nil {
			return fmt.Errorf("failed to deprecate ontology rule: %w", err)
		}
		removed = tag.RowsAffected() > 0
		return nil
	})
	return removed, err
}

// Get retrieves the live rule for a triple.
func (r *ontologyRepository) Get(ctx context.Context, key domain.RuleKey) (domain.OntologyRule, error) {
	row := r.conn.Pool.QueryRow(ctx,
		`SELECT `+ontologyColumns+` FROM edge_type_rules
		 WHERE source_type = $1 AND edge_type = $2 AND target_type = $3 AND valid_to IS NULL`,
		key.SourceType, key.EdgeType, key.TargetType,
	)
	rule, err := scanOntologyRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.OntologyRule{}, fmt.Errorf("ontology rule %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return domain.OntologyRule{}, fmt.Errorf("failed to get ontology rule: %w", err)
	}
	return rule, nil
}

// List retrieves every live rule.
func (r *ontologyRepository) List(ctx context.Context) ([]domain.OntologyRule, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+ontologyColumns+` FROM edge_type_rules
		 WHERE valid_to IS NULL
		 ORDER BY source_type, edge_type, target_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ontology rules: %w", err)
	}
	defer rows.Close()
	return collectOntologyRules(rows)
}

// ListForType retrieves every live rule whose source or target type equals
// the given node type. This is the rule set the inference engine evaluates
// for a node of that type.
func (r *ontologyRepository) ListForType(ctx context.Context, nodeType string) ([]domain.OntologyRule, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+ontologyColumns+` FROM edge_type_rules
		 WHERE (source_type = $1 OR target_type = $1) AND valid_to IS NULL
		 ORDER BY source_type, edge_type, target_type`,
		nodeType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ontology rules for type: %w", err)
	}
	defer rows.Close()
	return collectOntologyRules(rows)
}

// History returns every version of a rule, ordered by the logical version
// clock, oldest first.
func (r *ontologyRepository) History(ctx context.Context, key domain.RuleKey) ([]domain.OntologyRule, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+ontologyColumns+` FROM edge_type_rules
		 WHERE source_type = $1 AND edge_type = $2 AND target_type = $3
		 ORDER BY valid_from_version`,
		key.SourceType, key.EdgeType, key.TargetType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read ontology rule history: %w", err)
	}
	defer rows.Close()
	return collectOntologyRules(rows)
}

func validateRuleKey(key domain.RuleKey) error {
	if strings.TrimSpace(key.SourceType) == "" ||
		strings.TrimSpace(key.EdgeType) == "" ||
		strings.TrimSpace(key.TargetType) == "" {
		return fmt.Errorf("%w: source type, edge type and target type are required", domain.ErrValidation)
	}
	return nil
}

func scanOntologyRule(row pgx.Row) (domain.OntologyRule, error) {
	var (
		rule         domain.OntologyRule
		conditionRaw []byte
	)
	err := row.Scan(
		&rule.SourceType, &rule.EdgeType, &rule.TargetType, &rule.SourceMatch, &rule.TargetMatch,
		&conditionRaw, &rule.CreateMissingTarget, &rule.Version, &rule.ValidFromVersion,
		&rule.ValidToVersion, &rule.ModifiedBy, &rule.ValidFrom, &rule.ValidTo,
	)
	if err != nil {
		return domain.OntologyRule{}, err
	}
	rule.Condition = append([]byte(nil), conditionRaw...)
	return rule, nil
}

func collectOntologyRules(rows pgx.Rows) ([]domain.OntologyRule, error) {
	rules := []domain.OntologyRule{}
	for rows.Next() {
		rule, err := scanOntologyRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
