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

// taxonomyRepository implements TaxonomyRepository on the global node_types
// table.
type taxonomyRepository struct {
	conn     *db.Connection
	versions *versionStore
	clock    VersionClock
}

// NewTaxonomyRepository creates a new taxonomy repository.
func NewTaxonomyRepository(conn *db.Connection) TaxonomyRepository {
	return &taxonomyRepository{
		conn:     conn,
		versions: newVersionStore(conn),
	}
}

const taxonomyColumns = "node_type, description, name_template, column_spec, generic_properties, version, valid_from_version, valid_to_version, modified_by, valid_from, valid_to"

// taxonomyUpsertOps binds the version store to one node_type identity.
// The deprecated row's valid_to_version and the successor's
// valid_from_version share one clock tick, so history has no gaps.
type taxonomyUpsertOps struct {
	entry domain.TaxonomyEntry
	clock VersionClock
	tick  int64
}

func (o *taxonomyUpsertOps) SelectLive(ctx context.Context, tx pgx.Tx) (*liveVersion, error) {
	var (
		live          liveVersion
		propertiesRaw []byte
	)
	err := tx.QueryRow(ctx,
		`SELECT version, generic_properties FROM node_types
		 WHERE node_type = $1 AND valid_to IS NULL
		 FOR UPDATE`,
		o.entry.NodeType,
	).Scan(&live.Version, &propertiesRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select live node type: %w", err)
	}
	live.Properties, err = domain.PropertiesFromJSON(propertiesRaw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode node type properties: %w", err)
	}
	return &live, nil
}

func (o *taxonomyUpsertOps) Deprecate(ctx context.Context, tx pgx.Tx, live *liveVersion, now time.Time) error {
	tick, err := o.clock.Next(ctx, tx)
	if err != nil {
		return err
	}
	o.tick = tick
	_, err = tx.Exec(ctx,
		`UPDATE node_types SET valid_to = $2, valid_to_version = $3
		 WHERE node_type = $1 AND valid_to IS NULL`,
		o.entry.NodeType, now, tick,
	)
	if err != nil {
		return fmt.Errorf("failed to deprecate node type version: %w", err)
	}
	return nil
}

func (o *taxonomyUpsertOps) Insert(ctx context.Context, tx pgx.Tx, _ uuid.UUID, version int64, properties map[string]any, now time.Time) error {
	if o.tick == 0 {
		tick, err := o.clock.Next(ctx, tx)
		if err != nil {
			return err
		}
		o.tick = tick
	}
	propertiesJSON, err := json.Marshal(properties)
	if err != nil {
		return fmt.Errorf("failed to marshal node type properties: %w", err)
	}
	columnSpecJSON, err := json.Marshal(o.entry.ColumnSpec)
	if err != nil {
		return fmt.Errorf("failed to marshal column spec: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO node_types (node_type, description, name_template, column_spec, generic_properties, version, valid_from_version, modified_by, valid_from)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.entry.NodeType, o.entry.Description, o.entry.NameTemplate, columnSpecJSON, propertiesJSON,
		version, o.tick, o.entry.ModifiedBy, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert node type version: %w", err)
	}
	return nil
}

// Create registers a new node type. Fails with ErrAlreadyExists when a live
// entry for the type exists.
func (r *taxonomyRepository) Create(ctx context.Context, entry domain.TaxonomyEntry) (domain.TaxonomyEntry, error) {
	if strings.TrimSpace(entry.NodeType) == "" {
		return domain.TaxonomyEntry{}, fmt.Errorf("%w: node type is required", domain.ErrValidation)
	}
	ops := &taxonomyUpsertOps{entry: entry, clock: r.clock}
	if _, _, err := r.versions.Upsert(ctx, ops, entry.GenericProperties, upsertStrictCreate); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.TaxonomyEntry{}, fmt.Errorf("node type %q: %w", entry.NodeType, domain.ErrAlreadyExists)
		}
		return domain.TaxonomyEntry{}, err
	}
	return r.Get(ctx, entry.NodeType)
}

// Update commits a new version of an existing node type. Fails with
// ErrNotFound when no live entry exists.
func (r *taxonomyRepository) Update(ctx context.Context, entry domain.TaxonomyEntry) (domain.TaxonomyEntry, error) {
	if strings.TrimSpace(entry.NodeType) == "" {
		return domain.TaxonomyEntry{}, fmt.Errorf("%w: node type is required", domain.ErrValidation)
	}
	ops := &taxonomyUpsertOps{entry: entry, clock: r.clock}
	if _, _, err := r.versions.Upsert(ctx, ops, entry.GenericProperties, upsertRequireExisting); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TaxonomyEntry{}, fmt.Errorf("node type %q: %w", entry.NodeType, domain.ErrNotFound)
		}
		return domain.TaxonomyEntry{}, err
	}
	return r.Get(ctx, entry.NodeType)
}

// Delete deprecates the live entry for a node type. History is kept.
func (r *taxonomyRepository) Delete(ctx context.Context, nodeType string) (bool, error) {
	var removed bool
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		tick, err := r.clock.Next(ctx, tx)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE node_types SET valid_to = now(), valid_to_version = $2
			 WHERE node_type = $1 AND valid_to IS NULL`,
			nodeType, tick,
		)
		if err != nil {
			return fmt.Errorf("failed to deprecate node type: %w", err)
		}
		removed = tag.RowsAffected() > 0
		return nil
	})
	return removed, err
}

// Get retrieves the live entry for a node type.
func (r *taxonomyRepository) Get(ctx context.Context, nodeType string) (domain.TaxonomyEntry, error) {
	row := r.conn.Pool.QueryRow(ctx,
		`SELECT `+taxonomyColumns+` FROM node_types
		 WHERE node_type = $1 AND valid_to IS NULL`,
		nodeType,
	)
	entry, err := scanTaxonomyEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TaxonomyEntry{}, fmt.Errorf("node type %q: %w", nodeType, domain.ErrNotFound)
	}
	if err != nil {
		return domain.TaxonomyEntry{}, fmt.Errorf("failed to get node type: %w", err)
	}
	return entry, nil
}

// List retrieves every live node type, ordered by type name.
func (r *taxonomyRepository) List(ctx context.Context) ([]domain.TaxonomyEntry, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+taxonomyColumns+` FROM node_types
		 WHERE valid_to IS NULL
		 ORDER BY node_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list node types: %w", err)
	}
	defer rows.Close()
	return collectTaxonomyEntries(rows)
}

// History returns every version of a node type, ordered by the logical
// version clock, oldest first.
func (r *taxonomyRepository) History(ctx context.Context, nodeType string) ([]domain.TaxonomyEntry, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+taxonomyColumns+` FROM node_types
		 WHERE node_type = $1
		 ORDER BY valid_from_version`,
		nodeType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read node type history: %w", err)
	}
	defer rows.Close()
	return collectTaxonomyEntries(rows)
}

func scanTaxonomyEntry(row pgx.Row) (domain.TaxonomyEntry, error) {
	var (
		entry         domain.TaxonomyEntry
		columnSpecRaw []byte
		propertiesRaw []byte
	)
	err := row.Scan(
		&entry.NodeType, &entry.Description, &entry.NameTemplate, &columnSpecRaw, &propertiesRaw,
		&entry.Version, &entry.ValidFromVersion, &entry.ValidToVersion, &entry.ModifiedBy,
		&entry.ValidFrom, &entry.ValidTo,
	)
	if err != nil {
		return domain.TaxonomyEntry{}, err
	}
	entry.ColumnSpec, err = domain.PropertiesFromJSON(columnSpecRaw)
	if err != nil {
		return domain.TaxonomyEntry{}, fmt.Errorf("failed to decode column spec for %s: %w", entry.NodeType, err)
	}
	entry.GenericProperties, err = domain.PropertiesFromJSON(propertiesRaw)
	if err != nil {
		return domain.TaxonomyEntry{}, fmt.Errorf("failed to decode properties for %s: %w", entry.NodeType, err)
	}
	return entry, nil
}

func collectTaxonomyEntries(rows pgx.Rows) ([]domain.TaxonomyEntry, error) {
	entries := []domain.TaxonomyEntry{}
	for rows.Next() {
		entry, err := scanTaxonomyEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
