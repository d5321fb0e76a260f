package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"graph-ontology-api/internal/db"
	"graph-ontology-api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// tenantRepository implements TenantRepository.
type tenantRepository struct {
	conn *db.Connection
}

// NewTenantRepository creates a new tenant repository.
func NewTenantRepository(conn *db.Connection) TenantRepository {
	return &tenantRepository{conn: conn}
}

// Create registers a tenant. Idempotent: registering an existing name
// returns the existing tenant unchanged.
func (r *tenantRepository) Create(ctx context.Context, name string) (domain.Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Tenant{}, fmt.Errorf("%w: tenant name is required", domain.ErrValidation)
	}

	var tenant domain.Tenant
	err := r.conn.Pool.QueryRow(ctx,
		`INSERT INTO tenants (name)
		 VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name, created_at, updated_at`,
		name,
	).Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("failed to create tenant: %w", err)
	}
	return tenant, nil
}

// GetByID retrieves a tenant by id.
func (r *tenantRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Tenant, error) {
	var tenant domain.Tenant
	err := r.conn.Pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM tenants WHERE id = $1`,
		id,
	).Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt, &tenant.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Tenant{}, fmt.Errorf("tenant %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("failed to get tenant: %w", err)
	}
	return tenant, nil
}

// List retrieves every tenant, ordered by name.
func (r *tenantRepository) List(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT id, name, created_at, updated_at FROM tenants ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	tenants := []domain.Tenant{}
	for rows.Next() {
		var tenant domain.Tenant
		if err := rows.Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}
