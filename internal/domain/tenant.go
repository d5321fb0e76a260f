package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is a registered graph tenant. Every node and edge is scoped to
// exactly one tenant; no operation ever crosses tenants.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
