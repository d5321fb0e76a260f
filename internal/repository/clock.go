package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// VersionClock hands out values from the shared monotonic catalog
// sequence. Taxonomy and ontology history are both ordered on this one
// sequence, so their combined history is deterministic even when wall-clock
// timestamps collide. The sequence lives in the database and never resets.
type VersionClock struct{}

// Next returns the next logical version. It must run inside the
// transaction that writes the catalog row it stamps.
func (VersionClock) Next(ctx context.Context, tx pgx.Tx) (int64, error) {
	var value int64
	if err := tx.QueryRow(ctx, "SELECT nextval('catalog_version_seq')").Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to advance catalog version clock: %w", err)
	}
	return value, nil
}
