package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"graph-ontology-api/internal/db"
	"graph-ontology-api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// liveVersion is the current row of one identity key, as seen by the
// version store.
type liveVersion struct {
	EntityID   uuid.UUID
	Version    int64
	Properties map[string]any
}

// versionOps adapts one entity kind to the temporal upsert discipline. All
// three calls happen inside a single transaction; SelectLive must lock the
// live row (FOR UPDATE) so concurrent writers on the same identity key
// serialize.
type versionOps interface {
	SelectLive(ctx context.Context, tx pgx.Tx) (*liveVersion, error)
	Deprecate(ctx context.Context, tx pgx.Tx, live *liveVersion, now time.Time) error
	Insert(ctx context.Context, tx pgx.Tx, entityID uuid.UUID, version int64, properties map[string]any, now time.Time) error
}

type upsertMode int

const (
	// upsertMerge creates version 0 or merges onto the live version.
	upsertMerge upsertMode = iota
	// upsertStrictCreate fails with ErrAlreadyExists when a live version exists.
	upsertStrictCreate
	// upsertRequireExisting fails with ErrNotFound when no live version exists.
	upsertRequireExisting
)

// versionStore implements the shared create-new-version / deprecate-old /
// merge-properties operation used by every entity kind. Atomicity comes
// from the transaction plus the partial unique index on the identity key
// over live rows: a writer that loses the race hits a unique violation and
// is retried a bounded number of times before ErrConflict surfaces.
type versionStore struct {
	conn       *db.Connection
	maxRetries int
	now        func() time.Time
}

func newVersionStore(conn *db.Connection) *versionStore {
	return &versionStore{
		conn:       conn,
		maxRetries: 3,
		now:        time.Now,
	}
}

// Upsert runs one temporal upsert and returns the stable entity id and the
// newly assigned version number.
func (s *versionStore) Upsert(ctx context.Context, ops versionOps, incoming map[string]any, mode upsertMode) (uuid.UUID, int64, error) {
	var (
		entityID uuid.UUID
		version  int64
		lastErr  error
	)

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err := s.conn.WithTx(ctx, func(tx pgx.Tx) error {
			now := s.now()
			live, err := ops.SelectLive(ctx, tx)
			if err != nil {
				return err
			}

			switch mode {
			case upsertStrictCreate:
				if live != nil {
					return domain.ErrAlreadyExists
				}
			case upsertRequireExisting:
				if live == nil {
					return domain.ErrNotFound
				}
			}

			if live == nil {
				entityID = uuid.New()
				version = 0
				return ops.Insert(ctx, tx, entityID, version, domain.CopyProperties(incoming), now)
			}

			if err := ops.Deprecate(ctx, tx, live, now); err != nil {
				return err
			}
			entityID = live.EntityID
			version = live.Version + 1
			return ops.Insert(ctx, tx, entityID, version, domain.MergeProperties(live.Properties, incoming), now)
		})
		if err == nil {
			return entityID, version, nil
		}
		if !isUniqueViolation(err) {
			return uuid.Nil, 0, err
		}
		lastErr = err
	}

	return uuid.Nil, 0, fmt.Errorf("%w: %v", domain.ErrConflict, lastErr)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
