// Package store persists saved hedge datasets for the save service.
// Three backends share one contract: SQLite (default), bbolt and Postgres.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/MTES-MCT/envergo/internal/models"
)

// Sentinel errors for expected conditions.
var ErrNotFound = errors.New("not found")

// Backend names accepted by Open.
const (
	BackendSQLite   = "sqlite"
	BackendBbolt    = "bbolt"
	BackendPostgres = "postgres"
)

// DatasetStore defines the contract for dataset persistence.
type DatasetStore interface {
	// Upsert stores hedges under id, creating the dataset if needed.
	// created is true when the dataset did not exist. An update keeps the
	// creation time.
	Upsert(ctx context.Context, id string, hedges []models.HedgeRecord) (created bool, err error)
	// Get returns the dataset saved under id, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.HedgeData, error)
	// Count returns the number of saved datasets.
	Count(ctx context.Context) (int, error)
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases resources.
	Close() error
}

// Open opens and initializes the backend. dsn is a file path for sqlite
// and bbolt, a connection string for postgres.
func Open(ctx context.Context, backend, dsn string) (DatasetStore, error) {
	switch backend {
	case BackendSQLite, "":
		st, err := NewSQLiteStore(dsn)
		if err != nil {
			return nil, err
		}
		if err := st.Initialize(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case BackendBbolt:
		return NewBboltStore(dsn)
	case BackendPostgres:
		st, err := NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := st.Initialize(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q (expected sqlite, bbolt or postgres)", backend)
}

// nonNil keeps an empty dataset encoded as [] rather than null.
func nonNil(hedges []models.HedgeRecord) []models.HedgeRecord {
	if hedges == nil {
		return []models.HedgeRecord{}
	}
	return hedges
}
