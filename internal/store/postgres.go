package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MTES-MCT/envergo/internal/models"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresStore implements DatasetStore on PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to the database described by connStr.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Initialize creates the table if needed.
func (s *PostgresStore) Initialize(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS hedge_data (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			hedges JSONB NOT NULL
		)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Upsert stores hedges under id. xmax is 0 only for freshly inserted rows.
func (s *PostgresStore) Upsert(ctx context.Context, id string, hedges []models.HedgeRecord) (bool, error) {
	data, err := json.Marshal(nonNil(hedges))
	if err != nil {
		return false, fmt.Errorf("marshal hedges: %w", err)
	}

	const query = `
		INSERT INTO hedge_data (id, created_at, hedges)
		VALUES ($1, NOW(), $2)
		ON CONFLICT (id) DO UPDATE SET hedges = EXCLUDED.hedges
		RETURNING (xmax = 0) AS created`

	var created bool
	if err := s.db.GetContext(ctx, &created, query, id, data); err != nil {
		return false, fmt.Errorf("store hedge data %s: %w", id, err)
	}
	return created, nil
}

type hedgeDataRow struct {
	ID        string    `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	Hedges    []byte    `db:"hedges"`
}

// Get returns the dataset saved under id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*models.HedgeData, error) {
	const query = `SELECT id, created_at, hedges FROM hedge_data WHERE id = $1`

	var row hedgeDataRow
	err := s.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get hedge data %s: %w", id, err)
	}

	d := &models.HedgeData{ID: row.ID, CreatedAt: row.CreatedAt.UTC()}
	if err := json.Unmarshal(row.Hedges, &d.Hedges); err != nil {
		return nil, fmt.Errorf("decode hedge data %s: %w", id, err)
	}
	return d, nil
}

// Count returns the number of saved datasets.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM hedge_data"); err != nil {
		return 0, fmt.Errorf("count hedge data: %w", err)
	}
	return n, nil
}

// Ping checks the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
