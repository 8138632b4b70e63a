package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MTES-MCT/envergo/internal/models"
	_ "modernc.org/sqlite"
)

const currentSchemaVersion = 1

// SQLiteStore implements DatasetStore on an SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new store connection
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; the upsert transaction reads before it writes.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Initialize creates the database schema
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	schema := `
	-- Saved hedge inputs
	CREATE TABLE IF NOT EXISTS hedge_data (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		hedges JSON NOT NULL
	);

	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	// Mark as current schema version
	_, err := s.db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", currentSchemaVersion)
	if err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	return nil
}

// Upsert stores hedges under id.
func (s *SQLiteStore) Upsert(ctx context.Context, id string, hedges []models.HedgeRecord) (bool, error) {
	data, err := json.Marshal(nonNil(hedges))
	if err != nil {
		return false, fmt.Errorf("marshal hedges: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, "SELECT id FROM hedge_data WHERE id = ?", id).Scan(&existing)
	created := errors.Is(err, sql.ErrNoRows)
	if err != nil && !created {
		return false, fmt.Errorf("lookup hedge data %s: %w", id, err)
	}

	if created {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO hedge_data (id, created_at, hedges) VALUES (?, ?, ?)",
			id, time.Now().UTC().Format(time.RFC3339Nano), string(data),
		)
	} else {
		_, err = tx.ExecContext(ctx, "UPDATE hedge_data SET hedges = ? WHERE id = ?", string(data), id)
	}
	if err != nil {
		return false, fmt.Errorf("store hedge data %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

// Get returns the dataset saved under id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.HedgeData, error) {
	var createdAt, hedges string
	err := s.db.QueryRowContext(ctx,
		"SELECT created_at, hedges FROM hedge_data WHERE id = ?", id,
	).Scan(&createdAt, &hedges)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get hedge data %s: %w", id, err)
	}

	d := &models.HedgeData{ID: id, CreatedAt: parseTimestamp(createdAt)}
	if err := json.Unmarshal([]byte(hedges), &d.Hedges); err != nil {
		return nil, fmt.Errorf("decode hedge data %s: %w", id, err)
	}
	return d, nil
}

// Count returns the number of saved datasets.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM hedge_data").Scan(&n); err != nil {
		return 0, fmt.Errorf("count hedge data: %w", err)
	}
	return n, nil
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// parseTimestamp parses a timestamp string from SQLite in various formats
func parseTimestamp(s string) time.Time {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
