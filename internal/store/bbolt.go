package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MTES-MCT/envergo/internal/models"
	bolt "go.etcd.io/bbolt"
)

var bucketHedgeData = []byte("hedge_data")

// BboltStore implements DatasetStore using bbolt. Datasets are stored as
// JSON documents keyed by id.
type BboltStore struct {
	db *bolt.DB
}

// NewBboltStore opens or creates a bbolt database at the given path.
func NewBboltStore(dbPath string) (*BboltStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketHedgeData); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketHedgeData, err)
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &BboltStore{db: db}, nil
}

// Close releases the bbolt database.
func (s *BboltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert stores hedges under id.
func (s *BboltStore) Upsert(_ context.Context, id string, hedges []models.HedgeRecord) (bool, error) {
	var created bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHedgeData)

		d := models.HedgeData{ID: id, CreatedAt: time.Now().UTC()}
		if existing := b.Get([]byte(id)); existing != nil {
			var prev models.HedgeData
			if err := json.Unmarshal(existing, &prev); err != nil {
				return fmt.Errorf("decode hedge data %s: %w", id, err)
			}
			d.CreatedAt = prev.CreatedAt
		} else {
			created = true
		}
		d.Hedges = nonNil(hedges)

		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal hedge data: %w", err)
		}
		return b.Put([]byte(id), data)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// Get retrieves a dataset by id. Returns ErrNotFound if missing.
func (s *BboltStore) Get(_ context.Context, id string) (*models.HedgeData, error) {
	var d *models.HedgeData
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketHedgeData).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		d = &models.HedgeData{}
		return json.Unmarshal(data, d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Count returns the number of saved datasets.
func (s *BboltStore) Count(_ context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketHedgeData).Stats().KeyN
		return nil
	})
	return n, err
}

// Ping checks the database is open.
func (s *BboltStore) Ping(_ context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketHedgeData) == nil {
			return fmt.Errorf("bucket %s missing", bucketHedgeData)
		}
		return nil
	})
}
