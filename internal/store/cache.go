package store

import (
	"time"

	"github.com/jmoiron/sqlx"
)

// BlobCache exposes the cache_entries table as a flat key/value byte
// cache. Callers namespace their keys; the cache itself is shared.
type BlobCache struct {
	db *sqlx.DB
}

// Cache returns the store's blob cache.
func (s *SQLiteStore) Cache() *BlobCache {
	return &BlobCache{db: s.db}
}

// Get returns the cached value for key, reporting whether one exists.
// Read failures are treated as a miss.
func (c *BlobCache) Get(key string) ([]byte, bool) {
	var value []byte
	err := c.db.QueryRow("SELECT value FROM cache_entries WHERE key = ?", key).Scan(&value)
	if err != nil {
		return nil, false
	}
	return value, true
}

// Set inserts or replaces the value stored under key.
func (c *BlobCache) Set(key string, value []byte) error {
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO cache_entries (key, value, updated_at) VALUES (?, ?, ?)",
		key, value, time.Now().UTC(),
	)
	return err
}

// Delete removes the entry stored under key, if any.
func (c *BlobCache) Delete(key string) error {
	_, err := c.db.Exec("DELETE FROM cache_entries WHERE key = ?", key)
	return err
}
