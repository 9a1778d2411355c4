package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver
)

const createCacheTable = `
	CREATE TABLE IF NOT EXISTS hotspot_cache (
		cache_key   TEXT PRIMARY KEY,
		cache_value BLOB NOT NULL,
		expires_at  INTEGER NOT NULL
	);
`

// SQLiteStore keeps cached pages in a local SQLite file so they survive restarts
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the cache database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite cache requires a path")
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite cache at %q: %w. Ensure the directory is writable", path, err)
	}
	// Avoid "database is locked" under concurrent writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open SQLite cache at %q: %w", path, err)
	}
	if _, err := db.Exec(createCacheTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	var row struct {
		Value     []byte `db:"cache_value"`
		ExpiresAt int64  `db:"expires_at"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT cache_value, expires_at FROM hotspot_cache WHERE cache_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	if s.now().UnixNano() >= row.ExpiresAt {
		_, _ = s.db.ExecContext(ctx,
			`DELETE FROM hotspot_cache WHERE cache_key = ? AND expires_at = ?`, key, row.ExpiresAt)
		return false, nil
	}

	if err := json.Unmarshal(row.Value, dest); err != nil {
		return false, fmt.Errorf("failed to decode cached value %s: %w", key, err)
	}
	return true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s: %w", key, err)
	}

	expires := s.now().Add(effectiveTTL(ttl)).UnixNano()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO hotspot_cache (cache_key, cache_value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET cache_value = excluded.cache_value, expires_at = excluded.expires_at`,
		key, data, expires)
	if err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM hotspot_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("failed to remove cache entry %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM hotspot_cache`); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
