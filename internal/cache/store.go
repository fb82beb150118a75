// Package cache keeps compiled modules so unchanged sources skip the
// front end and the compiler.
//
// Two tiers: a bounded in-process LRU in front of an optional persistent
// Store. Entries are keyed by bytecode version and a hash of the source,
// so a compiler upgrade never serves stale bytecode.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Store.Get when the key is absent.
var ErrNotFound = errors.New("cache: entry not found")

// Store persists encoded modules.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Close() error
}

// SQLiteStore is a Store backed by a single SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenSQLite opens (creating if needed) the cache database at path.
// ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	// One connection: ":memory:" databases are per connection
	db.SetMaxOpenConns(1)

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS modules (
		key        TEXT PRIMARY KEY,
		data       BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Get returns the stored bytes for key, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM modules WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying module: %w", err)
	}
	return data, nil
}

// Put stores data under key, replacing any previous entry.
func (s *SQLiteStore) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO modules (key, data, created_at) VALUES (?, ?, ?)",
		key, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving module: %w", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM modules WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting module: %w", err)
	}
	return nil
}

// Len counts stored entries.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM modules").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting modules: %w", err)
	}
	return n, nil
}

// Prune drops every entry whose key does not start with prefix, which is
// how entries from older bytecode versions are cleared out.
func (s *SQLiteStore) Prune(ctx context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM modules WHERE substr(key, 1, ?) != ?", len(prefix), prefix)
	if err != nil {
		return 0, fmt.Errorf("pruning modules: %w", err)
	}
	return res.RowsAffected()
}

// Clear drops every entry.
func (s *SQLiteStore) Clear(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM modules")
	if err != nil {
		return 0, fmt.Errorf("clearing modules: %w", err)
	}
	return res.RowsAffected()
}

// Path is the database file the store was opened on.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
