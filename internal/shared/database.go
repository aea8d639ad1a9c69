package shared

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// busyTimeoutMS lets concurrent ingest jobs wait for the write lock instead of failing with SQLITE_BUSY.
const busyTimeoutMS = 5000

// MemoryDatabase is the path that opens a private in-memory job store.
const MemoryDatabase = ":memory:"

// NewDatabase opens the SQLite job store at path, creating its parent directory.
//
// File databases use WAL journaling and a busy timeout so the server's request
// handlers can read while ingest jobs write.
func NewDatabase(path string) (*sql.DB, error) {
	dsn := path
	if path != MemoryDatabase {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("%s?_busy_timeout=%d&_journal_mode=WAL", path, busyTimeoutMS)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool limits.
//
// An in-memory database is per connection, so callers using [MemoryDatabase] must pass 1.
// Non-positive limits fall back to a single connection and idle counts never exceed open ones.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	if maxOpenConns < 1 {
		maxOpenConns = 1
	}
	if maxIdleConns < 0 || maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
}
