package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrClosed is returned by operations on a closed Database.
var ErrClosed = errors.New("db: database is closed")

// Database is the history store organism. It composes:
//   - connection.go: WAL SQLite connection
//   - migrate.go: embedded schema migrations
//
// Repositories borrow the connection through DB(); Close releases it.
type Database struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// DatabaseConfig holds configuration for Open.
type DatabaseConfig struct {
	// Path is the database file path
	Path string
	// SkipMigrations leaves the schema untouched
	SkipMigrations bool
	// ConnectionConfig overrides the default connection settings
	ConnectionConfig *ConnectionConfig
}

// DefaultDatabaseConfig returns the default configuration for path.
func DefaultDatabaseConfig(path string) DatabaseConfig {
	return DatabaseConfig{Path: path}
}

// Open creates the parent directory when needed, brings the schema up to
// date, and opens the connection repositories use.
func Open(path string) (*Database, error) {
	return OpenWithConfig(DefaultDatabaseConfig(path))
}

// OpenWithConfig is Open with explicit configuration.
func OpenWithConfig(config DatabaseConfig) (*Database, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("db: database path is required")
	}

	if dir := filepath.Dir(config.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("db: failed to create directory %s: %w", dir, err)
		}
	}

	// golang-migrate closes the connection it is handed, so migrations run
	// on their own connection before the long-lived one is opened.
	if !config.SkipMigrations {
		if err := MigrateUpFromPath(config.Path); err != nil {
			return nil, err
		}
	}

	connConfig := DefaultConnectionConfig(config.Path)
	if config.ConnectionConfig != nil {
		connConfig = *config.ConnectionConfig
		connConfig.Path = config.Path
	}
	conn, err := NewSQLiteConnection(connConfig)
	if err != nil {
		return nil, err
	}

	return &Database{db: conn, path: config.Path}, nil
}

// DB returns the underlying connection, or nil once closed.
func (d *Database) DB() *sql.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.path
}

// Ping verifies the connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return ErrClosed
	}
	return d.db.PingContext(ctx)
}

// Close closes the connection. Calling Close twice is safe.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	if err != nil {
		return fmt.Errorf("db: failed to close database: %w", err)
	}
	return nil
}

// conn returns the open connection or ErrClosed.
func (d *Database) conn() (*sql.DB, error) {
	if d == nil {
		return nil, ErrClosed
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return nil, ErrClosed
	}
	return d.db, nil
}
