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

// ErrClosed is returned by every operation on a closed Database.
var ErrClosed = errors.New("database is closed")

// Database is an open trial database file.
//
//	database, err := db.Open("results/trials.db")
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
type Database struct {
	path   string
	schema SchemaVersion

	mu   sync.RWMutex
	pool *sql.DB
}

type openConfig struct {
	conn    ConnectionConfig
	migrate bool
}

// OpenOption adjusts Open.
type OpenOption func(*openConfig)

// WithoutMigrations opens the file as it is.
func WithoutMigrations() OpenOption {
	return func(c *openConfig) { c.migrate = false }
}

// WithBusyTimeout overrides how long statements wait on a locked file.
func WithBusyTimeout(ms int) OpenOption {
	return func(c *openConfig) { c.conn.BusyTimeoutMS = ms }
}

// Open creates the parent directory, brings the schema up to date and opens
// the connection pool.
func Open(path string, opts ...OpenOption) (*Database, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	cfg := openConfig{conn: DefaultConnectionConfig(path), migrate: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	if cfg.migrate {
		if err := MigrateSchema(path, LatestSchema); err != nil {
			return nil, err
		}
	}
	schema, err := CurrentSchema(path)
	if err != nil {
		return nil, err
	}
	if schema.Dirty {
		return nil, fmt.Errorf("database %s has a dirty schema at version %d", path, schema.Version)
	}

	pool, err := NewSQLiteConnection(cfg.conn)
	if err != nil {
		return nil, err
	}
	return &Database{path: path, schema: schema, pool: pool}, nil
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.path
}

// Schema returns the migration state found at Open.
func (d *Database) Schema() SchemaVersion {
	return d.schema
}

// DB returns the connection pool, or nil once closed. Close the Database,
// not the pool.
func (d *Database) DB() *sql.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pool
}

// Ping checks that the file is still reachable.
func (d *Database) Ping(ctx context.Context) error {
	conn, err := d.conn()
	if err != nil {
		return err
	}
	return conn.PingContext(ctx)
}

// Close releases the pool. Closing twice is a no-op.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pool == nil {
		return nil
	}
	err := d.pool.Close()
	d.pool = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func (d *Database) conn() (*sql.DB, error) {
	if d == nil {
		return nil, ErrClosed
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.pool == nil {
		return nil, ErrClosed
	}
	return d.pool, nil
}
