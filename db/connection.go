// Package db persists experiment runs and trials in SQLite.
package db

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

// ConnectionConfig describes one SQLite database file.
type ConnectionConfig struct {
	Path string
	// BusyTimeoutMS is how long a statement waits on a locked database.
	BusyTimeoutMS int
	// MaxOpenConns stays at 1 so the async writer and the runner never
	// contend for the write lock.
	MaxOpenConns int
}

// DefaultConnectionConfig returns a single-connection WAL configuration.
func DefaultConnectionConfig(path string) ConnectionConfig {
	return ConnectionConfig{
		Path:          path,
		BusyTimeoutMS: 5000,
		MaxOpenConns:  1,
	}
}

// DSN returns the modernc data source name. Pragmas travel in the DSN so every
// pooled connection gets them, not just the first.
func (c ConnectionConfig) DSN() string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeoutMS))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return c.Path + "?" + q.Encode()
}

// NewSQLiteConnection opens the database and checks that WAL journaling and
// foreign keys took effect.
//
// Example:
//
//	conn, err := NewSQLiteConnection(DefaultConnectionConfig("results/trials.db"))
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
func NewSQLiteConnection(config ConnectionConfig) (*sql.DB, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	conn, err := sql.Open("sqlite", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if config.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(config.MaxOpenConns)
		conn.SetMaxIdleConns(config.MaxOpenConns)
	}

	if err := checkPragmas(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func checkPragmas(conn *sql.DB) error {
	var journal string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&journal); err != nil {
		return fmt.Errorf("failed to read journal mode: %w", err)
	}
	if journal != "wal" {
		return fmt.Errorf("WAL mode not enabled, got: %s", journal)
	}
	var fk int
	if err := conn.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		return fmt.Errorf("failed to read foreign_keys: %w", err)
	}
	if fk != 1 {
		return fmt.Errorf("foreign keys not enabled")
	}
	return nil
}

// NewSQLiteConnectionWithDefaults opens path with DefaultConnectionConfig.
func NewSQLiteConnectionWithDefaults(path string) (*sql.DB, error) {
	return NewSQLiteConnection(DefaultConnectionConfig(path))
}
