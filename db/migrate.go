package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// LatestSchema asks MigrateSchema for every embedded migration.
const LatestSchema = -1

// SchemaVersion is the migration state of a database file. Version 0 means
// no migration has been applied.
type SchemaVersion struct {
	Version uint
	Dirty   bool
}

// MigrateSchema moves the database at path to target: LatestSchema applies
// everything, 0 rolls everything back and any other value migrates up or
// down to that version. Being at target already is not an error.
//
// Parameters:
//   - path: database file; created if missing
//   - target: LatestSchema, 0, or a migration version
//
// Example:
//
//	if err := db.MigrateSchema("results/trials.db", 1); err != nil {
//	    return err
//	}
func MigrateSchema(path string, target int) error {
	return withMigrator(path, func(m *migrate.Migrate) error {
		var err error
		switch {
		case target == LatestSchema:
			err = m.Up()
		case target == 0:
			err = m.Down()
		case target > 0:
			err = m.Migrate(uint(target))
		default:
			return fmt.Errorf("invalid schema target %d", target)
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to migrate %s to %d: %w", path, target, err)
		}
		return nil
	})
}

// CurrentSchema reads the migration state of the database at path.
func CurrentSchema(path string) (SchemaVersion, error) {
	var sv SchemaVersion
	err := withMigrator(path, func(m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		sv = SchemaVersion{Version: version, Dirty: dirty}
		return nil
	})
	return sv, err
}

// withMigrator runs fn against a migrator on its own connection to path.
// golang-migrate closes the connection it is given, so the Database's pool
// is never handed to it.
func withMigrator(path string, fn func(*migrate.Migrate) error) error {
	conn, err := NewSQLiteConnectionWithDefaults(path)
	if err != nil {
		return err
	}
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		driver.Close()
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()
	return fn(m)
}
