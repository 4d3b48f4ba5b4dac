// Package migrations embeds the orchestrator's SQL schema and applies it
// via golang-migrate/migrate/v4 — the teacher's own dependency (go.mod
// carries it, unused by any kept teacher file), put to the use its name
// implies. One up/down file pair (0001_init) covering all three tables, in
// one directory per driver, since
// Postgres and SQLite need slightly different column types (UUID/JSONB/
// TIMESTAMPTZ vs TEXT).
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/nextlevelbuilder/eltorchestrator/internal/store"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed sqlite/*.sql
var sqliteFS embed.FS

// Migrator applies or rolls back the embedded schema against an already
// open database handle.
type Migrator struct {
	m *migrate.Migrate
}

// New builds a Migrator for the given driver ("postgres" or "sqlite")
// against an open *sql.DB. The caller retains ownership of db; Close does
// not close it.
func New(driver string, db *sql.DB) (*Migrator, error) {
	var (
		fsys embed.FS
		dir  string
	)
	switch driver {
	case store.DriverPostgres:
		fsys, dir = postgresFS, "postgres"
	case store.DriverSQLite:
		fsys, dir = sqliteFS, "sqlite"
	default:
		return nil, fmt.Errorf("migrations: unsupported driver %q", driver)
	}

	sourceDriver, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: open embedded source: %w", err)
	}

	dbDriver, err := databaseDriver(driver, db)
	if err != nil {
		return nil, fmt.Errorf("migrations: open database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, driver, dbDriver)
	if err != nil {
		return nil, fmt.Errorf("migrations: build migrator: %w", err)
	}
	return &Migrator{m: m}, nil
}

func databaseDriver(driver string, db *sql.DB) (database.Driver, error) {
	switch driver {
	case store.DriverPostgres:
		return pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	case store.DriverSQLite:
		return sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// Up applies all pending migrations. Returns nil if there is nothing to do.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back all applied migrations.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Close releases the migrator's source and database driver handles. The
// underlying *sql.DB passed to New is not closed by this call.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}
