package cmd

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nextlevelbuilder/eltorchestrator/internal/config"
	"github.com/nextlevelbuilder/eltorchestrator/internal/store"
	"github.com/nextlevelbuilder/eltorchestrator/internal/store/migrations"
	"github.com/nextlevelbuilder/eltorchestrator/internal/store/pg"
	"github.com/nextlevelbuilder/eltorchestrator/internal/store/sqlite"
)

// openStore opens the driver DriverFromDSN selects for cfg's DSN and
// returns a ready-to-use Store. Callers must Close it.
func openStore(cfg *config.Config) (store.Store, error) {
	driver, rest, err := store.DriverFromDSN(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	switch driver {
	case store.DriverPostgres:
		db, err := pg.OpenDB(rest, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			return nil, err
		}
		return pg.New(db), nil
	case store.DriverSQLite:
		db, err := sqlite.OpenDB(rest)
		if err != nil {
			return nil, err
		}
		return sqlite.New(db), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// openRawDB is like openStore but returns the *sql.DB handle directly, for
// commands (migrate) that operate below the Store abstraction.
func openRawDB(cfg *config.Config) (driver string, db *sql.DB, err error) {
	driver, rest, err := store.DriverFromDSN(cfg.Database.DSN)
	if err != nil {
		return "", nil, err
	}

	switch driver {
	case store.DriverPostgres:
		sdb, err := pg.OpenDB(rest, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			return "", nil, err
		}
		return driver, dbFromSqlx(sdb), nil
	case store.DriverSQLite:
		sdb, err := sqlite.OpenDB(rest)
		if err != nil {
			return "", nil, err
		}
		return driver, sdb, nil
	default:
		return "", nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

func dbFromSqlx(db *sqlx.DB) *sql.DB { return db.DB }

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("loading config: %s", err)
	}
	return cfg
}

func newMigrator(driver string, db *sql.DB) *migrations.Migrator {
	mig, err := migrations.New(driver, db)
	if err != nil {
		fatalf("preparing migrations: %s", err)
	}
	return mig
}
