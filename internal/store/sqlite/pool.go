// Package sqlite implements store.Store against SQLite, for single-node
// deployments that don't want a Postgres dependency. Adapted from the
// teacher's internal/memory/sqlite.go (modernc.org/sqlite, WAL mode via a
// DSN pragma, a single shared *sql.DB) — generalized from the teacher's
// chunk-store schema to job_definitions/task_definitions/job_runs, and
// from its Mutex-guarded single connection to one connection pool plus
// an explicit BEGIN IMMEDIATE transaction for the atomic claim.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// OpenDB opens a SQLite database at path with WAL journaling and a busy
// timeout so concurrent Worker Manager goroutines don't fail immediately
// on SQLITE_BUSY while another holds the write lock.
func OpenDB(path string) (*sql.DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite allows only one writer at a time regardless of pool size; a
	// single connection avoids SQLITE_BUSY storms under concurrent workers
	// and lets our BEGIN IMMEDIATE transactions serialize naturally.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	slog.Info("sqlite connected", "path", path)
	return db, nil
}
