// Package pg implements store.Store against PostgreSQL. Adapted from the
// teacher's internal/store/pg/pool.go (OpenDB via the pgx/v5 stdlib driver)
// and internal/store/pg/agents.go (raw database/sql, explicit column lists,
// no ORM) — generalized from the teacher's agent/session tables to
// job_definitions/task_definitions/job_runs.
package pg

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// OpenDB opens a database/sql connection to Postgres using the pgx stdlib
// driver, tuned the same way as the teacher's pg.OpenDB.
func OpenDB(dsn string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if maxOpen <= 0 {
		maxOpen = 25
	}
	if maxIdle <= 0 {
		maxIdle = 10
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	slog.Info("postgres connected", "max_open_conns", maxOpen, "max_idle_conns", maxIdle)
	return sqlx.NewDb(sqlDB, "pgx"), nil
}
