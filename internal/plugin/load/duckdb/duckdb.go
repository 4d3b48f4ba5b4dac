// Package duckdb implements the "duckdb" loader (spec.md §6):
// create-and-append semantics against a local DuckDB file, via a batched
// Appender for throughput. Grounded on github.com/marcboeker/go-duckdb,
// named in the reference corpus's manifests alongside the parquet
// extractor for exactly this local-analytics use case (DESIGN.md).
package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/marcboeker/go-duckdb"

	"github.com/nextlevelbuilder/eltorchestrator/internal/apperr"
	"github.com/nextlevelbuilder/eltorchestrator/internal/plugin"
)

// Config is the wire shape of the "duckdb" loader config
// (`{"type":"duckdb","db_path":<str>,"table_name":<str>}`, spec.md §6).
type Config struct {
	Type      string `json:"type"`
	DBPath    string `json:"db_path"`
	TableName string `json:"table_name"`
}

// Loader appends a Dataset's rows into a DuckDB table, creating the
// table from the dataset's own columns if it doesn't already exist.
type Loader struct{}

func New() plugin.Loader { return &Loader{} }

func (l *Loader) Load(ctx context.Context, raw json.RawMessage, ds plugin.Dataset) error {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return &apperr.LoadError{Plugin: "duckdb", Err: fmt.Errorf("decode config: %w", err), Transient: false}
	}
	if cfg.DBPath == "" || cfg.TableName == "" {
		return &apperr.LoadError{Plugin: "duckdb", Err: fmt.Errorf("db_path and table_name are required"), Transient: false}
	}
	if !validIdent(cfg.TableName) {
		return &apperr.LoadError{Plugin: "duckdb", Err: fmt.Errorf("invalid table_name %q", cfg.TableName), Transient: false}
	}

	db, err := sql.Open("duckdb", cfg.DBPath)
	if err != nil {
		return &apperr.LoadError{Plugin: "duckdb", Err: fmt.Errorf("open duckdb: %w", err), Transient: true}
	}
	defer db.Close()

	if err := ensureTable(ctx, db, cfg.TableName, ds); err != nil {
		return &apperr.LoadError{Plugin: "duckdb", Err: err, Transient: false}
	}

	if err := appendRows(ctx, db, cfg.TableName, ds); err != nil {
		return &apperr.LoadError{Plugin: "duckdb", Err: err, Transient: true}
	}
	return nil
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

func ensureTable(ctx context.Context, db *sql.DB, table string, ds plugin.Dataset) error {
	quoted := make([]string, len(ds.Columns))
	for i, c := range ds.Columns {
		quoted[i] = `"` + strings.ReplaceAll(c, `"`, `""`) + `" ` + columnType(ds, i)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (%s)`, table, strings.Join(quoted, ", "))
	_, err := db.ExecContext(ctx, ddl)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// columnType infers a DuckDB column type from the first non-nil value seen
// in column i, matching the Go types the extractors actually hand to
// appendRows: float64 for JSON numbers (the api extractor), int64/int32 for
// parquet integer columns, bool for parquet/JSON booleans, and string for
// everything else (including the csv extractor, which never produces
// anything but strings). go-duckdb's Appender rejects a value whose Go type
// doesn't match the column's declared type, so a table created VARCHAR-only
// would fail at append time for any non-string extractor; this keeps the
// schema in sync with what appendRows below actually passes in.
func columnType(ds plugin.Dataset, col int) string {
	for _, row := range ds.Rows {
		if col >= len(row) || row[col] == nil {
			continue
		}
		switch row[col].(type) {
		case bool:
			return "BOOLEAN"
		case int, int32, int64:
			return "BIGINT"
		case float32, float64:
			return "DOUBLE"
		default:
			return "VARCHAR"
		}
	}
	return "VARCHAR"
}

// appendRows opens a DuckDB Appender against the raw driver connection —
// the fast batched-insert path go-duckdb exposes over individual INSERTs.
func appendRows(ctx context.Context, db *sql.DB, table string, ds plugin.Dataset) error {
	if ds.NumRows() == 0 {
		return nil
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appendErr error
	err = conn.Raw(func(driverConn any) error {
		connector, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection type %T", driverConn)
		}
		appender, err := duckdb.NewAppenderFromConn(connector, "", table)
		if err != nil {
			return fmt.Errorf("create appender: %w", err)
		}
		defer appender.Close()

		for _, row := range ds.Rows {
			if err := appender.AppendRow(row...); err != nil {
				appendErr = fmt.Errorf("append row: %w", err)
				return appendErr
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return err
	}
	return appendErr
}
