package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/nextlevelbuilder/eltorchestrator/internal/plugin"
	csvextract "github.com/nextlevelbuilder/eltorchestrator/internal/plugin/extract/csv"
)

func TestLoader_Load_RejectsMissingFields(t *testing.T) {
	l := New()
	cfg, _ := json.Marshal(Config{Type: "duckdb"})
	if err := l.Load(context.Background(), cfg, plugin.Dataset{}); err == nil {
		t.Fatal("want error for missing db_path/table_name")
	}
}

func TestLoader_Load_RejectsInvalidTableName(t *testing.T) {
	l := New()
	cfg, _ := json.Marshal(Config{Type: "duckdb", DBPath: ":memory:", TableName: "bad; drop table x"})
	if err := l.Load(context.Background(), cfg, plugin.Dataset{}); err == nil {
		t.Fatal("want error for invalid table name")
	}
}

// TestLoader_Load_CSVToDuckDBEndToEnd runs the real csv extractor into the
// real duckdb loader, matching spec.md §8 scenario 1 (the "manual happy
// path"): extract a CSV file, load it into a DuckDB table, then query the
// table back to confirm the rows landed.
func TestLoader_Load_CSVToDuckDBEndToEnd(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "a.csv")
	if err := os.WriteFile(csvPath, []byte("id,name\n1,alice\n2,bob\n"), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	extractor := csvextract.New()
	extractCfg, _ := json.Marshal(csvextract.Config{Type: "csv", Path: csvPath})
	ds, err := extractor.Extract(context.Background(), extractCfg)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	dbPath := filepath.Join(dir, "w.db")
	loadCfg, _ := json.Marshal(Config{Type: "duckdb", DBPath: dbPath, TableName: "t"})
	if err := New().Load(context.Background(), loadCfg, ds); err != nil {
		t.Fatalf("load: %v", err)
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		t.Fatalf("reopen duckdb: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT count(*) FROM t`).Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 2 {
		t.Fatalf("row count = %d, want 2", count)
	}

	var name string
	if err := db.QueryRow(`SELECT "name" FROM t WHERE "id" = '1'`).Scan(&name); err != nil {
		t.Fatalf("select query: %v", err)
	}
	if name != "alice" {
		t.Errorf("name = %q, want alice", name)
	}
}

func TestValidIdent(t *testing.T) {
	cases := map[string]bool{
		"events":      true,
		"events_2024": true,
		"":            false,
		"bad name":    false,
		"bad;name":    false,
	}
	for name, want := range cases {
		if got := validIdent(name); got != want {
			t.Errorf("validIdent(%q) = %v, want %v", name, got, want)
		}
	}
}
