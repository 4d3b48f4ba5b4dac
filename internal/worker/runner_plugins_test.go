package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	apiextract "github.com/nextlevelbuilder/eltorchestrator/internal/plugin/extract/api"
	duckdbload "github.com/nextlevelbuilder/eltorchestrator/internal/plugin/load/duckdb"

	"github.com/nextlevelbuilder/eltorchestrator/internal/model"
	"github.com/nextlevelbuilder/eltorchestrator/internal/plugin"
	"github.com/nextlevelbuilder/eltorchestrator/internal/store"
)

// TestTaskRunner_Run_RealPluginsRetryThenSucceed exercises the retry
// policy against the real "api" extractor and real "duckdb" loader
// (spec.md §8's retryable-failure-then-success scenario), instead of the package's countingExtractor/recordingLoader
// fakes: a test HTTP server returns 503 twice, then 200, and the run must
// still land its rows in a real DuckDB table on the third attempt.
func TestTaskRunner_Run_RealPluginsRetryThenSucceed(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"name":"alice"},{"id":2,"name":"bob"}]`))
	}))
	defer srv.Close()

	s := newTestStore(t)
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "w.db")
	extractCfg, _ := json.Marshal(apiextract.Config{Type: "api", URL: srv.URL})
	loadCfg, _ := json.Marshal(duckdbload.Config{Type: "duckdb", DBPath: dbPath, TableName: "events"})

	job, _, err := s.CreateJob(ctx, store.NewJob{
		JobName:  "flaky-api-to-duckdb",
		Schedule: model.ManualSchedule,
		IsActive: true,
		Tasks: []store.NewTask{
			{TaskOrder: 0, ExtractorConfig: extractCfg, LoaderConfig: loadCfg},
		},
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	run, err := s.CreateRun(ctx, job.JobID, model.TriggeredByManual)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}

	reg := plugin.NewRegistry()
	reg.RegisterExtractor("api", apiextract.New)
	reg.RegisterLoader("duckdb", duckdbload.New)

	tr := NewTaskRunner(s, reg, fastRetryConfig())
	if err := tr.Run(ctx, run); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("server received %d requests, want 3 (2 failures + 1 success)", got)
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		t.Fatalf("reopen duckdb: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT count(*) FROM events`).Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 2 {
		t.Fatalf("row count = %d, want 2", count)
	}
}
