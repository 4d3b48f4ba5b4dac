package worker

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/eltorchestrator/internal/apperr"
	"github.com/nextlevelbuilder/eltorchestrator/internal/model"
	"github.com/nextlevelbuilder/eltorchestrator/internal/plugin"
	"github.com/nextlevelbuilder/eltorchestrator/internal/retry"
	"github.com/nextlevelbuilder/eltorchestrator/internal/store"
	"github.com/nextlevelbuilder/eltorchestrator/internal/store/migrations"
	"github.com/nextlevelbuilder/eltorchestrator/internal/store/sqlite"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sqlite.OpenDB(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mig, err := migrations.New(store.DriverSQLite, db)
	if err != nil {
		t.Fatalf("new migrator: %v", err)
	}
	if err := mig.Up(); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	return sqlite.New(db)
}

type countingExtractor struct {
	ds         plugin.Dataset
	failTimes  int
	transient  bool
	extractErr error
	calls      int
}

func (c *countingExtractor) Extract(ctx context.Context, config json.RawMessage) (plugin.Dataset, error) {
	c.calls++
	if c.calls <= c.failTimes {
		return plugin.Dataset{}, &apperr.ExtractError{Plugin: "test", Err: c.extractErr, Transient: c.transient}
	}
	return c.ds, nil
}

type recordingLoader struct {
	loaded []plugin.Dataset
	err    error
}

func (r *recordingLoader) Load(ctx context.Context, config json.RawMessage, ds plugin.Dataset) error {
	if r.err != nil {
		return r.err
	}
	r.loaded = append(r.loaded, ds)
	return nil
}

func fastRetryConfig() retry.Config {
	return retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2, Jitter: 0}
}

func createSingleTaskJob(t *testing.T, s store.Store) *model.JobRun {
	t.Helper()
	ctx := context.Background()
	job, _, err := s.CreateJob(ctx, store.NewJob{
		JobName:  "test-job",
		Schedule: model.ManualSchedule,
		IsActive: true,
		Tasks: []store.NewTask{
			{TaskOrder: 0, ExtractorConfig: []byte(`{"type":"fake"}`), LoaderConfig: []byte(`{"type":"fake"}`)},
		},
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	run, err := s.CreateRun(ctx, job.JobID, model.TriggeredByManual)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	return run
}

func TestTaskRunner_Run_Success(t *testing.T) {
	s := newTestStore(t)
	run := createSingleTaskJob(t, s)

	extractor := &countingExtractor{ds: plugin.Dataset{Columns: []string{"a"}, Rows: [][]any{{1}}}}
	loader := &recordingLoader{}

	reg := plugin.NewRegistry()
	reg.RegisterExtractor("fake", func() plugin.Extractor { return extractor })
	reg.RegisterLoader("fake", func() plugin.Loader { return loader })

	tr := NewTaskRunner(s, reg, fastRetryConfig())
	if err := tr.Run(context.Background(), run); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(loader.loaded) != 1 {
		t.Fatalf("loader called %d times, want 1", len(loader.loaded))
	}
}

func TestTaskRunner_Run_RetriesTransientExtractFailure(t *testing.T) {
	s := newTestStore(t)
	run := createSingleTaskJob(t, s)

	extractor := &countingExtractor{
		ds:        plugin.Dataset{Columns: []string{"a"}, Rows: [][]any{{1}}},
		failTimes: 2,
		transient: true,
	}
	loader := &recordingLoader{}

	reg := plugin.NewRegistry()
	reg.RegisterExtractor("fake", func() plugin.Extractor { return extractor })
	reg.RegisterLoader("fake", func() plugin.Loader { return loader })

	tr := NewTaskRunner(s, reg, fastRetryConfig())
	if err := tr.Run(context.Background(), run); err != nil {
		t.Fatalf("run: %v", err)
	}
	if extractor.calls != 3 {
		t.Errorf("extractor called %d times, want 3", extractor.calls)
	}
}

func TestTaskRunner_Run_PermanentFailureStopsImmediately(t *testing.T) {
	s := newTestStore(t)
	run := createSingleTaskJob(t, s)

	extractor := &countingExtractor{failTimes: 100, transient: false}
	loader := &recordingLoader{}

	reg := plugin.NewRegistry()
	reg.RegisterExtractor("fake", func() plugin.Extractor { return extractor })
	reg.RegisterLoader("fake", func() plugin.Loader { return loader })

	tr := NewTaskRunner(s, reg, fastRetryConfig())
	if err := tr.Run(context.Background(), run); err == nil {
		t.Fatal("want error for permanent extract failure")
	}
	if extractor.calls != 1 {
		t.Errorf("extractor called %d times, want exactly 1 (non-retryable)", extractor.calls)
	}
	if len(loader.loaded) != 0 {
		t.Error("loader should never be called when extract fails")
	}
}
