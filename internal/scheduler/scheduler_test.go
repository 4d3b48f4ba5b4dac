package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/eltorchestrator/internal/model"
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

func TestScheduler_Tick_EnqueuesAtMostOneRunPerJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job, _, err := s.CreateJob(ctx, store.NewJob{
		JobName:  "every-second",
		Schedule: "*/1 * * * * *",
		IsActive: true,
		Tasks: []store.NewTask{
			{TaskOrder: 0, ExtractorConfig: []byte(`{}`), LoaderConfig: []byte(`{}`)},
		},
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	sched := New(s, time.Hour)
	sched.lastTick = time.Now().UTC().Add(-10 * time.Second)
	sched.tick(ctx)

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("want exactly 1 run enqueued for a 10s-wide window with a 1s-period job, got %d", len(runs))
	}
	if runs[0].JobID != job.JobID {
		t.Errorf("job_id = %s, want %s", runs[0].JobID, job.JobID)
	}
	if runs[0].TriggeredBy != model.TriggeredByScheduled {
		t.Errorf("triggered_by = %s, want scheduled", runs[0].TriggeredBy)
	}
}

func TestScheduler_Tick_SkipsManualJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.CreateJob(ctx, store.NewJob{
		JobName:  "manual-only",
		Schedule: model.ManualSchedule,
		IsActive: true,
		Tasks: []store.NewTask{
			{TaskOrder: 0, ExtractorConfig: []byte(`{}`), LoaderConfig: []byte(`{}`)},
		},
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	sched := New(s, time.Hour)
	sched.lastTick = time.Now().UTC().Add(-time.Hour)
	sched.tick(ctx)

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("want no runs for a @manual job, got %d", len(runs))
	}
}

func TestScheduler_Tick_SkipsNotYetDueJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.CreateJob(ctx, store.NewJob{
		JobName:  "yearly",
		Schedule: "0 0 0 1 1 *",
		IsActive: true,
		Tasks: []store.NewTask{
			{TaskOrder: 0, ExtractorConfig: []byte(`{}`), LoaderConfig: []byte(`{}`)},
		},
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	sched := New(s, time.Hour)
	sched.lastTick = time.Now().UTC().Add(-time.Second)
	sched.tick(ctx)

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("want no runs for a not-yet-due yearly job, got %d", len(runs))
	}
}

func TestScheduler_Start_RecoversOrphanedRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job, _, err := s.CreateJob(ctx, store.NewJob{
		JobName:  "orphan-candidate",
		Schedule: model.ManualSchedule,
		IsActive: true,
		Tasks: []store.NewTask{
			{TaskOrder: 0, ExtractorConfig: []byte(`{}`), LoaderConfig: []byte(`{}`)},
		},
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if _, err := s.CreateRun(ctx, job.JobID, model.TriggeredByManual); err != nil {
		t.Fatalf("create run: %v", err)
	}
	claimed, err := s.ClaimNextQueuedRun(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}

	sched := New(s, time.Hour)
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Stop()

	got, err := s.GetRun(ctx, claimed.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != model.RunFailed {
		t.Errorf("status = %s, want failed (orphan-recovered)", got.Status)
	}
}
