// Package scheduler implements the Scheduler component (spec.md §4.3): a
// single-instance periodic control loop that enqueues runs for jobs whose
// cron schedule has fired since the last tick, and recovers orphaned runs
// on startup. Adapted from the teacher's internal/cron/service.go
// (time.NewTicker run loop, computeNextRun via gronx, checkJobs-style
// due-scan) — generalized from the teacher's in-memory/JSON-file job list
// to the State Store, and from per-job NextRunAtMS bookkeeping to the
// window-based `(T_last_tick, T_now]` due-check in internal/cronexpr.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/eltorchestrator/internal/cronexpr"
	"github.com/nextlevelbuilder/eltorchestrator/internal/model"
	"github.com/nextlevelbuilder/eltorchestrator/internal/store"
)

// DefaultTickInterval is the Scheduler's default tick period (spec.md §4.3).
const DefaultTickInterval = 5 * time.Second

// Scheduler is the single-instance tick loop. It owns no durable state:
// every decision is made by reading the Store and writing queued runs
// back to it.
type Scheduler struct {
	store        store.Store
	tickInterval time.Duration

	mu       sync.Mutex
	lastTick time.Time

	stopCh    chan struct{}
	doneCh    chan struct{}
	intervalCh chan time.Duration
}

// New builds a Scheduler with the given tick interval. A zero interval
// falls back to DefaultTickInterval.
func New(s store.Store, tickInterval time.Duration) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	return &Scheduler{
		store:        s,
		tickInterval: tickInterval,
	}
}

// Start recovers orphaned runs, initializes T_last_tick = now (spec.md
// §4.3's explicit no-backfill policy), and begins the tick loop in a
// background goroutine. Stop must be called to release it.
func (s *Scheduler) Start(ctx context.Context) error {
	n, err := s.store.RecoverOrphanedRuns(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Warn("recovered orphaned runs", "count", n)
	}

	s.mu.Lock()
	s.lastTick = time.Now().UTC()
	s.mu.Unlock()

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.intervalCh = make(chan time.Duration, 1)

	go s.run(ctx)

	slog.Info("scheduler started", "tick_interval", s.tickInterval)
	return nil
}

// SetTickInterval changes the tick period the running loop uses from its
// next wakeup onward. Safe to call concurrently with the tick loop. Before
// Start it only records the interval Start will use; after Stop it records
// the value but no loop reads it. Used by config.Watcher to hot-reload
// SchedulerConfig.TickInterval without a restart.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultTickInterval
	}
	s.mu.Lock()
	s.tickInterval = d
	ch := s.intervalCh
	s.mu.Unlock()

	if ch == nil {
		return
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- d:
	default:
	}
	slog.Info("scheduler tick interval updated", "tick_interval", d)
}

// Stop halts the tick loop and waits for the in-flight tick, if any, to
// finish.
func (s *Scheduler) Stop() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	slog.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case d := <-s.intervalCh:
			ticker.Reset(d)
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick performs one scan of active jobs, enqueuing at most one run per
// due job (spec.md §4.3's duplicate-tick guard).
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	lastTick := s.lastTick
	now := time.Now().UTC()
	s.lastTick = now
	s.mu.Unlock()

	jobs, err := s.store.ListActiveJobs(ctx)
	if err != nil {
		slog.Error("scheduler: list active jobs failed", "error", err)
		return
	}

	for _, job := range jobs {
		if cronexpr.IsManual(job.Schedule) {
			continue
		}

		if !cronexpr.DueInWindow(job.Schedule, lastTick, now) {
			continue
		}

		run, err := s.store.CreateRun(ctx, job.JobID, model.TriggeredByScheduled)
		if err != nil {
			slog.Error("scheduler: create_run failed", "job_id", job.JobID, "error", err)
			continue
		}
		slog.Info("run enqueued", "run_id", run.RunID, "job_id", job.JobID, "triggered_by", model.TriggeredByScheduled)
	}
}
