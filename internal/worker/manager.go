package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/eltorchestrator/internal/model"
	"github.com/nextlevelbuilder/eltorchestrator/internal/store"
)

// DefaultPoolSize is the Worker Manager's default goroutine count
// (spec.md §4.4).
const DefaultPoolSize = 4

// DefaultPollInterval is how long an idle worker sleeps between claim
// attempts when no run is queued (spec.md §4.4).
const DefaultPollInterval = time.Second

// DefaultGracePeriod bounds how long Stop waits for in-flight runs to
// finish before abandoning them (spec.md §4.4).
const DefaultGracePeriod = 30 * time.Second

// Manager runs a bounded pool of goroutines, each looping:
// claim -> run Task Runner -> finalize (spec.md §4.4).
type Manager struct {
	store        store.Store
	runner       *TaskRunner
	poolSize     int
	pollInterval time.Duration
	gracePeriod  time.Duration

	wg        sync.WaitGroup
	baseCtx   context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	slotStops []context.CancelFunc
	nextSlot  int
}

// NewManager builds a Manager. A zero poolSize/pollInterval/gracePeriod
// falls back to the package defaults.
func NewManager(s store.Store, runner *TaskRunner, poolSize int, pollInterval, gracePeriod time.Duration) *Manager {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if gracePeriod <= 0 {
		gracePeriod = DefaultGracePeriod
	}
	return &Manager{
		store:        s,
		runner:       runner,
		poolSize:     poolSize,
		pollInterval: pollInterval,
		gracePeriod:  gracePeriod,
	}
}

// Start launches poolSize worker goroutines. Call Stop to shut them down.
func (m *Manager) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.baseCtx = workerCtx
	m.cancel = cancel
	for i := 0; i < m.poolSize; i++ {
		m.addWorkerLocked()
	}
	m.mu.Unlock()

	slog.Info("worker manager started", "pool_size", m.poolSize, "poll_interval", m.pollInterval)
}

// SetPoolSize grows or shrinks the live worker pool to n goroutines,
// without disturbing runs already in flight on the slots that remain.
// Safe to call concurrently with a running pool. Before Start it only
// records the size Start will launch; after Stop any slot it adds sees the
// already-cancelled context and exits at once. Used by config.Watcher to
// hot-reload WorkerConfig.PoolSize
// without a restart.
func (m *Manager) SetPoolSize(n int) {
	if n <= 0 {
		n = DefaultPoolSize
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.baseCtx == nil {
		m.poolSize = n
		return
	}

	current := len(m.slotStops)
	switch {
	case n > current:
		for i := current; i < n; i++ {
			m.addWorkerLocked()
		}
	case n < current:
		for i := current - 1; i >= n; i-- {
			m.slotStops[i]()
		}
		m.slotStops = m.slotStops[:n]
	}
	m.poolSize = n
	slog.Info("worker pool size updated", "pool_size", n)
}

// addWorkerLocked starts one more worker goroutine. Callers must hold m.mu.
func (m *Manager) addWorkerLocked() {
	slotCtx, slotCancel := context.WithCancel(m.baseCtx)
	slot := m.nextSlot
	m.nextSlot++
	m.slotStops = append(m.slotStops, slotCancel)

	m.wg.Add(1)
	go m.workerLoop(slotCtx, slot)
}

// Stop signals every worker to stop claiming new runs, then waits up to
// gracePeriod for in-flight runs to finish. Runs still in-flight past the
// grace period are abandoned (left `running`; the Scheduler reclassifies
// them as orphans on next startup, per spec.md §4.4).
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("worker manager stopped cleanly")
	case <-time.After(m.gracePeriod):
		slog.Warn("worker manager grace period elapsed with runs still in flight")
	}
}

func (m *Manager) workerLoop(ctx context.Context, slot int) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		run, err := m.store.ClaimNextQueuedRun(ctx)
		if err != nil {
			slog.Error("worker: claim failed", "slot", slot, "error", err)
			sleepOrDone(ctx, m.pollInterval)
			continue
		}
		if run == nil {
			sleepOrDone(ctx, m.pollInterval)
			continue
		}

		// A claimed run executes on a context detached from shutdown:
		// Stop() waits up to the grace period for it to finish naturally
		// rather than cancelling extractor/loader calls mid-flight, per
		// spec.md §4.4's cooperative-cancellation contract.
		m.execute(context.Background(), slot, run)
	}
}

func (m *Manager) execute(ctx context.Context, slot int, run *model.JobRun) {
	slog.Info("run claimed", "slot", slot, "run_id", run.RunID, "job_id", run.JobID)

	runErr := m.runner.Run(ctx, run)

	outcome := model.RunSuccess
	var errMsg *string
	if runErr != nil {
		outcome = model.RunFailed
		msg := runErr.Error()
		errMsg = &msg
		slog.Error("run failed", "slot", slot, "run_id", run.RunID, "error", runErr)
	} else {
		slog.Info("run succeeded", "slot", slot, "run_id", run.RunID)
	}

	if err := m.store.FinalizeRun(context.Background(), run.RunID, outcome, errMsg); err != nil {
		slog.Error("worker: finalize_run failed", "slot", slot, "run_id", run.RunID, "error", err)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
