package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/eltorchestrator/internal/config"
	"github.com/nextlevelbuilder/eltorchestrator/internal/retry"
	"github.com/nextlevelbuilder/eltorchestrator/internal/scheduler"
	"github.com/nextlevelbuilder/eltorchestrator/internal/worker"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and worker pool until interrupted",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	cfg := loadConfig()

	st, err := openStore(cfg)
	if err != nil {
		fatalf("opening store: %s", err)
	}
	defer st.Close()

	retryCfg := retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		Factor:      cfg.Retry.Factor,
		Jitter:      cfg.Retry.Jitter,
	}

	sched := scheduler.New(st, cfg.Scheduler.TickInterval)
	runner := worker.NewTaskRunner(st, defaultRegistry(), retryCfg)
	mgr := worker.NewManager(st, runner, cfg.Worker.PoolSize, cfg.Worker.PollInterval, cfg.Worker.GracePeriod)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		fatalf("starting scheduler: %s", err)
	}
	mgr.Start(ctx)

	watcher, err := startConfigWatcher(cfgPath, sched, mgr)
	if err != nil {
		slog.Warn("config watcher not started", "error", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("eltorchestrator serving", "database", cfg.Database.DSN, "pool_size", cfg.Worker.PoolSize)

	<-ctx.Done()
	slog.Info("shutdown signal received, draining in-flight runs")

	sched.Stop()
	mgr.Stop()
	slog.Info("eltorchestrator stopped")
}

// startConfigWatcher wires config.Watcher to hot-reload the two fields
// spec.md allows to change without a restart: SchedulerConfig.TickInterval
// and WorkerConfig.PoolSize. Every other field (database DSN, retry
// policy, log format) still requires a restart.
func startConfigWatcher(path string, sched *scheduler.Scheduler, mgr *worker.Manager) (*config.Watcher, error) {
	watcher, err := config.NewWatcher(path)
	if err != nil {
		return nil, err
	}

	watcher.OnChange(func(cfg *config.Config) {
		sched.SetTickInterval(cfg.Scheduler.TickInterval)
	})
	watcher.OnChange(func(cfg *config.Config) {
		mgr.SetPoolSize(cfg.Worker.PoolSize)
	})

	if err := watcher.Start(); err != nil {
		return nil, err
	}
	return watcher, nil
}
