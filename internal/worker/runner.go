// Package worker implements the Task Runner and Worker Manager (spec.md
// §4.4, §4.5): the claim -> run -> finalize dispatch loop and the
// ordered extract/load execution within one run.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/eltorchestrator/internal/apperr"
	"github.com/nextlevelbuilder/eltorchestrator/internal/model"
	"github.com/nextlevelbuilder/eltorchestrator/internal/plugin"
	"github.com/nextlevelbuilder/eltorchestrator/internal/retry"
	"github.com/nextlevelbuilder/eltorchestrator/internal/store"
)

// TaskRunner executes the ordered task list of one JobRun (spec.md §4.5).
type TaskRunner struct {
	store    store.Store
	registry *plugin.Registry
	retryCfg retry.Config
}

// NewTaskRunner builds a TaskRunner using the given retry policy for
// every task's extract/load attempt.
func NewTaskRunner(s store.Store, registry *plugin.Registry, retryCfg retry.Config) *TaskRunner {
	return &TaskRunner{store: s, registry: registry, retryCfg: retryCfg}
}

// Run executes every task of the job owning runJob, strictly in
// task_order ascending. A task failure stops the run immediately without
// rolling back prior tasks' side effects (spec.md §4.5's task isolation).
// Returns the error that should be recorded as the run's error_message,
// or nil on success.
func (tr *TaskRunner) Run(ctx context.Context, run *model.JobRun) error {
	tasks, err := tr.store.ListTasks(ctx, run.JobID)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	for _, task := range tasks {
		if err := tr.runTask(ctx, run, task); err != nil {
			return fmt.Errorf("task %d: %w", task.TaskOrder, err)
		}
	}
	return nil
}

func (tr *TaskRunner) runTask(ctx context.Context, run *model.JobRun, task model.TaskDefinition) error {
	var dataset plugin.Dataset

	extractResult := retry.Do(ctx, tr.retryCfg, func(ctx context.Context) error {
		ds, err := tr.registry.Extract(ctx, task.ExtractorConfig)
		if err != nil {
			return err
		}
		dataset = ds
		return nil
	})
	if extractResult.Err != nil {
		logRetries(run.RunID.String(), "extract", task.TaskOrder, extractResult)
		return extractResult.Err
	}
	if extractResult.Attempts > 1 {
		logRetries(run.RunID.String(), "extract", task.TaskOrder, extractResult)
	}

	loadResult := retry.Do(ctx, tr.retryCfg, func(ctx context.Context) error {
		return tr.registry.Load(ctx, task.LoaderConfig, dataset)
	})
	if loadResult.Err != nil {
		logRetries(run.RunID.String(), "load", task.TaskOrder, loadResult)
		return loadResult.Err
	}
	if loadResult.Attempts > 1 {
		logRetries(run.RunID.String(), "load", task.TaskOrder, loadResult)
	}

	return nil
}

func logRetries(runID, step string, taskOrder int, result retry.Result) {
	if result.Err != nil {
		slog.Error("task step failed", "run_id", runID, "step", step, "task_order", taskOrder, "attempts", result.Attempts, "error", result.Err, "retryable", apperr.IsRetryable(result.Err))
		return
	}
	slog.Info("task step succeeded after retry", "run_id", runID, "step", step, "task_order", taskOrder, "attempts", result.Attempts)
}
