// Package jobmanager is a thin coordinator above the State Store: it
// validates cron syntax and task shape before a job is persisted, and
// turns a manual-trigger request into a durable queued run. Adapted from
// the teacher's internal/cron/service.go (the validate-then-delegate
// shape of its Service type, before any state-machine logic).
package jobmanager

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/eltorchestrator/internal/model"
	"github.com/nextlevelbuilder/eltorchestrator/internal/store"
)

// Manager is the Job Manager (spec.md §4.2): it owns no state of its own,
// delegating everything to the Store, but enforces validation the Store
// driver shouldn't have to duplicate across Postgres and SQLite.
type Manager struct {
	store store.Store
}

func New(s store.Store) *Manager {
	return &Manager{store: s}
}

// CreateJob validates the cron schedule and task list before the Store
// transaction opens, so a malformed schedule never touches the database
// (spec.md §4.2).
func (m *Manager) CreateJob(ctx context.Context, job store.NewJob) (*model.JobDefinition, []model.TaskDefinition, error) {
	if err := store.ValidateSchedule(job.Schedule); err != nil {
		return nil, nil, err
	}
	if err := store.ValidateNewTasks(job.Tasks); err != nil {
		return nil, nil, err
	}

	created, tasks, err := m.store.CreateJob(ctx, job)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("job created", "job_id", created.JobID, "job_name", created.JobName, "schedule", created.Schedule, "task_count", len(tasks))
	return created, tasks, nil
}

// Trigger creates a manually-triggered run. Per spec.md §4.2, this call is
// durable and synchronous; the returned run is always `queued` — actual
// execution happens later on the Worker Manager's own schedule. Callers
// must not interpret a successful return as "executed".
func (m *Manager) Trigger(ctx context.Context, jobID uuid.UUID) (*model.JobRun, error) {
	run, err := m.store.CreateRun(ctx, jobID, model.TriggeredByManual)
	if err != nil {
		return nil, err
	}
	slog.Info("run queued", "run_id", run.RunID, "job_id", jobID, "triggered_by", model.TriggeredByManual)
	return run, nil
}

func (m *Manager) GetJob(ctx context.Context, jobID uuid.UUID) (*model.JobDefinition, []model.TaskDefinition, error) {
	return m.store.GetJob(ctx, jobID)
}

func (m *Manager) ListJobs(ctx context.Context) ([]model.JobDefinition, error) {
	return m.store.ListJobs(ctx)
}

func (m *Manager) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	return m.store.DeleteJob(ctx, jobID)
}

func (m *Manager) GetRun(ctx context.Context, runID uuid.UUID) (*model.JobRun, error) {
	return m.store.GetRun(ctx, runID)
}

func (m *Manager) ListRuns(ctx context.Context) ([]model.JobRun, error) {
	return m.store.ListRuns(ctx)
}
