// Package store defines the State Store contract (spec.md §4.1): the
// durable record of job definitions, tasks, and runs, and the single
// source of truth every other component reads and writes through. Two
// drivers implement Store: internal/store/pg (Postgres) and
// internal/store/sqlite (SQLite).
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/eltorchestrator/internal/model"
)

// NewJob bundles a job definition with its ordered tasks for atomic
// creation. TaskID/JobID/CreatedAt/UpdatedAt are assigned by the store;
// callers only set JobName, Description, Schedule, IsActive, and each
// task's TaskOrder/ExtractorConfig/LoaderConfig.
type NewJob struct {
	JobName     string
	Description string
	Schedule    string
	IsActive    bool
	Tasks       []NewTask
}

// NewTask is one task of a NewJob, prior to ID assignment.
type NewTask struct {
	TaskOrder       int
	ExtractorConfig []byte
	LoaderConfig    []byte
}

// Store is the State Store contract. Every method is a single transaction;
// partial writes are impossible by construction (spec.md §4.1).
type Store interface {
	// CreateJob inserts the job and all of its tasks atomically. Returns
	// ValidationError on empty name/malformed schedule/empty task list,
	// StorageError on driver failure.
	CreateJob(ctx context.Context, job NewJob) (*model.JobDefinition, []model.TaskDefinition, error)

	// GetJob returns a job and its tasks (ordered by task_order), or
	// NotFoundError if job_id does not exist.
	GetJob(ctx context.Context, jobID uuid.UUID) (*model.JobDefinition, []model.TaskDefinition, error)

	// ListJobs returns every job definition.
	ListJobs(ctx context.Context) ([]model.JobDefinition, error)

	// ListActiveJobs returns job definitions with is_active = true, the
	// Scheduler's per-tick input.
	ListActiveJobs(ctx context.Context) ([]model.JobDefinition, error)

	// DeleteJob removes a job and cascades to its tasks and runs.
	DeleteJob(ctx context.Context, jobID uuid.UUID) error

	// CreateRun inserts a new JobRun with status=queued. Returns
	// NotFoundError if job_id does not exist.
	CreateRun(ctx context.Context, jobID uuid.UUID, triggeredBy model.TriggeredBy) (*model.JobRun, error)

	// ClaimNextQueuedRun atomically finds the oldest queued run (by
	// created_at), transitions it to running with started_at=now(), and
	// returns it. Returns (nil, nil) if no run is queued. Two concurrent
	// callers can never claim the same run (spec.md §4.1).
	ClaimNextQueuedRun(ctx context.Context) (*model.JobRun, error)

	// FinalizeRun transitions a running run to success or failed, setting
	// finished_at=now() and error_message iff outcome=RunFailed. Fails if
	// the run is not currently running.
	FinalizeRun(ctx context.Context, runID uuid.UUID, outcome model.RunStatus, errorMessage *string) error

	// GetRun returns a run by ID, or NotFoundError.
	GetRun(ctx context.Context, runID uuid.UUID) (*model.JobRun, error)

	// ListRuns returns every run.
	ListRuns(ctx context.Context) ([]model.JobRun, error)

	// ListTasks returns a job's tasks ordered by task_order ascending, the
	// Task Runner's input for one run.
	ListTasks(ctx context.Context, jobID uuid.UUID) ([]model.TaskDefinition, error)

	// RecoverOrphanedRuns transitions every run still in `running` state to
	// `failed` with an orphan error message. Called once by the Scheduler
	// on startup (spec.md §4.3). Returns the number of runs recovered.
	RecoverOrphanedRuns(ctx context.Context) (int, error)

	// Close releases the underlying database handle.
	Close() error
}

// OrphanErrorMessage is the error_message stamped onto runs recovered by
// RecoverOrphanedRuns, verbatim per spec.md §4.3.
const OrphanErrorMessage = "orphaned: orchestrator restarted"
