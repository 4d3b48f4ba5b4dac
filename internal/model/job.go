// Package model defines the persistent entities of the orchestrator: job
// definitions, their ordered tasks, and the runs created from them.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GenID generates a new time-ordered UUID (v7), matching the ordering the
// State Store relies on for created_at-adjacent ID generation.
func GenID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// ManualSchedule is the sentinel schedule value meaning "never fires on a
// tick; only runs on explicit trigger".
const ManualSchedule = "@manual"

// JobDefinition is a schedulable unit: metadata plus an ordered task list
// (tasks are stored and loaded separately, see TaskDefinition).
type JobDefinition struct {
	JobID       uuid.UUID `json:"job_id" db:"job_id"`
	JobName     string    `json:"job_name" db:"job_name"`
	Description string    `json:"description,omitempty" db:"description"`
	Schedule    string    `json:"schedule" db:"schedule"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TaskDefinition is one extract-then-load step of a job, ordered by
// TaskOrder within its job.
type TaskDefinition struct {
	TaskID          uuid.UUID       `json:"task_id" db:"task_id"`
	JobID           uuid.UUID       `json:"job_id" db:"job_id"`
	TaskOrder       int             `json:"task_order" db:"task_order"`
	ExtractorConfig json.RawMessage `json:"extractor_config" db:"extractor_config"`
	LoaderConfig    json.RawMessage `json:"loader_config" db:"loader_config"`
}

// TriggeredBy records why a run exists.
type TriggeredBy string

const (
	TriggeredByScheduled TriggeredBy = "scheduled"
	TriggeredByManual    TriggeredBy = "manual"
)

// RunStatus is a JobRun's lifecycle state. The only legal transitions are
// Queued -> Running -> (Success | Failed).
type RunStatus string

const (
	RunQueued  RunStatus = "queued"
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// JobRun is one invocation attempt of a job.
type JobRun struct {
	RunID        uuid.UUID   `json:"run_id" db:"run_id"`
	JobID        uuid.UUID   `json:"job_id" db:"job_id"`
	Status       RunStatus   `json:"status" db:"status"`
	TriggeredBy  TriggeredBy `json:"triggered_by" db:"triggered_by"`
	StartedAt    *time.Time  `json:"started_at,omitempty" db:"started_at"`
	FinishedAt   *time.Time  `json:"finished_at,omitempty" db:"finished_at"`
	ErrorMessage *string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}

// ValidTransition reports whether moving from `from` to `to` is one of the
// two legal terminal transitions out of `running`, or the single legal
// transition out of `queued`. It does not mutate state; callers use it to
// guard State Store writes.
func ValidTransition(from, to RunStatus) bool {
	switch from {
	case RunQueued:
		return to == RunRunning
	case RunRunning:
		return to == RunSuccess || to == RunFailed
	default:
		return false
	}
}
