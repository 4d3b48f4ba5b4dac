package store

import (
	"github.com/nextlevelbuilder/eltorchestrator/internal/apperr"
	"github.com/nextlevelbuilder/eltorchestrator/internal/cronexpr"
	"github.com/nextlevelbuilder/eltorchestrator/internal/model"
)

// MaxJobNameLength bounds job_name. The column itself is unbounded TEXT in
// both schemas; this limit is enforced only here.
const MaxJobNameLength = 255

// ValidateJobName checks the non-empty and length invariants on job_name
// (spec.md §3: "job_name is non-empty").
func ValidateJobName(name string) error {
	if name == "" {
		return apperr.NewValidationError("job_name must not be empty")
	}
	if len(name) > MaxJobNameLength {
		return apperr.NewValidationError("job_name too long: %d chars (max %d)", len(name), MaxJobNameLength)
	}
	return nil
}

// ValidateSchedule checks that schedule is "@manual" or a valid 6-field
// cron expression.
func ValidateSchedule(schedule string) error {
	if err := cronexpr.Validate(schedule); err != nil {
		return apperr.NewValidationError("%v", err)
	}
	return nil
}

// ValidateTasks checks the non-empty and contiguous-ordering invariants on
// a job's task list (spec.md §3: task_order values form a contiguous
// strictly-increasing sequence starting at 0).
func ValidateTasks(tasks []model.TaskDefinition) error {
	orders := make([]int, len(tasks))
	for i, task := range tasks {
		orders[i] = task.TaskOrder
	}
	return validateTaskOrders(orders)
}

// ValidateNewTasks applies the same invariant as ValidateTasks to a
// not-yet-persisted task list (store.NewTask has no TaskID/JobID yet).
// Store drivers call this before opening the create_job transaction so a
// malformed task list never reaches the database.
func ValidateNewTasks(tasks []NewTask) error {
	orders := make([]int, len(tasks))
	for i, task := range tasks {
		orders[i] = task.TaskOrder
	}
	return validateTaskOrders(orders)
}

func validateTaskOrders(orders []int) error {
	if len(orders) == 0 {
		return apperr.NewValidationError("a job must have at least one task")
	}
	for i, order := range orders {
		if order != i {
			return apperr.NewValidationError("task_order must be contiguous starting at 0: task %d has task_order %d", i, order)
		}
	}
	return nil
}
