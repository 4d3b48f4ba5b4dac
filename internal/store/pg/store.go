package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nextlevelbuilder/eltorchestrator/internal/apperr"
	"github.com/nextlevelbuilder/eltorchestrator/internal/model"
	"github.com/nextlevelbuilder/eltorchestrator/internal/store"
	"github.com/nextlevelbuilder/eltorchestrator/internal/store/dbutil"
)

// Store implements store.Store backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

// New wraps an already-open, already-migrated Postgres handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

// jobRow/taskRow/runRow mirror the table columns for sqlx struct scanning.
type jobRow struct {
	JobID       uuid.UUID `db:"job_id"`
	JobName     string    `db:"job_name"`
	Description string    `db:"description"`
	Schedule    string    `db:"schedule"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   sql.NullTime `db:"created_at"`
	UpdatedAt   sql.NullTime `db:"updated_at"`
}

func (r jobRow) toModel() model.JobDefinition {
	return model.JobDefinition{
		JobID:       r.JobID,
		JobName:     r.JobName,
		Description: r.Description,
		Schedule:    r.Schedule,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

type taskRow struct {
	TaskID          uuid.UUID `db:"task_id"`
	JobID           uuid.UUID `db:"job_id"`
	TaskOrder       int       `db:"task_order"`
	ExtractorConfig []byte    `db:"extractor_config"`
	LoaderConfig    []byte    `db:"loader_config"`
}

func (r taskRow) toModel() model.TaskDefinition {
	return model.TaskDefinition{
		TaskID:          r.TaskID,
		JobID:           r.JobID,
		TaskOrder:       r.TaskOrder,
		ExtractorConfig: json.RawMessage(r.ExtractorConfig),
		LoaderConfig:    json.RawMessage(r.LoaderConfig),
	}
}

type runRow struct {
	RunID        uuid.UUID      `db:"run_id"`
	JobID        uuid.UUID      `db:"job_id"`
	Status       string         `db:"status"`
	TriggeredBy  string         `db:"triggered_by"`
	StartedAt    sql.NullTime   `db:"started_at"`
	FinishedAt   sql.NullTime   `db:"finished_at"`
	ErrorMessage sql.NullString `db:"error_message"`
	CreatedAt    sql.NullTime   `db:"created_at"`
}

func (r runRow) toModel() model.JobRun {
	run := model.JobRun{
		RunID:       r.RunID,
		JobID:       r.JobID,
		Status:      model.RunStatus(r.Status),
		TriggeredBy: model.TriggeredBy(r.TriggeredBy),
		CreatedAt:   r.CreatedAt.Time,
	}
	if r.StartedAt.Valid {
		run.StartedAt = &r.StartedAt.Time
	}
	if r.FinishedAt.Valid {
		run.FinishedAt = &r.FinishedAt.Time
	}
	if r.ErrorMessage.Valid {
		run.ErrorMessage = &r.ErrorMessage.String
	}
	return run
}

const jobCols = `job_id, job_name, description, schedule, is_active, created_at, updated_at`
const taskCols = `task_id, job_id, task_order, extractor_config, loader_config`
const runCols = `run_id, job_id, status, triggered_by, started_at, finished_at, error_message, created_at`

func (s *Store) CreateJob(ctx context.Context, job store.NewJob) (*model.JobDefinition, []model.TaskDefinition, error) {
	if err := validateNewJob(job); err != nil {
		return nil, nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, apperr.NewStorageError("create_job: begin tx", err)
	}
	defer tx.Rollback()

	now := dbutil.NowUTC()
	jobID := model.GenID()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO job_definitions (`+jobCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		jobID, job.JobName, job.Description, job.Schedule, job.IsActive, now, now)
	if err != nil {
		return nil, nil, apperr.NewStorageError("create_job: insert job", err)
	}

	tasks := make([]model.TaskDefinition, 0, len(job.Tasks))
	for _, t := range job.Tasks {
		taskID := model.GenID()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO task_definitions (`+taskCols+`) VALUES ($1, $2, $3, $4, $5)`,
			taskID, jobID, t.TaskOrder, jsonOrEmpty(t.ExtractorConfig), jsonOrEmpty(t.LoaderConfig))
		if err != nil {
			return nil, nil, apperr.NewStorageError("create_job: insert task", err)
		}
		tasks = append(tasks, model.TaskDefinition{
			TaskID:          taskID,
			JobID:           jobID,
			TaskOrder:       t.TaskOrder,
			ExtractorConfig: jsonOrEmpty(t.ExtractorConfig),
			LoaderConfig:    jsonOrEmpty(t.LoaderConfig),
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperr.NewStorageError("create_job: commit", err)
	}

	return &model.JobDefinition{
		JobID:       jobID,
		JobName:     job.JobName,
		Description: job.Description,
		Schedule:    job.Schedule,
		IsActive:    job.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, tasks, nil
}

func validateNewJob(job store.NewJob) error {
	if err := store.ValidateJobName(job.JobName); err != nil {
		return err
	}
	if err := store.ValidateSchedule(job.Schedule); err != nil {
		return err
	}
	return store.ValidateNewTasks(job.Tasks)
}

func jsonOrEmpty(data []byte) []byte {
	if len(data) == 0 {
		return []byte("{}")
	}
	return data
}

func (s *Store) GetJob(ctx context.Context, jobID uuid.UUID) (*model.JobDefinition, []model.TaskDefinition, error) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, `SELECT `+jobCols+` FROM job_definitions WHERE job_id = $1`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, &apperr.NotFoundError{Kind: "job", ID: jobID.String()}
	}
	if err != nil {
		return nil, nil, apperr.NewStorageError("get_job", err)
	}

	tasks, err := s.ListTasks(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	job := row.toModel()
	return &job, tasks, nil
}

func (s *Store) ListTasks(ctx context.Context, jobID uuid.UUID) ([]model.TaskDefinition, error) {
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+taskCols+` FROM task_definitions WHERE job_id = $1 ORDER BY task_order ASC`, jobID)
	if err != nil {
		return nil, apperr.NewStorageError("list_tasks", err)
	}
	tasks := make([]model.TaskDefinition, len(rows))
	for i, r := range rows {
		tasks[i] = r.toModel()
	}
	return tasks, nil
}

func (s *Store) ListJobs(ctx context.Context) ([]model.JobDefinition, error) {
	var rows []jobRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+jobCols+` FROM job_definitions ORDER BY created_at ASC`)
	if err != nil {
		return nil, apperr.NewStorageError("list_jobs", err)
	}
	jobs := make([]model.JobDefinition, len(rows))
	for i, r := range rows {
		jobs[i] = r.toModel()
	}
	return jobs, nil
}

func (s *Store) ListActiveJobs(ctx context.Context) ([]model.JobDefinition, error) {
	var rows []jobRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+jobCols+` FROM job_definitions WHERE is_active = true ORDER BY created_at ASC`)
	if err != nil {
		return nil, apperr.NewStorageError("list_active_jobs", err)
	}
	jobs := make([]model.JobDefinition, len(rows))
	for i, r := range rows {
		jobs[i] = r.toModel()
	}
	return jobs, nil
}

func (s *Store) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_definitions WHERE job_id = $1`, jobID)
	if err != nil {
		return apperr.NewStorageError("delete_job", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &apperr.NotFoundError{Kind: "job", ID: jobID.String()}
	}
	return nil
}

func (s *Store) CreateRun(ctx context.Context, jobID uuid.UUID, triggeredBy model.TriggeredBy) (*model.JobRun, error) {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM job_definitions WHERE job_id = $1)`, jobID); err != nil {
		return nil, apperr.NewStorageError("create_run: check job exists", err)
	}
	if !exists {
		return nil, &apperr.NotFoundError{Kind: "job", ID: jobID.String()}
	}

	runID := model.GenID()
	now := dbutil.NowUTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_runs (`+runCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		runID, jobID, string(model.RunQueued), string(triggeredBy), nil, nil, nil, now)
	if err != nil {
		return nil, apperr.NewStorageError("create_run: insert", err)
	}

	return &model.JobRun{
		RunID:       runID,
		JobID:       jobID,
		Status:      model.RunQueued,
		TriggeredBy: triggeredBy,
		CreatedAt:   now,
	}, nil
}

// ClaimNextQueuedRun uses SELECT ... FOR UPDATE SKIP LOCKED inside a
// transaction to atomically pick and claim the oldest queued run: two
// concurrent callers each lock a different row (or see none available),
// so no two workers can claim the same run (spec.md §4.1).
func (s *Store) ClaimNextQueuedRun(ctx context.Context) (*model.JobRun, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.NewStorageError("claim_next_queued_run: begin tx", err)
	}
	defer tx.Rollback()

	var row runRow
	err = tx.GetContext(ctx, &row,
		`SELECT `+runCols+` FROM job_runs
		 WHERE status = $1
		 ORDER BY created_at ASC
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`, string(model.RunQueued))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.NewStorageError("claim_next_queued_run: select", err)
	}

	now := dbutil.NowUTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE job_runs SET status = $1, started_at = $2 WHERE run_id = $3`,
		string(model.RunRunning), now, row.RunID)
	if err != nil {
		return nil, apperr.NewStorageError("claim_next_queued_run: update", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.NewStorageError("claim_next_queued_run: commit", err)
	}

	run := row.toModel()
	run.Status = model.RunRunning
	run.StartedAt = &now
	return &run, nil
}

func (s *Store) FinalizeRun(ctx context.Context, runID uuid.UUID, outcome model.RunStatus, errorMessage *string) error {
	if !model.ValidTransition(model.RunRunning, outcome) {
		return apperr.NewValidationError("finalize_run: outcome must be success or failed, got %q", outcome)
	}

	now := dbutil.NowUTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_runs SET status = $1, finished_at = $2, error_message = $3
		 WHERE run_id = $4 AND status = $5`,
		string(outcome), now, errorMessage, runID, string(model.RunRunning))
	if err != nil {
		return apperr.NewStorageError("finalize_run", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("finalize_run: run %s is not currently running", runID)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, runID uuid.UUID) (*model.JobRun, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT `+runCols+` FROM job_runs WHERE run_id = $1`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.NotFoundError{Kind: "run", ID: runID.String()}
	}
	if err != nil {
		return nil, apperr.NewStorageError("get_run", err)
	}
	run := row.toModel()
	return &run, nil
}

func (s *Store) ListRuns(ctx context.Context) ([]model.JobRun, error) {
	var rows []runRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+runCols+` FROM job_runs ORDER BY created_at ASC`)
	if err != nil {
		return nil, apperr.NewStorageError("list_runs", err)
	}
	runs := make([]model.JobRun, len(rows))
	for i, r := range rows {
		runs[i] = r.toModel()
	}
	return runs, nil
}

func (s *Store) RecoverOrphanedRuns(ctx context.Context) (int, error) {
	msg := store.OrphanErrorMessage
	now := dbutil.NowUTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_runs SET status = $1, finished_at = $2, error_message = $3 WHERE status = $4`,
		string(model.RunFailed), now, msg, string(model.RunRunning))
	if err != nil {
		return 0, apperr.NewStorageError("recover_orphaned_runs", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
