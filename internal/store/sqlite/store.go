package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nextlevelbuilder/eltorchestrator/internal/apperr"
	"github.com/nextlevelbuilder/eltorchestrator/internal/model"
	"github.com/nextlevelbuilder/eltorchestrator/internal/store"
	"github.com/nextlevelbuilder/eltorchestrator/internal/store/dbutil"
)

// Store implements store.Store backed by SQLite.
type Store struct {
	db *sqlx.DB
}

// New wraps an already-open, already-migrated SQLite handle.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "sqlite")}
}

func (s *Store) Close() error { return s.db.Close() }

// timeLayout writes a fixed nine-digit fraction so that the TEXT ordering
// used by ORDER BY created_at matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type jobRow struct {
	JobID       string `db:"job_id"`
	JobName     string `db:"job_name"`
	Description string `db:"description"`
	Schedule    string `db:"schedule"`
	IsActive    bool   `db:"is_active"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func (r jobRow) toModel() (model.JobDefinition, error) {
	id, err := uuid.Parse(r.JobID)
	if err != nil {
		return model.JobDefinition{}, fmt.Errorf("parse job_id: %w", err)
	}
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return model.JobDefinition{}, err
	}
	updated, err := parseTime(r.UpdatedAt)
	if err != nil {
		return model.JobDefinition{}, err
	}
	return model.JobDefinition{
		JobID:       id,
		JobName:     r.JobName,
		Description: r.Description,
		Schedule:    r.Schedule,
		IsActive:    r.IsActive,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

type taskRow struct {
	TaskID          string `db:"task_id"`
	JobID           string `db:"job_id"`
	TaskOrder       int    `db:"task_order"`
	ExtractorConfig string `db:"extractor_config"`
	LoaderConfig    string `db:"loader_config"`
}

func (r taskRow) toModel() (model.TaskDefinition, error) {
	taskID, err := uuid.Parse(r.TaskID)
	if err != nil {
		return model.TaskDefinition{}, fmt.Errorf("parse task_id: %w", err)
	}
	jobID, err := uuid.Parse(r.JobID)
	if err != nil {
		return model.TaskDefinition{}, fmt.Errorf("parse job_id: %w", err)
	}
	return model.TaskDefinition{
		TaskID:          taskID,
		JobID:           jobID,
		TaskOrder:       r.TaskOrder,
		ExtractorConfig: json.RawMessage(r.ExtractorConfig),
		LoaderConfig:    json.RawMessage(r.LoaderConfig),
	}, nil
}

type runRow struct {
	RunID        string         `db:"run_id"`
	JobID        string         `db:"job_id"`
	Status       string         `db:"status"`
	TriggeredBy  string         `db:"triggered_by"`
	StartedAt    sql.NullString `db:"started_at"`
	FinishedAt   sql.NullString `db:"finished_at"`
	ErrorMessage sql.NullString `db:"error_message"`
	CreatedAt    string         `db:"created_at"`
}

func (r runRow) toModel() (model.JobRun, error) {
	runID, err := uuid.Parse(r.RunID)
	if err != nil {
		return model.JobRun{}, fmt.Errorf("parse run_id: %w", err)
	}
	jobID, err := uuid.Parse(r.JobID)
	if err != nil {
		return model.JobRun{}, fmt.Errorf("parse job_id: %w", err)
	}
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return model.JobRun{}, err
	}

	run := model.JobRun{
		RunID:       runID,
		JobID:       jobID,
		Status:      model.RunStatus(r.Status),
		TriggeredBy: model.TriggeredBy(r.TriggeredBy),
		CreatedAt:   created,
	}
	if r.StartedAt.Valid {
		t, err := parseTime(r.StartedAt.String)
		if err != nil {
			return model.JobRun{}, err
		}
		run.StartedAt = &t
	}
	if r.FinishedAt.Valid {
		t, err := parseTime(r.FinishedAt.String)
		if err != nil {
			return model.JobRun{}, err
		}
		run.FinishedAt = &t
	}
	if r.ErrorMessage.Valid {
		run.ErrorMessage = &r.ErrorMessage.String
	}
	return run, nil
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
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
	nowStr := now.Format(timeLayout)
	jobID := model.GenID()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO job_definitions (`+jobCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		jobID.String(), job.JobName, job.Description, job.Schedule, job.IsActive, nowStr, nowStr)
	if err != nil {
		return nil, nil, apperr.NewStorageError("create_job: insert job", err)
	}

	tasks := make([]model.TaskDefinition, 0, len(job.Tasks))
	for _, t := range job.Tasks {
		taskID := model.GenID()
		extractorCfg := jsonOrEmpty(t.ExtractorConfig)
		loaderCfg := jsonOrEmpty(t.LoaderConfig)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO task_definitions (`+taskCols+`) VALUES (?, ?, ?, ?, ?)`,
			taskID.String(), jobID.String(), t.TaskOrder, string(extractorCfg), string(loaderCfg))
		if err != nil {
			return nil, nil, apperr.NewStorageError("create_job: insert task", err)
		}
		tasks = append(tasks, model.TaskDefinition{
			TaskID:          taskID,
			JobID:           jobID,
			TaskOrder:       t.TaskOrder,
			ExtractorConfig: extractorCfg,
			LoaderConfig:    loaderCfg,
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
	err := s.db.GetContext(ctx, &row, `SELECT `+jobCols+` FROM job_definitions WHERE job_id = ?`, jobID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, &apperr.NotFoundError{Kind: "job", ID: jobID.String()}
	}
	if err != nil {
		return nil, nil, apperr.NewStorageError("get_job", err)
	}

	job, err := row.toModel()
	if err != nil {
		return nil, nil, apperr.NewStorageError("get_job: decode", err)
	}

	tasks, err := s.ListTasks(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return &job, tasks, nil
}

func (s *Store) ListTasks(ctx context.Context, jobID uuid.UUID) ([]model.TaskDefinition, error) {
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+taskCols+` FROM task_definitions WHERE job_id = ? ORDER BY task_order ASC`, jobID.String())
	if err != nil {
		return nil, apperr.NewStorageError("list_tasks", err)
	}
	tasks := make([]model.TaskDefinition, 0, len(rows))
	for _, r := range rows {
		t, err := r.toModel()
		if err != nil {
			return nil, apperr.NewStorageError("list_tasks: decode", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (s *Store) ListJobs(ctx context.Context) ([]model.JobDefinition, error) {
	var rows []jobRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+jobCols+` FROM job_definitions ORDER BY created_at ASC`)
	if err != nil {
		return nil, apperr.NewStorageError("list_jobs", err)
	}
	return decodeJobRows(rows)
}

func (s *Store) ListActiveJobs(ctx context.Context) ([]model.JobDefinition, error) {
	var rows []jobRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+jobCols+` FROM job_definitions WHERE is_active = 1 ORDER BY created_at ASC`)
	if err != nil {
		return nil, apperr.NewStorageError("list_active_jobs", err)
	}
	return decodeJobRows(rows)
}

func decodeJobRows(rows []jobRow) ([]model.JobDefinition, error) {
	jobs := make([]model.JobDefinition, 0, len(rows))
	for _, r := range rows {
		j, err := r.toModel()
		if err != nil {
			return nil, apperr.NewStorageError("decode job row", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (s *Store) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_definitions WHERE job_id = ?`, jobID.String())
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
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM job_definitions WHERE job_id = ?)`, jobID.String()); err != nil {
		return nil, apperr.NewStorageError("create_run: check job exists", err)
	}
	if !exists {
		return nil, &apperr.NotFoundError{Kind: "job", ID: jobID.String()}
	}

	runID := model.GenID()
	now := dbutil.NowUTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_runs (`+runCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID.String(), jobID.String(), string(model.RunQueued), string(triggeredBy), nil, nil, nil, now.Format(timeLayout))
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

// ClaimNextQueuedRun opens a BEGIN IMMEDIATE transaction, SQLite's
// equivalent of taking the write lock up front: since SQLite has no
// SKIP LOCKED, a second concurrent caller blocks on BEGIN IMMEDIATE
// until the first commits, then re-reads and finds the row already
// running (or gone), so it can never claim the same run twice
// (spec.md §4.1).
func (s *Store) ClaimNextQueuedRun(ctx context.Context) (*model.JobRun, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, apperr.NewStorageError("claim_next_queued_run: get conn", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return nil, apperr.NewStorageError("claim_next_queued_run: begin immediate", err)
	}
	committed := false
	defer func() {
		if !committed {
			conn.ExecContext(context.Background(), `ROLLBACK`)
		}
	}()

	var row runRow
	err = conn.QueryRowContext(ctx,
		`SELECT `+runCols+` FROM job_runs WHERE status = ? ORDER BY created_at ASC LIMIT 1`,
		string(model.RunQueued),
	).Scan(&row.RunID, &row.JobID, &row.Status, &row.TriggeredBy, &row.StartedAt, &row.FinishedAt, &row.ErrorMessage, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.NewStorageError("claim_next_queued_run: select", err)
	}

	now := dbutil.NowUTC()
	_, err = conn.ExecContext(ctx,
		`UPDATE job_runs SET status = ?, started_at = ? WHERE run_id = ?`,
		string(model.RunRunning), now.Format(timeLayout), row.RunID)
	if err != nil {
		return nil, apperr.NewStorageError("claim_next_queued_run: update", err)
	}

	if _, err := conn.ExecContext(ctx, `COMMIT`); err != nil {
		return nil, apperr.NewStorageError("claim_next_queued_run: commit", err)
	}
	committed = true

	run, err := row.toModel()
	if err != nil {
		return nil, apperr.NewStorageError("claim_next_queued_run: decode", err)
	}
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
		`UPDATE job_runs SET status = ?, finished_at = ?, error_message = ?
		 WHERE run_id = ? AND status = ?`,
		string(outcome), now.Format(timeLayout), errorMessage, runID.String(), string(model.RunRunning))
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
	err := s.db.GetContext(ctx, &row, `SELECT `+runCols+` FROM job_runs WHERE run_id = ?`, runID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.NotFoundError{Kind: "run", ID: runID.String()}
	}
	if err != nil {
		return nil, apperr.NewStorageError("get_run", err)
	}
	run, err := row.toModel()
	if err != nil {
		return nil, apperr.NewStorageError("get_run: decode", err)
	}
	return &run, nil
}

func (s *Store) ListRuns(ctx context.Context) ([]model.JobRun, error) {
	var rows []runRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+runCols+` FROM job_runs ORDER BY created_at ASC`)
	if err != nil {
		return nil, apperr.NewStorageError("list_runs", err)
	}
	runs := make([]model.JobRun, 0, len(rows))
	for _, r := range rows {
		run, err := r.toModel()
		if err != nil {
			return nil, apperr.NewStorageError("list_runs: decode", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (s *Store) RecoverOrphanedRuns(ctx context.Context) (int, error) {
	msg := store.OrphanErrorMessage
	now := dbutil.NowUTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_runs SET status = ?, finished_at = ?, error_message = ? WHERE status = ?`,
		string(model.RunFailed), now.Format(timeLayout), msg, string(model.RunRunning))
	if err != nil {
		return 0, apperr.NewStorageError("recover_orphaned_runs", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
