package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

// StartJobRun inserts a new job_runs row in the running state.
func (s *Store) StartJobRun(ctx context.Context, j model.JobRun) (model.JobRun, error) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.StartedAt.IsZero() {
		j.StartedAt = time.Now().UTC()
	}
	j.Status = model.JobRunning
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO job_runs
			(id, job_type, trigger, status, actor_id, actor_name, total_items,
			 processed_items, details, error, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		j.ID, j.JobType, j.Trigger, j.Status, j.ActorID, j.ActorName, j.TotalItems,
		j.ProcessedItems, j.Details, j.Error, j.StartedAt)
	return j, err
}

// UpdateJobProgress updates the processed/total item counters on a
// running job, called periodically from the Collection Runner's
// progress callback.
func (s *Store) UpdateJobProgress(ctx context.Context, id uuid.UUID, processed, total int) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE job_runs SET processed_items = $2, total_items = $3, updated_at = now()
		WHERE id = $1`, id, processed, total)
	return err
}

// FinishJobRun marks a job terminal (success or error), truncating any
// error text to model.MaxErrorLen.
func (s *Store) FinishJobRun(ctx context.Context, id uuid.UUID, status model.JobStatus, details, errMsg string) error {
	finishedAt := time.Now().UTC()
	_, err := s.q.ExecContext(ctx, `
		UPDATE job_runs SET status = $2, details = $3, error = $4,
			finished_at = $5, updated_at = $5
		WHERE id = $1`,
		id, status, details, model.TruncateError(errMsg), finishedAt)
	return err
}

// GetJobRun loads a single job by id.
func (s *Store) GetJobRun(ctx context.Context, id uuid.UUID) (model.JobRun, error) {
	var j model.JobRun
	row := s.q.QueryRowContext(ctx, `
		SELECT id, job_type, trigger, status, actor_id, actor_name, total_items,
		       processed_items, details, error, started_at, finished_at, updated_at
		FROM job_runs WHERE id = $1`, id)
	if err := scanJobRun(row, &j); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return j, ErrNotFound
		}
		return j, err
	}
	return j, nil
}

// ListJobRuns returns the most recent job runs, optionally filtered by
// job type, newest first.
func (s *Store) ListJobRuns(ctx context.Context, jobType model.JobType, limit int) ([]model.JobRun, error) {
	var rows *sql.Rows
	var err error
	if jobType == "" {
		rows, err = s.q.QueryContext(ctx, `
			SELECT id, job_type, trigger, status, actor_id, actor_name, total_items,
			       processed_items, details, error, started_at, finished_at, updated_at
			FROM job_runs ORDER BY started_at DESC LIMIT $1`, limit)
	} else {
		rows, err = s.q.QueryContext(ctx, `
			SELECT id, job_type, trigger, status, actor_id, actor_name, total_items,
			       processed_items, details, error, started_at, finished_at, updated_at
			FROM job_runs WHERE job_type = $1 ORDER BY started_at DESC LIMIT $2`, jobType, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.JobRun
	for rows.Next() {
		var j model.JobRun
		if err := scanJobRun(rows, &j); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJobRun(r rowScanner, j *model.JobRun) error {
	return r.Scan(&j.ID, &j.JobType, &j.Trigger, &j.Status, &j.ActorID, &j.ActorName,
		&j.TotalItems, &j.ProcessedItems, &j.Details, &j.Error, &j.StartedAt,
		&j.FinishedAt, &j.UpdatedAt)
}
