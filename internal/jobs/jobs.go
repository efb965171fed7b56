// Package jobs wraps the persistent job_runs ledger so schedulers and
// manual triggers share one recording surface: start, progress, finish.
package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

// Store is the subset of store.Store the ledger needs.
type Store interface {
	StartJobRun(ctx context.Context, j model.JobRun) (model.JobRun, error)
	UpdateJobProgress(ctx context.Context, id uuid.UUID, processed, total int) error
	FinishJobRun(ctx context.Context, id uuid.UUID, status model.JobStatus, details, errMsg string) error
	GetJobRun(ctx context.Context, id uuid.UUID) (model.JobRun, error)
	ListJobRuns(ctx context.Context, jobType model.JobType, limit int) ([]model.JobRun, error)
}

// Ledger records the lifecycle of background and manual job executions.
type Ledger struct {
	store Store
}

// New builds a Ledger.
func New(s Store) *Ledger {
	return &Ledger{store: s}
}

// Start opens a new RUNNING job_runs row. totalItems records the size
// of the unit of work when it is already known at start time (spec.md
// 4.6 step 1: "enumerate active actors; record total_items = n"); pass
// 0 when enumeration happens inside the run and the first Progress
// call will set the real count.
func (l *Ledger) Start(ctx context.Context, jobType model.JobType, trigger model.JobTrigger, actorID *uuid.UUID, actorName string, totalItems int) (model.JobRun, error) {
	return l.store.StartJobRun(ctx, model.JobRun{
		ID:         uuid.New(),
		JobType:    jobType,
		Trigger:    trigger,
		ActorID:    actorID,
		ActorName:  actorName,
		TotalItems: totalItems,
		StartedAt:  time.Now().UTC(),
	})
}

// Progress updates the processed/total counters of a running job.
func (l *Ledger) Progress(ctx context.Context, id uuid.UUID, processed, total int) error {
	return l.store.UpdateJobProgress(ctx, id, processed, total)
}

// Succeed marks a job SUCCESS with a human-readable details string.
func (l *Ledger) Succeed(ctx context.Context, id uuid.UUID, details string) error {
	return l.store.FinishJobRun(ctx, id, model.JobSuccess, details, "")
}

// Fail marks a job ERROR, truncating the error text per spec.md 7.
func (l *Ledger) Fail(ctx context.Context, id uuid.UUID, details string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return l.store.FinishJobRun(ctx, id, model.JobError, details, msg)
}

// Get loads a single job run.
func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (model.JobRun, error) {
	return l.store.GetJobRun(ctx, id)
}

// List returns the most recent runs, optionally filtered by job type.
func (l *Ledger) List(ctx context.Context, jobType model.JobType, limit int) ([]model.JobRun, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.store.ListJobRuns(ctx, jobType, limit)
}
