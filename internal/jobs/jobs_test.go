package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

type fakeStore struct {
	runs map[uuid.UUID]model.JobRun
}

func newFakeStore() *fakeStore {
	return &fakeStore{runs: make(map[uuid.UUID]model.JobRun)}
}

func (f *fakeStore) StartJobRun(ctx context.Context, j model.JobRun) (model.JobRun, error) {
	j.Status = model.JobRunning
	f.runs[j.ID] = j
	return j, nil
}

func (f *fakeStore) UpdateJobProgress(ctx context.Context, id uuid.UUID, processed, total int) error {
	run, ok := f.runs[id]
	if !ok {
		return errors.New("not found")
	}
	run.ProcessedItems = processed
	run.TotalItems = total
	f.runs[id] = run
	return nil
}

func (f *fakeStore) FinishJobRun(ctx context.Context, id uuid.UUID, status model.JobStatus, details, errMsg string) error {
	run, ok := f.runs[id]
	if !ok {
		return errors.New("not found")
	}
	run.Status = status
	run.Details = details
	run.Error = errMsg
	f.runs[id] = run
	return nil
}

func (f *fakeStore) GetJobRun(ctx context.Context, id uuid.UUID) (model.JobRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return model.JobRun{}, errors.New("not found")
	}
	return run, nil
}

func (f *fakeStore) ListJobRuns(ctx context.Context, jobType model.JobType, limit int) ([]model.JobRun, error) {
	var out []model.JobRun
	for _, r := range f.runs {
		if jobType != "" && r.JobType != jobType {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func TestLedger_StartOpensRunningRow(t *testing.T) {
	fs := newFakeStore()
	l := New(fs)

	run, err := l.Start(context.Background(), model.JobTypeCollector, model.TriggerScheduler, nil, "", 5)
	require.NoError(t, err)
	assert.Equal(t, model.JobRunning, run.Status)
	assert.Equal(t, model.JobTypeCollector, run.JobType)
	assert.Equal(t, 5, run.TotalItems, "total_items known at start must be recorded immediately")
}

func TestLedger_ProgressUpdatesCounters(t *testing.T) {
	fs := newFakeStore()
	l := New(fs)

	run, err := l.Start(context.Background(), model.JobTypeCollector, model.TriggerScheduler, nil, "", 0)
	require.NoError(t, err)

	require.NoError(t, l.Progress(context.Background(), run.ID, 3, 10))

	got, err := l.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ProcessedItems)
	assert.Equal(t, 10, got.TotalItems)
}

func TestLedger_SucceedSetsSuccessStatus(t *testing.T) {
	fs := newFakeStore()
	l := New(fs)

	run, err := l.Start(context.Background(), model.JobTypeMitreSync, model.TriggerManual, nil, "", 0)
	require.NoError(t, err)

	require.NoError(t, l.Succeed(context.Background(), run.ID, "synced 600 techniques"))

	got, err := l.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobSuccess, got.Status)
	assert.Equal(t, "synced 600 techniques", got.Details)
}

func TestLedger_FailSetsErrorStatusAndMessage(t *testing.T) {
	fs := newFakeStore()
	l := New(fs)

	run, err := l.Start(context.Background(), model.JobTypeActorScan, model.TriggerManual, nil, "APT99", 1)
	require.NoError(t, err)

	require.NoError(t, l.Fail(context.Background(), run.ID, "", errors.New("feed unreachable")))

	got, err := l.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobError, got.Status)
	assert.Equal(t, "feed unreachable", got.Error)
}

func TestLedger_FailWithNilErrorLeavesErrorBlank(t *testing.T) {
	fs := newFakeStore()
	l := New(fs)

	run, err := l.Start(context.Background(), model.JobTypeActorScan, model.TriggerManual, nil, "APT99", 1)
	require.NoError(t, err)

	require.NoError(t, l.Fail(context.Background(), run.ID, "partial", nil))

	got, err := l.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobError, got.Status)
	assert.Empty(t, got.Error)
}

func TestLedger_ListDefaultsLimitWhenNonPositive(t *testing.T) {
	fs := newFakeStore()
	l := New(fs)

	_, err := l.Start(context.Background(), model.JobTypeCollector, model.TriggerScheduler, nil, "", 0)
	require.NoError(t, err)

	runs, err := l.List(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestLedger_ListFiltersByJobType(t *testing.T) {
	fs := newFakeStore()
	l := New(fs)

	_, err := l.Start(context.Background(), model.JobTypeCollector, model.TriggerScheduler, nil, "", 0)
	require.NoError(t, err)
	_, err = l.Start(context.Background(), model.JobTypeMitreSync, model.TriggerScheduler, nil, "", 0)
	require.NoError(t, err)

	runs, err := l.List(context.Background(), model.JobTypeMitreSync, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.JobTypeMitreSync, runs[0].JobType)
}
