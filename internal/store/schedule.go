package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

// GetScheduleConfig returns the singleton collector schedule row,
// creating it with sensible defaults on first use.
func (s *Store) GetScheduleConfig(ctx context.Context) (model.ScheduleConfig, error) {
	var c model.ScheduleConfig
	row := s.q.QueryRowContext(ctx, `
		SELECT id, time_hhmm, days, enabled, last_run_at, running, lock_until, updated_at
		FROM schedule_config LIMIT 1`)
	err := row.Scan(&c.ID, &c.TimeHHMM, &c.Days, &c.Enabled, &c.LastRunAt, &c.Running, &c.LockUntil, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s.createDefaultScheduleConfig(ctx)
	}
	return c, err
}

func (s *Store) createDefaultScheduleConfig(ctx context.Context) (model.ScheduleConfig, error) {
	c := model.ScheduleConfig{
		ID:        uuid.New(),
		TimeHHMM:  "06:00",
		Days:      "mon,tue,wed,thu,fri",
		Enabled:   true,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO schedule_config (id, time_hhmm, days, enabled, running, updated_at)
		VALUES ($1, $2, $3, $4, false, $5)`,
		c.ID, c.TimeHHMM, c.Days, c.Enabled, c.UpdatedAt)
	return c, err
}

// UpdateScheduleConfig persists operator-editable fields (time, days,
// enabled) for the collector schedule.
func (s *Store) UpdateScheduleConfig(ctx context.Context, id uuid.UUID, timeHHMM, days string, enabled bool) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE schedule_config SET time_hhmm = $2, days = $3, enabled = $4, updated_at = now()
		WHERE id = $1`, id, timeHHMM, days, enabled)
	return err
}

// AcquireScheduleLease attempts to take the collector run lease,
// returning true only if this call won the race. It uses a conditional
// UPDATE guarded by running/lock_until so concurrent instances cannot
// both start a run.
func (s *Store) AcquireScheduleLease(ctx context.Context, id uuid.UUID, leaseUntil time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE schedule_config SET running = true, lock_until = $2
		WHERE id = $1 AND (running = false OR lock_until IS NULL OR lock_until < now())`,
		id, leaseUntil)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseScheduleLease clears the running flag and stamps last_run_at
// after a collector run finishes (success or failure).
func (s *Store) ReleaseScheduleLease(ctx context.Context, id uuid.UUID, ranAt time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE schedule_config SET running = false, lock_until = NULL, last_run_at = $2
		WHERE id = $1`, id, ranAt)
	return err
}

// GetMitreSyncConfig returns the singleton MITRE catalog sync schedule
// row, creating it with defaults on first use.
func (s *Store) GetMitreSyncConfig(ctx context.Context) (model.MitreSyncConfig, error) {
	var c model.MitreSyncConfig
	row := s.q.QueryRowContext(ctx, `
		SELECT id, day_of_week, time_hhmm, enabled, last_run_at, running, lock_until, updated_at
		FROM mitre_sync_config LIMIT 1`)
	err := row.Scan(&c.ID, &c.DayOfWeek, &c.TimeHHMM, &c.Enabled, &c.LastRunAt, &c.Running, &c.LockUntil, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s.createDefaultMitreSyncConfig(ctx)
	}
	return c, err
}

func (s *Store) createDefaultMitreSyncConfig(ctx context.Context) (model.MitreSyncConfig, error) {
	c := model.MitreSyncConfig{
		ID:        uuid.New(),
		DayOfWeek: "sun",
		TimeHHMM:  "03:00",
		Enabled:   true,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO mitre_sync_config (id, day_of_week, time_hhmm, enabled, running, updated_at)
		VALUES ($1, $2, $3, $4, false, $5)`,
		c.ID, c.DayOfWeek, c.TimeHHMM, c.Enabled, c.UpdatedAt)
	return c, err
}

// UpdateMitreSyncConfig persists operator-editable fields for the MITRE
// catalog sync schedule.
func (s *Store) UpdateMitreSyncConfig(ctx context.Context, id uuid.UUID, dayOfWeek, timeHHMM string, enabled bool) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE mitre_sync_config SET day_of_week = $2, time_hhmm = $3, enabled = $4, updated_at = now()
		WHERE id = $1`, id, dayOfWeek, timeHHMM, enabled)
	return err
}

// AcquireMitreSyncLease mirrors AcquireScheduleLease for the MITRE
// catalog sync loop.
func (s *Store) AcquireMitreSyncLease(ctx context.Context, id uuid.UUID, leaseUntil time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE mitre_sync_config SET running = true, lock_until = $2
		WHERE id = $1 AND (running = false OR lock_until IS NULL OR lock_until < now())`,
		id, leaseUntil)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseMitreSyncLease mirrors ReleaseScheduleLease for the MITRE
// catalog sync loop.
func (s *Store) ReleaseMitreSyncLease(ctx context.Context, id uuid.UUID, ranAt time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE mitre_sync_config SET running = false, lock_until = NULL, last_run_at = $2
		WHERE id = $1`, id, ranAt)
	return err
}
