package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/collector"
	"github.com/encasitacov19/CTI-PLATFORM/internal/jobs"
	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
	"github.com/encasitacov19/CTI-PLATFORM/pkg/logger"
)

// ScheduleStore is the subset of store.Store the collector scheduler
// needs for its singleton config row and lease protocol.
type ScheduleStore interface {
	GetScheduleConfig(ctx context.Context) (model.ScheduleConfig, error)
	AcquireScheduleLease(ctx context.Context, id uuid.UUID, leaseUntil time.Time) (bool, error)
	ReleaseScheduleLease(ctx context.Context, id uuid.UUID, ranAt time.Time) error
}

// CollectorScheduler drives the collection cadence loop: wakes
// periodically, checks the configured day/time against the display
// timezone, and dispatches the Collection Runner under a database
// lease.
type CollectorScheduler struct {
	store    ScheduleStore
	runner   *collector.Runner
	ledger   *jobs.Ledger
	log      logger.Logger
	tz       *time.Location
	tick     time.Duration
	lease    time.Duration
	clock    Clock
	g        guard
}

// NewCollectorScheduler builds a CollectorScheduler. tzName is the
// display timezone (spec default "America/Bogota"); tick and lease are
// the wake interval and lease duration (spec defaults 30s tick / 30min
// lease).
func NewCollectorScheduler(store ScheduleStore, runner *collector.Runner, ledger *jobs.Ledger, log logger.Logger, tzName string, tick, lease time.Duration) *CollectorScheduler {
	return &CollectorScheduler{
		store:  store,
		runner: runner,
		ledger: ledger,
		log:    log,
		tz:     loc(tzName),
		tick:   tick,
		lease:  lease,
		clock:  time.Now,
	}
}

// Run blocks, ticking until ctx is cancelled. Startup is delayed by one
// tick interval so in-flight state has a moment to settle before the
// first dispatch decision, per spec.md 4.7.
func (s *CollectorScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.g.tryDispatch(func() { s.maybeDispatch(ctx) })
		}
	}
}

func (s *CollectorScheduler) maybeDispatch(ctx context.Context) {
	cfg, err := s.store.GetScheduleConfig(ctx)
	if err != nil {
		logError(s.log, "collector", err)
		return
	}
	if !cfg.Enabled {
		return
	}

	now := s.clock().In(s.tz)
	if !daysContains(cfg.Days, abbrevFor(now)) {
		return
	}
	if now.Format("15:04") != cfg.TimeHHMM {
		return
	}
	if sameSlot(cfg.LastRunAt, now, s.tz, cfg.TimeHHMM) {
		return
	}

	leaseUntil := s.clock().UTC().Add(s.lease)
	won, err := s.store.AcquireScheduleLease(ctx, cfg.ID, leaseUntil)
	if err != nil {
		logError(s.log, "collector", err)
		return
	}
	if !won {
		return
	}

	go s.dispatch(ctx, cfg.ID)
}

func (s *CollectorScheduler) dispatch(ctx context.Context, configID uuid.UUID) {
	ranAt := s.clock().UTC()
	run, err := s.ledger.Start(ctx, model.JobTypeCollector, model.TriggerScheduler, nil, "", 0)
	if err != nil {
		logError(s.log, "collector", err)
		s.release(ctx, configID, ranAt)
		return
	}

	summary, runErr := s.runner.Run(ctx, ranAt, func(processed, total int, event string) {
		if err := s.ledger.Progress(ctx, run.ID, processed, total); err != nil {
			logError(s.log, "collector", err)
		}
		s.log.Debug("collector progress", "event", event, "processed", processed, "total", total)
	})

	details := fmt.Sprintf("total=%d scanned=%d skipped=%d errors=%d countries=%d",
		summary.TotalActors, summary.Scanned, summary.Skipped, summary.Errors, summary.CountriesEvaluated)

	if runErr != nil {
		if err := s.ledger.Fail(ctx, run.ID, details, runErr); err != nil {
			logError(s.log, "collector", err)
		}
	} else {
		if err := s.ledger.Succeed(ctx, run.ID, details); err != nil {
			logError(s.log, "collector", err)
		}
	}

	s.release(ctx, configID, ranAt)
}

func (s *CollectorScheduler) release(ctx context.Context, configID uuid.UUID, ranAt time.Time) {
	if err := s.store.ReleaseScheduleLease(ctx, configID, ranAt); err != nil {
		logError(s.log, "collector", err)
	}
}
