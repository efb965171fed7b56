package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/catalog"
	"github.com/encasitacov19/CTI-PLATFORM/internal/jobs"
	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
	"github.com/encasitacov19/CTI-PLATFORM/pkg/logger"
)

// MitreScheduleStore is the subset of store.Store the MITRE sync
// scheduler needs for its singleton config row and lease protocol.
type MitreScheduleStore interface {
	GetMitreSyncConfig(ctx context.Context) (model.MitreSyncConfig, error)
	AcquireMitreSyncLease(ctx context.Context, id uuid.UUID, leaseUntil time.Time) (bool, error)
	ReleaseMitreSyncLease(ctx context.Context, id uuid.UUID, ranAt time.Time) error
}

// MitreScheduler drives the weekly MITRE reference catalog sync.
type MitreScheduler struct {
	store  MitreScheduleStore
	syncer *catalog.Syncer
	ledger *jobs.Ledger
	log    logger.Logger
	tz     *time.Location
	tick   time.Duration
	lease  time.Duration
	clock  Clock
	g      guard
}

// NewMitreScheduler builds a MitreScheduler (spec defaults 60s tick /
// 60min lease).
func NewMitreScheduler(store MitreScheduleStore, syncer *catalog.Syncer, ledger *jobs.Ledger, log logger.Logger, tzName string, tick, lease time.Duration) *MitreScheduler {
	return &MitreScheduler{
		store:  store,
		syncer: syncer,
		ledger: ledger,
		log:    log,
		tz:     loc(tzName),
		tick:   tick,
		lease:  lease,
		clock:  time.Now,
	}
}

// Run blocks, ticking until ctx is cancelled.
func (s *MitreScheduler) Run(ctx context.Context) {
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

func (s *MitreScheduler) maybeDispatch(ctx context.Context) {
	cfg, err := s.store.GetMitreSyncConfig(ctx)
	if err != nil {
		logError(s.log, "mitre_sync", err)
		return
	}
	if !cfg.Enabled {
		return
	}

	now := s.clock().In(s.tz)
	if abbrevFor(now) != normalizeDay(cfg.DayOfWeek) {
		return
	}
	if now.Format("15:04") != cfg.TimeHHMM {
		return
	}
	if sameSlot(cfg.LastRunAt, now, s.tz, cfg.TimeHHMM) {
		return
	}

	leaseUntil := s.clock().UTC().Add(s.lease)
	won, err := s.store.AcquireMitreSyncLease(ctx, cfg.ID, leaseUntil)
	if err != nil {
		logError(s.log, "mitre_sync", err)
		return
	}
	if !won {
		return
	}

	go s.dispatch(ctx, cfg.ID)
}

func (s *MitreScheduler) dispatch(ctx context.Context, configID uuid.UUID) {
	ranAt := s.clock().UTC()
	run, err := s.ledger.Start(ctx, model.JobTypeMitreSync, model.TriggerScheduler, nil, "", 0)
	if err != nil {
		logError(s.log, "mitre_sync", err)
		s.release(ctx, configID, ranAt)
		return
	}

	result, syncErr := s.syncer.Sync(ctx)
	details := fmt.Sprintf("legacy_created=%d legacy_total=%d stix_created=%d stix_updated=%d",
		result.LegacyCreated, result.LegacyTotal, result.Created, result.Updated)

	if syncErr != nil {
		if err := s.ledger.Fail(ctx, run.ID, result.FailedPhase+": "+details, syncErr); err != nil {
			logError(s.log, "mitre_sync", err)
		}
	} else {
		if err := s.ledger.Succeed(ctx, run.ID, details); err != nil {
			logError(s.log, "mitre_sync", err)
		}
	}

	s.release(ctx, configID, ranAt)
}

func (s *MitreScheduler) release(ctx context.Context, configID uuid.UUID, ranAt time.Time) {
	if err := s.store.ReleaseMitreSyncLease(ctx, configID, ranAt); err != nil {
		logError(s.log, "mitre_sync", err)
	}
}

func normalizeDay(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if len(d) < 3 {
		return d
	}
	return d[:3]
}
