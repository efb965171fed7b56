// Package reconcile implements the per-actor core of the intelligence
// tracking engine: merging a freshly fetched technique set against
// stored state, maintaining sightings and distinct-day counters, and
// emitting NEW / REACTIVATED / DISAPPEARED events under configurable
// confirmation thresholds.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/alerting"
	"github.com/encasitacov19/CTI-PLATFORM/internal/config"
	"github.com/encasitacov19/CTI-PLATFORM/internal/evidence"
	"github.com/encasitacov19/CTI-PLATFORM/internal/feed"
	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
	"github.com/encasitacov19/CTI-PLATFORM/internal/store"
)

// Status is the outcome of reconciling a single actor.
type Status string

const (
	StatusOK       Status = "OK"
	StatusNotFound Status = "NOT_FOUND"
	StatusError    Status = "ERROR"
)

// Summary reports the per-actor counts produced by one reconciliation
// pass, for the Collection Runner's progress reporting and the Job
// Ledger.
type Summary struct {
	Status       Status
	New          int
	Reactivated  int
	Disappeared  int
	MissingMitre int
	Source       string
	Err          error
}

// FeedClient is the subset of feed.Client the engine needs.
type FeedClient interface {
	ResolveCollection(ctx context.Context, externalID, actorName string) (string, error)
	FetchTechniques(ctx context.Context, collectionID string) (map[string]struct{}, error)
	FetchFileHashes(ctx context.Context, collectionID string, limit int) ([]string, error)
	FetchFileMitreTree(ctx context.Context, hash string) map[string]struct{}
}

// Engine is the per-actor reconciliation core.
type Engine struct {
	store     *store.Store
	feed      FeedClient
	debouncer *alerting.Debouncer
	evidence  *evidence.Recorder
	cfg       *config.Engine
}

// New builds an Engine.
func New(s *store.Store, f FeedClient, d *alerting.Debouncer, ev *evidence.Recorder, cfg *config.Engine) *Engine {
	return &Engine{store: s, feed: f, debouncer: d, evidence: ev, cfg: cfg}
}

// ShouldThrottle reports whether actor was reconciled too recently to
// run again, per the per-actor throttle in spec.md 4.3. A zero or
// negative ScanMinInterval disables throttling.
func (e *Engine) ShouldThrottle(ctx context.Context, actorID uuid.UUID, now time.Time) (bool, error) {
	if e.cfg.ScanMinInterval <= 0 {
		return false, nil
	}
	last, ok, err := e.store.MaxLastCollected(ctx, actorID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return now.Sub(last) < e.cfg.ScanMinInterval, nil
}

// Reconcile runs the full algorithm for a single actor against wall
// clock now.
func (e *Engine) Reconcile(ctx context.Context, actor model.ThreatActor, now time.Time) Summary {
	collectionID, err := e.feed.ResolveCollection(ctx, actor.ExternalID, actor.Name)
	if errors.Is(err, feed.ErrNotFound) {
		return Summary{Status: StatusNotFound}
	}
	if err != nil {
		return Summary{Status: StatusError, Err: err}
	}

	codes, err := e.feed.FetchTechniques(ctx, collectionID)
	if errors.Is(err, feed.ErrTransient) {
		return Summary{Status: StatusError, Err: err}
	}
	if err != nil {
		return Summary{Status: StatusError, Err: err}
	}

	source := "attack_techniques"
	evidenceByCode := map[string]map[string]struct{}{}

	if len(codes) == 0 {
		source = "files_behaviour_mitre_trees"
		hashes, err := e.feed.FetchFileHashes(ctx, collectionID, e.cfg.FilesFallbackLimit)
		if errors.Is(err, feed.ErrTransient) {
			return Summary{Status: StatusError, Err: err}
		}
		if err != nil {
			return Summary{Status: StatusError, Err: err}
		}
		codes = make(map[string]struct{})
		for _, hash := range hashes {
			tree := e.feed.FetchFileMitreTree(ctx, hash)
			for code := range tree {
				codes[code] = struct{}{}
				if evidenceByCode[code] == nil {
					evidenceByCode[code] = make(map[string]struct{})
				}
				evidenceByCode[code][hash] = struct{}{}
			}
		}
	}

	summary := Summary{Status: StatusOK, Source: source}

	txErr := e.store.WithTx(ctx, func(ctx context.Context, tx *store.Store) error {
		existing, err := tx.ActorTechniquesByActor(ctx, actor.ID)
		if err != nil {
			return fmt.Errorf("load existing actor techniques: %w", err)
		}

		seen := make(map[string]struct{})
		for code := range codes {
			technique, err := tx.GetTechniqueByCode(ctx, code)
			if errors.Is(err, store.ErrNotFound) {
				summary.MissingMitre++
				continue
			}
			if err != nil {
				return fmt.Errorf("lookup technique %s: %w", code, err)
			}
			seen[code] = struct{}{}

			if err := e.reconcileOne(ctx, tx, actor, technique, existing[code], now, &summary); err != nil {
				return err
			}

			if source == "files_behaviour_mitre_trees" {
				if hashes := evidenceByCode[code]; len(hashes) > 0 {
					if err := e.evidence.Record(ctx, actor.ID, technique.ID, hashes, source, now); err != nil {
						return fmt.Errorf("record evidence for %s: %w", code, err)
					}
				}
			}
		}

		for code, row := range existing {
			if _, ok := seen[code]; ok {
				continue
			}
			if !row.Active {
				continue
			}
			technique, err := tx.GetTechnique(ctx, row.TechniqueID)
			if err != nil {
				return fmt.Errorf("lookup disappeared technique %s: %w", code, err)
			}
			row.Active = false
			if err := tx.UpdateActorTechnique(ctx, row); err != nil {
				return fmt.Errorf("deactivate %s: %w", code, err)
			}
			if _, err := tx.InsertEvent(ctx, model.IntelligenceEvent{
				ActorID: actor.ID, TechniqueID: technique.ID, EventType: model.EventDisappeared, CreatedAt: now,
			}); err != nil {
				return fmt.Errorf("record disappeared event for %s: %w", code, err)
			}
			if _, err := e.debouncer.Notify(ctx, actor, technique, model.EventDisappeared, "", now); err != nil {
				return fmt.Errorf("debounce disappeared alert for %s: %w", code, err)
			}
			summary.Disappeared++
		}
		return nil
	})

	if txErr != nil {
		return Summary{Status: StatusError, Err: txErr}
	}
	return summary
}

// reconcileOne applies the NEW/REACTIVATED branch for a single incoming
// technique code against its (possibly absent) existing row.
func (e *Engine) reconcileOne(ctx context.Context, tx *store.Store, actor model.ThreatActor, technique model.Technique, row model.ActorTechnique, now time.Time, summary *Summary) error {
	existed := row.ID != uuid.Nil

	if !existed {
		row = model.ActorTechnique{
			ActorID:        actor.ID,
			TechniqueID:    technique.ID,
			FirstSeen:      now,
			LastSeen:       now,
			LastCollected:  now,
			Active:         true,
			SightingsCount: 1,
			SeenDaysCount:  1,
			NewAlertSent:   false,
		}
		stored, err := tx.InsertActorTechnique(ctx, row)
		if err != nil {
			return fmt.Errorf("insert actor technique: %w", err)
		}
		row = stored

		if e.confirmed(technique, row) {
			return e.fireNew(ctx, tx, actor, technique, &row, now, summary)
		}
		return nil
	}

	// new_alert_sent only ever flips true inside fireNew, so it is
	// already write-once by construction: a row imported with it unset
	// behaves exactly like a row this engine created but never yet
	// confirmed, and simply waits for confirmation like any other.
	prevLastSeen := row.LastSeen
	wasActive := row.Active

	row.LastSeen = now
	row.LastCollected = now
	row.SightingsCount++
	if !sameUTCDate(prevLastSeen, now) {
		row.SeenDaysCount++
	}

	if !wasActive {
		row.Active = true
		if err := tx.UpdateActorTechnique(ctx, row); err != nil {
			return fmt.Errorf("update actor technique: %w", err)
		}
		if _, err := tx.InsertEvent(ctx, model.IntelligenceEvent{
			ActorID: actor.ID, TechniqueID: technique.ID, EventType: model.EventReactivated, CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("record reactivated event: %w", err)
		}
		if _, err := e.debouncer.Notify(ctx, actor, technique, model.EventReactivated, "", now); err != nil {
			return fmt.Errorf("debounce reactivated alert: %w", err)
		}
		summary.Reactivated++
		return nil
	}

	if !row.NewAlertSent && e.confirmed(technique, row) {
		return e.fireNew(ctx, tx, actor, technique, &row, now, summary)
	}

	return tx.UpdateActorTechnique(ctx, row)
}

// fireNew marks row confirmed, persists it, and emits the NEW event and
// alert.
func (e *Engine) fireNew(ctx context.Context, tx *store.Store, actor model.ThreatActor, technique model.Technique, row *model.ActorTechnique, now time.Time, summary *Summary) error {
	row.NewAlertSent = true
	if err := tx.UpdateActorTechnique(ctx, *row); err != nil {
		return fmt.Errorf("update actor technique: %w", err)
	}
	if _, err := tx.InsertEvent(ctx, model.IntelligenceEvent{
		ActorID: actor.ID, TechniqueID: technique.ID, EventType: model.EventNew, CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("record new event: %w", err)
	}
	if _, err := e.debouncer.Notify(ctx, actor, technique, model.EventNew, "", now); err != nil {
		return fmt.Errorf("debounce new alert: %w", err)
	}
	summary.New++
	return nil
}

// confirmed applies the watchlist → tactic-override → default priority
// to decide whether row's counters clear the NEW confirmation bar.
func (e *Engine) confirmed(technique model.Technique, row model.ActorTechnique) bool {
	minSightings, minDays := e.threshold(technique)
	return row.SightingsCount >= minSightings && row.SeenDaysCount >= minDays
}

func (e *Engine) threshold(technique model.Technique) (int, int) {
	if _, ok := e.cfg.WatchlistTechniques[technique.ExternalCode]; ok {
		return e.cfg.WatchlistMinSightings, e.cfg.WatchlistMinDistinctDays
	}

	found := false
	minSightings, minDays := 0, 0
	for _, tactic := range technique.TacticList() {
		th, ok := e.cfg.TacticThresholdOverrides[tactic]
		if !ok {
			continue
		}
		if !found || th.MinSightings < minSightings {
			minSightings = th.MinSightings
		}
		if !found || th.MinDays < minDays {
			minDays = th.MinDays
		}
		found = true
	}
	if found {
		return minSightings, minDays
	}

	return e.cfg.NewAlertMinSightings, e.cfg.NewAlertMinDistinctDays
}

func sameUTCDate(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
