// Package risk computes per-country risk snapshots from reconciliation
// state and raises an Alert when consecutive snapshots diverge
// materially.
package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

const (
	weightAdoption       = 5.0
	weightNew7d          = 8.0
	weightReactivated7d  = 10.0
	weightPersistence    = 0.3
	changeThresholdRatio = 0.15
)

// Store is the subset of store.Store the Risk Evaluator needs.
type Store interface {
	ActiveActors(ctx context.Context) ([]model.ThreatActor, error)
	ListTechniques(ctx context.Context) ([]model.Technique, error)
	ActiveTechniqueCountForActors(ctx context.Context, techniqueID uuid.UUID, actorIDs []uuid.UUID) (int, error)
	MeanFirstSeenAgeDays(ctx context.Context, techniqueID uuid.UUID, actorIDs []uuid.UUID, now time.Time) (float64, error)
	EventsSince(ctx context.Context, techniqueID uuid.UUID, eventType model.EventType, since time.Time) (int, error)
	InsertRiskSnapshot(ctx context.Context, snap model.CountryRiskSnapshot) (model.CountryRiskSnapshot, error)
	LastSnapshots(ctx context.Context, country string, n int) ([]model.CountryRiskSnapshot, error)
	InsertAlert(ctx context.Context, a model.Alert) (model.Alert, error)
}

// Evaluator computes and persists country risk snapshots.
type Evaluator struct {
	store Store
}

// New builds an Evaluator.
func New(s Store) *Evaluator {
	return &Evaluator{store: s}
}

// Evaluate computes the per-technique risk for country, sums every
// contributing technique into a stored CountryRiskSnapshot, and runs
// change detection against the prior snapshot. A country with no active
// actors is a no-op.
func (e *Evaluator) Evaluate(ctx context.Context, country string, now time.Time) (*model.CountryRiskSnapshot, error) {
	allActors, err := e.store.ActiveActors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active actors: %w", err)
	}
	var actorIDs []uuid.UUID
	for _, a := range allActors {
		if a.Country == country {
			actorIDs = append(actorIDs, a.ID)
		}
	}
	if len(actorIDs) == 0 {
		return nil, nil
	}

	techniques, err := e.store.ListTechniques(ctx)
	if err != nil {
		return nil, fmt.Errorf("load techniques: %w", err)
	}

	since := now.Add(-7 * 24 * time.Hour)
	var total float64
	touched := 0
	for _, t := range techniques {
		adoption, err := e.store.ActiveTechniqueCountForActors(ctx, t.ID, actorIDs)
		if err != nil {
			return nil, fmt.Errorf("adoption for %s: %w", t.ExternalCode, err)
		}
		if adoption == 0 {
			continue
		}

		new7d, err := e.store.EventsSince(ctx, t.ID, model.EventNew, since)
		if err != nil {
			return nil, fmt.Errorf("new_7d for %s: %w", t.ExternalCode, err)
		}
		reactivated7d, err := e.store.EventsSince(ctx, t.ID, model.EventReactivated, since)
		if err != nil {
			return nil, fmt.Errorf("reactivated_7d for %s: %w", t.ExternalCode, err)
		}
		persistence, err := e.store.MeanFirstSeenAgeDays(ctx, t.ID, actorIDs, now)
		if err != nil {
			return nil, fmt.Errorf("persistence for %s: %w", t.ExternalCode, err)
		}

		score := weightAdoption*float64(adoption) +
			weightNew7d*float64(new7d) +
			weightReactivated7d*float64(reactivated7d) +
			weightPersistence*persistence

		total += score
		touched++
	}

	snap := model.CountryRiskSnapshot{
		Country:        country,
		RiskScore:      total,
		TechniqueCount: touched,
		ActorCount:     len(actorIDs),
		CreatedAt:      now,
	}
	stored, err := e.store.InsertRiskSnapshot(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}

	if err := e.detectChange(ctx, country, now); err != nil {
		return &stored, fmt.Errorf("change detection: %w", err)
	}
	return &stored, nil
}

// detectChange loads the two most recent snapshots and raises an Alert
// when they diverge by at least changeThresholdRatio. It no-ops when
// there is insufficient history or the previous risk was zero (a signed
// percent change from zero is undefined).
func (e *Evaluator) detectChange(ctx context.Context, country string, now time.Time) error {
	snaps, err := e.store.LastSnapshots(ctx, country, 2)
	if err != nil {
		return err
	}
	if len(snaps) < 2 {
		return nil
	}

	current, previous := snaps[0], snaps[1]
	if previous.RiskScore == 0 {
		return nil
	}

	change := (current.RiskScore - previous.RiskScore) / previous.RiskScore
	if change > -changeThresholdRatio && change < changeThresholdRatio {
		return nil
	}

	severity := model.SeverityLow
	if change > 0 {
		severity = model.SeverityHigh
	}

	alert := model.Alert{
		ID:       uuid.New(),
		Title:    fmt.Sprintf("%s risk %s by %.1f%%", country, direction(change), change*100),
		Description: fmt.Sprintf("risk score moved from %.2f to %.2f (%.1f%% change)",
			previous.RiskScore, current.RiskScore, change*100),
		Severity:  severity,
		CreatedAt: now,
	}
	_, err = e.store.InsertAlert(ctx, alert)
	return err
}

func direction(change float64) string {
	if change > 0 {
		return "increased"
	}
	return "decreased"
}
