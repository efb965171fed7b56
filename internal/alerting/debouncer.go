// Package alerting gates intelligence events into Alert records,
// suppressing repeats of the same (actor, technique, event_type) within
// a configurable silence window.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
	"github.com/encasitacov19/CTI-PLATFORM/internal/store"
)

// Store is the subset of store.Store the debouncer needs.
type Store interface {
	GetAlertState(ctx context.Context, actorID, techniqueID uuid.UUID, eventType model.EventType) (model.AlertState, error)
	UpsertAlertState(ctx context.Context, actorID, techniqueID uuid.UUID, eventType model.EventType, firedAt time.Time) error
	InsertAlert(ctx context.Context, a model.Alert) (model.Alert, error)
}

// Debouncer applies the silence window to (actor, technique, event_type)
// triples before letting an Alert through.
type Debouncer struct {
	store  Store
	window time.Duration
}

// New builds a Debouncer with the given silence window (spec default
// 24h).
func New(s Store, window time.Duration) *Debouncer {
	return &Debouncer{store: s, window: window}
}

// Notify evaluates whether an event should surface as an Alert. context
// becomes the Alert's description, falling back to a standard phrase
// per event type when blank. A debounced event is silently dropped per
// spec.md 7 — it is not retried or queued.
func (d *Debouncer) Notify(ctx context.Context, actor model.ThreatActor, technique model.Technique, eventType model.EventType, context_ string, now time.Time) (*model.Alert, error) {
	st, err := d.store.GetAlertState(ctx, actor.ID, technique.ID, eventType)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := d.store.UpsertAlertState(ctx, actor.ID, technique.ID, eventType, now); err != nil {
			return nil, err
		}
		return d.emit(ctx, actor, technique, eventType, context_, now)
	case err != nil:
		return nil, err
	}

	if now.Sub(st.LastAlertAt) <= d.window {
		return nil, nil
	}
	if err := d.store.UpsertAlertState(ctx, actor.ID, technique.ID, eventType, now); err != nil {
		return nil, err
	}
	return d.emit(ctx, actor, technique, eventType, context_, now)
}

func (d *Debouncer) emit(ctx context.Context, actor model.ThreatActor, technique model.Technique, eventType model.EventType, context_ string, now time.Time) (*model.Alert, error) {
	if context_ == "" {
		context_ = defaultDescription(eventType)
	}
	techID := technique.ID
	a := model.Alert{
		ID:          uuid.New(),
		ActorID:     &actor.ID,
		TechniqueID: &techID,
		Title:       fmt.Sprintf("%s using %s", actor.Name, technique.ExternalCode),
		Description: context_,
		Severity:    model.SeverityForEvent(eventType),
		CreatedAt:   now,
	}
	created, err := d.store.InsertAlert(ctx, a)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func defaultDescription(eventType model.EventType) string {
	switch eventType {
	case model.EventNew:
		return "technique observed for the first time"
	case model.EventReactivated:
		return "technique observed again after a period of absence"
	case model.EventDisappeared:
		return "technique no longer observed"
	default:
		return ""
	}
}
