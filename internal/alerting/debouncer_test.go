package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
	"github.com/encasitacov19/CTI-PLATFORM/internal/store"
)

type fakeStore struct {
	states  map[string]model.AlertState
	alerts  []model.Alert
}

func stateKey(actorID, techniqueID uuid.UUID, eventType model.EventType) string {
	return actorID.String() + "|" + techniqueID.String() + "|" + string(eventType)
}

func (f *fakeStore) GetAlertState(ctx context.Context, actorID, techniqueID uuid.UUID, eventType model.EventType) (model.AlertState, error) {
	st, ok := f.states[stateKey(actorID, techniqueID, eventType)]
	if !ok {
		return model.AlertState{}, store.ErrNotFound
	}
	return st, nil
}

func (f *fakeStore) UpsertAlertState(ctx context.Context, actorID, techniqueID uuid.UUID, eventType model.EventType, firedAt time.Time) error {
	if f.states == nil {
		f.states = make(map[string]model.AlertState)
	}
	f.states[stateKey(actorID, techniqueID, eventType)] = model.AlertState{
		ActorID: actorID, TechniqueID: techniqueID, EventType: eventType, LastAlertAt: firedAt,
	}
	return nil
}

func (f *fakeStore) InsertAlert(ctx context.Context, a model.Alert) (model.Alert, error) {
	f.alerts = append(f.alerts, a)
	return a, nil
}

func TestNotify_FirstSightingAlwaysFires(t *testing.T) {
	fs := &fakeStore{}
	d := New(fs, 24*time.Hour)

	actor := model.ThreatActor{ID: uuid.New(), Name: "APT99"}
	technique := model.Technique{ID: uuid.New(), ExternalCode: "T1059"}

	alert, err := d.Notify(context.Background(), actor, technique, model.EventNew, "", time.Now())
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, model.SeverityHigh, alert.Severity)
	assert.Contains(t, alert.Title, "APT99")
	assert.Contains(t, alert.Title, "T1059")
}

func TestNotify_WithinSilenceWindowIsSuppressed(t *testing.T) {
	fs := &fakeStore{}
	d := New(fs, 24*time.Hour)

	actor := model.ThreatActor{ID: uuid.New(), Name: "APT99"}
	technique := model.Technique{ID: uuid.New(), ExternalCode: "T1059"}
	now := time.Now()

	first, err := d.Notify(context.Background(), actor, technique, model.EventNew, "", now)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := d.Notify(context.Background(), actor, technique, model.EventNew, "", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestNotify_AfterSilenceWindowFiresAgain(t *testing.T) {
	fs := &fakeStore{}
	d := New(fs, 24*time.Hour)

	actor := model.ThreatActor{ID: uuid.New(), Name: "APT99"}
	technique := model.Technique{ID: uuid.New(), ExternalCode: "T1059"}
	now := time.Now()

	first, err := d.Notify(context.Background(), actor, technique, model.EventNew, "", now)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := d.Notify(context.Background(), actor, technique, model.EventNew, "", now.Add(25*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, second)
}

func TestNotify_BlankContextFallsBackToDefaultDescription(t *testing.T) {
	fs := &fakeStore{}
	d := New(fs, 24*time.Hour)

	actor := model.ThreatActor{ID: uuid.New(), Name: "APT99"}
	technique := model.Technique{ID: uuid.New(), ExternalCode: "T1566"}

	alert, err := d.Notify(context.Background(), actor, technique, model.EventDisappeared, "", time.Now())
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, "technique no longer observed", alert.Description)
	assert.Equal(t, model.SeverityLow, alert.Severity)
}

func TestNotify_DistinctEventTypesDebounceIndependently(t *testing.T) {
	fs := &fakeStore{}
	d := New(fs, 24*time.Hour)

	actor := model.ThreatActor{ID: uuid.New(), Name: "APT99"}
	technique := model.Technique{ID: uuid.New(), ExternalCode: "T1059"}
	now := time.Now()

	_, err := d.Notify(context.Background(), actor, technique, model.EventNew, "", now)
	require.NoError(t, err)

	reactivated, err := d.Notify(context.Background(), actor, technique, model.EventReactivated, "", now)
	require.NoError(t, err)
	assert.NotNil(t, reactivated)
}
