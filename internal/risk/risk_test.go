package risk

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

type fakeStore struct {
	actors             []model.ThreatActor
	techniques         []model.Technique
	adoption           map[uuid.UUID]int
	new7d              map[uuid.UUID]int
	reactivated7d      map[uuid.UUID]int
	persistenceDays    map[uuid.UUID]float64
	snapshots          []model.CountryRiskSnapshot
	insertedSnapshots  []model.CountryRiskSnapshot
	insertedAlerts     []model.Alert
}

func (f *fakeStore) ActiveActors(ctx context.Context) ([]model.ThreatActor, error) {
	return f.actors, nil
}

func (f *fakeStore) ListTechniques(ctx context.Context) ([]model.Technique, error) {
	return f.techniques, nil
}

func (f *fakeStore) ActiveTechniqueCountForActors(ctx context.Context, techniqueID uuid.UUID, actorIDs []uuid.UUID) (int, error) {
	return f.adoption[techniqueID], nil
}

func (f *fakeStore) MeanFirstSeenAgeDays(ctx context.Context, techniqueID uuid.UUID, actorIDs []uuid.UUID, now time.Time) (float64, error) {
	return f.persistenceDays[techniqueID], nil
}

func (f *fakeStore) EventsSince(ctx context.Context, techniqueID uuid.UUID, eventType model.EventType, since time.Time) (int, error) {
	if eventType == model.EventNew {
		return f.new7d[techniqueID], nil
	}
	return f.reactivated7d[techniqueID], nil
}

func (f *fakeStore) InsertRiskSnapshot(ctx context.Context, snap model.CountryRiskSnapshot) (model.CountryRiskSnapshot, error) {
	snap.ID = uuid.New()
	f.insertedSnapshots = append(f.insertedSnapshots, snap)
	return snap, nil
}

func (f *fakeStore) LastSnapshots(ctx context.Context, country string, n int) ([]model.CountryRiskSnapshot, error) {
	return f.snapshots, nil
}

func (f *fakeStore) InsertAlert(ctx context.Context, a model.Alert) (model.Alert, error) {
	f.insertedAlerts = append(f.insertedAlerts, a)
	return a, nil
}

func TestEvaluate_NoActiveActorsIsNoop(t *testing.T) {
	fs := &fakeStore{}
	e := New(fs)

	snap, err := e.Evaluate(context.Background(), "CO", time.Now())
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Empty(t, fs.insertedSnapshots)
}

func TestEvaluate_ComputesWeightedScoreAcrossTouchedTechniques(t *testing.T) {
	actorID := uuid.New()
	tech1 := uuid.New()
	tech2 := uuid.New()

	fs := &fakeStore{
		actors: []model.ThreatActor{
			{ID: actorID, Country: "CO"},
		},
		techniques: []model.Technique{
			{ID: tech1, ExternalCode: "T1059"},
			{ID: tech2, ExternalCode: "T1566"},
		},
		adoption: map[uuid.UUID]int{
			tech1: 2,
			tech2: 0, // untouched technique, must not contribute
		},
		new7d:           map[uuid.UUID]int{tech1: 1},
		reactivated7d:   map[uuid.UUID]int{tech1: 1},
		persistenceDays: map[uuid.UUID]float64{tech1: 10},
	}
	e := New(fs)

	snap, err := e.Evaluate(context.Background(), "CO", time.Now())
	require.NoError(t, err)
	require.NotNil(t, snap)

	// 5*2 + 8*1 + 10*1 + 0.3*10 = 10 + 8 + 10 + 3 = 31
	assert.InDelta(t, 31.0, snap.RiskScore, 0.001)
	assert.Equal(t, 1, snap.TechniqueCount)
	assert.Equal(t, 1, snap.ActorCount)
	require.Len(t, fs.insertedSnapshots, 1)
}

func TestDetectChange_InsufficientHistoryIsNoop(t *testing.T) {
	fs := &fakeStore{
		snapshots: []model.CountryRiskSnapshot{
			{Country: "CO", RiskScore: 50},
		},
	}
	e := New(fs)

	err := e.detectChange(context.Background(), "CO", time.Now())
	require.NoError(t, err)
	assert.Empty(t, fs.insertedAlerts)
}

func TestDetectChange_PreviousZeroScoreIsNoop(t *testing.T) {
	fs := &fakeStore{
		snapshots: []model.CountryRiskSnapshot{
			{Country: "CO", RiskScore: 50},
			{Country: "CO", RiskScore: 0},
		},
	}
	e := New(fs)

	err := e.detectChange(context.Background(), "CO", time.Now())
	require.NoError(t, err)
	assert.Empty(t, fs.insertedAlerts)
}

func TestDetectChange_BelowThresholdIsNoop(t *testing.T) {
	fs := &fakeStore{
		snapshots: []model.CountryRiskSnapshot{
			{Country: "CO", RiskScore: 105},
			{Country: "CO", RiskScore: 100},
		},
	}
	e := New(fs)

	err := e.detectChange(context.Background(), "CO", time.Now())
	require.NoError(t, err)
	assert.Empty(t, fs.insertedAlerts)
}

func TestDetectChange_IncreaseAboveThresholdFiresHighSeverity(t *testing.T) {
	fs := &fakeStore{
		snapshots: []model.CountryRiskSnapshot{
			{Country: "CO", RiskScore: 130},
			{Country: "CO", RiskScore: 100},
		},
	}
	e := New(fs)

	err := e.detectChange(context.Background(), "CO", time.Now())
	require.NoError(t, err)
	require.Len(t, fs.insertedAlerts, 1)
	assert.Equal(t, model.SeverityHigh, fs.insertedAlerts[0].Severity)
}

func TestDetectChange_DecreaseAboveThresholdFiresLowSeverity(t *testing.T) {
	fs := &fakeStore{
		snapshots: []model.CountryRiskSnapshot{
			{Country: "CO", RiskScore: 70},
			{Country: "CO", RiskScore: 100},
		},
	}
	e := New(fs)

	err := e.detectChange(context.Background(), "CO", time.Now())
	require.NoError(t, err)
	require.Len(t, fs.insertedAlerts, 1)
	assert.Equal(t, model.SeverityLow, fs.insertedAlerts[0].Severity)
}
