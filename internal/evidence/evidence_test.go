package evidence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

type fakeStore struct {
	inserted []model.TechniqueEvidence
	failOn   string
}

func (f *fakeStore) InsertEvidence(ctx context.Context, e model.TechniqueEvidence) error {
	if f.failOn != "" && e.SampleHash == f.failOn {
		return errors.New("insert failed")
	}
	f.inserted = append(f.inserted, e)
	return nil
}

func TestRecord_InsertsOneRowPerHash(t *testing.T) {
	fs := &fakeStore{}
	r := New(fs)

	actorID := uuid.New()
	techID := uuid.New()
	now := time.Now()
	hashes := map[string]struct{}{"hash-a": {}, "hash-b": {}, "hash-c": {}}

	err := r.Record(context.Background(), actorID, techID, hashes, "files_behaviour_mitre_trees", now)
	require.NoError(t, err)
	require.Len(t, fs.inserted, 3)

	for _, e := range fs.inserted {
		assert.Equal(t, actorID, e.ActorID)
		assert.Equal(t, techID, e.TechniqueID)
		assert.Equal(t, "files_behaviour_mitre_trees", e.Source)
		assert.Equal(t, now, e.ObservedAt)
		assert.NotEqual(t, uuid.Nil, e.ID)
	}
}

func TestRecord_EmptyHashSetIsNoop(t *testing.T) {
	fs := &fakeStore{}
	r := New(fs)

	err := r.Record(context.Background(), uuid.New(), uuid.New(), map[string]struct{}{}, "source", time.Now())
	require.NoError(t, err)
	assert.Empty(t, fs.inserted)
}

func TestRecord_PropagatesStoreError(t *testing.T) {
	fs := &fakeStore{failOn: "bad-hash"}
	r := New(fs)

	err := r.Record(context.Background(), uuid.New(), uuid.New(), map[string]struct{}{"bad-hash": {}}, "source", time.Now())
	assert.Error(t, err)
}
