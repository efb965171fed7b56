// Package evidence records the sample hashes that justified a
// files-fallback technique observation. It is append-only: the store
// layer dedups on (actor, technique, hash) so repeated sightings of the
// same sample never inflate the evidence table.
package evidence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

// Store is the subset of store.Store the Evidence Store needs.
type Store interface {
	InsertEvidence(ctx context.Context, e model.TechniqueEvidence) error
}

// Recorder wraps a Store with the dedicated "source" label that marks
// evidence gathered via the files-behaviour fallback path.
type Recorder struct {
	store Store
}

// New builds a Recorder.
func New(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record upserts one row per hash for the given actor/technique, all
// stamped with the same observation time and source label.
func (r *Recorder) Record(ctx context.Context, actorID, techniqueID uuid.UUID, hashes map[string]struct{}, source string, observedAt time.Time) error {
	for hash := range hashes {
		e := model.TechniqueEvidence{
			ID:          uuid.New(),
			ActorID:     actorID,
			TechniqueID: techniqueID,
			SampleHash:  hash,
			Source:      source,
			ObservedAt:  observedAt,
		}
		if err := r.store.InsertEvidence(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
