package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

// InsertEvidence records a sample hash observed for an actor/technique
// pair. Duplicate (actor_id, technique_id, sample_hash) triples are
// silently ignored — the Evidence Store is append-only within that
// uniqueness constraint, matching the original `store_technique_evidence`
// dedup-on-insert behaviour.
func (s *Store) InsertEvidence(ctx context.Context, e model.TechniqueEvidence) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.ObservedAt.IsZero() {
		e.ObservedAt = time.Now().UTC()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO technique_evidence (id, actor_id, technique_id, sample_hash, source, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (actor_id, technique_id, sample_hash) DO NOTHING`,
		e.ID, e.ActorID, e.TechniqueID, e.SampleHash, e.Source, e.ObservedAt)
	return err
}

// EvidenceForActorTechnique lists every sample hash on record for an
// actor/technique pair, newest first.
func (s *Store) EvidenceForActorTechnique(ctx context.Context, actorID, techniqueID uuid.UUID) ([]model.TechniqueEvidence, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, actor_id, technique_id, sample_hash, source, observed_at
		FROM technique_evidence
		WHERE actor_id = $1 AND technique_id = $2
		ORDER BY observed_at DESC`, actorID, techniqueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TechniqueEvidence
	for rows.Next() {
		var e model.TechniqueEvidence
		if err := rows.Scan(&e.ID, &e.ActorID, &e.TechniqueID, &e.SampleHash, &e.Source, &e.ObservedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
