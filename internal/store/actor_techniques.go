package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

// uuidArray converts a slice of uuid.UUID into a pq array literal
// suitable for an ANY($n) comparison.
func uuidArray(ids []uuid.UUID) interface{} {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	return pq.Array(strs)
}

// ActorTechniquesByActor loads every ActorTechnique row for an actor,
// keyed by the technique's external code — the shape the Reconciliation
// Engine needs to look up "is this code already tracked" in O(1).
func (s *Store) ActorTechniquesByActor(ctx context.Context, actorID uuid.UUID) (map[string]model.ActorTechnique, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT at.id, at.actor_id, at.technique_id, at.first_seen, at.last_seen,
		       at.last_collected, at.active, at.sightings_count, at.seen_days_count,
		       at.new_alert_sent, t.external_code
		FROM actor_techniques at
		JOIN techniques t ON t.id = at.technique_id
		WHERE at.actor_id = $1`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]model.ActorTechnique)
	for rows.Next() {
		var at model.ActorTechnique
		var code string
		if err := rows.Scan(&at.ID, &at.ActorID, &at.TechniqueID, &at.FirstSeen, &at.LastSeen,
			&at.LastCollected, &at.Active, &at.SightingsCount, &at.SeenDaysCount,
			&at.NewAlertSent, &code); err != nil {
			return nil, err
		}
		out[code] = at
	}
	return out, rows.Err()
}

// MaxLastCollected returns the most recent last_collected across an
// actor's ActorTechnique rows, used by the per-actor throttle in
// spec.md 4.3. A zero time and false is returned when the actor has no
// rows yet (never scanned).
func (s *Store) MaxLastCollected(ctx context.Context, actorID uuid.UUID) (time.Time, bool, error) {
	var t sql.NullTime
	row := s.q.QueryRowContext(ctx, `
		SELECT MAX(last_collected) FROM actor_techniques WHERE actor_id = $1`, actorID)
	if err := row.Scan(&t); err != nil {
		return time.Time{}, false, err
	}
	if !t.Valid {
		return time.Time{}, false, nil
	}
	return t.Time, true, nil
}

// InsertActorTechnique creates a brand-new reconciliation row for a
// first-ever observation of a technique for an actor.
func (s *Store) InsertActorTechnique(ctx context.Context, at model.ActorTechnique) (model.ActorTechnique, error) {
	if at.ID == uuid.Nil {
		at.ID = uuid.New()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO actor_techniques
			(id, actor_id, technique_id, first_seen, last_seen, last_collected,
			 active, sightings_count, seen_days_count, new_alert_sent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		at.ID, at.ActorID, at.TechniqueID, at.FirstSeen, at.LastSeen, at.LastCollected,
		at.Active, at.SightingsCount, at.SeenDaysCount, at.NewAlertSent)
	return at, err
}

// UpdateActorTechnique persists the full mutable state of an existing
// row. The Reconciliation Engine always reads-modifies-writes a row
// within the same transaction, so a blind UPDATE by id is sufficient.
func (s *Store) UpdateActorTechnique(ctx context.Context, at model.ActorTechnique) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE actor_techniques SET
			last_seen = $2, last_collected = $3, active = $4,
			sightings_count = $5, seen_days_count = $6, new_alert_sent = $7
		WHERE id = $1`,
		at.ID, at.LastSeen, at.LastCollected, at.Active,
		at.SightingsCount, at.SeenDaysCount, at.NewAlertSent)
	return err
}

// ActiveTechniqueCountForActors counts, per technique, how many of the
// given actors currently have it active. Used by the Risk Evaluator's
// adoption metric.
func (s *Store) ActiveTechniqueCountForActors(ctx context.Context, techniqueID uuid.UUID, actorIDs []uuid.UUID) (int, error) {
	if len(actorIDs) == 0 {
		return 0, nil
	}
	row := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM actor_techniques
		WHERE technique_id = $1 AND active = true AND actor_id = ANY($2)`,
		techniqueID, uuidArray(actorIDs))
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// MeanFirstSeenAgeDays returns the mean number of days since first_seen
// across the active ActorTechnique rows for a technique among the given
// actors — the Risk Evaluator's persistence_days metric. Returns 0 when
// there are no matching rows.
func (s *Store) MeanFirstSeenAgeDays(ctx context.Context, techniqueID uuid.UUID, actorIDs []uuid.UUID, now time.Time) (float64, error) {
	if len(actorIDs) == 0 {
		return 0, nil
	}
	row := s.q.QueryRowContext(ctx, `
		SELECT AVG(EXTRACT(EPOCH FROM ($3::timestamp - first_seen)) / 86400.0)
		FROM actor_techniques
		WHERE technique_id = $1 AND active = true AND actor_id = ANY($2)`,
		techniqueID, uuidArray(actorIDs), now)
	var avg sql.NullFloat64
	if err := row.Scan(&avg); err != nil {
		return 0, err
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}
