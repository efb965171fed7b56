package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

// InsertEvent records a NEW/REACTIVATED/DISAPPEARED transition produced
// by the Reconciliation Engine.
func (s *Store) InsertEvent(ctx context.Context, e model.IntelligenceEvent) (model.IntelligenceEvent, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO intelligence_events (id, actor_id, technique_id, event_type, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.ActorID, e.TechniqueID, e.EventType, e.CreatedAt)
	return e, err
}

// Timeline returns every intelligence event for an actor in ascending
// created_at order — the one canonical shape chosen among the
// original's two diverging timeline helpers.
func (s *Store) Timeline(ctx context.Context, actorID uuid.UUID) ([]model.IntelligenceEvent, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, actor_id, technique_id, event_type, created_at
		FROM intelligence_events
		WHERE actor_id = $1
		ORDER BY created_at ASC`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.IntelligenceEvent
	for rows.Next() {
		var e model.IntelligenceEvent
		if err := rows.Scan(&e.ID, &e.ActorID, &e.TechniqueID, &e.EventType, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EventsSince counts events of a given type across all actors created at
// or after the supplied timestamp, for a technique — used by the Risk
// Evaluator's new_7d and reactivated_7d metrics.
func (s *Store) EventsSince(ctx context.Context, techniqueID uuid.UUID, eventType model.EventType, since time.Time) (int, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM intelligence_events
		WHERE technique_id = $1 AND event_type = $2 AND created_at >= $3`,
		techniqueID, eventType, since)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
