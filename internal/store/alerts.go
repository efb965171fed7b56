package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

// InsertAlert records a fired (non-debounced) alert.
func (s *Store) InsertAlert(ctx context.Context, a model.Alert) (model.Alert, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO alerts (id, actor_id, technique_id, title, description, severity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.ActorID, a.TechniqueID, a.Title, a.Description, a.Severity, a.CreatedAt)
	return a, err
}

// ListAlerts returns the most recently fired alerts, newest first.
func (s *Store) ListAlerts(ctx context.Context, limit int) ([]model.Alert, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, actor_id, technique_id, title, description, severity, created_at
		FROM alerts ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.ActorID, &a.TechniqueID, &a.Title, &a.Description, &a.Severity, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAlertState loads the debounce bookkeeping row for an
// (actor, technique, event_type) triple. Returns ErrNotFound when the
// triple has never fired before, so the caller knows not to debounce.
func (s *Store) GetAlertState(ctx context.Context, actorID, techniqueID uuid.UUID, eventType model.EventType) (model.AlertState, error) {
	var st model.AlertState
	row := s.q.QueryRowContext(ctx, `
		SELECT id, actor_id, technique_id, event_type, last_alert_at
		FROM alert_states
		WHERE actor_id = $1 AND technique_id = $2 AND event_type = $3`,
		actorID, techniqueID, eventType)
	if err := row.Scan(&st.ID, &st.ActorID, &st.TechniqueID, &st.EventType, &st.LastAlertAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return st, ErrNotFound
		}
		return st, err
	}
	return st, nil
}

// UpsertAlertState records that an alert just fired for this triple,
// resetting the silence window.
func (s *Store) UpsertAlertState(ctx context.Context, actorID, techniqueID uuid.UUID, eventType model.EventType, firedAt time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO alert_states (id, actor_id, technique_id, event_type, last_alert_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (actor_id, technique_id, event_type) DO UPDATE SET
			last_alert_at = EXCLUDED.last_alert_at`,
		uuid.New(), actorID, techniqueID, eventType, firedAt)
	return err
}
