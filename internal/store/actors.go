package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

// ErrNotFound is returned by single-row lookups that found nothing.
var ErrNotFound = errors.New("store: not found")

// ActiveActors returns every actor with active = true, ordered by
// creation time descending (newest first), matching the original
// `get_actors` ordering.
func (s *Store) ActiveActors(ctx context.Context) ([]model.ThreatActor, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, external_id, country, aliases, source, active, created_at
		FROM threat_actors
		WHERE active = true
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActors(rows)
}

// ListActors returns every actor, active or not.
func (s *Store) ListActors(ctx context.Context) ([]model.ThreatActor, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, external_id, country, aliases, source, active, created_at
		FROM threat_actors
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActors(rows)
}

func scanActors(rows *sql.Rows) ([]model.ThreatActor, error) {
	var out []model.ThreatActor
	for rows.Next() {
		var a model.ThreatActor
		if err := rows.Scan(&a.ID, &a.Name, &a.ExternalID, &a.Country, &a.Aliases, &a.Source, &a.Active, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetActor loads a single actor by id.
func (s *Store) GetActor(ctx context.Context, id uuid.UUID) (model.ThreatActor, error) {
	var a model.ThreatActor
	row := s.q.QueryRowContext(ctx, `
		SELECT id, name, external_id, country, aliases, source, active, created_at
		FROM threat_actors WHERE id = $1`, id)
	if err := row.Scan(&a.ID, &a.Name, &a.ExternalID, &a.Country, &a.Aliases, &a.Source, &a.Active, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, ErrNotFound
		}
		return a, err
	}
	return a, nil
}

// GetActorByName loads a single actor by its unique display name.
func (s *Store) GetActorByName(ctx context.Context, name string) (model.ThreatActor, error) {
	var a model.ThreatActor
	row := s.q.QueryRowContext(ctx, `
		SELECT id, name, external_id, country, aliases, source, active, created_at
		FROM threat_actors WHERE name = $1`, name)
	if err := row.Scan(&a.ID, &a.Name, &a.ExternalID, &a.Country, &a.Aliases, &a.Source, &a.Active, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, ErrNotFound
		}
		return a, err
	}
	return a, nil
}

// UpsertActor creates the actor, or updates it in place if one with the
// same external id already exists — mirroring the original `create_actor`
// upsert-on-conflict behaviour.
func (s *Store) UpsertActor(ctx context.Context, a model.ThreatActor) (model.ThreatActor, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Source == "" {
		a.Source = "manual"
	}
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO threat_actors (id, name, external_id, country, aliases, source, active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		ON CONFLICT (external_id) WHERE external_id <> '' DO UPDATE SET
			name = EXCLUDED.name,
			country = EXCLUDED.country,
			aliases = EXCLUDED.aliases,
			source = EXCLUDED.source,
			active = true
		RETURNING id, name, external_id, country, aliases, source, active, created_at`,
		a.ID, a.Name, a.ExternalID, a.Country, a.Aliases, a.Source)

	var out model.ThreatActor
	if err := row.Scan(&out.ID, &out.Name, &out.ExternalID, &out.Country, &out.Aliases, &out.Source, &out.Active, &out.CreatedAt); err != nil {
		return out, err
	}
	return out, nil
}

// SetActorActive flips the soft-delete flag on an actor.
func (s *Store) SetActorActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := s.q.ExecContext(ctx, `UPDATE threat_actors SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
