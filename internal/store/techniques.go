package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

// GetTechniqueByCode looks up the catalog row for a MITRE external code
// (e.g. "T1059"). Returns ErrNotFound when the code is absent from the
// reference catalog — the caller (Reconciliation Engine) counts this as
// missing_mitre and skips the observation.
func (s *Store) GetTechniqueByCode(ctx context.Context, code string) (model.Technique, error) {
	var t model.Technique
	row := s.q.QueryRowContext(ctx, `
		SELECT id, external_code, display_name, tactics, description
		FROM techniques WHERE external_code = $1`, code)
	if err := row.Scan(&t.ID, &t.ExternalCode, &t.DisplayName, &t.Tactics, &t.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, ErrNotFound
		}
		return t, err
	}
	return t, nil
}

// GetTechnique loads a catalog row by primary key.
func (s *Store) GetTechnique(ctx context.Context, id uuid.UUID) (model.Technique, error) {
	var t model.Technique
	row := s.q.QueryRowContext(ctx, `
		SELECT id, external_code, display_name, tactics, description
		FROM techniques WHERE id = $1`, id)
	if err := row.Scan(&t.ID, &t.ExternalCode, &t.DisplayName, &t.Tactics, &t.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, ErrNotFound
		}
		return t, err
	}
	return t, nil
}

// ListTechniques returns the full reference catalog.
func (s *Store) ListTechniques(ctx context.Context) ([]model.Technique, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, external_code, display_name, tactics, description
		FROM techniques ORDER BY external_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Technique
	for rows.Next() {
		var t model.Technique
		if err := rows.Scan(&t.ID, &t.ExternalCode, &t.DisplayName, &t.Tactics, &t.Description); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertTechnique creates or updates a catalog row keyed by external
// code, per spec.md 4.1: "upserts by external code. Fields updated:
// display_name, tactics, description." Returns whether the row was
// newly created, so the caller can maintain a creation/update counter.
func (s *Store) UpsertTechnique(ctx context.Context, t model.Technique) (created bool, err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO techniques (id, external_code, display_name, tactics, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (external_code) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			tactics = EXCLUDED.tactics,
			description = EXCLUDED.description
		RETURNING (xmax = 0)`,
		t.ID, t.ExternalCode, t.DisplayName, t.Tactics, t.Description)

	if err := row.Scan(&created); err != nil {
		return false, err
	}
	return created, nil
}
