package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

// CreateDetectionUseCase inserts an operator-curated detection rule.
// The Reconciliation Engine never reads this table; it exists purely
// for the view layer.
func (s *Store) CreateDetectionUseCase(ctx context.Context, u model.DetectionUseCase) (model.DetectionUseCase, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO detection_use_cases (id, name, description, severity, enabled, country_scope, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id, name, description, severity, enabled, country_scope, created_at, updated_at`,
		u.ID, u.Name, u.Description, u.Severity, u.Enabled, u.CountryScope, now)
	return scanDetectionUseCase(row)
}

// ListDetectionUseCases returns every curated detection rule.
func (s *Store) ListDetectionUseCases(ctx context.Context) ([]model.DetectionUseCase, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, description, severity, enabled, country_scope, created_at, updated_at
		FROM detection_use_cases ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DetectionUseCase
	for rows.Next() {
		u, err := scanDetectionUseCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateDetectionUseCase persists operator edits to a detection rule.
func (s *Store) UpdateDetectionUseCase(ctx context.Context, u model.DetectionUseCase) (model.DetectionUseCase, error) {
	row := s.q.QueryRowContext(ctx, `
		UPDATE detection_use_cases SET
			name = $2, description = $3, severity = $4, enabled = $5, country_scope = $6, updated_at = now()
		WHERE id = $1
		RETURNING id, name, description, severity, enabled, country_scope, created_at, updated_at`,
		u.ID, u.Name, u.Description, u.Severity, u.Enabled, u.CountryScope)
	return scanDetectionUseCase(row)
}

// DeleteDetectionUseCase removes a detection rule and its conditions
// (cascading via the foreign key).
func (s *Store) DeleteDetectionUseCase(ctx context.Context, id uuid.UUID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM detection_use_cases WHERE id = $1`, id)
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

func scanDetectionUseCase(row rowScanner) (model.DetectionUseCase, error) {
	var u model.DetectionUseCase
	if err := row.Scan(&u.ID, &u.Name, &u.Description, &u.Severity, &u.Enabled, &u.CountryScope, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return u, ErrNotFound
		}
		return u, err
	}
	return u, nil
}

// AddDetectionCondition attaches a matching condition to a use case.
func (s *Store) AddDetectionCondition(ctx context.Context, c model.DetectionCondition) (model.DetectionCondition, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO detection_conditions (id, use_case_id, tactic, technique_id, procedure, min_sightings, min_days, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		c.ID, c.UseCaseID, c.Tactic, c.TechniqueID, c.Procedure, c.MinSightings, c.MinDays)
	return c, err
}

// ConditionsForUseCase returns every condition attached to a use case.
func (s *Store) ConditionsForUseCase(ctx context.Context, useCaseID uuid.UUID) ([]model.DetectionCondition, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, use_case_id, tactic, technique_id, procedure, min_sightings, min_days, created_at
		FROM detection_conditions WHERE use_case_id = $1 ORDER BY created_at`, useCaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DetectionCondition
	for rows.Next() {
		var c model.DetectionCondition
		if err := rows.Scan(&c.ID, &c.UseCaseID, &c.Tactic, &c.TechniqueID, &c.Procedure, &c.MinSightings, &c.MinDays, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateClient inserts a new reporting client.
func (s *Store) CreateClient(ctx context.Context, c model.Client) (model.Client, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO clients (id, name, created_at) VALUES ($1, $2, now())
		RETURNING id, name, created_at`, c.ID, c.Name)
	if err := row.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
		return c, err
	}
	return c, nil
}

// ListClients returns every reporting client.
func (s *Store) ListClients(ctx context.Context) ([]model.Client, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, name, created_at FROM clients ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Client
	for rows.Next() {
		var c model.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateClientProject inserts a named engagement scope under a client.
func (s *Store) CreateClientProject(ctx context.Context, p model.ClientProject) (model.ClientProject, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO client_projects (id, client_id, name, created_at) VALUES ($1, $2, $3, now())
		RETURNING id, client_id, name, created_at`, p.ID, p.ClientID, p.Name)
	if err := row.Scan(&p.ID, &p.ClientID, &p.Name, &p.CreatedAt); err != nil {
		return p, err
	}
	return p, nil
}

// ListClientProjects returns every project under a client.
func (s *Store) ListClientProjects(ctx context.Context, clientID uuid.UUID) ([]model.ClientProject, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, client_id, name, created_at FROM client_projects WHERE client_id = $1 ORDER BY name`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ClientProject
	for rows.Next() {
		var p model.ClientProject
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TagActorToProject labels an actor under a client project, upserting
// the label/note on conflict.
func (s *Store) TagActorToProject(ctx context.Context, t model.ActorProjectTag) (model.ActorProjectTag, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO actor_project_tags (id, actor_id, project_id, label, note, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (actor_id, project_id) DO UPDATE SET label = EXCLUDED.label, note = EXCLUDED.note
		RETURNING id, actor_id, project_id, label, note, created_at`,
		t.ID, t.ActorID, t.ProjectID, t.Label, t.Note)
	if err := row.Scan(&t.ID, &t.ActorID, &t.ProjectID, &t.Label, &t.Note, &t.CreatedAt); err != nil {
		return t, err
	}
	return t, nil
}

// ProjectTagsForActor returns every project tag attached to an actor.
func (s *Store) ProjectTagsForActor(ctx context.Context, actorID uuid.UUID) ([]model.ActorProjectTag, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, actor_id, project_id, label, note, created_at
		FROM actor_project_tags WHERE actor_id = $1 ORDER BY created_at`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ActorProjectTag
	for rows.Next() {
		var t model.ActorProjectTag
		if err := rows.Scan(&t.ID, &t.ActorID, &t.ProjectID, &t.Label, &t.Note, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetOrCreateTag resolves a free-form tag name to its row, creating it
// on first use.
func (s *Store) GetOrCreateTag(ctx context.Context, name string) (model.Tag, error) {
	var t model.Tag
	row := s.q.QueryRowContext(ctx, `SELECT id, name, created_at FROM tags WHERE name = $1`, name)
	err := row.Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return t, err
	}

	t = model.Tag{ID: uuid.New(), Name: name}
	row = s.q.QueryRowContext(ctx, `
		INSERT INTO tags (id, name, created_at) VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at`, t.ID, t.Name)
	if err := row.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
		return t, err
	}
	return t, nil
}

// TagActor attaches a tag to an actor, a no-op if already attached.
func (s *Store) TagActor(ctx context.Context, actorID, tagID uuid.UUID) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO actor_tags (id, actor_id, tag_id, created_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (actor_id, tag_id) DO NOTHING`, uuid.New(), actorID, tagID)
	return err
}

// TagsForActor returns every tag attached to an actor.
func (s *Store) TagsForActor(ctx context.Context, actorID uuid.UUID) ([]model.Tag, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT t.id, t.name, t.created_at
		FROM tags t
		JOIN actor_tags at ON at.tag_id = t.id
		WHERE at.actor_id = $1
		ORDER BY t.name`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
