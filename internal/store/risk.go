package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
)

// InsertRiskSnapshot records a country risk snapshot computed by the
// Risk Evaluator.
func (s *Store) InsertRiskSnapshot(ctx context.Context, snap model.CountryRiskSnapshot) (model.CountryRiskSnapshot, error) {
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO country_risk_snapshots
			(id, country, risk_score, technique_count, actor_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		snap.ID, snap.Country, snap.RiskScore, snap.TechniqueCount, snap.ActorCount, snap.CreatedAt)
	return snap, err
}

// LastSnapshots returns the most recent n risk snapshots for a country,
// newest first. The Risk Evaluator's change detection needs the last
// two; callers pass n=2.
func (s *Store) LastSnapshots(ctx context.Context, country string, n int) ([]model.CountryRiskSnapshot, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, country, risk_score, technique_count, actor_count, created_at
		FROM country_risk_snapshots
		WHERE country = $1
		ORDER BY created_at DESC
		LIMIT $2`, country, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CountryRiskSnapshot
	for rows.Next() {
		var snap model.CountryRiskSnapshot
		if err := rows.Scan(&snap.ID, &snap.Country, &snap.RiskScore, &snap.TechniqueCount, &snap.ActorCount, &snap.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// RiskTrend returns snapshots for a country created at or after since,
// ascending by created_at, for the read-model's risk-trend endpoint.
func (s *Store) RiskTrend(ctx context.Context, country string, since time.Time) ([]model.CountryRiskSnapshot, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, country, risk_score, technique_count, actor_count, created_at
		FROM country_risk_snapshots
		WHERE country = $1 AND created_at >= $2
		ORDER BY created_at ASC`, country, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CountryRiskSnapshot
	for rows.Next() {
		var snap model.CountryRiskSnapshot
		if err := rows.Scan(&snap.ID, &snap.Country, &snap.RiskScore, &snap.TechniqueCount, &snap.ActorCount, &snap.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// DistinctRiskCountries lists every country with at least one snapshot,
// for the read-model's risk country listing.
func (s *Store) DistinctRiskCountries(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT DISTINCT country FROM country_risk_snapshots WHERE country <> ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
