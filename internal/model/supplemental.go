package model

import (
	"time"

	"github.com/google/uuid"
)

// DetectionUseCase is an operator-curated, named detection rule. It is
// read/write state for the view layer only: the Reconciliation Engine
// never consults it when computing confirmation thresholds (those stay
// governed by watchlist/tactic-override/default, see internal/reconcile).
type DetectionUseCase struct {
	ID           uuid.UUID
	Name         string
	Description  string
	Severity     Severity
	Enabled      bool
	CountryScope string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DetectionCondition is one matching condition under a DetectionUseCase.
type DetectionCondition struct {
	ID            uuid.UUID
	UseCaseID     uuid.UUID
	Tactic        string
	TechniqueID    *uuid.UUID
	Procedure     string
	MinSightings  int
	MinDays       int
	CreatedAt     time.Time
}

// Client is an external organization the platform reports intelligence to.
type Client struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// ClientProject is a named engagement or monitoring scope under a Client.
type ClientProject struct {
	ID        uuid.UUID
	ClientID  uuid.UUID
	Name      string
	CreatedAt time.Time
}

// ActorProjectTag links a ThreatActor to a ClientProject with a label.
type ActorProjectTag struct {
	ID        uuid.UUID
	ActorID   uuid.UUID
	ProjectID uuid.UUID
	Label     string
	Note      string
	CreatedAt time.Time
}

// Tag is a free-form label attachable to actors.
type Tag struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// ActorTag links a ThreatActor to a Tag.
type ActorTag struct {
	ID        uuid.UUID
	ActorID   uuid.UUID
	TagID     uuid.UUID
	CreatedAt time.Time
}
