// Package model holds the domain types shared by the intelligence
// tracking engine and the view layer built on top of it.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the intelligence events the reconciliation engine emits.
type EventType string

const (
	EventNew          EventType = "NEW"
	EventReactivated  EventType = "REACTIVATED"
	EventDisappeared  EventType = "DISAPPEARED"
)

// Severity enumerates alert severities.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// SeverityForEvent maps an intelligence event type to the alert severity
// the debouncer raises for it. NEW is the most actionable signal (a
// technique confirmed for the first time), DISAPPEARED the least.
func SeverityForEvent(t EventType) Severity {
	switch t {
	case EventNew:
		return SeverityHigh
	case EventReactivated:
		return SeverityMedium
	case EventDisappeared:
		return SeverityLow
	default:
		return SeverityLow
	}
}

// ThreatActor is a named threat-actor entity tracked by the system.
type ThreatActor struct {
	ID         uuid.UUID
	Name       string
	ExternalID string
	Country    string
	Aliases    string
	Source     string
	Active     bool
	CreatedAt  time.Time
}

// Technique is the authoritative, catalog copy of a MITRE ATT&CK
// attack-pattern.
type Technique struct {
	ID            uuid.UUID
	ExternalCode  string
	DisplayName   string
	Tactics       string // comma-joined, lowercase, sorted, deduplicated
	Description   string
}

// TacticList splits the comma-joined Tactics field back into its parts.
func (t Technique) TacticList() []string {
	if t.Tactics == "" {
		return nil
	}
	parts := strings.Split(t.Tactics, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ActorTechnique is the reconciliation state row: one per (actor, technique).
type ActorTechnique struct {
	ID             uuid.UUID
	ActorID        uuid.UUID
	TechniqueID    uuid.UUID
	FirstSeen      time.Time
	LastSeen       time.Time
	LastCollected  time.Time
	Active         bool
	SightingsCount int
	SeenDaysCount  int
	NewAlertSent   bool
}

// IntelligenceEvent is an append-only record of a technique's presence
// changing for an actor.
type IntelligenceEvent struct {
	ID          uuid.UUID
	ActorID     uuid.UUID
	TechniqueID uuid.UUID
	EventType   EventType
	CreatedAt   time.Time
}

// Alert is a human-facing notification raised by the debouncer or the
// risk evaluator.
type Alert struct {
	ID          uuid.UUID
	ActorID     *uuid.UUID
	TechniqueID *uuid.UUID
	Title       string
	Description string
	Severity    Severity
	CreatedAt   time.Time
}

// AlertState is the debouncer's bookkeeping row, unique per
// (actor, technique, event_type).
type AlertState struct {
	ID          uuid.UUID
	ActorID     uuid.UUID
	TechniqueID uuid.UUID
	EventType   EventType
	LastAlertAt time.Time
}

// TechniqueEvidence is a sample hash observed while resolving a
// technique through the files-fallback path.
type TechniqueEvidence struct {
	ID          uuid.UUID
	ActorID     uuid.UUID
	TechniqueID uuid.UUID
	SampleHash  string
	Source      string
	ObservedAt  time.Time
}

// CountryRiskSnapshot is a point-in-time country risk record.
type CountryRiskSnapshot struct {
	ID              uuid.UUID
	Country         string
	RiskScore       float64
	TechniqueCount  int
	ActorCount      int
	CreatedAt       time.Time
}

// ScheduleConfig is the singleton configuration row for the collection
// scheduler.
type ScheduleConfig struct {
	ID         uuid.UUID
	TimeHHMM   string
	Days       string // comma-joined weekday abbreviations, e.g. "mon,tue,wed"
	Enabled    bool
	LastRunAt  *time.Time
	Running    bool
	LockUntil  *time.Time
	UpdatedAt  time.Time
}

// MitreSyncConfig is the singleton configuration row for the MITRE
// reference sync scheduler.
type MitreSyncConfig struct {
	ID         uuid.UUID
	DayOfWeek  string
	TimeHHMM   string
	Enabled    bool
	LastRunAt  *time.Time
	Running    bool
	LockUntil  *time.Time
	UpdatedAt  time.Time
}

// JobType enumerates the kinds of background work the job ledger tracks.
type JobType string

const (
	JobTypeCollector  JobType = "collector"
	JobTypeActorScan  JobType = "actor_scan"
	JobTypeMitreSync  JobType = "mitre_sync"
)

// JobTrigger records whether a run was kicked off by a scheduler tick or
// a manual operator request.
type JobTrigger string

const (
	TriggerManual    JobTrigger = "manual"
	TriggerScheduler JobTrigger = "scheduler"
)

// JobStatus is the lifecycle state of a JobRun.
type JobStatus string

const (
	JobRunning JobStatus = "RUNNING"
	JobSuccess JobStatus = "SUCCESS"
	JobError   JobStatus = "ERROR"
)

// JobRun is a persistent per-run record exposed so operators can observe
// any background or manual execution.
type JobRun struct {
	ID             uuid.UUID
	JobType        JobType
	Trigger        JobTrigger
	Status         JobStatus
	ActorID        *uuid.UUID
	ActorName      string
	TotalItems     int
	ProcessedItems int
	Details        string
	Error          string
	StartedAt      time.Time
	FinishedAt     *time.Time
	UpdatedAt      time.Time
}

// MaxErrorLen is the truncation length for JobRun.Error, per spec:
// "JobRun rows expose status and error text (truncated to 1000 characters)".
const MaxErrorLen = 1000

// TruncateError truncates an error message to MaxErrorLen characters.
func TruncateError(msg string) string {
	runes := []rune(msg)
	if len(runes) <= MaxErrorLen {
		return msg
	}
	return string(runes[:MaxErrorLen])
}
