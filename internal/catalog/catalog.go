// Package catalog refreshes the reference table of MITRE ATT&CK
// techniques. It runs in two phases: a legacy, create-only load from
// the older mitre/cti bundle (preserving whatever a prior load already
// wrote, never overwriting it), followed by the authoritative STIX
// sync that upserts against the pinned attack-stix-data bundle. It is
// the authoritative join partner for reconciliation: a technique code
// the feed reports but the catalog does not recognise is skipped, not
// invented.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
	"github.com/encasitacov19/CTI-PLATFORM/internal/store"
)

// Store is the subset of store.Store the catalog sync needs.
type Store interface {
	UpsertTechnique(ctx context.Context, t model.Technique) (created bool, err error)
	GetTechniqueByCode(ctx context.Context, code string) (model.Technique, error)
}

// Syncer fetches and applies both catalog bundles against a Store.
type Syncer struct {
	httpClient *http.Client
	legacyURL  string
	bundleURL  string
	store      Store
}

// New builds a Syncer. legacyURL is the older mitre/cti bundle used
// for the create-only legacy phase; bundleURL is the pinned
// attack-stix-data bundle used for the authoritative upsert phase.
// Both are fetched with a 60s timeout, per spec.md's external-
// interfaces timeout table for the STIX bundle.
func New(legacyURL, bundleURL string, store Store) *Syncer {
	return &Syncer{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		legacyURL:  legacyURL,
		bundleURL:  bundleURL,
		store:      store,
	}
}

// Result reports how many catalog rows were touched by a sync pass,
// split by phase, and names whichever phase failed (empty on success).
type Result struct {
	LegacyCreated int
	LegacyTotal   int
	Created       int
	Updated       int
	FailedPhase   string
}

type stixBundle struct {
	Objects []stixObject `json:"objects"`
}

type stixObject struct {
	Type               string              `json:"type"`
	Name               string              `json:"name"`
	Description        string              `json:"description"`
	ExternalReferences []externalReference `json:"external_references"`
	KillChainPhases    []killChainPhase    `json:"kill_chain_phases"`
}

type externalReference struct {
	SourceName string `json:"source_name"`
	ExternalID string `json:"external_id"`
}

type killChainPhase struct {
	KillChainName string `json:"kill_chain_name"`
	PhaseName     string `json:"phase_name"`
}

// Sync runs the legacy load, then the STIX sync. Failure of either
// phase aborts the pass and names the failing phase in Result and the
// returned error; the catalog never shrinks on a failed sync.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	var res Result

	legacyCreated, legacyTotal, err := s.loadLegacy(ctx)
	res.LegacyCreated = legacyCreated
	res.LegacyTotal = legacyTotal
	if err != nil {
		res.FailedPhase = "legacy_load"
		return res, fmt.Errorf("legacy_load: %w", err)
	}

	created, updated, err := s.syncStix(ctx)
	res.Created = created
	res.Updated = updated
	if err != nil {
		res.FailedPhase = "stix_sync"
		return res, fmt.Errorf("stix_sync: %w", err)
	}

	return res, nil
}

// loadLegacy fetches the older mitre/cti bundle and inserts any
// technique the catalog does not already have. It never updates an
// existing row: the legacy bundle is a one-shot bootstrap, not an
// authoritative source, so a technique the STIX phase (or a prior run)
// already wrote is left untouched.
func (s *Syncer) loadLegacy(ctx context.Context) (created, total int, err error) {
	bundle, err := s.fetchBundle(ctx, s.legacyURL)
	if err != nil {
		return 0, 0, err
	}

	for _, obj := range bundle.Objects {
		if obj.Type != "attack-pattern" {
			continue
		}
		code := externalCode(obj)
		if code == "" {
			continue
		}
		total++

		_, err := s.store.GetTechniqueByCode(ctx, code)
		if err == nil {
			continue // already in the catalog, legacy load never overwrites
		}
		if !errors.Is(err, store.ErrNotFound) {
			return created, total, fmt.Errorf("lookup technique %s: %w", code, err)
		}

		t := model.Technique{
			ExternalCode: code,
			DisplayName:  obj.Name,
			Tactics:      firstTactic(obj),
			Description:  obj.Description,
		}
		if _, err := s.store.UpsertTechnique(ctx, t); err != nil {
			return created, total, fmt.Errorf("insert technique %s: %w", code, err)
		}
		created++
	}
	return created, total, nil
}

// syncStix fetches the pinned attack-stix-data bundle and upserts
// every attack-pattern object into the reference catalog.
func (s *Syncer) syncStix(ctx context.Context) (created, updated int, err error) {
	bundle, err := s.fetchBundle(ctx, s.bundleURL)
	if err != nil {
		return 0, 0, err
	}

	for _, obj := range bundle.Objects {
		if obj.Type != "attack-pattern" {
			continue
		}
		code := externalCode(obj)
		if code == "" {
			continue
		}
		t := model.Technique{
			ExternalCode: code,
			DisplayName:  obj.Name,
			Tactics:      tacticsString(obj),
			Description:  obj.Description,
		}
		wasCreated, err := s.store.UpsertTechnique(ctx, t)
		if err != nil {
			return created, updated, fmt.Errorf("upsert technique %s: %w", code, err)
		}
		if wasCreated {
			created++
		} else {
			updated++
		}
	}
	return created, updated, nil
}

func (s *Syncer) fetchBundle(ctx context.Context, url string) (stixBundle, error) {
	var bundle stixBundle

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return bundle, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return bundle, fmt.Errorf("fetch bundle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return bundle, fmt.Errorf("bundle fetch failed: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&bundle); err != nil {
		return bundle, fmt.Errorf("decode bundle: %w", err)
	}
	return bundle, nil
}

func externalCode(obj stixObject) string {
	for _, ref := range obj.ExternalReferences {
		if ref.SourceName == "mitre-attack" {
			return ref.ExternalID
		}
	}
	return ""
}

// tacticsString joins the mitre-attack kill-chain phase names into a
// sorted, deduplicated, comma-joined lowercase string.
func tacticsString(obj stixObject) string {
	seen := make(map[string]struct{})
	for _, phase := range obj.KillChainPhases {
		if phase.KillChainName != "mitre-attack" {
			continue
		}
		seen[strings.ToLower(phase.PhaseName)] = struct{}{}
	}
	if len(seen) == 0 {
		return ""
	}
	phases := make([]string, 0, len(seen))
	for p := range seen {
		phases = append(phases, p)
	}
	sort.Strings(phases)
	return strings.Join(phases, ",")
}

// firstTactic takes the single first kill-chain phase name, matching
// the legacy loader's one-tactic-per-technique shape rather than the
// STIX phase's joined set.
func firstTactic(obj stixObject) string {
	if len(obj.KillChainPhases) == 0 {
		return ""
	}
	return strings.ToLower(obj.KillChainPhases[0].PhaseName)
}
