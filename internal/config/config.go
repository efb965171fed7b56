// Package config parses the environment frame that drives the
// intelligence tracking engine: feed credentials, confirmation
// thresholds, watchlist overrides, and per-actor throttling.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/encasitacov19/CTI-PLATFORM/pkg/logger"
)

// Engine holds every environment-derived setting the reconciliation
// engine, feed client, and schedulers need. It is distinct from
// pkg/config.Config, which carries the generic service-level settings
// (port, log level, database/redis URLs) shared by every service in
// this platform.
type Engine struct {
	VTAPIKey                  string
	VTBaseURL                 string
	VTRequestsPerSecond       int
	FilesFallbackLimit        int
	ScanMinInterval           time.Duration
	NewAlertMinSightings      int
	NewAlertMinDistinctDays   int
	WatchlistTechniques       map[string]struct{}
	WatchlistMinSightings     int
	WatchlistMinDistinctDays  int
	TacticThresholdOverrides  map[string]Threshold
	AlertSilenceWindow        time.Duration
	MitreLegacyURL            string
	MitreBundleURL            string
}

// Threshold is a (min sightings, min distinct days) confirmation pair.
type Threshold struct {
	MinSightings int
	MinDays      int
}

// Load reads the engine configuration from the process environment,
// applying the defaults from spec.md section 6. log receives a warning
// for every malformed entry skipped while parsing
// NEW_ALERT_TACTIC_THRESHOLD_OVERRIDES, so an operator typo is visible
// instead of silently dropped.
func Load(log logger.Logger) *Engine {
	e := &Engine{
		VTAPIKey:                 os.Getenv("VT_API_KEY"),
		VTBaseURL:                getStringEnv("VT_BASE_URL", "https://www.virustotal.com/api/v3"),
		VTRequestsPerSecond:      getIntEnv("VT_REQUESTS_PER_SECOND", 5),
		FilesFallbackLimit:       getIntEnv("VT_FILES_FALLBACK_LIMIT", 40),
		ScanMinInterval:          time.Duration(getIntEnv("VT_SCAN_MIN_INTERVAL_MINUTES", 60)) * time.Minute,
		NewAlertMinSightings:     getIntEnv("NEW_ALERT_MIN_SIGHTINGS", 3),
		NewAlertMinDistinctDays:  getIntEnv("NEW_ALERT_MIN_DISTINCT_DAYS", 2),
		WatchlistMinSightings:    getIntEnv("WATCHLIST_MIN_SIGHTINGS", 1),
		WatchlistMinDistinctDays: getIntEnv("WATCHLIST_MIN_DISTINCT_DAYS", 1),
		AlertSilenceWindow:       24 * time.Hour,
		MitreLegacyURL: getStringEnv("MITRE_LEGACY_URL",
			"https://raw.githubusercontent.com/mitre/cti/master/enterprise-attack/enterprise-attack.json"),
		MitreBundleURL: getStringEnv("MITRE_BUNDLE_URL",
			"https://raw.githubusercontent.com/mitre-attack/attack-stix-data/master/enterprise-attack/enterprise-attack.json"),
	}

	e.WatchlistTechniques = parseWatchlist(os.Getenv("WATCHLIST_TECHNIQUES"))
	e.TacticThresholdOverrides = parseTacticOverrides(os.Getenv("NEW_ALERT_TACTIC_THRESHOLD_OVERRIDES"), log)

	return e
}

func parseWatchlist(raw string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out[part] = struct{}{}
		}
	}
	return out
}

// parseTacticOverrides parses entries shaped "tactic:sightings/days",
// comma-separated. Malformed entries are logged and skipped, not
// fatal: an operator typo in this env var must not prevent startup,
// but it must not vanish silently either. log may be nil in tests.
func parseTacticOverrides(raw string, log logger.Logger) map[string]Threshold {
	out := make(map[string]Threshold)
	skip := func(chunk, reason string) {
		if log != nil {
			log.Warn("skipping malformed tactic threshold override", "entry", chunk, "reason", reason)
		}
	}
	for _, chunk := range strings.Split(raw, ",") {
		part := strings.TrimSpace(chunk)
		if part == "" {
			continue
		}
		tactic, values, ok := strings.Cut(part, ":")
		if !ok {
			skip(part, "missing ':' separator")
			continue
		}
		tactic = strings.ToLower(strings.TrimSpace(tactic))
		sStr, dStr, ok := strings.Cut(values, "/")
		if !ok {
			skip(part, "missing '/' separator")
			continue
		}
		s, errS := strconv.Atoi(strings.TrimSpace(sStr))
		d, errD := strconv.Atoi(strings.TrimSpace(dStr))
		if errS != nil || errD != nil {
			skip(part, "sightings/days must be integers")
			continue
		}
		if s < 1 {
			s = 1
		}
		if d < 1 {
			d = 1
		}
		out[tactic] = Threshold{MinSightings: s, MinDays: d}
	}
	return out
}

func getStringEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
