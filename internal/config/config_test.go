package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/encasitacov19/CTI-PLATFORM/pkg/logger"
)

// capturingLogger records Warn calls so tests can assert a skipped
// tactic override entry was actually logged, not just dropped.
type capturingLogger struct {
	logger.Logger
	warnings []string
}

func (c *capturingLogger) Warn(msg string, fields ...interface{}) {
	c.warnings = append(c.warnings, msg)
}

func TestParseWatchlist_UppercasesAndTrims(t *testing.T) {
	wl := parseWatchlist(" t1059, t1566 ,T1003")
	assert.Len(t, wl, 3)
	_, ok := wl["T1059"]
	assert.True(t, ok)
	_, ok = wl["T1566"]
	assert.True(t, ok)
	_, ok = wl["T1003"]
	assert.True(t, ok)
}

func TestParseWatchlist_EmptyStringYieldsEmptySet(t *testing.T) {
	wl := parseWatchlist("")
	assert.Empty(t, wl)
}

func TestParseWatchlist_SkipsBlankEntries(t *testing.T) {
	wl := parseWatchlist("T1059,,  ,T1566")
	assert.Len(t, wl, 2)
}

func TestParseTacticOverrides_ParsesValidEntries(t *testing.T) {
	out := parseTacticOverrides("initial-access:1/1,execution:5/3", logger.NewNoop())
	assert.Len(t, out, 2)
	assert.Equal(t, Threshold{MinSightings: 1, MinDays: 1}, out["initial-access"])
	assert.Equal(t, Threshold{MinSightings: 5, MinDays: 3}, out["execution"])
}

func TestParseTacticOverrides_SkipsMalformedEntries(t *testing.T) {
	out := parseTacticOverrides("bad-entry,execution:5/3,also-bad:nope", logger.NewNoop())
	assert.Len(t, out, 1)
	assert.Equal(t, Threshold{MinSightings: 5, MinDays: 3}, out["execution"])
}

func TestParseTacticOverrides_LogsEachSkippedEntry(t *testing.T) {
	log := &capturingLogger{}
	out := parseTacticOverrides("bad-entry,execution:5/3,also-bad:nope", log)
	assert.Len(t, out, 1)
	assert.Len(t, log.warnings, 2)
}

func TestParseTacticOverrides_NilLoggerDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		parseTacticOverrides("bad-entry", nil)
	})
}

func TestParseTacticOverrides_ClampsBelowOneToOne(t *testing.T) {
	out := parseTacticOverrides("execution:0/-2", logger.NewNoop())
	assert.Equal(t, Threshold{MinSightings: 1, MinDays: 1}, out["execution"])
}

func TestParseTacticOverrides_LowercasesTacticName(t *testing.T) {
	out := parseTacticOverrides("Initial-Access:2/2", logger.NewNoop())
	_, ok := out["initial-access"]
	assert.True(t, ok)
}

func TestParseTacticOverrides_EmptyStringYieldsEmptyMap(t *testing.T) {
	out := parseTacticOverrides("", logger.NewNoop())
	assert.Empty(t, out)
}
