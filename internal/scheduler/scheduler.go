// Package scheduler runs the two cooperative loops that drive the
// pipeline: the collection scheduler and the MITRE reference sync
// scheduler. Both consult a persisted singleton config row, acquire a
// database-level lease before dispatching, and never block the loop on
// the job itself.
package scheduler

import (
	"strings"
	"sync"
	"time"

	"github.com/encasitacov19/CTI-PLATFORM/pkg/logger"
)

var weekdayAbbrev = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

func abbrevFor(t time.Time) string {
	return weekdayAbbrev[int(t.Weekday())]
}

func daysContains(days, day string) bool {
	for _, d := range strings.Split(days, ",") {
		if strings.TrimSpace(strings.ToLower(d)) == day {
			return true
		}
	}
	return false
}

// sameSlot reports whether lastRunAt, converted to loc, falls on the
// same calendar date as now and carries the same HH:MM as configured —
// the idempotence guard in spec.md 4.7 step 3.
func sameSlot(lastRunAt *time.Time, now time.Time, tz *time.Location, hhmm string) bool {
	if lastRunAt == nil {
		return false
	}
	last := lastRunAt.In(tz)
	ny, nm, nd := now.Date()
	ly, lm, ld := last.Date()
	if ny != ly || nm != lm || nd != ld {
		return false
	}
	return last.Format("15:04") == hhmm
}

// Clock abstracts time.Now so tests can pin the wall clock; the real
// scheduler always passes time.Now.
type Clock func() time.Time

// guard is the binary in-process reentrancy mutex described in
// spec.md's design notes: held only while a loop decides whether to
// dispatch and acquires the DB lease, released before the job's worker
// goroutine starts doing real work.
type guard struct {
	mu sync.Mutex
}

func (g *guard) tryDispatch(fn func()) bool {
	if !g.mu.TryLock() {
		return false
	}
	defer g.mu.Unlock()
	fn()
	return true
}

// loc loads the configured display timezone, falling back to UTC if the
// name cannot be resolved so a bad config value never crashes a loop.
func loc(name string) *time.Location {
	l, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return l
}

// logError is the shared "print but never crash the loop" failure path
// per spec.md 7: "Scheduler failures print to the process log but never
// crash the loop."
func logError(log logger.Logger, loopName string, err error) {
	if err == nil {
		return
	}
	log.Error("scheduler loop failed", "loop", loopName, "error", err.Error())
}
