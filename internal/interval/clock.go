// Package interval classifies "now" into a trading window phase.
//
// The phase is a pure function of elapsed time within the window — no
// hysteresis, no indicator input. ENTRY_OPEN is the only phase that admits
// new positions; that gate is enforced here, not delegated to risk checks.
package interval

import (
	"time"

	"polytraderv1/internal/model"
)

// Clock holds the entry-window offsets for fixed-length windows.
type Clock struct {
	entryOpenMinute  int // first admissible minute (inclusive)
	entryCloseMinute int // last admissible minute (inclusive)
	intervalMinutes  int
}

// NewClock creates a clock for intervalMinutes-long windows admitting
// entries between entryOpen and entryClose minutes of the window.
func NewClock(intervalMinutes, entryOpenMinute, entryCloseMinute int) *Clock {
	return &Clock{
		entryOpenMinute:  entryOpenMinute,
		entryCloseMinute: entryCloseMinute,
		intervalMinutes:  intervalMinutes,
	}
}

// Phase classifies now against the given window. settled reports whether
// the window's outcome is already known (ledger fully resolved).
//
// A nil window yields UNKNOWN; callers treat UNKNOWN like LATE (fail
// closed, no entries).
func (c *Clock) Phase(w *model.IntervalWindow, now time.Time, settled bool) model.Phase {
	if w == nil || w.Start.IsZero() || w.End.IsZero() {
		return model.PhaseUnknown
	}

	if !now.Before(w.End) {
		if settled {
			return model.PhaseClosed
		}
		return model.PhaseResolving
	}

	elapsedMin := int(now.Sub(w.Start).Minutes())
	switch {
	case elapsedMin < c.entryOpenMinute:
		return model.PhasePreEntry
	case elapsedMin <= c.entryCloseMinute:
		return model.PhaseEntryOpen
	default:
		return model.PhaseLate
	}
}

// EntryAdmissible reports whether the phase admits new positions.
func EntryAdmissible(p model.Phase) bool {
	return p == model.PhaseEntryOpen
}

// WindowBounds returns the start and end of the fixed-length interval
// containing now, aligned to the interval grid (e.g. :00/:15/:30/:45 for
// 15-minute windows). Used as a fallback when market discovery supplies no
// explicit schedule.
func (c *Clock) WindowBounds(now time.Time) (time.Time, time.Time) {
	utc := now.UTC()
	start := utc.Truncate(time.Minute)
	start = start.Add(-time.Duration(start.Minute()%c.intervalMinutes) * time.Minute)
	return start, start.Add(time.Duration(c.intervalMinutes) * time.Minute)
}

// MinuteInWindow returns how many whole minutes of the window containing
// now have elapsed.
func (c *Clock) MinuteInWindow(now time.Time) int {
	start, _ := c.WindowBounds(now)
	return int(now.UTC().Sub(start).Minutes())
}
