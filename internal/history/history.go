// Package history maintains the rolling price-sample window shared between
// the asynchronous feed ingester and the decision loop.
//
// The feed goroutine appends; the loop reads an immutable copy per tick
// (copy-on-read), so indicator math never observes a history mid-mutation.
package history

import (
	"sync"
	"time"

	"polytraderv1/internal/model"
)

// Window is a bounded, time-evicting buffer of price samples.
type Window struct {
	mu       sync.RWMutex
	samples  []model.PriceSample
	retain   time.Duration
	maxLen   int
	lastSeen time.Time // arrival time of the newest sample
	dropped  uint64    // out-of-order samples rejected
}

// New creates a window retaining samples newer than retain, holding at most
// maxLen samples. maxLen guards against a runaway feed; eviction is
// otherwise time-based.
func New(retain time.Duration, maxLen int) *Window {
	if maxLen < 2 {
		maxLen = 2
	}
	return &Window{
		samples: make([]model.PriceSample, 0, maxLen),
		retain:  retain,
		maxLen:  maxLen,
	}
}

// Append adds a sample. Samples older than the newest already held are
// dropped to preserve the monotonic-timestamp invariant. Returns false on
// drop.
func (w *Window) Append(s model.PriceSample) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if n := len(w.samples); n > 0 && s.TS.Before(w.samples[n-1].TS) {
		w.dropped++
		return false
	}

	w.samples = append(w.samples, s)
	w.lastSeen = time.Now().UTC()
	w.evictLocked(s.TS)
	return true
}

// evictLocked removes samples past the retention horizon and enforces maxLen.
func (w *Window) evictLocked(newest time.Time) {
	cutoff := newest.Add(-w.retain)
	i := 0
	for i < len(w.samples) && w.samples[i].TS.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.samples = append(w.samples[:0], w.samples[i:]...)
	}
	if over := len(w.samples) - w.maxLen; over > 0 {
		w.samples = append(w.samples[:0], w.samples[over:]...)
	}
}

// Snapshot returns a copy of the current samples, oldest first.
func (w *Window) Snapshot() []model.PriceSample {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cp := make([]model.PriceSample, len(w.samples))
	copy(cp, w.samples)
	return cp
}

// Since returns a copy of samples with TS >= t, oldest first.
func (w *Window) Since(t time.Time) []model.PriceSample {
	w.mu.RLock()
	defer w.mu.RUnlock()
	i := 0
	for i < len(w.samples) && w.samples[i].TS.Before(t) {
		i++
	}
	cp := make([]model.PriceSample, len(w.samples)-i)
	copy(cp, w.samples[i:])
	return cp
}

// Len returns the current sample count.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.samples)
}

// LastSampleAt returns the arrival time of the newest sample (zero if the
// window is empty). The decision loop uses this for the data-gap check.
func (w *Window) LastSampleAt() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastSeen
}

// Dropped returns the count of out-of-order samples rejected.
func (w *Window) Dropped() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dropped
}
