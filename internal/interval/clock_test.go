package interval

import (
	"testing"
	"time"

	"polytraderv1/internal/model"
)

func testWindow() *model.IntervalWindow {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &model.IntervalWindow{
		ID:    "w1",
		Start: start,
		End:   start.Add(15 * time.Minute),
	}
}

func TestClock_PhaseSequence(t *testing.T) {
	c := NewClock(15, 2, 10)
	w := testWindow()

	cases := []struct {
		offset  time.Duration
		settled bool
		want    model.Phase
	}{
		{0, false, model.PhasePreEntry},
		{1*time.Minute + 59*time.Second, false, model.PhasePreEntry},
		{2 * time.Minute, false, model.PhaseEntryOpen},
		{7 * time.Minute, false, model.PhaseEntryOpen},
		{10*time.Minute + 59*time.Second, false, model.PhaseEntryOpen},
		{11 * time.Minute, false, model.PhaseLate},
		{14*time.Minute + 59*time.Second, false, model.PhaseLate},
		{15 * time.Minute, false, model.PhaseResolving},
		{16 * time.Minute, false, model.PhaseResolving},
		{16 * time.Minute, true, model.PhaseClosed},
	}

	for _, tc := range cases {
		got := c.Phase(w, w.Start.Add(tc.offset), tc.settled)
		if got != tc.want {
			t.Errorf("at +%v settled=%v: expected %s, got %s", tc.offset, tc.settled, tc.want, got)
		}
	}
}

func TestClock_NilWindowIsUnknown(t *testing.T) {
	c := NewClock(15, 2, 10)
	if got := c.Phase(nil, time.Now().UTC(), false); got != model.PhaseUnknown {
		t.Errorf("expected UNKNOWN for nil window, got %s", got)
	}
	if got := c.Phase(&model.IntervalWindow{}, time.Now().UTC(), false); got != model.PhaseUnknown {
		t.Errorf("expected UNKNOWN for window without bounds, got %s", got)
	}
}

func TestEntryAdmissible(t *testing.T) {
	for _, p := range []model.Phase{
		model.PhasePreEntry, model.PhaseLate, model.PhaseResolving,
		model.PhaseClosed, model.PhaseUnknown,
	} {
		if EntryAdmissible(p) {
			t.Errorf("phase %s must not admit entries", p)
		}
	}
	if !EntryAdmissible(model.PhaseEntryOpen) {
		t.Error("ENTRY_OPEN must admit entries")
	}
}

func TestClock_WindowBounds(t *testing.T) {
	c := NewClock(15, 2, 10)

	now := time.Date(2025, 6, 1, 12, 37, 42, 0, time.UTC)
	start, end := c.WindowBounds(now)

	wantStart := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("expected start %v, got %v", wantStart, start)
	}
	if !end.Equal(wantStart.Add(15 * time.Minute)) {
		t.Errorf("expected end %v, got %v", wantStart.Add(15*time.Minute), end)
	}
	if m := c.MinuteInWindow(now); m != 7 {
		t.Errorf("expected minute 7, got %d", m)
	}
}
