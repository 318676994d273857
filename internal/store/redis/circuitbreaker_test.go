package redis

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

// fakeClock drives the breaker's reset timeout without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int, resetTimeout time.Duration) (*CircuitBreaker, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(maxFailures, resetTimeout)
	cb.now = clk.now
	return cb, clk
}

func trip(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.Execute(func() error { return errBoom })
	}
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb, _ := newTestBreaker(3, 10*time.Second)
	if got := cb.CurrentState(); got != StateClosed {
		t.Errorf("state = %v, want closed", got)
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Errorf("closed breaker rejected a call: %v", err)
	}
}

func TestCircuitBreaker_TripsAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, 10*time.Second)

	trip(cb, 2)
	if got := cb.CurrentState(); got != StateClosed {
		t.Fatalf("state = %v after 2 of 3 failures, want closed", got)
	}

	trip(cb, 1)
	if got := cb.CurrentState(); got != StateOpen {
		t.Fatalf("state = %v after 3 failures, want open", got)
	}

	// Open breaker rejects without invoking fn.
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn invoked while breaker open")
	}
}

func TestCircuitBreaker_ProbeClosesOnSuccess(t *testing.T) {
	cb, clk := newTestBreaker(2, 10*time.Second)
	trip(cb, 2)

	clk.advance(11 * time.Second)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe rejected: %v", err)
	}
	if got := cb.CurrentState(); got != StateClosed {
		t.Errorf("state = %v after successful probe, want closed", got)
	}
}

func TestCircuitBreaker_ProbeReopensOnFailure(t *testing.T) {
	cb, clk := newTestBreaker(2, 10*time.Second)
	trip(cb, 2)

	clk.advance(11 * time.Second)
	trip(cb, 1) // failed probe
	if got := cb.CurrentState(); got != StateOpen {
		t.Fatalf("state = %v after failed probe, want open", got)
	}

	// The reopen restarts the reset window from the probe failure.
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v immediately after reopen, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(3, 10*time.Second)

	trip(cb, 2)
	cb.Execute(func() error { return nil })
	trip(cb, 2)

	if got := cb.CurrentState(); got != StateClosed {
		t.Errorf("state = %v, want closed: success should clear the failure streak", got)
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	cb, clk := newTestBreaker(1, 10*time.Second)
	var seen []State
	cb.OnStateChange = func(from, to State) { seen = append(seen, to) }

	trip(cb, 1)
	clk.advance(11 * time.Second)
	cb.Execute(func() error { return nil })

	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", seen, want)
		}
	}
}
