package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrScorerUnavailable means the external scoring port has no vote this
// tick. The factor abstains; nothing escalates.
var ErrScorerUnavailable = errors.New("direction scorer unavailable")

// ErrOracleUnavailable means the window's outcome is not yet resolvable.
// Resolution is deferred to a later tick; never fatal.
var ErrOracleUnavailable = errors.New("outcome not yet resolved")

// DataGapError reports a stale price feed: no sample has arrived for at
// least Threshold. The decision loop recovers by forcing HOLD.
type DataGapError struct {
	Age       time.Duration
	Threshold time.Duration
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("price feed stale: no sample for %s (threshold %s)", e.Age.Round(time.Second), e.Threshold)
}

// PhaseViolation reports an admission attempted outside ENTRY_OPEN. With a
// correctly consulted clock this cannot happen; when it does, the loop
// fails closed to HOLD and logs loudly.
type PhaseViolation struct {
	Phase Phase
}

func (e *PhaseViolation) Error() string {
	return fmt.Sprintf("admission attempted in phase %s", e.Phase)
}

// ExecutionError reports a gateway rejection or timeout. It surfaces to the
// log and notifier but does not crash the loop, and the attempt does not
// consume the daily trade budget.
type ExecutionError struct {
	Reason string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("execution failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("execution failed: %s", e.Reason)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
