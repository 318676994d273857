package model

import "time"

// Phase classifies "now" within the active trading window.
type Phase string

const (
	PhasePreEntry  Phase = "PRE_ENTRY" // first minutes — not enough in-window data
	PhaseEntryOpen Phase = "ENTRY_OPEN" // the only phase that admits new entries
	PhaseLate      Phase = "LATE"       // tail of the window — no new entries
	PhaseResolving Phase = "RESOLVING"  // window ended, outcome not yet known
	PhaseClosed    Phase = "CLOSED"     // outcome known, positions settled
	PhaseUnknown   Phase = "UNKNOWN"    // no window metadata — treated as LATE
)

// IntervalWindow is one fixed-length binary market window as declared by the
// external market schedule. Windows are contiguous and non-overlapping.
type IntervalWindow struct {
	ID    string    `json:"id"`    // market/condition identifier
	Title string    `json:"title"` // human-readable market title
	Slug  string    `json:"slug"`  // market page slug, "" if unknown
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// Outcome token identifiers for each direction.
	UpToken   string `json:"up_token"`
	DownToken string `json:"down_token"`

	// Latest quoted outcome prices in [0,1]; 0 if unknown.
	UpPrice   float64 `json:"up_price"`
	DownPrice float64 `json:"down_price"`
}

// Token returns the outcome token for the given direction.
func (w *IntervalWindow) Token(dir Direction) string {
	if dir == DirectionDown {
		return w.DownToken
	}
	return w.UpToken
}

// EntryPrice returns the quoted price of the outcome token for dir,
// falling back to 0.50 when no quote is available.
func (w *IntervalWindow) EntryPrice(dir Direction) float64 {
	p := w.UpPrice
	if dir == DirectionDown {
		p = w.DownPrice
	}
	if p <= 0 || p >= 1 {
		return 0.50
	}
	return p
}
