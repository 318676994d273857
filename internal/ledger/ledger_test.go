package ledger

import (
	"testing"
	"time"

	"polytraderv1/internal/model"
)

var ledgerNow = time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)

func testWindow(id string) *model.IntervalWindow {
	return &model.IntervalWindow{
		ID:    id,
		Start: ledgerNow.Truncate(15 * time.Minute),
		End:   ledgerNow.Truncate(15 * time.Minute).Add(15 * time.Minute),
	}
}

func openTestPosition(l *Ledger, windowID string, dir model.Direction, size int64, price float64) model.Position {
	return l.Open(testWindow(windowID), dir, size, model.ConfidenceHigh, model.Fill{
		OrderID:   "ord-1",
		FillPrice: price,
		FilledAt:  ledgerNow,
	})
}

func TestOpen_RecordsFillDetails(t *testing.T) {
	l := New()
	pos := openTestPosition(l, "w1", model.DirectionUp, 6000, 0.52)

	if pos.Status != model.PositionOpen {
		t.Errorf("expected OPEN, got %s", pos.Status)
	}
	if pos.EntryPrice != 0.52 || pos.Size != 6000 || pos.OrderID != "ord-1" {
		t.Errorf("fill details not carried: %+v", pos)
	}
	if got := l.OpenPositions(); len(got) != 1 || got[0].ID != pos.ID {
		t.Errorf("expected one open position, got %v", got)
	}
}

func TestResolve_WinPaysOutAtEntryOdds(t *testing.T) {
	l := New()
	// $60 at 0.50 → 120 shares → $120 payout → $60 profit
	pos := openTestPosition(l, "w1", model.DirectionUp, 6000, 0.50)

	res, fresh, err := l.Resolve(pos.ID, model.DirectionUp, ledgerNow.Add(10*time.Minute))
	if err != nil || !fresh {
		t.Fatalf("resolve failed: fresh=%v err=%v", fresh, err)
	}
	if res.Status != model.PositionWon {
		t.Errorf("expected WON, got %s", res.Status)
	}
	if res.PnL != 6000 {
		t.Errorf("expected P&L $60.00, got %s", model.FormatUSD(res.PnL))
	}
}

func TestResolve_LossForfeitsStake(t *testing.T) {
	l := New()
	pos := openTestPosition(l, "w1", model.DirectionUp, 6000, 0.50)

	res, fresh, err := l.Resolve(pos.ID, model.DirectionDown, ledgerNow.Add(10*time.Minute))
	if err != nil || !fresh {
		t.Fatalf("resolve failed: fresh=%v err=%v", fresh, err)
	}
	if res.Status != model.PositionLost || res.PnL != -6000 {
		t.Errorf("expected LOST with -$60.00, got %s %s", res.Status, model.FormatUSD(res.PnL))
	}
}

// A replayed outcome must not settle twice or change the stored P&L.
func TestResolve_Idempotent(t *testing.T) {
	l := New()
	pos := openTestPosition(l, "w1", model.DirectionUp, 6000, 0.50)

	first, fresh, _ := l.Resolve(pos.ID, model.DirectionUp, ledgerNow)
	if !fresh {
		t.Fatal("first resolve must be fresh")
	}

	second, fresh, err := l.Resolve(pos.ID, model.DirectionDown, ledgerNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("duplicate resolve must be benign, got %v", err)
	}
	if fresh {
		t.Error("duplicate resolve reported as fresh")
	}
	if second.Status != first.Status || second.PnL != first.PnL {
		t.Errorf("duplicate resolve mutated position: %+v vs %+v", second, first)
	}
	if got := l.RealizedPnL(); got != first.PnL {
		t.Errorf("realized P&L double-counted: got %s", model.FormatUSD(got))
	}
}

func TestResolve_UnknownPosition(t *testing.T) {
	l := New()
	if _, _, err := l.Resolve("missing", model.DirectionUp, ledgerNow); err == nil {
		t.Error("expected error for unknown position")
	}
}

func TestResolveWindow_SettlesOnlyThatWindow(t *testing.T) {
	l := New()
	openTestPosition(l, "w1", model.DirectionUp, 3000, 0.50)
	openTestPosition(l, "w1", model.DirectionDown, 2000, 0.48)
	other := openTestPosition(l, "w2", model.DirectionUp, 1000, 0.55)

	settled := l.ResolveWindow("w1", model.DirectionUp, ledgerNow.Add(15*time.Minute))
	if len(settled) != 2 {
		t.Fatalf("expected 2 settled, got %d", len(settled))
	}
	for _, p := range settled {
		if p.WindowID != "w1" {
			t.Errorf("settled position from wrong window: %s", p.WindowID)
		}
	}
	if got, _ := l.Get(other.ID); got.Status != model.PositionOpen {
		t.Errorf("unrelated window settled: %s", got.Status)
	}
	if open := l.OpenPositions(); len(open) != 1 {
		t.Errorf("expected 1 remaining open, got %d", len(open))
	}
}

func TestBinaryPayout_SkewedEntry(t *testing.T) {
	cases := []struct {
		name  string
		size  int64
		price float64
		want  int64
	}{
		{"even odds", 6000, 0.50, 6000},
		{"expensive favorite", 6000, 0.75, 2000},
		{"cheap longshot", 6000, 0.25, 18000},
		{"degenerate price", 6000, 0.0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BinaryPayout(tc.size, tc.price); got != tc.want {
				t.Errorf("BinaryPayout(%d, %.2f) = %d, want %d", tc.size, tc.price, got, tc.want)
			}
		})
	}
}
