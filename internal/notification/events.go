package notification

import (
	"fmt"
	"strings"
	"time"

	"polytraderv1/internal/model"
)

// Event builders translate trading lifecycle moments into alerts. Message
// text mirrors what the audit logs record, formatted for a human reading
// a phone notification.

// AdmissionAlert announces an admitted and filled entry.
func AdmissionAlert(pos model.Position, window *model.IntervalWindow, balance int64) Alert {
	title := fmt.Sprintf("Entered %s at %.2f", pos.Direction, pos.EntryPrice)
	var b strings.Builder
	fmt.Fprintf(&b, "Market: %s\n", window.Title)
	fmt.Fprintf(&b, "Stake: %s (%s confidence)\n", model.FormatUSD(pos.Size), pos.Confidence)
	fmt.Fprintf(&b, "Balance: %s", model.FormatUSD(balance))
	return Alert{Level: AlertInfo, Title: title, Message: b.String()}
}

// RejectionAlert announces a signal the risk gate refused.
func RejectionAlert(sig *model.Signal, reason, detail string) Alert {
	msg := fmt.Sprintf("Signal %s/%s rejected: %s", sig.Direction, sig.Confidence, reason)
	if detail != "" {
		msg += "\n" + detail
	}
	return Alert{Level: AlertWarning, Title: "Trade rejected", Message: msg}
}

// ResolutionAlert announces a settled position.
func ResolutionAlert(pos model.Position, balance int64) Alert {
	level := AlertInfo
	verb := "Won"
	if pos.Status == model.PositionLost {
		level = AlertWarning
		verb = "Lost"
	}
	title := fmt.Sprintf("%s %s on %s", verb, model.FormatUSD(abs(pos.PnL)), pos.Direction)
	msg := fmt.Sprintf("Stake: %s at %.2f\nBalance: %s",
		model.FormatUSD(pos.Size), pos.EntryPrice, model.FormatUSD(balance))
	return Alert{Level: level, Title: title, Message: msg}
}

// HaltAlert announces a trading halt.
func HaltAlert(reason string, until time.Time) Alert {
	return Alert{
		Level: AlertCritical,
		Title: "Trading halted",
		Message: fmt.Sprintf("Reason: %s\nResumes: %s",
			reason, until.UTC().Format("15:04 MST Jan 2")),
	}
}

// ResumeAlert announces a manual resume.
func ResumeAlert(issuedBy string) Alert {
	return Alert{
		Level:   AlertInfo,
		Title:   "Trading resumed",
		Message: "Halt cleared by " + issuedBy,
	}
}

// DailySummaryAlert reports the day's result at rollover.
func DailySummaryAlert(state model.RiskState, wins, losses int) Alert {
	pnl := state.DailyPnL()
	level := AlertInfo
	if pnl < 0 {
		level = AlertWarning
	}
	var b strings.Builder
	fmt.Fprintf(&b, "P&L: %s\n", model.FormatUSD(pnl))
	fmt.Fprintf(&b, "Trades: %d (%dW / %dL)\n", state.TradesToday, wins, losses)
	fmt.Fprintf(&b, "Balance: %s\n", model.FormatUSD(state.CurrentBalance))
	fmt.Fprintf(&b, "Size multiplier: %.1fx", state.SizeMultiplier)
	return Alert{Level: level, Title: "Daily summary", Message: b.String()}
}

// StartupAlert announces the trader coming online.
func StartupAlert(mode string, balance int64) Alert {
	return Alert{
		Level:   AlertInfo,
		Title:   "Trader started",
		Message: fmt.Sprintf("Mode: %s\nBalance: %s", mode, model.FormatUSD(balance)),
	}
}

// ShutdownAlert announces a clean shutdown.
func ShutdownAlert(balance int64, openPositions int) Alert {
	return Alert{
		Level: AlertInfo,
		Title: "Trader stopped",
		Message: fmt.Sprintf("Balance: %s\nOpen positions: %d",
			model.FormatUSD(balance), openPositions),
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
