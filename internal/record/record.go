// Package record appends signal and trade audit rows to CSV files.
//
// Schemas are append-only: columns are only ever added at the end, never
// renamed or removed, so downstream analysis keeps working across versions.
package record

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"polytraderv1/internal/model"
)

var signalHeader = []string{
	"ts", "window_id", "price", "rsi", "rsi_valid",
	"vwap_deviation_pct", "momentum_direction", "signal_direction",
	"confidence", "action_taken",
}

var tradeHeader = []string{
	"ts", "window_id", "direction", "size_cents", "entry_price",
	"confidence", "rejection_reason", "status", "pnl_cents",
}

// CSVLog writes append-only CSV rows, creating the file with its header
// on first use. It implements model.SignalLog and model.TradeLog.
type CSVLog struct {
	mu         sync.Mutex
	signalPath string
	tradePath  string
}

// NewCSVLog creates a CSVLog writing to the given paths.
func NewCSVLog(signalPath, tradePath string) *CSVLog {
	return &CSVLog{signalPath: signalPath, tradePath: tradePath}
}

// AppendSignal appends one signal row.
func (l *CSVLog) AppendSignal(rec model.SignalRecord) error {
	row := []string{
		rec.TS.UTC().Format(time.RFC3339),
		rec.WindowID,
		strconv.FormatFloat(rec.Price, 'f', 2, 64),
		strconv.FormatFloat(rec.RSI, 'f', 2, 64),
		strconv.FormatBool(rec.RSIValid),
		strconv.FormatFloat(rec.VWAPDeviationPct, 'f', 4, 64),
		string(rec.Momentum),
		string(rec.Direction),
		string(rec.Confidence),
		rec.Action,
	}
	return l.append(l.signalPath, signalHeader, row)
}

// AppendTrade appends one trade row.
func (l *CSVLog) AppendTrade(rec model.TradeRecord) error {
	row := []string{
		rec.TS.UTC().Format(time.RFC3339),
		rec.WindowID,
		string(rec.Direction),
		strconv.FormatInt(rec.Size, 10),
		strconv.FormatFloat(rec.EntryPrice, 'f', 4, 64),
		string(rec.Confidence),
		rec.RejectionReason,
		string(rec.Status),
		strconv.FormatInt(rec.PnL, 10),
	}
	return l.append(l.tradePath, tradeHeader, row)
}

func (l *CSVLog) append(path string, header, row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("record: %w", err)
	}

	writeHeader := false
	if info, err := os.Stat(path); os.IsNotExist(err) || (err == nil && info.Size() == 0) {
		writeHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("record: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	w.Flush()
	return w.Error()
}
