package execution

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"polytraderv1/internal/model"
)

// Journal persists trade records to SQLite for analysis and audit.
// It implements model.TradeLog.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) the SQLite trade journal.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		ts               DATETIME NOT NULL,
		window_id        TEXT NOT NULL,
		direction        TEXT NOT NULL,
		size_cents       INTEGER NOT NULL,
		entry_price      REAL NOT NULL,
		confidence       TEXT NOT NULL,
		rejection_reason TEXT,
		status           TEXT,
		pnl_cents        INTEGER NOT NULL DEFAULT 0,
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_window ON trades(window_id);
	CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened trade journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// AppendTrade persists one trade record.
func (j *Journal) AppendTrade(rec model.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO trades (ts, window_id, direction, size_cents, entry_price, confidence, rejection_reason, status, pnl_cents)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TS.Format(time.RFC3339),
		rec.WindowID,
		string(rec.Direction),
		rec.Size,
		rec.EntryPrice,
		string(rec.Confidence),
		rec.RejectionReason,
		string(rec.Status),
		rec.PnL,
	)
	return err
}

// RecentTrades returns the last N trade records, newest first.
func (j *Journal) RecentTrades(limit int) ([]model.TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT ts, window_id, direction, size_cents, entry_price, confidence, rejection_reason, status, pnl_cents
		 FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TradeRecord
	for rows.Next() {
		var (
			rec       model.TradeRecord
			ts        string
			direction string
			conf      string
			status    string
		)
		if err := rows.Scan(&ts, &rec.WindowID, &direction, &rec.Size, &rec.EntryPrice,
			&conf, &rec.RejectionReason, &status, &rec.PnL); err != nil {
			continue
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			rec.TS = t
		}
		rec.Direction = model.Direction(direction)
		rec.Confidence = model.Confidence(conf)
		rec.Status = model.PositionStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
