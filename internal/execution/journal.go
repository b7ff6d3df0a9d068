package execution

import (
	"database/sql"
	"log"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// FillJournal persists fills to SQLite for analysis and audit.
type FillJournal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewFillJournal opens (or creates) a SQLite fill journal.
func NewFillJournal(dbPath string) (*FillJournal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS fills (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id     TEXT NOT NULL,
		signal_kind  TEXT NOT NULL,
		confidence   REAL NOT NULL,
		action       TEXT NOT NULL,
		option_type  TEXT NOT NULL,
		strike       INTEGER NOT NULL,
		expiry       DATETIME,
		token        TEXT NOT NULL,
		exchange     TEXT NOT NULL,
		qty          INTEGER NOT NULL,
		price        INTEGER NOT NULL,
		slippage     INTEGER DEFAULT 0,
		realized_pnl INTEGER DEFAULT 0,
		filled_at    DATETIME NOT NULL,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_fills_token ON fills(token, exchange);
	CREATE INDEX IF NOT EXISTS idx_fills_filled_at ON fills(filled_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened fill journal at %s", dbPath)
	return &FillJournal{db: db}, nil
}

// RecordFill persists a fill.
func (j *FillJournal) RecordFill(fill Fill) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO fills (order_id, signal_kind, confidence, action, option_type, strike, expiry, token, exchange, qty, price, slippage, realized_pnl, filled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fill.OrderID, string(fill.SignalKind), fill.Confidence,
		fill.Order.TransactionType, fill.Order.OptionType, fill.Order.Strike, fill.Order.Expiry,
		fill.Order.Token, fill.Order.Exchange, fill.FillQty, fill.FillPrice,
		fill.Slippage, fill.RealizedPnL, fill.FilledAt,
	)
	return err
}

// Close closes the underlying database.
func (j *FillJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.db.Close()
}
