package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"nifty-optionsbot/internal/model"
)

// Reader provides read-only access for replay and signal review.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadBars reads closed bars for the instrument after the given unix
// timestamp, ordered ascending for replay.
func (r *Reader) ReadBars(exchange, token string, afterTS int64) ([]model.Bar, error) {
	rows, err := r.db.Query(`
		SELECT token, exchange, ts, open, high, low, close, volume, open_interest, ticks_count
		FROM bars
		WHERE exchange = ? AND token = ? AND ts > ?
		ORDER BY ts ASC
	`, exchange, token, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tsUnix int64
		if err := rows.Scan(&b.Token, &b.Exchange, &tsUnix, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.OpenInterest, &b.TicksCount); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.TS = time.Unix(tsUnix, 0).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// JournaledSignal is one persisted signal row.
type JournaledSignal struct {
	Signal    model.Signal
	Reasoning model.ReasoningRecord
}

// ReadSignals returns the most recent count signals, newest first.
func (r *Reader) ReadSignals(count int) ([]JournaledSignal, error) {
	rows, err := r.db.Query(`
		SELECT kind, confidence, ts, reason, reasoning
		FROM signals
		ORDER BY ts DESC
		LIMIT ?
	`, count)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signals: %w", err)
	}
	defer rows.Close()

	var out []JournaledSignal
	for rows.Next() {
		var js JournaledSignal
		var kind, reasoning string
		var tsUnix int64
		if err := rows.Scan(&kind, &js.Signal.Confidence, &tsUnix, &js.Signal.Reason, &reasoning); err != nil {
			return nil, fmt.Errorf("sqlite scan signals: %w", err)
		}
		js.Signal.Kind = model.SignalKind(kind)
		js.Signal.TS = time.Unix(tsUnix, 0).UTC()
		if err := json.Unmarshal([]byte(reasoning), &js.Reasoning); err != nil {
			return nil, fmt.Errorf("sqlite decode reasoning: %w", err)
		}
		out = append(out, js)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
