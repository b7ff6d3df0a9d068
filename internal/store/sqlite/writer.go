// Package sqlite persists closed bars and admitted signals. Bars feed
// the replay tool; the signal journal is the audit trail of everything
// the bot decided to act on.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"nifty-optionsbot/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // e.g. "data/optionsbot.db"
}

// Writer is a single-goroutine SQLite writer with transaction batching
// for bars. Signal writes bypass the batch: they are rare and must not
// be lost to a crash between flushes.
type Writer struct {
	mu sync.Mutex
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database, enables WAL mode, and migrates the schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			token         TEXT    NOT NULL,
			exchange      TEXT    NOT NULL,
			ts            INTEGER NOT NULL,
			open          INTEGER NOT NULL,
			high          INTEGER NOT NULL,
			low           INTEGER NOT NULL,
			close         INTEGER NOT NULL,
			volume        INTEGER,
			open_interest INTEGER,
			ticks_count   INTEGER,
			PRIMARY KEY (exchange, token, ts)
		);

		CREATE TABLE IF NOT EXISTS signals (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			kind       TEXT    NOT NULL,
			confidence REAL    NOT NULL,
			ts         INTEGER NOT NULL,
			reason     TEXT,
			reasoning  TEXT    NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
		CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals(ts);
	`)
	return err
}

// WriteBar upserts one closed bar.
func (w *Writer) WriteBar(ctx context.Context, b model.Bar) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := w.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO bars (token, exchange, ts, open, high, low, close, volume, open_interest, ticks_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.Token, b.Exchange, b.TS.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume, b.OpenInterest, b.TicksCount)
	return err
}

// Run reads closed bars from barCh and inserts them in batched
// transactions, flushing on size or delay, whichever comes first.
func (w *Writer) Run(ctx context.Context, barCh <-chan model.Bar) {
	batch := make([]model.Bar, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case bar, ok := <-barCh:
			if !ok {
				flush()
				return
			}
			if bar.Forming {
				continue
			}
			batch = append(batch, bar)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (w *Writer) insertBatch(bars []model.Bar) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars (token, exchange, ts, open, high, low, close, volume, open_interest, ticks_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(b.Token, b.Exchange, b.TS.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume, b.OpenInterest, b.TicksCount); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// RecordSignal journals an admitted signal with its reasoning record.
func (w *Writer) RecordSignal(ctx context.Context, sig model.Signal, rec model.ReasoningRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("sqlite: marshal reasoning: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.db.ExecContext(ctx, `
		INSERT INTO signals (kind, confidence, ts, reason, reasoning)
		VALUES (?, ?, ?, ?, ?)
	`, string(sig.Kind), sig.Confidence, sig.TS.Unix(), sig.Reason, string(raw))
	return err
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
