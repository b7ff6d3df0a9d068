package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"nifty-optionsbot/internal/model"
)

func TestBarRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	w, err := New(WriterConfig{DBPath: dbPath})
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer w.Close()

	base := time.Date(2026, 8, 28, 9, 15, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		bar := model.Bar{
			Token: "26000", Exchange: "NSE",
			TS:   base.Add(time.Duration(i) * time.Minute),
			Open: 2200000, High: 2200500, Low: 2199500, Close: 2200200,
			TicksCount: 42,
		}
		if err := w.WriteBar(context.Background(), bar); err != nil {
			t.Fatalf("write bar %d: %v", i, err)
		}
	}

	r, err := NewReader(dbPath)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	bars, err := r.ReadBars("NSE", "26000", 0)
	if err != nil {
		t.Fatalf("read bars: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("bars = %d, want 3", len(bars))
	}
	if !bars[0].TS.Equal(base) {
		t.Errorf("first ts = %v, want %v", bars[0].TS, base)
	}
	if bars[2].Close != 2200200 {
		t.Errorf("close = %d", bars[2].Close)
	}

	// afterTS excludes earlier rows
	bars, err = r.ReadBars("NSE", "26000", base.Unix())
	if err != nil {
		t.Fatalf("read bars after: %v", err)
	}
	if len(bars) != 2 {
		t.Errorf("bars after first ts = %d, want 2", len(bars))
	}
}

func TestWriteBarIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	w, err := New(WriterConfig{DBPath: dbPath})
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer w.Close()

	bar := model.Bar{
		Token: "26000", Exchange: "NSE",
		TS:   time.Date(2026, 8, 28, 9, 15, 0, 0, time.UTC),
		Open: 100, High: 110, Low: 90, Close: 105,
	}
	for i := 0; i < 3; i++ {
		if err := w.WriteBar(context.Background(), bar); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	r, _ := NewReader(dbPath)
	defer r.Close()
	bars, err := r.ReadBars("NSE", "26000", 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("duplicate writes produced %d rows", len(bars))
	}
}

func TestSignalJournalRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	w, err := New(WriterConfig{DBPath: dbPath})
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer w.Close()

	sig := model.Signal{
		Kind:       model.SignalBuyCE,
		Confidence: 88.9,
		TS:         time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
		Reason:     "all filters passed",
	}
	rec := model.ReasoningRecord{
		TS:         sig.TS,
		Signal:     sig.Kind,
		Confidence: sig.Confidence,
		KeyFactors: []string{"rsi above threshold"},
	}
	if err := w.RecordSignal(context.Background(), sig, rec); err != nil {
		t.Fatalf("record signal: %v", err)
	}

	r, _ := NewReader(dbPath)
	defer r.Close()
	signals, err := r.ReadSignals(10)
	if err != nil {
		t.Fatalf("read signals: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want 1", len(signals))
	}
	got := signals[0]
	if got.Signal.Kind != model.SignalBuyCE || got.Signal.Confidence != 88.9 {
		t.Errorf("signal = %+v", got.Signal)
	}
	if len(got.Reasoning.KeyFactors) != 1 || got.Reasoning.KeyFactors[0] != "rsi above threshold" {
		t.Errorf("reasoning = %+v", got.Reasoning)
	}
}

func TestRunBatchesAndSkipsForming(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	w, err := New(WriterConfig{DBPath: dbPath})
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer w.Close()

	ch := make(chan model.Bar, 8)
	base := time.Date(2026, 8, 28, 9, 15, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		ch <- model.Bar{
			Token: "26000", Exchange: "NSE",
			TS:   base.Add(time.Duration(i) * time.Minute),
			Open: 100, High: 110, Low: 90, Close: 105,
		}
	}
	ch <- model.Bar{Token: "26000", Exchange: "NSE", TS: base.Add(5 * time.Minute), Open: 100, High: 110, Low: 90, Close: 105, Forming: true}
	close(ch)

	w.Run(context.Background(), ch)

	r, _ := NewReader(dbPath)
	defer r.Close()
	bars, err := r.ReadBars("NSE", "26000", 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(bars) != 4 {
		t.Fatalf("bars = %d, want 4 (forming bar must be skipped)", len(bars))
	}
}
