// cmd/replay runs persisted bars back through the full decision
// pipeline to validate indicator and strategy behavior without live
// market data. Signals are admitted through a cooldown gate but never
// risk-blocked or executed.
//
// Usage:
//
//	go run ./cmd/replay --db=data/bars.db --token=99926000 --from=0
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"nifty-optionsbot/internal/indicator"
	"nifty-optionsbot/internal/model"
	"nifty-optionsbot/internal/pipeline"
	sqlitestore "nifty-optionsbot/internal/store/sqlite"
	"nifty-optionsbot/internal/strategy"
)

// allowAll admits every signal; replay has no account to protect.
type allowAll struct{}

func (allowAll) CanTrade(ctx context.Context, sig model.Signal) (bool, string, error) {
	return true, "", nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	dbPath := flag.String("db", "data/bars.db", "Path to SQLite bar database")
	exchange := flag.String("exchange", "NSE", "Exchange of the replayed instrument")
	token := flag.String("token", "99926000", "Instrument token to replay")
	fromTS := flag.Int64("from", 0, "Unix timestamp to start replay after (0=all)")
	cooldown := flag.Duration("cooldown", 120*time.Second, "Directional signal cooldown")
	verbose := flag.Bool("v", false, "Print every admitted signal")
	flag.Parse()

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[replay] sqlite open failed: %v", err)
	}
	defer reader.Close()

	bars, err := reader.ReadBars(*exchange, *token, *fromTS)
	if err != nil {
		log.Fatalf("[replay] read bars failed: %v", err)
	}
	if len(bars) == 0 {
		log.Fatalf("[replay] no bars for %s:%s after ts=%d", *exchange, *token, *fromTS)
	}
	log.Printf("[replay] %d bars loaded (%s .. %s)",
		len(bars), bars[0].TS.Format(time.RFC3339), bars[len(bars)-1].TS.Format(time.RFC3339))

	params := strategy.DefaultParams()
	params.IsIndex = true
	pipe := pipeline.New(pipeline.Options{
		Instrument: model.Instrument{Exchange: *exchange, Token: *token, IsIndex: true},
		Engine:     indicator.NewEngine(indicator.DefaultConfig()),
		Evaluator:  strategy.NewEvaluator(params),
		Gate:       strategy.NewGate(*cooldown, allowAll{}),
	})

	ctx := context.Background()
	barCh := make(chan model.Bar, 1000)
	done := make(chan struct{})

	counts := map[model.SignalKind]int{}
	go func() {
		defer close(done)
		for sig := range pipe.Signals() {
			counts[sig.Kind]++
			if *verbose {
				fmt.Printf("  [%s] %-7s confidence=%.1f  %s\n",
					sig.TS.Format("15:04:05"), sig.Kind, sig.Confidence, sig.Reason)
			}
		}
	}()

	go func() {
		for _, b := range bars {
			barCh <- b
		}
		close(barCh)
	}()
	pipe.Run(ctx, barCh)
	<-done

	fmt.Println()
	fmt.Println("=== replay complete ===")
	fmt.Printf("  bars:    %d\n", len(bars))
	fmt.Printf("  BUY_CE:  %d\n", counts[model.SignalBuyCE])
	fmt.Printf("  BUY_PE:  %d\n", counts[model.SignalBuyPE])
	fmt.Printf("  CLOSE:   %d\n", counts[model.SignalClose])
	if st, ok := pipe.State(); ok {
		fmt.Printf("  final:   %s (confidence %.1f) at close %.2f\n",
			st.Signal.Kind, st.Signal.Confidence, st.Bar.CloseRupees())
	}
}
