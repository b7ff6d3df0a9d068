// Package marketdata builds 1-minute OHLCV bars from the broker tick
// stream. Every tick updates the forming bar (emitted with Forming=true
// so downstream consumers can stream live indicator previews); when the
// minute rolls over the completed bar is emitted once with Forming=false.
package marketdata

import (
	"context"
	"log"
	"sync"
	"time"

	"nifty-optionsbot/internal/model"
)

// barState holds the in-progress bar for one instrument in the current
// minute bucket.
type barState struct {
	bucket int64 // Unix second of the minute-aligned bucket start
	bar    model.Bar
}

// BarBuilder aggregates ticks into 1-minute bars.
// Single consumer goroutine; the mutex only guards flushes from the
// rollover ticker.
type BarBuilder struct {
	mu     sync.Mutex
	states map[string]*barState // key = "exchange:token"

	interval      time.Duration // bar duration, default 1 minute
	flushInterval time.Duration // rollover check frequency

	// Metrics hooks (optional, set externally)
	OnDroppedTick func()
	OnBarClosed   func()
}

// New creates a BarBuilder producing bars of the given interval.
// interval <= 0 defaults to one minute.
func New(interval time.Duration) *BarBuilder {
	if interval <= 0 {
		interval = time.Minute
	}
	return &BarBuilder{
		states:        make(map[string]*barState),
		interval:      interval,
		flushInterval: 250 * time.Millisecond,
	}
}

// Run consumes ticks from tickCh, maintains forming bars, and sends bar
// updates to barCh: a Forming=true update per tick, a Forming=false bar
// per completed bucket. Blocks until ctx is cancelled or tickCh closes;
// open bars are flushed on the way out so shutdown never tears a bar.
func (b *BarBuilder) Run(ctx context.Context, tickCh <-chan model.Tick, barCh chan<- model.Bar) {
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.flushAll(barCh)
			return
		case tick, ok := <-tickCh:
			if !ok {
				b.flushAll(barCh)
				return
			}
			b.processTick(tick, barCh)
		case <-ticker.C:
			b.flushOld(barCh)
		}
	}
}

// processTick folds one tick into its bucket's bar and emits the
// forming-bar update.
func (b *BarBuilder) processTick(tick model.Tick, barCh chan<- model.Bar) {
	sec := tick.TickTS.Unix()
	bucket := sec - sec%int64(b.interval/time.Second)
	key := tick.Exchange + ":" + tick.Token

	b.mu.Lock()
	defer b.mu.Unlock()

	state, exists := b.states[key]

	if exists && bucket < state.bucket {
		// Late tick belonging to an already-closed bucket: drop.
		if b.OnDroppedTick != nil {
			b.OnDroppedTick()
		}
		return
	}

	if exists && bucket > state.bucket {
		// New bucket: finalize the previous bar first.
		b.close(state, barCh)
		delete(b.states, key)
		exists = false
	}

	if !exists {
		state = &barState{
			bucket: bucket,
			bar: model.Bar{
				Token:        tick.Token,
				Exchange:     tick.Exchange,
				TS:           time.Unix(bucket, 0).UTC(),
				Open:         tick.Price,
				High:         tick.Price,
				Low:          tick.Price,
				Close:        tick.Price,
				Volume:       tick.Qty,
				OpenInterest: tick.OpenInterest,
				TicksCount:   1,
				Forming:      true,
			},
		}
		b.states[key] = state
		emit(barCh, state.bar)
		return
	}

	bar := &state.bar
	if tick.Price > bar.High {
		bar.High = tick.Price
	}
	if tick.Price < bar.Low {
		bar.Low = tick.Price
	}
	bar.Close = tick.Price
	bar.Volume += tick.Qty
	if tick.OpenInterest > 0 {
		bar.OpenInterest = tick.OpenInterest
	}
	bar.TicksCount++
	emit(barCh, *bar)
}

// flushOld closes bars whose bucket has fully elapsed even if no tick
// has arrived in the new bucket yet.
func (b *BarBuilder) flushOld(barCh chan<- model.Bar) {
	cutoff := time.Now().Unix() - int64(b.interval/time.Second)

	b.mu.Lock()
	defer b.mu.Unlock()
	for key, state := range b.states {
		if state.bucket <= cutoff {
			b.close(state, barCh)
			delete(b.states, key)
		}
	}
}

// flushAll closes every open bar (shutdown path).
func (b *BarBuilder) flushAll(barCh chan<- model.Bar) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, state := range b.states {
		b.close(state, barCh)
		delete(b.states, key)
	}
}

func (b *BarBuilder) close(state *barState, barCh chan<- model.Bar) {
	state.bar.Forming = false
	if b.OnBarClosed != nil {
		b.OnBarClosed()
	}
	emit(barCh, state.bar)
}

// emit is non-blocking: a saturated consumer drops updates rather than
// stalling the tick path.
func emit(barCh chan<- model.Bar, bar model.Bar) {
	select {
	case barCh <- bar:
	default:
		log.Printf("[marketdata] barCh full, dropping update %s ts=%v forming=%v",
			bar.Key(), bar.TS, bar.Forming)
	}
}
