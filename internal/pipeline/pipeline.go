// Package pipeline runs the per-instrument decision loop: bar updates in,
// admitted signals out.
//
// One Pipeline owns the bounded bar window, the snapshot history, the
// streaming EMA state, and the latest published state tuple, all behind
// a single mutex so concurrent dashboard reads never observe a
// half-updated window. The stages inside one bar update run strictly in
// order: window update, indicator recompute, filter evaluation,
// cooldown/risk gate, publish.
package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"nifty-optionsbot/internal/indicator"
	"nifty-optionsbot/internal/logger"
	"nifty-optionsbot/internal/model"
	"nifty-optionsbot/internal/reasoning"
	"nifty-optionsbot/internal/strategy"
)

const (
	// maxWindow bounds the retained closed-bar window.
	maxWindow = 100
	// historyLen is the snapshot history span kept for multi-bar
	// confirmation (the confirmation filter reads the last 3).
	historyLen = 3
)

// Options configures a Pipeline.
type Options struct {
	Instrument model.Instrument
	Engine     *indicator.Engine
	Evaluator  *strategy.Evaluator
	Gate       *strategy.Gate
	Options    model.OptionContext  // may be nil: greeks/pcr filters stay disabled
	Publisher  model.StatePublisher // may be nil
	Journal    model.SignalJournal  // may be nil

	// Metrics hooks (optional)
	OnEvaluation   func(d time.Duration)
	OnSignal       func(kind model.SignalKind)
	OnSuppressed   func(verdict string)
	OnMalformedBar func()
}

// Pipeline is the single-instrument decision loop.
type Pipeline struct {
	opts Options

	cross *indicator.CrossoverTracker

	mu           sync.RWMutex
	window       []model.Bar
	history      []model.IndicatorSnapshot
	lastClosedTS time.Time
	latest       model.StateSnapshot
	hasState     bool

	signalCh chan model.Signal
}

// New creates a pipeline. Engine, Evaluator and Gate are required.
func New(opts Options) *Pipeline {
	cfg := opts.Engine.Config()
	return &Pipeline{
		opts:     opts,
		cross:    indicator.NewCrossoverTracker(cfg.EMAFast, cfg.EMASlow),
		window:   make([]model.Bar, 0, maxWindow),
		signalCh: make(chan model.Signal, 16),
	}
}

// Signals returns the channel of admitted directional signals, consumed
// by the order executor.
func (p *Pipeline) Signals() <-chan model.Signal {
	return p.signalCh
}

// State returns the latest published state tuple. ok is false until the
// first closed bar has been evaluated.
func (p *Pipeline) State() (model.StateSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.hasState
}

// Window returns a copy of the closed-bar window (dashboard/charting).
func (p *Pipeline) Window() []model.Bar {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Bar, len(p.window))
	copy(out, p.window)
	return out
}

// Run consumes bar updates until ctx is cancelled or barCh closes.
// Stopping is a clean drain: the bar in flight finishes its full
// update-evaluate-publish pass before Run returns, and the signal
// channel is closed so the executor drains too.
func (p *Pipeline) Run(ctx context.Context, barCh <-chan model.Bar) {
	defer close(p.signalCh)
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-barCh:
			if !ok {
				return
			}
			p.OnBar(ctx, bar)
		}
	}
}

// OnBar processes one bar update (forming or closed) synchronously.
func (p *Pipeline) OnBar(ctx context.Context, bar model.Bar) {
	if err := bar.Validate(); err != nil {
		log.Printf("[pipeline] dropping malformed bar %s ts=%v: %v", bar.Key(), bar.TS, err)
		if p.opts.OnMalformedBar != nil {
			p.opts.OnMalformedBar()
		}
		return
	}

	if bar.Forming {
		p.onFormingBar(ctx, bar)
		return
	}
	p.onClosedBar(ctx, bar)
}

// onFormingBar is the per-tick path: O(1) streaming updates and a fresh
// evaluation against the existing closed-bar history.
func (p *Pipeline) onFormingBar(ctx context.Context, bar model.Bar) {
	p.mu.Lock()
	p.cross.UpdateTick(bar.CloseRupees())
	history := p.historyCopy()
	p.mu.Unlock()

	if len(history) == 0 {
		return // nothing to evaluate against yet
	}
	p.evaluate(ctx, bar, history)
}

// onClosedBar appends to the window, recomputes indicators over the full
// window, rolls the snapshot history, and evaluates.
func (p *Pipeline) onClosedBar(ctx context.Context, bar model.Bar) {
	p.mu.Lock()

	// Idempotent on duplicate close notifications and tolerant of
	// out-of-order replays: a bar at or before the last closed TS is
	// already in the window.
	if !p.lastClosedTS.IsZero() && !bar.TS.After(p.lastClosedTS) {
		p.mu.Unlock()
		log.Printf("[pipeline] ignoring duplicate/stale close %s ts=%v (last=%v)",
			bar.Key(), bar.TS, p.lastClosedTS)
		return
	}
	p.lastClosedTS = bar.TS

	p.window = append(p.window, bar)
	if len(p.window) > maxWindow {
		p.window = p.window[len(p.window)-maxWindow:]
	}

	p.cross.OnBarClose(bar.CloseRupees())

	snap := p.opts.Engine.Compute(p.window)
	p.history = append(p.history, snap)
	if len(p.history) > historyLen {
		p.history = p.history[len(p.history)-historyLen:]
	}
	history := p.historyCopy()
	p.mu.Unlock()

	p.evaluate(ctx, bar, history)
}

// evaluate runs the filter evaluator, the gate, the reasoning renderer,
// and the publishers for one bar update.
func (p *Pipeline) evaluate(ctx context.Context, bar model.Bar, history []model.IndicatorSnapshot) {
	var greeks *model.GreeksSnapshot
	var pcr *model.PCRContext
	if p.opts.Options != nil {
		greeks = p.opts.Options.Greeks()
		pcr = p.opts.Options.PCR()
	}

	now := bar.TS
	if bar.Forming {
		now = time.Now().UTC()
	}

	// One trace ID per bar update so downstream journal and publish
	// errors correlate back to the evaluation that produced them.
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(p.opts.Instrument.Token, bar.TS))

	started := time.Now()
	sig, fr := p.opts.Evaluator.Evaluate(history, greeks, pcr, now)
	if p.opts.OnEvaluation != nil {
		p.opts.OnEvaluation(time.Since(started))
	}

	res := p.opts.Gate.Admit(ctx, sig, now)
	final := res.Signal
	if res.Admitted() {
		log.Printf("[pipeline] signal admitted: %s conf=%.0f (%s)", final.Kind, final.Confidence, final.Reason)
		if p.opts.OnSignal != nil {
			p.opts.OnSignal(final.Kind)
		}
		select {
		case p.signalCh <- final:
		default:
			log.Printf("[pipeline] signal channel full, dropping %s", final.Kind)
		}
	} else if res.Verdict != strategy.VerdictPassthrough {
		log.Printf("[pipeline] signal suppressed (%s): %s", res.Verdict, res.Reason)
		if p.opts.OnSuppressed != nil {
			p.opts.OnSuppressed(string(res.Verdict))
		}
	}

	latestSnap := history[len(history)-1]
	rec := reasoning.Explain(final, fr, latestSnap)

	st := model.StateSnapshot{
		Instrument: p.opts.Instrument,
		Bar:        bar,
		Indicators: latestSnap,
		Signal:     final,
		Filters:    fr,
		Reasoning:  rec,
		Greeks:     greeks,
		PCR:        pcr,
		UpdatedAt:  time.Now().UTC(),
	}

	p.mu.Lock()
	p.latest = st
	p.hasState = true
	p.mu.Unlock()

	if p.opts.Publisher != nil {
		if err := p.opts.Publisher.PublishState(ctx, st); err != nil {
			log.Printf("[pipeline] publish failed (trace=%s): %v", logger.TraceID(ctx), err)
		}
	}
	if res.Admitted() && p.opts.Journal != nil {
		if err := p.opts.Journal.RecordSignal(ctx, final, rec); err != nil {
			log.Printf("[pipeline] journal write failed (trace=%s): %v", logger.TraceID(ctx), err)
		}
	}
}

// historyCopy returns the snapshot history; callers must hold p.mu.
func (p *Pipeline) historyCopy() []model.IndicatorSnapshot {
	out := make([]model.IndicatorSnapshot, len(p.history))
	copy(out, p.history)
	return out
}
