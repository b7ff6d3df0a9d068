package strategy

import (
	"fmt"
	"time"

	"nifty-optionsbot/internal/model"
)

// direction is the candidate side under evaluation.
type direction int

const (
	bullish direction = iota
	bearish
)

func (d direction) String() string {
	if d == bullish {
		return "bullish"
	}
	return "bearish"
}

// Evaluator reduces indicator snapshots plus option context to a signal.
// Stateless across ticks: all cross-tick state lives in the snapshot
// history handed in by the pipeline.
type Evaluator struct {
	params Params
}

// NewEvaluator creates an evaluator with the given parameters.
func NewEvaluator(params Params) *Evaluator {
	if params.ConfirmBars == 0 {
		params.ConfirmBars = DefaultParams().ConfirmBars
	}
	return &Evaluator{params: params}
}

// Params returns the evaluator's effective parameters.
func (e *Evaluator) Params() Params { return e.params }

// Evaluate runs every filter for both candidate directions and reduces
// the outcome to a signal. A direction is accepted only when all of its
// enabled filters pass; otherwise the signal is HOLD carrying the
// better direction's filter outcomes so the UI can rank near-misses.
func (e *Evaluator) Evaluate(history []model.IndicatorSnapshot, greeks *model.GreeksSnapshot, pcr *model.PCRContext, now time.Time) (model.Signal, model.FilterResult) {
	bull := e.evaluateDirection(bullish, history, greeks, pcr, now)
	bear := e.evaluateDirection(bearish, history, greeks, pcr, now)

	bullPass, bullScore := score(bull)
	bearPass, bearScore := score(bear)

	switch {
	case bullPass && !bearPass:
		return model.Signal{
			Kind:       model.SignalBuyCE,
			Confidence: bullScore,
			TS:         now,
			Reason:     passReason(bull, "CE"),
		}, bull
	case bearPass && !bullPass:
		return model.Signal{
			Kind:       model.SignalBuyPE,
			Confidence: bearScore,
			TS:         now,
			Reason:     passReason(bear, "PE"),
		}, bear
	}

	// Neither (or, degenerately, both) directions fully pass: HOLD,
	// reporting the direction that came closer.
	best, bestScore, side := bull, bullScore, bullish
	if bearScore > bullScore {
		best, bestScore, side = bear, bearScore, bearish
	}
	return model.Signal{
		Kind:       model.SignalHold,
		Confidence: bestScore,
		TS:         now,
		Reason:     holdReason(best, side),
	}, best
}

// score returns (all enabled passed, 0-100 confidence) for a filter set.
// Confidence is the fraction of enabled filters that passed; disabled
// filters neither help nor hurt it.
func score(fr model.FilterResult) (bool, float64) {
	enabled, passed := 0, 0
	for _, out := range fr {
		if !out.Enabled {
			continue
		}
		enabled++
		if out.Passed {
			passed++
		}
	}
	if enabled == 0 {
		return false, 0
	}
	return passed == enabled, float64(passed) / float64(enabled) * 100.0
}

func passReason(fr model.FilterResult, leg string) string {
	enabled := 0
	for _, out := range fr {
		if out.Enabled {
			enabled++
		}
	}
	return fmt.Sprintf("all %d enabled filters passed for %s entry", enabled, leg)
}

func holdReason(fr model.FilterResult, side direction) string {
	for _, name := range model.AllFilterNames() {
		out, ok := fr[name]
		if ok && out.Enabled && !out.Passed {
			return fmt.Sprintf("hold: %s filter failed for %s side (%s)", name, side, out.Detail)
		}
	}
	return "hold: no direction fully confirmed"
}

// evaluateDirection builds the full filter outcome set for one side.
// Every filter in the closed enumeration gets an entry; none may be
// silently omitted, or the required-count semantics would change.
func (e *Evaluator) evaluateDirection(dir direction, history []model.IndicatorSnapshot, greeks *model.GreeksSnapshot, pcr *model.PCRContext, now time.Time) model.FilterResult {
	fr := make(model.FilterResult, len(model.AllFilterNames()))

	var latest *model.IndicatorSnapshot
	var prev *model.IndicatorSnapshot
	if n := len(history); n > 0 {
		latest = &history[n-1]
		if n > 1 {
			prev = &history[n-2]
		}
	}

	fr[model.FilterRSI] = e.rsiFilter(dir, latest)
	fr[model.FilterEMACrossover] = e.emaCrossoverFilter(dir, latest, prev)
	fr[model.FilterSupertrend] = e.supertrendFilter(dir, latest)
	fr[model.FilterVolume] = e.volumeFilter(latest)
	fr[model.FilterVolatility] = e.volatilityFilter(latest)
	fr[model.FilterPriceVWAP] = e.priceVWAPFilter(latest)
	fr[model.FilterEntryConfirm] = e.confirmationFilter(dir, history)
	fr[model.FilterGreeks] = e.greeksFilter(dir, greeks, now)
	fr[model.FilterPCR] = e.pcrFilter(dir, pcr, now)

	return fr
}

// rsiFilter: RSI >= bull threshold / <= bear threshold. Undefined RSI
// (warm-up) fails closed: the filter stays enabled and unpassed.
func (e *Evaluator) rsiFilter(dir direction, latest *model.IndicatorSnapshot) model.FilterOutcome {
	if latest == nil || latest.RSI == nil {
		return model.FilterOutcome{Enabled: true, Passed: false, Detail: "RSI warming up"}
	}
	rsi := *latest.RSI
	if dir == bullish {
		return model.FilterOutcome{
			Enabled: true,
			Passed:  rsi >= e.params.RSIBullThreshold,
			Detail:  fmt.Sprintf("RSI %.1f vs >= %.1f", rsi, e.params.RSIBullThreshold),
		}
	}
	return model.FilterOutcome{
		Enabled: true,
		Passed:  rsi <= e.params.RSIBearThreshold,
		Detail:  fmt.Sprintf("RSI %.1f vs <= %.1f", rsi, e.params.RSIBearThreshold),
	}
}

// emaCrossoverFilter: crossover edge at the last bar boundary OR the
// sustained level relation. The edge is derived from the previous
// snapshot so it is true on exactly the bar where the relation flipped.
func (e *Evaluator) emaCrossoverFilter(dir direction, latest, prev *model.IndicatorSnapshot) model.FilterOutcome {
	if latest == nil || latest.EMA5 == nil || latest.EMA20 == nil {
		return model.FilterOutcome{Enabled: true, Passed: false, Detail: "EMAs warming up"}
	}
	fast, slow := *latest.EMA5, *latest.EMA20

	edge := false
	if prev != nil && prev.EMA5 != nil && prev.EMA20 != nil {
		if dir == bullish {
			edge = *prev.EMA5 <= *prev.EMA20 && fast > slow
		} else {
			edge = *prev.EMA5 >= *prev.EMA20 && fast < slow
		}
	}

	level := fast > slow
	if dir == bearish {
		level = fast < slow
	}

	kind := "level"
	if edge {
		kind = "crossover"
	}
	return model.FilterOutcome{
		Enabled: true,
		Passed:  edge || level,
		Detail:  fmt.Sprintf("EMA5 %.2f vs EMA20 %.2f (%s)", fast, slow, kind),
	}
}

// supertrendFilter: the discrete direction must match the candidate side.
func (e *Evaluator) supertrendFilter(dir direction, latest *model.IndicatorSnapshot) model.FilterOutcome {
	if latest == nil || latest.SupertrendDir == model.TrendUnknown {
		return model.FilterOutcome{Enabled: true, Passed: false, Detail: "Supertrend warming up"}
	}
	want := model.TrendBullish
	if dir == bearish {
		want = model.TrendBearish
	}
	return model.FilterOutcome{
		Enabled: true,
		Passed:  latest.SupertrendDir == want,
		Detail:  fmt.Sprintf("Supertrend %s", latest.SupertrendDir),
	}
}

// volumeFilter: disabled for index instruments (zero structural volume);
// otherwise volume ratio above the configured floor.
func (e *Evaluator) volumeFilter(latest *model.IndicatorSnapshot) model.FilterOutcome {
	if e.params.IsIndex {
		return model.FilterOutcome{Enabled: false, Passed: true, Detail: "disabled for index instrument"}
	}
	if latest == nil || latest.VolumeRatio == nil {
		return model.FilterOutcome{Enabled: true, Passed: false, Detail: "volume ratio unavailable"}
	}
	return model.FilterOutcome{
		Enabled: true,
		Passed:  *latest.VolumeRatio > e.params.VolumeRatioMin,
		Detail:  fmt.Sprintf("volume ratio %.2f vs > %.2f", *latest.VolumeRatio, e.params.VolumeRatioMin),
	}
}

// volatilityFilter: ATR%% inside the tradeable band. Too quiet means no
// follow-through, too wild means stop-outs; both sides reject.
func (e *Evaluator) volatilityFilter(latest *model.IndicatorSnapshot) model.FilterOutcome {
	if latest == nil || latest.ATRPct == nil {
		return model.FilterOutcome{Enabled: true, Passed: false, Detail: "ATR warming up"}
	}
	atr := *latest.ATRPct
	return model.FilterOutcome{
		Enabled: true,
		Passed:  atr >= e.params.ATRPctMin && atr <= e.params.ATRPctMax,
		Detail:  fmt.Sprintf("ATR %.3f%% vs band [%.3f, %.3f]", atr, e.params.ATRPctMin, e.params.ATRPctMax),
	}
}

// priceVWAPFilter: disabled for indices. Otherwise the close must sit a
// minimum distance away from VWAP.
func (e *Evaluator) priceVWAPFilter(latest *model.IndicatorSnapshot) model.FilterOutcome {
	if e.params.IsIndex {
		return model.FilterOutcome{Enabled: false, Passed: true, Detail: "disabled for index instrument"}
	}
	if latest == nil || latest.VWAP == nil || latest.Close == nil || *latest.VWAP == 0 {
		return model.FilterOutcome{Enabled: true, Passed: false, Detail: "VWAP unavailable"}
	}
	dist := (*latest.Close - *latest.VWAP) / *latest.VWAP * 100.0
	if dist < 0 {
		dist = -dist
	}
	return model.FilterOutcome{
		Enabled: true,
		Passed:  dist > e.params.VWAPMinDistPct,
		Detail:  fmt.Sprintf("price %.2f vs VWAP %.2f (%.3f%% away)", *latest.Close, *latest.VWAP, dist),
	}
}

// confirmationFilter: ALL of the last ConfirmBars completed bars'
// Supertrend directions must agree with the candidate side. Pairwise
// agreement is not sufficient; the reduction is all-N-agree.
func (e *Evaluator) confirmationFilter(dir direction, history []model.IndicatorSnapshot) model.FilterOutcome {
	n := e.params.ConfirmBars
	if len(history) < n {
		return model.FilterOutcome{
			Enabled: true,
			Passed:  false,
			Detail:  fmt.Sprintf("need %d completed bars, have %d", n, len(history)),
		}
	}
	want := model.TrendBullish
	if dir == bearish {
		want = model.TrendBearish
	}
	span := history[len(history)-n:]
	for i := range span {
		if span[i].SupertrendDir != want {
			return model.FilterOutcome{
				Enabled: true,
				Passed:  false,
				Detail:  fmt.Sprintf("bar %d of last %d is %s, want %s", i+1, n, orUnknown(span[i].SupertrendDir), want),
			}
		}
	}
	return model.FilterOutcome{
		Enabled: true,
		Passed:  true,
		Detail:  fmt.Sprintf("last %d bars all %s", n, want),
	}
}

func orUnknown(d model.TrendDirection) string {
	if d == model.TrendUnknown {
		return "UNKNOWN"
	}
	return string(d)
}

// greeksFilter: optional delta-band check on the candidate leg.
// Disabled when turned off in params, when no snapshot exists, or when
// the snapshot is stale; stale data must not be evaluated against.
func (e *Evaluator) greeksFilter(dir direction, greeks *model.GreeksSnapshot, now time.Time) model.FilterOutcome {
	if !e.params.GreeksEnabled {
		return model.FilterOutcome{Enabled: false, Passed: true, Detail: "greeks filter disabled"}
	}
	if greeks == nil {
		return model.FilterOutcome{Enabled: false, Passed: true, Detail: "no greeks data, filter disabled"}
	}
	if greeks.Stale(now, e.params.GreeksMaxAge) {
		return model.FilterOutcome{Enabled: false, Passed: true, Detail: "greeks stale, filter disabled"}
	}
	if dir == bullish {
		delta := greeks.CE.Delta
		return model.FilterOutcome{
			Enabled: true,
			Passed:  delta >= e.params.DeltaMin && delta <= e.params.DeltaMax,
			Detail:  fmt.Sprintf("CE delta %.2f vs band [%.2f, %.2f]", delta, e.params.DeltaMin, e.params.DeltaMax),
		}
	}
	delta := greeks.PE.Delta
	return model.FilterOutcome{
		Enabled: true,
		Passed:  delta <= -e.params.DeltaMin && delta >= -e.params.DeltaMax,
		Detail:  fmt.Sprintf("PE delta %.2f vs band [%.2f, %.2f]", delta, -e.params.DeltaMax, -e.params.DeltaMin),
	}
}

// pcrFilter: PCR below the bullish ceiling / above the bearish floor.
// Disabled when the chain has not been read or the context is stale.
func (e *Evaluator) pcrFilter(dir direction, pcr *model.PCRContext, now time.Time) model.FilterOutcome {
	if pcr == nil || pcr.PCR == nil {
		return model.FilterOutcome{Enabled: false, Passed: true, Detail: "no PCR data, filter disabled"}
	}
	if pcr.Stale(now, e.params.PCRMaxAge) {
		return model.FilterOutcome{Enabled: false, Passed: true, Detail: "PCR stale, filter disabled"}
	}
	v := *pcr.PCR
	if dir == bullish {
		return model.FilterOutcome{
			Enabled: true,
			Passed:  v < e.params.PCRBullMax,
			Detail:  fmt.Sprintf("PCR %.2f vs < %.2f", v, e.params.PCRBullMax),
		}
	}
	return model.FilterOutcome{
		Enabled: true,
		Passed:  v > e.params.PCRBearMin,
		Detail:  fmt.Sprintf("PCR %.2f vs > %.2f", v, e.params.PCRBearMin),
	}
}
