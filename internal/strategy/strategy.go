// Package strategy contains the signal-evaluation core: the multi-filter
// entry evaluator and the cooldown/risk gate.
//
// The Evaluator reduces the latest indicator snapshots plus live option
// greeks and PCR sentiment to a directional signal (BUY_CE / BUY_PE /
// HOLD) with a confidence score. A direction is accepted only when every
// enabled filter for it passes; structurally inapplicable filters (index
// volume/VWAP carve-out, stale greeks) count as always-pass and are
// flagged disabled rather than silently omitted.
package strategy

import "time"

// Params holds every tunable threshold of the evaluator. The RSI
// threshold in particular is a business decision, not a constant; it is
// deliberately configurable (defaults to the 50/50 contract).
type Params struct {
	RSIBullThreshold float64 // bullish when RSI >= this, default 50
	RSIBearThreshold float64 // bearish when RSI <= this, default 50

	VolumeRatioMin float64 // default 0.5

	ATRPctMin float64 // volatility band lower bound, default 0.01
	ATRPctMax float64 // volatility band upper bound, default 2.5

	VWAPMinDistPct float64 // min |price-vwap|/vwap distance, default 0.1

	// Greeks filter: CE delta within [DeltaMin, DeltaMax] for bullish
	// entries, PE delta within [-DeltaMax, -DeltaMin] for bearish.
	// Disabled entirely unless GreeksEnabled; quality depends on
	// option-chain liveness.
	GreeksEnabled bool
	DeltaMin      float64 // default 0.30
	DeltaMax      float64 // default 0.70

	PCRBullMax float64 // bullish when PCR < this, default 1.0
	PCRBearMin float64 // bearish when PCR > this, default 1.0

	ConfirmBars int // Supertrend confirmation span, default 3

	// Staleness bounds for external context. Older data disables the
	// corresponding filter instead of being evaluated.
	GreeksMaxAge time.Duration // default 60s
	PCRMaxAge    time.Duration // default 120s

	// IsIndex disables the volume and price_vwap filters: index volume
	// is structurally meaningless, and a disabled filter must never be
	// the reason a HOLD->BUY transition is blocked.
	IsIndex bool
}

// DefaultParams returns the evaluator defaults for Nifty 50 index options.
func DefaultParams() Params {
	return Params{
		RSIBullThreshold: 50,
		RSIBearThreshold: 50,
		VolumeRatioMin:   0.5,
		ATRPctMin:        0.01,
		ATRPctMax:        2.5,
		VWAPMinDistPct:   0.1,
		GreeksEnabled:    true,
		DeltaMin:         0.30,
		DeltaMax:         0.70,
		PCRBullMax:       1.0,
		PCRBearMin:       1.0,
		ConfirmBars:      3,
		GreeksMaxAge:     60 * time.Second,
		PCRMaxAge:        120 * time.Second,
		IsIndex:          true,
	}
}
