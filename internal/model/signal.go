package model

import (
	"encoding/json"
	"time"
)

// SignalKind is the directional decision for one evaluation tick.
type SignalKind string

const (
	SignalBuyCE SignalKind = "BUY_CE"
	SignalBuyPE SignalKind = "BUY_PE"
	SignalHold  SignalKind = "HOLD"
	SignalClose SignalKind = "CLOSE"
)

// Directional reports whether the kind places a new position
// (only directional kinds are subject to the cooldown window).
func (k SignalKind) Directional() bool {
	return k == SignalBuyCE || k == SignalBuyPE
}

// Signal is the evaluator's decision for the current tick. One active
// decision per tick; superseded by the next tick's decision.
type Signal struct {
	Kind       SignalKind `json:"kind"`
	Confidence float64    `json:"confidence"` // 0-100
	TS         time.Time  `json:"ts"`
	Reason     string     `json:"reason"`
}

// FilterName identifies one entry filter. The set is closed: every
// filter the evaluator consults appears here, and the reasoning
// generator iterates AllFilterNames so a filter can never silently
// drop out of the summary.
type FilterName string

const (
	FilterRSI          FilterName = "rsi"
	FilterEMACrossover FilterName = "ema_crossover"
	FilterSupertrend   FilterName = "supertrend"
	FilterVolume       FilterName = "volume"
	FilterVolatility   FilterName = "volatility"
	FilterPriceVWAP    FilterName = "price_vwap"
	FilterEntryConfirm FilterName = "entry_confirmation"
	FilterGreeks       FilterName = "greeks"
	FilterPCR          FilterName = "pcr"
)

// AllFilterNames returns the closed filter set in display order.
func AllFilterNames() []FilterName {
	return []FilterName{
		FilterRSI,
		FilterEMACrossover,
		FilterSupertrend,
		FilterVolume,
		FilterVolatility,
		FilterPriceVWAP,
		FilterEntryConfirm,
		FilterGreeks,
		FilterPCR,
	}
}

// FilterOutcome is one filter's verdict plus the raw values behind it.
//
// Enabled=false means the filter was structurally inapplicable this tick
// (index carve-out, stale greeks, missing PCR) and counted as a pass
// without contributing to confidence. That state is surfaced so the UI
// never implies a disabled filter actively endorsed the signal.
type FilterOutcome struct {
	Passed  bool   `json:"passed"`
	Enabled bool   `json:"enabled"`
	Detail  string `json:"detail"` // raw-value rendering, e.g. "RSI 58.2 >= 50.0"
}

// FilterResult maps every filter in the closed set to its outcome.
// Recomputed every tick; not persisted.
type FilterResult map[FilterName]FilterOutcome

// AllPassed reports whether every enabled filter passed.
func (fr FilterResult) AllPassed() bool {
	for _, out := range fr {
		if out.Enabled && !out.Passed {
			return false
		}
	}
	return true
}

// ReasoningRecord is the user-facing explanation of one decision.
// Write-once per decision, read by the dashboard.
type ReasoningRecord struct {
	TS            time.Time             `json:"timestamp"`
	Signal        SignalKind            `json:"signal"`
	Confidence    float64               `json:"confidence"`
	KeyFactors    []string              `json:"key_factors"`
	RiskFactors   []string              `json:"risk_factors"`
	TargetLevel   *float64              `json:"target_level"`    // rupees, nil if no directional signal
	StopLossLevel *float64              `json:"stop_loss_level"` // rupees
	FilterSummary map[FilterName]string `json:"filter_summary"`  // "✅" | "❌" | "➖" (disabled)
}

// JSON returns the JSON-encoded record.
func (r *ReasoningRecord) JSON() []byte {
	out, _ := json.Marshal(r)
	return out
}
