// Package indicator provides technical indicator calculations over bar data.
//
// The Engine computes a full IndicatorSnapshot as a pure function of a
// closed-bar window; streaming types (EMAStream, CrossoverTracker) provide
// O(1) per-tick updates against the forming bar. Every indicator that
// needs K bars of warm-up reports absence (nil) until K bars exist;
// callers must branch on presence, never read a zero default.
package indicator

import (
	"nifty-optionsbot/internal/model"
)

// Config holds all indicator periods and thresholds. Zero values are
// replaced by DefaultConfig values at engine construction.
type Config struct {
	EMAFast int // default 5
	EMASlow int // default 20
	EMALong int // default 50

	RSIPeriod int // default 14

	MACDFast   int // default 12
	MACDSlow   int // default 26
	MACDSignal int // default 9

	BBPeriod int     // default 20
	BBStdDev float64 // default 2.0

	ATRPeriod int // default 14

	SupertrendPeriod int     // default 10
	SupertrendMult   float64 // default 3.0

	VolumeAvgPeriod int // default 20

	PivotLookback int     // pivot strength in bars each side, default 3
	BreakoutPct   float64 // min % beyond a level to flag a breakout, default 0.1
}

// DefaultConfig returns the standard periods this bot trades with.
func DefaultConfig() Config {
	return Config{
		EMAFast:          5,
		EMASlow:          20,
		EMALong:          50,
		RSIPeriod:        14,
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
		BBPeriod:         20,
		BBStdDev:         2.0,
		ATRPeriod:        14,
		SupertrendPeriod: 10,
		SupertrendMult:   3.0,
		VolumeAvgPeriod:  20,
		PivotLookback:    3,
		BreakoutPct:      0.1,
	}
}

// Engine computes indicator snapshots over closed-bar windows.
// Stateless across calls; all cross-bar state lives in the window itself.
type Engine struct {
	cfg Config
}

// NewEngine creates an indicator engine, filling unset config fields
// from DefaultConfig.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.EMAFast == 0 {
		cfg.EMAFast = def.EMAFast
	}
	if cfg.EMASlow == 0 {
		cfg.EMASlow = def.EMASlow
	}
	if cfg.EMALong == 0 {
		cfg.EMALong = def.EMALong
	}
	if cfg.RSIPeriod == 0 {
		cfg.RSIPeriod = def.RSIPeriod
	}
	if cfg.MACDFast == 0 {
		cfg.MACDFast = def.MACDFast
	}
	if cfg.MACDSlow == 0 {
		cfg.MACDSlow = def.MACDSlow
	}
	if cfg.MACDSignal == 0 {
		cfg.MACDSignal = def.MACDSignal
	}
	if cfg.BBPeriod == 0 {
		cfg.BBPeriod = def.BBPeriod
	}
	if cfg.BBStdDev == 0 {
		cfg.BBStdDev = def.BBStdDev
	}
	if cfg.ATRPeriod == 0 {
		cfg.ATRPeriod = def.ATRPeriod
	}
	if cfg.SupertrendPeriod == 0 {
		cfg.SupertrendPeriod = def.SupertrendPeriod
	}
	if cfg.SupertrendMult == 0 {
		cfg.SupertrendMult = def.SupertrendMult
	}
	if cfg.VolumeAvgPeriod == 0 {
		cfg.VolumeAvgPeriod = def.VolumeAvgPeriod
	}
	if cfg.PivotLookback == 0 {
		cfg.PivotLookback = def.PivotLookback
	}
	if cfg.BreakoutPct == 0 {
		cfg.BreakoutPct = def.BreakoutPct
	}
	return &Engine{cfg: cfg}
}

// Config returns the effective engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Compute derives a full IndicatorSnapshot from a closed-bar window.
// Pure function: no state survives between calls. Indicators whose
// warm-up exceeds the window length stay nil in the snapshot.
func (e *Engine) Compute(window []model.Bar) model.IndicatorSnapshot {
	snap := model.IndicatorSnapshot{}
	if len(window) == 0 {
		return snap
	}
	snap.TS = window[len(window)-1].TS
	snap.Close = model.Ptr(window[len(window)-1].CloseRupees())

	closes := make([]float64, len(window))
	for i := range window {
		closes[i] = window[i].CloseRupees()
	}

	if v, ok := emaLast(closes, e.cfg.EMAFast); ok {
		snap.EMA5 = model.Ptr(v)
	}
	if v, ok := emaLast(closes, e.cfg.EMASlow); ok {
		snap.EMA20 = model.Ptr(v)
	}
	if v, ok := emaLast(closes, e.cfg.EMALong); ok {
		snap.EMA50 = model.Ptr(v)
	}
	if v, ok := rsiLast(closes, e.cfg.RSIPeriod); ok {
		snap.RSI = model.Ptr(v)
	}
	if macd, sig, ok := macdLast(closes, e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal); ok {
		snap.MACD = model.Ptr(macd)
		if sig != nil {
			snap.MACDSignal = model.Ptr(*sig)
		}
	}
	if upper, lower, ok := bollinger(closes, e.cfg.BBPeriod, e.cfg.BBStdDev); ok {
		snap.BBUpper = model.Ptr(upper)
		snap.BBLower = model.Ptr(lower)
	}
	if atr, ok := atrLast(window, e.cfg.ATRPeriod); ok {
		lastClose := closes[len(closes)-1]
		if lastClose > 0 {
			snap.ATRPct = model.Ptr(atr / lastClose * 100.0)
		}
	}
	if dir, band, ok := supertrend(window, e.cfg.SupertrendPeriod, e.cfg.SupertrendMult); ok {
		snap.SupertrendDir = dir
		snap.SupertrendValue = model.Ptr(band)
	}
	if v, ok := vwap(window); ok {
		snap.VWAP = model.Ptr(v)
	}
	if v, ok := volumeRatio(window, e.cfg.VolumeAvgPeriod); ok {
		snap.VolumeRatio = model.Ptr(v)
	}

	levels := pivotLevels(window, e.cfg.PivotLookback, e.cfg.BreakoutPct)
	snap.Support = levels.Support
	snap.Resistance = levels.Resistance
	snap.BreakoutUp = levels.BreakoutUp
	snap.BreakoutDn = levels.BreakoutDn

	return snap
}
