package model

import (
	"encoding/json"
	"time"
)

// TrendDirection is the discrete Supertrend state.
type TrendDirection string

const (
	TrendBullish TrendDirection = "BULLISH"
	TrendBearish TrendDirection = "BEARISH"
	// TrendUnknown means the ATR bands have not warmed up yet.
	TrendUnknown TrendDirection = ""
)

// IndicatorSnapshot holds per-bar derived indicator values.
//
// Fields are pointers so that "not enough history yet" is a JSON null,
// never a zero. Filters must branch on presence before reading a value;
// treating a nil as 0 is exactly the failure mode this type exists to
// prevent.
type IndicatorSnapshot struct {
	TS time.Time `json:"ts"` // timestamp of the bar that produced this snapshot

	Close *float64 `json:"close"` // the bar's own close, rupees

	EMA5  *float64 `json:"ema_5"`  // rupees
	EMA20 *float64 `json:"ema_20"` // rupees
	EMA50 *float64 `json:"ema_50"` // rupees

	RSI *float64 `json:"rsi"`

	MACD       *float64 `json:"macd"`
	MACDSignal *float64 `json:"macd_signal"`

	BBUpper *float64 `json:"bb_upper"` // rupees
	BBLower *float64 `json:"bb_lower"` // rupees

	SupertrendDir   TrendDirection `json:"supertrend_direction"`
	SupertrendValue *float64       `json:"supertrend_value"` // rupees, band for display

	ATRPct *float64 `json:"atr_pct"` // ATR as % of close

	VWAP        *float64 `json:"vwap"`         // rupees; display only for index instruments
	VolumeRatio *float64 `json:"volume_ratio"` // last volume / average volume

	Support    *float64 `json:"support"`    // nearest pivot support, rupees
	Resistance *float64 `json:"resistance"` // nearest pivot resistance, rupees
	BreakoutUp bool     `json:"breakout_up"`
	BreakoutDn bool     `json:"breakout_down"`
}

// JSON returns the JSON-encoded snapshot.
func (s *IndicatorSnapshot) JSON() []byte {
	out, _ := json.Marshal(s)
	return out
}

// Ptr is a convenience for building optional indicator values.
func Ptr(v float64) *float64 { return &v }
