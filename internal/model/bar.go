package model

import (
	"encoding/json"
	"errors"
	"time"
)

// Bar represents a 1-minute OHLCV bar for a single instrument.
// All prices are in paise (int64) to avoid floating-point drift.
// A bar is mutable while Forming is true and immutable once closed.
type Bar struct {
	Token        string    `json:"token"`
	Exchange     string    `json:"exchange"`
	TS           time.Time `json:"ts"`     // bucket start time (UTC, minute-aligned)
	Open         int64     `json:"open"`   // paise
	High         int64     `json:"high"`   // paise
	Low          int64     `json:"low"`    // paise
	Close        int64     `json:"close"`  // paise
	Volume       int64     `json:"volume"` // cumulative quantity in this bucket
	OpenInterest int64     `json:"open_interest"`
	TicksCount   int       `json:"ticks_count"` // number of ticks aggregated
	Forming      bool      `json:"forming"`     // true while the bucket is still open
}

// ErrMalformedBar is returned by Validate for bars that must be dropped
// before they reach the window (null OHLC, inverted high/low, zero timestamp).
var ErrMalformedBar = errors.New("malformed bar")

// Key returns a unique key for this bar's instrument: "exchange:token".
func (b *Bar) Key() string {
	return b.Exchange + ":" + b.Token
}

// CloseRupees returns the close price converted from paise to rupees.
func (b *Bar) CloseRupees() float64 {
	return float64(b.Close) / 100.0
}

// Validate checks structural sanity. A failing bar is rejected and logged
// by the pipeline; it never corrupts the window.
func (b *Bar) Validate() error {
	if b.TS.IsZero() {
		return ErrMalformedBar
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return ErrMalformedBar
	}
	if b.High < b.Low {
		return ErrMalformedBar
	}
	return nil
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}
