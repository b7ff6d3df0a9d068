package model

import "time"

// OptionQuote holds the greeks and price for one leg (CE or PE) of the
// ATM pair. IV is a decimal fraction in [0,1]; the field is a pointer so
// an absent IV is distinguishable from a legitimately-zero one.
type OptionQuote struct {
	Delta float64  `json:"delta"`
	Gamma float64  `json:"gamma"`
	Theta float64  `json:"theta"`
	Vega  float64  `json:"vega"`
	Rho   float64  `json:"rho"`
	IV    *float64 `json:"iv"`    // decimal fraction, nil = not published
	Price int64    `json:"price"` // premium in paise
}

// GreeksSnapshot is a point-in-time view of the ATM option pair,
// produced by the option-chain poller on its own cadence. Consumed
// read-only by the signal evaluator; a nil snapshot disables the
// greeks filter rather than blocking signals.
type GreeksSnapshot struct {
	ATMStrike  int64       `json:"atm_strike"` // paise
	ExpiryDate time.Time   `json:"expiry_date"`
	CE         OptionQuote `json:"ce"`
	PE         OptionQuote `json:"pe"`
	FetchedAt  time.Time   `json:"fetched_at"`
}

// Stale reports whether the snapshot is older than maxAge at now.
// Stale greeks must not be evaluated against; the filter is disabled instead.
func (g *GreeksSnapshot) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(g.FetchedAt) > maxAge
}

// Sentiment is the PCR-derived market sentiment.
type Sentiment string

const (
	SentimentBullish Sentiment = "BULLISH"
	SentimentBearish Sentiment = "BEARISH"
	SentimentNeutral Sentiment = "NEUTRAL"
)

// PCRContext is the Put-Call-Ratio view of open interest, produced by
// the option-chain poller. PCR is a pointer: nil means the chain could
// not be read, which disables the pcr filter.
type PCRContext struct {
	PCR       *float64  `json:"pcr"`
	Sentiment Sentiment `json:"sentiment"`
	CallOI    int64     `json:"call_oi"`
	PutOI     int64     `json:"put_oi"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Stale reports whether the context is older than maxAge at now.
func (p *PCRContext) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(p.FetchedAt) > maxAge
}
