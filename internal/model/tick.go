package model

import "time"

// Tick is a single market data tick from the broker's SmartStream feed.
// Price is stored as int64 in paise (1 INR = 100 paise) to avoid float drift.
// For the Nifty index, Qty is structurally zero (indices do not trade).
type Tick struct {
	Token        string    `json:"token"`
	Exchange     string    `json:"exchange"`
	Price        int64     `json:"price"` // paise (LTP)
	Qty          int64     `json:"qty"`   // last traded quantity, 0 for indices
	OpenInterest int64     `json:"open_interest"`
	TickTS       time.Time `json:"tick_ts"` // UTC timestamp
}
