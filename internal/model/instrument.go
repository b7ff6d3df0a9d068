package model

// Instrument identifies the underlying being traded. For this bot it is
// the Nifty 50 index plus the CE/PE tokens orders route to.
type Instrument struct {
	Token         string `json:"token"`
	Exchange      string `json:"exchange"`
	TradingSymbol string `json:"trading_symbol"`
	Name          string `json:"name"`
	LotSize       int    `json:"lot_size"`
	TickSize      int64  `json:"tick_size"` // minimum price movement in paise

	// Index instruments have no tradeable volume; the volume and VWAP
	// filters are disabled for them rather than evaluated against zeros.
	IsIndex bool `json:"is_index"`
}

// Key returns a unique key for this instrument: "exchange:token".
func (i *Instrument) Key() string {
	return i.Exchange + ":" + i.Token
}
