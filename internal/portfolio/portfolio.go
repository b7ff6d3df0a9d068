// Package portfolio tracks option positions, P&L, and the risk limits
// that gate signal execution.
//
// The Portfolio maintains a real-time view of the open CE/PE legs with
// cost-basis accounting; the RiskManager layers configurable limits on
// top and implements the RiskGate port the cooldown gate consults.
package portfolio

import (
	"sync"
	"time"

	"nifty-optionsbot/internal/model"
)

// Trade is one executed fill used for cost-basis accounting.
type Trade struct {
	Token      string    `json:"token"`
	Exchange   string    `json:"exchange"`
	OptionType string    `json:"option_type"` // CE, PE
	Action     string    `json:"action"`      // BUY, SELL
	Qty        int64     `json:"qty"`
	Price      int64     `json:"price"` // premium in paise
	Timestamp  time.Time `json:"timestamp"`
}

// Portfolio tracks open option positions and realized P&L.
type Portfolio struct {
	mu          sync.RWMutex
	positions   map[string]*model.Position // key = "exchange:token"
	trades      []Trade
	realizedPnL int64 // paise
}

// New creates an empty Portfolio.
func New() *Portfolio {
	return &Portfolio{
		positions: make(map[string]*model.Position),
		trades:    make([]Trade, 0, 256),
	}
}

// ApplyTrade folds a fill into the position book and returns the
// realized P&L (paise) the trade produced, zero for opening trades.
func (pf *Portfolio) ApplyTrade(trade Trade) int64 {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	pf.trades = append(pf.trades, trade)
	key := trade.Exchange + ":" + trade.Token
	pos, ok := pf.positions[key]
	if !ok {
		pos = &model.Position{
			Token:      trade.Token,
			Exchange:   trade.Exchange,
			OptionType: trade.OptionType,
		}
		pf.positions[key] = pos
	}

	var realized int64
	if trade.Action == "BUY" {
		if pos.Qty == 0 {
			pos.Qty = trade.Qty
			pos.AvgPrice = trade.Price
		} else {
			totalCost := pos.AvgPrice*pos.Qty + trade.Price*trade.Qty
			pos.Qty += trade.Qty
			if pos.Qty > 0 {
				pos.AvgPrice = totalCost / pos.Qty
			}
		}
	} else {
		sellQty := trade.Qty
		if sellQty > pos.Qty {
			sellQty = pos.Qty
		}
		realized = (trade.Price - pos.AvgPrice) * sellQty
		pos.Qty -= sellQty
		pos.RealizedPnL += realized
		pf.realizedPnL += realized
		if pos.Qty <= 0 {
			delete(pf.positions, key)
		}
	}
	pos.LastPrice = trade.Price
	return realized
}

// UpdatePremium refreshes the mark price of an open leg.
func (pf *Portfolio) UpdatePremium(exchange, token string, price int64) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if pos, ok := pf.positions[exchange+":"+token]; ok {
		pos.LastPrice = price
	}
}

// Positions returns a snapshot of all open positions.
func (pf *Portfolio) Positions() []model.Position {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	out := make([]model.Position, 0, len(pf.positions))
	for _, p := range pf.positions {
		out = append(out, *p)
	}
	return out
}

// RealizedPnL returns total realized P&L in paise.
func (pf *Portfolio) RealizedPnL() int64 {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	return pf.realizedPnL
}

// UnrealizedPnL returns total unrealized P&L in paise at current marks.
func (pf *Portfolio) UnrealizedPnL() int64 {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	var total int64
	for _, p := range pf.positions {
		total += p.UnrealizedPnL()
	}
	return total
}

// Trades returns a snapshot of all recorded trades.
func (pf *Portfolio) Trades() []Trade {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	cp := make([]Trade, len(pf.trades))
	copy(cp, pf.trades)
	return cp
}

// Summary is the dashboard P&L view.
type Summary struct {
	RealizedPnL   int64 `json:"realized_pnl"`
	UnrealizedPnL int64 `json:"unrealized_pnl"`
	TotalPnL      int64 `json:"total_pnl"`
	TotalTrades   int   `json:"total_trades"`
	OpenPositions int   `json:"open_positions"`
}

// GetSummary returns the current P&L summary.
func (pf *Portfolio) GetSummary() Summary {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	var unrealized int64
	for _, p := range pf.positions {
		unrealized += p.UnrealizedPnL()
	}
	return Summary{
		RealizedPnL:   pf.realizedPnL,
		UnrealizedPnL: unrealized,
		TotalPnL:      pf.realizedPnL + unrealized,
		TotalTrades:   len(pf.trades),
		OpenPositions: len(pf.positions),
	}
}
