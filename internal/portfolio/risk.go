package portfolio

import (
	"context"
	"log"
	"sync"

	"nifty-optionsbot/internal/model"
)

// RiskLimits defines configurable risk management thresholds.
type RiskLimits struct {
	MaxPositionQty   int64   `json:"max_position_qty"`   // max lots-equivalent qty per leg
	MaxDailyLoss     int64   `json:"max_daily_loss"`     // max daily loss in paise
	MaxOpenPositions int     `json:"max_open_positions"` // max concurrent option legs
	MaxDrawdownPct   float64 `json:"max_drawdown_pct"`   // max drawdown percentage (0-100)
}

// DefaultRiskLimits returns conservative defaults for a retail account.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionQty:   150, // two Nifty lots
		MaxDailyLoss:     500000,
		MaxOpenPositions: 2, // one CE + one PE at most
		MaxDrawdownPct:   5.0,
	}
}

// RiskManager validates signals against risk limits and tracks equity.
// It implements the model.RiskGate port consulted by the cooldown gate.
type RiskManager struct {
	mu        sync.RWMutex
	limits    RiskLimits
	portfolio *Portfolio
	orderQty  int64

	dailyPnL   int64
	equity     int64
	peakEquity int64
}

// NewRiskManager creates a RiskManager. orderQty is the quantity each
// admitted signal would trade, used for the prospective position check.
func NewRiskManager(limits RiskLimits, pf *Portfolio, initialEquity, orderQty int64) *RiskManager {
	return &RiskManager{
		limits:     limits,
		portfolio:  pf,
		orderQty:   orderQty,
		equity:     initialEquity,
		peakEquity: initialEquity,
	}
}

// CanTrade checks whether acting on the signal would violate any limit.
// CLOSE signals are always allowed: risk limits never trap a position.
func (rm *RiskManager) CanTrade(ctx context.Context, sig model.Signal) (bool, string, error) {
	if err := ctx.Err(); err != nil {
		return false, "", err
	}
	if !sig.Kind.Directional() {
		return true, "", nil
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	positions := rm.portfolio.Positions()

	leg := "CE"
	if sig.Kind == model.SignalBuyPE {
		leg = "PE"
	}
	hasLeg := false
	for _, pos := range positions {
		if pos.OptionType == leg {
			hasLeg = true
			break
		}
	}
	if !hasLeg && len(positions) >= rm.limits.MaxOpenPositions {
		return false, "max open positions reached", nil
	}

	if rm.orderQty > rm.limits.MaxPositionQty {
		return false, "position size exceeds limit", nil
	}

	if rm.dailyPnL < -rm.limits.MaxDailyLoss {
		return false, "max daily loss reached", nil
	}

	if rm.peakEquity > 0 {
		drawdown := float64(rm.peakEquity-rm.equity) / float64(rm.peakEquity) * 100
		if drawdown > rm.limits.MaxDrawdownPct {
			return false, "max drawdown exceeded", nil
		}
	}

	return true, "", nil
}

// RecordPnL updates daily P&L and equity tracking.
func (rm *RiskManager) RecordPnL(pnl int64) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.dailyPnL += pnl
	rm.equity += pnl
	if rm.equity > rm.peakEquity {
		rm.peakEquity = rm.equity
	}
	log.Printf("[risk] daily P&L: %d, equity: %d, peak: %d", rm.dailyPnL, rm.equity, rm.peakEquity)
}

// ResetDaily resets the daily P&L counter (call at market open).
func (rm *RiskManager) ResetDaily() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.dailyPnL = 0
}

// Status returns the current risk state for the dashboard.
func (rm *RiskManager) Status() map[string]interface{} {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	drawdown := 0.0
	if rm.peakEquity > 0 {
		drawdown = float64(rm.peakEquity-rm.equity) / float64(rm.peakEquity) * 100
	}
	return map[string]interface{}{
		"daily_pnl":    rm.dailyPnL,
		"equity":       rm.equity,
		"peak_equity":  rm.peakEquity,
		"drawdown_pct": drawdown,
		"limits":       rm.limits,
	}
}
