// Package execution turns admitted signals into option orders.
//
// The PaperExecutor simulates fills with configurable slippage and keeps
// the portfolio in sync; a live executor routing through the broker API
// would implement the same Run loop against real order placement.
package execution

import (
	"errors"
	"time"

	"nifty-optionsbot/internal/model"
)

// OrderResult represents the outcome of an order placement.
type OrderResult struct {
	OrderID string      `json:"order_id"`
	Status  string      `json:"status"` // FILLED, REJECTED, ERROR
	Message string      `json:"message"`
	Order   model.Order `json:"order"`
}

// PnLRecorder receives realized P&L from closed legs. The risk manager
// implements it to keep daily loss and drawdown tracking current.
type PnLRecorder interface {
	RecordPnL(pnl int64)
}

// ContractResolver maps a directional signal to the option order that
// would express it (strike, expiry, token, premium).
type ContractResolver interface {
	Resolve(kind model.SignalKind) (model.Order, error)
}

var errNoChain = errors.New("execution: option chain unavailable")

// ATMResolver resolves signals to the at-the-money contract using the
// latest option-chain snapshot. Tokens for the CE and PE legs come from
// configuration; the chain supplies strike, expiry, and premium.
type ATMResolver struct {
	Opts    model.OptionContext
	CEToken string
	PEToken string
	LotSize int64
}

func (r *ATMResolver) Resolve(kind model.SignalKind) (model.Order, error) {
	g := r.Opts.Greeks()
	if g == nil {
		return model.Order{}, errNoChain
	}

	ord := model.Order{
		Exchange:        "NFO",
		Strike:          g.ATMStrike,
		Expiry:          g.ExpiryDate,
		TransactionType: "BUY",
		OrderType:       "MARKET",
		ProductType:     "INTRADAY",
		Qty:             r.LotSize,
		CreatedAt:       time.Now(),
	}
	switch kind {
	case model.SignalBuyCE:
		ord.Token = r.CEToken
		ord.OptionType = "CE"
		ord.Price = g.CE.Price
	case model.SignalBuyPE:
		ord.Token = r.PEToken
		ord.OptionType = "PE"
		ord.Price = g.PE.Price
	default:
		return model.Order{}, errors.New("execution: signal is not directional")
	}
	return ord, nil
}

// markPrice returns the latest premium for an open leg, falling back to
// the last traded price when the chain has no fresh quote.
func (r *ATMResolver) markPrice(optionType string, fallback int64) int64 {
	g := r.Opts.Greeks()
	if g == nil {
		return fallback
	}
	switch optionType {
	case "CE":
		if g.CE.Price > 0 {
			return g.CE.Price
		}
	case "PE":
		if g.PE.Price > 0 {
			return g.PE.Price
		}
	}
	return fallback
}
