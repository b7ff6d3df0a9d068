package execution

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"nifty-optionsbot/internal/model"
	"nifty-optionsbot/internal/portfolio"
)

// Fill represents a simulated order fill.
type Fill struct {
	OrderID     string      `json:"order_id"`
	Order       model.Order `json:"order"`
	SignalKind  model.SignalKind `json:"signal_kind"`
	Confidence  float64     `json:"confidence"`
	FillPrice   int64       `json:"fill_price"` // premium in paise
	FillQty     int64       `json:"fill_qty"`
	Slippage    int64       `json:"slippage"` // simulated slippage in paise
	RealizedPnL int64       `json:"realized_pnl"`
	FilledAt    time.Time   `json:"filled_at"`
}

// PaperExecutor simulates option order execution without broker calls.
type PaperExecutor struct {
	mu       sync.RWMutex
	fills    []Fill
	resultCh chan OrderResult
	orderSeq int64

	resolver  ContractResolver
	portfolio *portfolio.Portfolio
	risk      PnLRecorder
	journal   *FillJournal // optional

	slippageBps int64 // basis points of slippage (e.g., 5 = 0.05%)
}

// NewPaperExecutor creates a paper trading executor. journal and risk
// may be nil for tests and replay runs.
func NewPaperExecutor(resolver ContractResolver, pf *portfolio.Portfolio, risk PnLRecorder, journal *FillJournal, slippageBps int64) *PaperExecutor {
	return &PaperExecutor{
		fills:       make([]Fill, 0, 1000),
		resultCh:    make(chan OrderResult, 64),
		resolver:    resolver,
		portfolio:   pf,
		risk:        risk,
		journal:     journal,
		slippageBps: slippageBps,
	}
}

// Results returns the channel of order results.
func (p *PaperExecutor) Results() <-chan OrderResult {
	return p.resultCh
}

// GetFills returns a snapshot of all fills.
func (p *PaperExecutor) GetFills() []Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// Run consumes admitted signals and simulates execution.
// Blocks until ctx is cancelled or signalCh is closed.
func (p *PaperExecutor) Run(ctx context.Context, signalCh <-chan model.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signalCh:
			if !ok {
				return
			}
			p.Execute(ctx, sig)
		}
	}
}

// Execute simulates the order a signal implies. HOLD signals are
// ignored; CLOSE flattens every open leg at the current mark.
func (p *PaperExecutor) Execute(ctx context.Context, sig model.Signal) {
	switch {
	case sig.Kind.Directional():
		p.openLeg(sig)
	case sig.Kind == model.SignalClose:
		p.closeAll(sig)
	}
}

func (p *PaperExecutor) openLeg(sig model.Signal) {
	ord, err := p.resolver.Resolve(sig.Kind)
	if err != nil {
		log.Printf("[paper] cannot resolve %s: %v", sig.Kind, err)
		p.emit(OrderResult{Status: "REJECTED", Message: err.Error()})
		return
	}

	fillPrice := ord.Price
	slippage := int64(0)
	if fillPrice > 0 && p.slippageBps > 0 {
		slippage = fillPrice * p.slippageBps / 10000
		fillPrice += slippage // buys fill against you
	}

	p.portfolio.ApplyTrade(portfolio.Trade{
		Token:      ord.Token,
		Exchange:   ord.Exchange,
		OptionType: ord.OptionType,
		Action:     "BUY",
		Qty:        ord.Qty,
		Price:      fillPrice,
		Timestamp:  time.Now(),
	})

	fill := p.record(ord, sig, fillPrice, slippage, 0)
	log.Printf("[paper] BUY %s strike=%d qty=%d price=%d (slip=%d) order=%s",
		ord.OptionType, ord.Strike, ord.Qty, fillPrice, slippage, fill.OrderID)
	p.emit(OrderResult{
		OrderID: fill.OrderID,
		Status:  "FILLED",
		Message: fmt.Sprintf("paper filled at %d", fillPrice),
		Order:   ord,
	})
}

func (p *PaperExecutor) closeAll(sig model.Signal) {
	atm, _ := p.resolver.(*ATMResolver)
	for _, pos := range p.portfolio.Positions() {
		mark := pos.LastPrice
		if atm != nil {
			mark = atm.markPrice(pos.OptionType, mark)
		}
		fillPrice := mark
		slippage := int64(0)
		if fillPrice > 0 && p.slippageBps > 0 {
			slippage = fillPrice * p.slippageBps / 10000
			fillPrice -= slippage // sells fill against you
		}

		realized := p.portfolio.ApplyTrade(portfolio.Trade{
			Token:      pos.Token,
			Exchange:   pos.Exchange,
			OptionType: pos.OptionType,
			Action:     "SELL",
			Qty:        pos.Qty,
			Price:      fillPrice,
			Timestamp:  time.Now(),
		})
		if p.risk != nil {
			p.risk.RecordPnL(realized)
		}

		ord := model.Order{
			Token:           pos.Token,
			Exchange:        pos.Exchange,
			OptionType:      pos.OptionType,
			TransactionType: "SELL",
			OrderType:       "MARKET",
			ProductType:     "INTRADAY",
			Qty:             pos.Qty,
			Price:           fillPrice,
			CreatedAt:       time.Now(),
		}
		fill := p.record(ord, sig, fillPrice, slippage, realized)
		log.Printf("[paper] SELL %s qty=%d price=%d pnl=%d order=%s",
			pos.OptionType, pos.Qty, fillPrice, realized, fill.OrderID)
		p.emit(OrderResult{
			OrderID: fill.OrderID,
			Status:  "FILLED",
			Message: fmt.Sprintf("paper closed at %d, pnl %d", fillPrice, realized),
			Order:   ord,
		})
	}
}

func (p *PaperExecutor) record(ord model.Order, sig model.Signal, fillPrice, slippage, realized int64) Fill {
	p.mu.Lock()
	p.orderSeq++
	fill := Fill{
		OrderID:     fmt.Sprintf("PAPER-%d", p.orderSeq),
		Order:       ord,
		SignalKind:  sig.Kind,
		Confidence:  sig.Confidence,
		FillPrice:   fillPrice,
		FillQty:     ord.Qty,
		Slippage:    slippage,
		RealizedPnL: realized,
		FilledAt:    time.Now(),
	}
	p.fills = append(p.fills, fill)
	p.mu.Unlock()

	if p.journal != nil {
		if err := p.journal.RecordFill(fill); err != nil {
			log.Printf("[paper] journal write failed: %v", err)
		}
	}
	return fill
}

func (p *PaperExecutor) emit(res OrderResult) {
	select {
	case p.resultCh <- res:
	default:
		log.Printf("[paper] result channel full, dropping %s", res.OrderID)
	}
}
