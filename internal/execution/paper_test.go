package execution

import (
	"context"
	"testing"
	"time"

	"nifty-optionsbot/internal/model"
	"nifty-optionsbot/internal/portfolio"
)

type fixedChain struct {
	greeks *model.GreeksSnapshot
}

func (f *fixedChain) Greeks() *model.GreeksSnapshot { return f.greeks }
func (f *fixedChain) PCR() *model.PCRContext        { return nil }

type recordedPnL struct{ total int64 }

func (r *recordedPnL) RecordPnL(pnl int64) { r.total += pnl }

func testChain(cePrice, pePrice int64) *fixedChain {
	return &fixedChain{greeks: &model.GreeksSnapshot{
		ATMStrike:  2200000000,
		ExpiryDate: time.Now().Add(48 * time.Hour),
		CE:         model.OptionQuote{Delta: 0.5, Price: cePrice},
		PE:         model.OptionQuote{Delta: -0.5, Price: pePrice},
		FetchedAt:  time.Now(),
	}}
}

func newTestExecutor(chain *fixedChain, pf *portfolio.Portfolio, risk PnLRecorder, slippageBps int64) *PaperExecutor {
	resolver := &ATMResolver{Opts: chain, CEToken: "43210", PEToken: "43211", LotSize: 75}
	return NewPaperExecutor(resolver, pf, risk, nil, slippageBps)
}

func TestPaperExecutor_BuyCEOpensPosition(t *testing.T) {
	pf := portfolio.New()
	exec := newTestExecutor(testChain(12000, 11000), pf, nil, 0)

	exec.Execute(context.Background(), model.Signal{Kind: model.SignalBuyCE, Confidence: 100})

	positions := pf.Positions()
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}
	if positions[0].OptionType != "CE" || positions[0].Token != "43210" {
		t.Errorf("wrong leg opened: %+v", positions[0])
	}
	if positions[0].AvgPrice != 12000 {
		t.Errorf("avg price = %d, want 12000", positions[0].AvgPrice)
	}

	fills := exec.GetFills()
	if len(fills) != 1 || fills[0].SignalKind != model.SignalBuyCE {
		t.Fatalf("fills = %+v", fills)
	}
}

func TestPaperExecutor_SlippageWorksAgainstYou(t *testing.T) {
	pf := portfolio.New()
	exec := newTestExecutor(testChain(100000, 100000), pf, nil, 10) // 0.1%

	exec.Execute(context.Background(), model.Signal{Kind: model.SignalBuyPE})

	positions := pf.Positions()
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}
	if positions[0].AvgPrice != 100100 {
		t.Errorf("buy fill = %d, want 100100", positions[0].AvgPrice)
	}
}

func TestPaperExecutor_CloseFlattensAndRecordsPnL(t *testing.T) {
	pf := portfolio.New()
	chain := testChain(10000, 10000)
	risk := &recordedPnL{}
	exec := newTestExecutor(chain, pf, risk, 0)

	exec.Execute(context.Background(), model.Signal{Kind: model.SignalBuyCE})
	chain.greeks.CE.Price = 12000
	exec.Execute(context.Background(), model.Signal{Kind: model.SignalClose})

	if got := len(pf.Positions()); got != 0 {
		t.Fatalf("close left %d positions", got)
	}
	want := int64((12000 - 10000) * 75)
	if risk.total != want {
		t.Errorf("risk recorded %d, want %d", risk.total, want)
	}
	if pf.RealizedPnL() != want {
		t.Errorf("realized = %d, want %d", pf.RealizedPnL(), want)
	}
}

func TestPaperExecutor_HoldIsIgnored(t *testing.T) {
	pf := portfolio.New()
	exec := newTestExecutor(testChain(10000, 10000), pf, nil, 0)

	exec.Execute(context.Background(), model.Signal{Kind: model.SignalHold})

	if len(exec.GetFills()) != 0 || len(pf.Positions()) != 0 {
		t.Fatal("HOLD must not trade")
	}
}

func TestPaperExecutor_RejectsWithoutChain(t *testing.T) {
	pf := portfolio.New()
	exec := newTestExecutor(&fixedChain{}, pf, nil, 0)

	exec.Execute(context.Background(), model.Signal{Kind: model.SignalBuyCE})

	if len(pf.Positions()) != 0 {
		t.Fatal("no position should open without a chain snapshot")
	}
	select {
	case res := <-exec.Results():
		if res.Status != "REJECTED" {
			t.Errorf("status = %s, want REJECTED", res.Status)
		}
	default:
		t.Fatal("expected a rejection result")
	}
}

func TestPaperExecutor_RunDrainsChannel(t *testing.T) {
	pf := portfolio.New()
	exec := newTestExecutor(testChain(10000, 10000), pf, nil, 0)

	ch := make(chan model.Signal, 2)
	ch <- model.Signal{Kind: model.SignalBuyCE}
	ch <- model.Signal{Kind: model.SignalBuyCE}
	close(ch)

	exec.Run(context.Background(), ch)

	if got := len(exec.GetFills()); got != 2 {
		t.Fatalf("fills = %d, want 2", got)
	}
}
