package portfolio

import (
	"testing"
	"time"
)

func TestPortfolio_BuyThenSellRealizesPnL(t *testing.T) {
	pf := New()
	now := time.Now()

	realized := pf.ApplyTrade(Trade{Token: "43210", Exchange: "NFO", OptionType: "CE", Action: "BUY", Qty: 75, Price: 12050, Timestamp: now})
	if realized != 0 {
		t.Fatalf("opening trade realized %d, want 0", realized)
	}
	if got := len(pf.Positions()); got != 1 {
		t.Fatalf("open positions = %d, want 1", got)
	}

	realized = pf.ApplyTrade(Trade{Token: "43210", Exchange: "NFO", OptionType: "CE", Action: "SELL", Qty: 75, Price: 13550, Timestamp: now.Add(time.Minute)})
	want := int64((13550 - 12050) * 75)
	if realized != want {
		t.Fatalf("realized = %d, want %d", realized, want)
	}
	if got := len(pf.Positions()); got != 0 {
		t.Fatalf("flat book still has %d positions", got)
	}
	if pf.RealizedPnL() != want {
		t.Fatalf("RealizedPnL = %d, want %d", pf.RealizedPnL(), want)
	}
}

func TestPortfolio_AveragesCostBasisOnScaleIn(t *testing.T) {
	pf := New()
	pf.ApplyTrade(Trade{Token: "43210", Exchange: "NFO", OptionType: "PE", Action: "BUY", Qty: 75, Price: 10000})
	pf.ApplyTrade(Trade{Token: "43210", Exchange: "NFO", OptionType: "PE", Action: "BUY", Qty: 75, Price: 12000})

	positions := pf.Positions()
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}
	if positions[0].Qty != 150 {
		t.Errorf("qty = %d, want 150", positions[0].Qty)
	}
	if positions[0].AvgPrice != 11000 {
		t.Errorf("avg price = %d, want 11000", positions[0].AvgPrice)
	}
}

func TestPortfolio_UnrealizedTracksMark(t *testing.T) {
	pf := New()
	pf.ApplyTrade(Trade{Token: "43210", Exchange: "NFO", OptionType: "CE", Action: "BUY", Qty: 75, Price: 10000})
	pf.UpdatePremium("NFO", "43210", 10400)

	want := int64((10400 - 10000) * 75)
	if got := pf.UnrealizedPnL(); got != want {
		t.Fatalf("unrealized = %d, want %d", got, want)
	}
}

func TestPortfolio_SellNeverFlipsShort(t *testing.T) {
	pf := New()
	pf.ApplyTrade(Trade{Token: "43210", Exchange: "NFO", OptionType: "CE", Action: "BUY", Qty: 75, Price: 10000})
	pf.ApplyTrade(Trade{Token: "43210", Exchange: "NFO", OptionType: "CE", Action: "SELL", Qty: 150, Price: 11000})

	if got := len(pf.Positions()); got != 0 {
		t.Fatalf("oversell left %d positions, want 0", got)
	}
	// only the held 75 contribute to realized P&L
	want := int64((11000 - 10000) * 75)
	if pf.RealizedPnL() != want {
		t.Fatalf("realized = %d, want %d", pf.RealizedPnL(), want)
	}
}
