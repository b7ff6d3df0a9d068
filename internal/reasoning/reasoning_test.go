package reasoning

import (
	"strings"
	"testing"
	"time"

	"nifty-optionsbot/internal/model"
)

func fullFilterResult() model.FilterResult {
	fr := make(model.FilterResult)
	for _, name := range model.AllFilterNames() {
		fr[name] = model.FilterOutcome{Enabled: true, Passed: true, Detail: string(name) + " ok"}
	}
	fr[model.FilterVolume] = model.FilterOutcome{Enabled: false, Passed: true, Detail: "disabled for index instrument"}
	fr[model.FilterPCR] = model.FilterOutcome{Enabled: true, Passed: false, Detail: "PCR 1.20 vs < 1.00"}
	return fr
}

func snapWithLevels() model.IndicatorSnapshot {
	return model.IndicatorSnapshot{
		Close:           model.Ptr(22150.0),
		ATRPct:          model.Ptr(0.5),
		SupertrendValue: model.Ptr(22040.0),
		SupertrendDir:   model.TrendBullish,
	}
}

func TestExplain_EveryFilterInSummary(t *testing.T) {
	sig := model.Signal{Kind: model.SignalBuyCE, Confidence: 85, TS: time.Now()}
	rec := Explain(sig, fullFilterResult(), snapWithLevels())

	if len(rec.FilterSummary) != len(model.AllFilterNames()) {
		t.Fatalf("summary has %d entries, want %d", len(rec.FilterSummary), len(model.AllFilterNames()))
	}
	for _, name := range model.AllFilterNames() {
		if _, ok := rec.FilterSummary[name]; !ok {
			t.Errorf("filter %s missing from summary", name)
		}
	}
	if rec.FilterSummary[model.FilterVolume] != "➖" {
		t.Errorf("disabled filter glyph: got %q", rec.FilterSummary[model.FilterVolume])
	}
	if rec.FilterSummary[model.FilterPCR] != "❌" {
		t.Errorf("failed filter glyph: got %q", rec.FilterSummary[model.FilterPCR])
	}
	if rec.FilterSummary[model.FilterEMACrossover] != "✅" {
		t.Errorf("passing filter glyph: got %q", rec.FilterSummary[model.FilterEMACrossover])
	}
}

func TestExplain_FactorsReferenceRawValues(t *testing.T) {
	sig := model.Signal{Kind: model.SignalBuyCE, Confidence: 85, TS: time.Now()}
	rec := Explain(sig, fullFilterResult(), snapWithLevels())

	foundEMA := false
	for _, f := range rec.KeyFactors {
		if strings.HasPrefix(f, string(model.FilterEMACrossover)) {
			foundEMA = true
		}
	}
	if !foundEMA {
		t.Error("EMA crossover state must appear in key factors")
	}

	foundPCR := false
	for _, f := range rec.RiskFactors {
		if strings.Contains(f, "PCR 1.20") {
			foundPCR = true
		}
	}
	if !foundPCR {
		t.Error("failed PCR value must appear in risk factors")
	}
}

func TestExplain_LevelsFromSupertrendStop(t *testing.T) {
	sig := model.Signal{Kind: model.SignalBuyCE, Confidence: 100, TS: time.Now()}
	rec := Explain(sig, fullFilterResult(), snapWithLevels())

	if rec.StopLossLevel == nil || rec.TargetLevel == nil {
		t.Fatal("directional signal with ATR must carry levels")
	}
	if *rec.StopLossLevel != 22040.0 {
		t.Errorf("stop should sit on the Supertrend band: got %.2f", *rec.StopLossLevel)
	}
	// 2:1 reward-to-risk above the entry.
	wantTarget := 22150.0 + 2*(22150.0-22040.0)
	if *rec.TargetLevel != wantTarget {
		t.Errorf("target: got %.2f want %.2f", *rec.TargetLevel, wantTarget)
	}
}

func TestExplain_HoldCarriesNoLevels(t *testing.T) {
	sig := model.Signal{Kind: model.SignalHold, Confidence: 40, TS: time.Now()}
	rec := Explain(sig, fullFilterResult(), snapWithLevels())

	if rec.TargetLevel != nil || rec.StopLossLevel != nil {
		t.Error("HOLD must not carry target/stop levels")
	}
}

func TestExplain_NoATRNoLevels(t *testing.T) {
	sig := model.Signal{Kind: model.SignalBuyCE, Confidence: 100, TS: time.Now()}
	snap := snapWithLevels()
	snap.ATRPct = nil
	rec := Explain(sig, fullFilterResult(), snap)

	if rec.TargetLevel != nil || rec.StopLossLevel != nil {
		t.Error("levels must be nil without ATR, never zero")
	}
}
