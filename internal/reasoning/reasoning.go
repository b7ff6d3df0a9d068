// Package reasoning renders decisions into user-facing explanation
// records for the dashboard.
//
// Rendering is deterministic and covers every filter in the closed
// enumeration: a filter that contributed to the decision can never be
// missing from the summary.
package reasoning

import (
	"fmt"

	"nifty-optionsbot/internal/model"
)

// Glyphs used in the filter summary.
const (
	glyphPass     = "✅"
	glyphFail     = "❌"
	glyphDisabled = "➖"
)

// Explain renders a signal, its filter outcomes, and the indicator
// snapshot into a ReasoningRecord. Pure function: no evaluator state is
// read or mutated.
func Explain(sig model.Signal, fr model.FilterResult, snap model.IndicatorSnapshot) model.ReasoningRecord {
	rec := model.ReasoningRecord{
		TS:            sig.TS,
		Signal:        sig.Kind,
		Confidence:    sig.Confidence,
		KeyFactors:    []string{},
		RiskFactors:   []string{},
		FilterSummary: make(map[model.FilterName]string, len(model.AllFilterNames())),
	}

	// Iterate the closed enumeration, not the map, so every filter
	// appears in the summary in stable order semantics.
	for _, name := range model.AllFilterNames() {
		out, ok := fr[name]
		if !ok {
			// Structurally impossible when the evaluator built fr, but a
			// missing entry must surface as a failure, not vanish.
			rec.FilterSummary[name] = glyphFail
			rec.RiskFactors = append(rec.RiskFactors, fmt.Sprintf("%s: no outcome recorded", name))
			continue
		}
		switch {
		case !out.Enabled:
			rec.FilterSummary[name] = glyphDisabled
			rec.RiskFactors = append(rec.RiskFactors, fmt.Sprintf("%s: %s", name, out.Detail))
		case out.Passed:
			rec.FilterSummary[name] = glyphPass
			rec.KeyFactors = append(rec.KeyFactors, fmt.Sprintf("%s: %s", name, out.Detail))
		default:
			rec.FilterSummary[name] = glyphFail
			rec.RiskFactors = append(rec.RiskFactors, fmt.Sprintf("%s: %s", name, out.Detail))
		}
	}

	if sig.Kind.Directional() {
		rec.TargetLevel, rec.StopLossLevel = levels(sig.Kind, snap)
	}
	return rec
}

// levels derives display target and stop levels from the snapshot.
//
// The stop leans on the Supertrend band (it is the trailing level the
// trend filter itself watches); the target extends the risk distance at
// 2:1. With no ATR yet both stay nil rather than inventing zeros.
func levels(kind model.SignalKind, snap model.IndicatorSnapshot) (target, stop *float64) {
	if snap.Close == nil || snap.ATRPct == nil {
		return nil, nil
	}
	close := *snap.Close
	atrDist := close * *snap.ATRPct / 100.0

	if kind == model.SignalBuyCE {
		s := close - atrDist
		if snap.SupertrendValue != nil && *snap.SupertrendValue < close {
			s = *snap.SupertrendValue
		}
		tgt := close + 2*(close-s)
		return &tgt, &s
	}

	s := close + atrDist
	if snap.SupertrendValue != nil && *snap.SupertrendValue > close {
		s = *snap.SupertrendValue
	}
	tgt := close - 2*(s-close)
	return &tgt, &s
}
