package indicator

import "nifty-optionsbot/internal/model"

// PivotLevels holds the nearest pivot-derived support/resistance levels
// and breakout flags for the latest close.
type PivotLevels struct {
	Support    *float64 // highest pivot low below the close, rupees
	Resistance *float64 // lowest pivot high above the close, rupees
	BreakoutUp bool     // close beyond the highest pivot high by BreakoutPct
	BreakoutDn bool     // close beyond the lowest pivot low by BreakoutPct
}

// pivotLevels extracts local highs/lows of strength lookback (higher
// than lookback bars on each side) and derives the nearest levels.
// The last lookback bars cannot confirm a pivot yet and are skipped.
func pivotLevels(window []model.Bar, lookback int, breakoutPct float64) PivotLevels {
	var out PivotLevels
	if lookback <= 0 || len(window) < 2*lookback+1 {
		return out
	}

	var pivotHighs, pivotLows []float64
	for i := lookback; i < len(window)-lookback; i++ {
		high := float64(window[i].High) / 100.0
		low := float64(window[i].Low) / 100.0
		isHigh, isLow := true, true
		for j := i - lookback; j <= i+lookback; j++ {
			if j == i {
				continue
			}
			if float64(window[j].High)/100.0 >= high {
				isHigh = false
			}
			if float64(window[j].Low)/100.0 <= low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			pivotHighs = append(pivotHighs, high)
		}
		if isLow {
			pivotLows = append(pivotLows, low)
		}
	}

	close := window[len(window)-1].CloseRupees()

	var maxHigh, minLow float64
	for _, h := range pivotHighs {
		if h > maxHigh {
			maxHigh = h
		}
		if h > close && (out.Resistance == nil || h < *out.Resistance) {
			r := h
			out.Resistance = &r
		}
	}
	minLow = 0
	for _, l := range pivotLows {
		if minLow == 0 || l < minLow {
			minLow = l
		}
		if l < close && (out.Support == nil || l > *out.Support) {
			s := l
			out.Support = &s
		}
	}

	// Breakout: close clears the extreme level by at least breakoutPct.
	if maxHigh > 0 && close > maxHigh*(1+breakoutPct/100.0) {
		out.BreakoutUp = true
	}
	if minLow > 0 && close < minLow*(1-breakoutPct/100.0) {
		out.BreakoutDn = true
	}
	return out
}
