package indicator

import "nifty-optionsbot/internal/model"

// supertrend computes the ATR-band trailing Supertrend over the window.
//
// basic upper = (high+low)/2 + mult*ATR, basic lower = (high+low)/2 - mult*ATR.
// Bands trail: the upper band only ratchets down while price stays below
// it, the lower band only ratchets up while price stays above it.
// Direction flips when the close crosses the active band. Returns the
// discrete direction plus the active band value (rupees) for display.
func supertrend(window []model.Bar, period int, mult float64) (model.TrendDirection, float64, bool) {
	atr, ok := atrSeries(window, period)
	if !ok {
		return model.TrendUnknown, 0, false
	}

	var (
		finalUpper float64
		finalLower float64
		dir        = model.TrendBullish
	)

	for i := period; i < len(window); i++ {
		high := float64(window[i].High) / 100.0
		low := float64(window[i].Low) / 100.0
		close := window[i].CloseRupees()
		hl2 := (high + low) / 2.0

		basicUpper := hl2 + mult*atr[i]
		basicLower := hl2 - mult*atr[i]

		if i == period {
			finalUpper = basicUpper
			finalLower = basicLower
			if close <= finalUpper {
				dir = model.TrendBearish
			}
			continue
		}

		prevClose := window[i-1].CloseRupees()

		// Trailing: bands only tighten in the direction of the trend.
		if basicUpper < finalUpper || prevClose > finalUpper {
			finalUpper = basicUpper
		}
		if basicLower > finalLower || prevClose < finalLower {
			finalLower = basicLower
		}

		// Flip on close crossing the active band.
		if dir == model.TrendBullish && close < finalLower {
			dir = model.TrendBearish
		} else if dir == model.TrendBearish && close > finalUpper {
			dir = model.TrendBullish
		}
	}

	band := finalLower
	if dir == model.TrendBearish {
		band = finalUpper
	}
	return dir, band, true
}
