package indicator

import (
	"math"

	"nifty-optionsbot/internal/model"
)

// trueRanges computes the true-range series in rupees.
// TR_0 = high-low; TR_t = max(high-low, |high-prevClose|, |low-prevClose|).
func trueRanges(window []model.Bar) []float64 {
	tr := make([]float64, len(window))
	for i := range window {
		high := float64(window[i].High) / 100.0
		low := float64(window[i].Low) / 100.0
		if i == 0 {
			tr[i] = high - low
			continue
		}
		prevClose := window[i-1].CloseRupees()
		tr[i] = math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
	}
	return tr
}

// atrSeries computes the Wilder-smoothed ATR series.
// Index i is defined for i >= period: the value at period is the simple
// average of TR_1..TR_period, later values follow
// atr_t = (atr_{t-1}*(period-1) + TR_t) / period.
func atrSeries(window []model.Bar, period int) ([]float64, bool) {
	if period <= 0 || len(window) < period+1 {
		return nil, false
	}
	tr := trueRanges(window)
	out := make([]float64, len(window))

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	out[period] = sum / float64(period)

	p := float64(period)
	for i := period + 1; i < len(window); i++ {
		out[i] = (out[i-1]*(p-1) + tr[i]) / p
	}
	return out, true
}

// atrLast returns the ATR (rupees) of the final bar.
func atrLast(window []model.Bar, period int) (float64, bool) {
	series, ok := atrSeries(window, period)
	if !ok {
		return 0, false
	}
	return series[len(series)-1], true
}
