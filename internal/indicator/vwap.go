package indicator

import "nifty-optionsbot/internal/model"

// vwap computes the cumulative volume-weighted average price over the
// window using the typical price (H+L+C)/3 per bar.
//
// For index instruments volume is structurally zero; ok is false and
// the snapshot field stays nil. The evaluator additionally excludes
// VWAP from filter decisions for indices regardless of this value.
func vwap(window []model.Bar) (float64, bool) {
	var pvSum, volSum float64
	for i := range window {
		typical := (float64(window[i].High) + float64(window[i].Low) + float64(window[i].Close)) / 300.0
		vol := float64(window[i].Volume)
		pvSum += typical * vol
		volSum += vol
	}
	if volSum == 0 {
		return 0, false
	}
	return pvSum / volSum, true
}

// volumeRatio compares the last bar's volume to the simple average of
// the preceding period bars. ok is false with fewer than period+1 bars
// or when the average is zero (index instruments).
func volumeRatio(window []model.Bar, period int) (float64, bool) {
	if period <= 0 || len(window) < period+1 {
		return 0, false
	}
	span := window[len(window)-1-period : len(window)-1]
	sum := int64(0)
	for i := range span {
		sum += span[i].Volume
	}
	if sum == 0 {
		return 0, false
	}
	avg := float64(sum) / float64(period)
	return float64(window[len(window)-1].Volume) / avg, true
}
