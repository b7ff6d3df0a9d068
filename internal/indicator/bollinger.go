package indicator

import "math"

// bollinger computes the Bollinger Bands of the final close:
// SMA(period) ± stdDev * population standard deviation over the same span.
func bollinger(closes []float64, period int, stdDev float64) (upper, lower float64, ok bool) {
	if period <= 0 || len(closes) < period {
		return 0, 0, false
	}
	span := closes[len(closes)-period:]

	sum := 0.0
	for _, v := range span {
		sum += v
	}
	mean := sum / float64(period)

	variance := 0.0
	for _, v := range span {
		d := v - mean
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))

	return mean + stdDev*sd, mean - stdDev*sd, true
}
