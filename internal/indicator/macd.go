package indicator

// macdLast computes MACD (fast EMA − slow EMA) and its signal line
// (EMA of the MACD series) for the final close.
//
// MACD itself is defined once slow-period closes exist. The signal line
// needs signalPeriod MACD values on top of that; until then it is
// returned as nil so callers can distinguish "MACD without signal".
func macdLast(closes []float64, fast, slow, signal int) (float64, *float64, bool) {
	if fast <= 0 || slow <= 0 || fast >= slow || len(closes) < slow {
		return 0, nil, false
	}

	fastSeries, _ := emaSeries(closes, fast)
	slowSeries, _ := emaSeries(closes, slow)

	// MACD series is defined from index slow-1 onward.
	macd := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		macd = append(macd, fastSeries[i]-slowSeries[i])
	}

	last := macd[len(macd)-1]
	if signal <= 0 || len(macd) < signal {
		return last, nil, true
	}
	sigSeries, ok := emaSeries(macd, signal)
	if !ok {
		return last, nil, true
	}
	sig := sigSeries[len(sigSeries)-1]
	return last, &sig, true
}
