package indicator

import "math"

// ATR calculates the Average True Range with Wilder smoothing.
// result[k] corresponds to bar k+period. The true range needs the
// previous close, so bar 0 never produces a value.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	if len(highs) != n || len(lows) != n || n <= period {
		return []float64{}
	}

	// True range per bar, starting at bar 1
	tr := make([]float64, n-1)
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i-1] = math.Max(hl, math.Max(hc, lc))
	}

	var atr float64
	for i := 0; i < period; i++ {
		atr += tr[i]
	}
	atr /= float64(period)

	result := make([]float64, 0, n-period)
	result = append(result, atr)

	for i := period; i < len(tr); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		result = append(result, atr)
	}

	return result
}
