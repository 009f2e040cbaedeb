package indicator

// MACD calculates the MACD line, signal line and histogram. The three
// returned slices are aligned with each other; element k corresponds to
// prices[k+MACDWarmup(fast, slow, signalPeriod)].
func MACD(prices []float64, fast, slow, signalPeriod int) (macd, signal, histogram []float64) {
	if fast >= slow || len(prices) < slow+signalPeriod-1 {
		return []float64{}, []float64{}, []float64{}
	}

	emaFast := EMA(prices, fast) // [k] is prices[k+fast-1]
	emaSlow := EMA(prices, slow) // [k] is prices[k+slow-1]

	// MACD line aligned to the slow EMA
	line := make([]float64, len(emaSlow))
	shift := slow - fast
	for k := range emaSlow {
		line[k] = emaFast[k+shift] - emaSlow[k]
	}

	signal = EMA(line, signalPeriod) // [k] is line[k+signalPeriod-1]

	macd = line[signalPeriod-1:]
	histogram = make([]float64, len(signal))
	for k := range signal {
		histogram[k] = macd[k] - signal[k]
	}

	return macd, signal, histogram
}

// MACDWarmup returns the number of leading bars consumed before the
// first histogram value.
func MACDWarmup(fast, slow, signalPeriod int) int {
	return slow + signalPeriod - 2
}
