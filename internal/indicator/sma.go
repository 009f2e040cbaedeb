package indicator

// SMA calculates the simple moving average. result[k] covers
// prices[k..k+period-1], so result[k] corresponds to prices[k+period-1].
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, len(prices)-period+1)
	sum := 0.0
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			result[i-period+1] = sum / float64(period)
		}
	}
	return result
}

// EMA calculates the exponential moving average, seeded with the mean of
// the first window. result[k] corresponds to prices[k+period-1], the same
// alignment as SMA.
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	alpha := 2.0 / float64(period+1)
	result := make([]float64, len(prices)-period+1)
	result[0] = mean(prices[:period])
	for i := period; i < len(prices); i++ {
		k := i - period + 1
		result[k] = result[k-1] + alpha*(prices[i]-result[k-1])
	}
	return result
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
