package backtest

import (
	"math"

	"ballast/internal/core"
)

// Metric keys of a finished result. Compute fills all of them except
// MetricBuyHoldReturn, which Run derives from the snapshot prices.
const (
	MetricTotalReturn      = "total_return"
	MetricSharpe           = "sharpe"
	MetricSortino          = "sortino"
	MetricMaxDrawdown      = "max_drawdown"
	MetricWinRate          = "win_rate"
	MetricProfitFactor     = "profit_factor"
	MetricCalmar           = "calmar"
	MetricAvgTradePnL      = "avg_trade_pnl"
	MetricNumTrades        = "num_trades"
	MetricNumClosingTrades = "num_closing_trades"
	MetricBuyHoldReturn    = "buy_hold_return"
)

// Compute derives the performance metrics from a finished equity curve
// and trade history. It reads its inputs and returns a fresh map, so
// calling it twice on the same result yields identical values.
// Degenerate inputs (empty curve, no trades, zero variance) yield 0
// for the affected metrics, never NaN or Inf.
func Compute(equity []core.EquityPoint, trades []core.Trade, initialCapital float64, periodsPerYear int, riskFreeRate float64) map[string]float64 {
	m := map[string]float64{
		MetricTotalReturn:      0,
		MetricSharpe:           0,
		MetricSortino:          0,
		MetricMaxDrawdown:      0,
		MetricWinRate:          0,
		MetricProfitFactor:     0,
		MetricCalmar:           0,
		MetricAvgTradePnL:      0,
		MetricNumTrades:        float64(len(trades)),
		MetricNumClosingTrades: 0,
	}
	if len(equity) == 0 || initialCapital <= 0 {
		return m
	}

	finalValue := equity[len(equity)-1].Value
	m[MetricTotalReturn] = (finalValue - initialCapital) / initialCapital

	returns := stepReturns(equity)
	periods := float64(periodsPerYear)

	if sd := stddev(returns); sd > 0 {
		m[MetricSharpe] = (mean(returns)*periods - riskFreeRate) / (sd * math.Sqrt(periods))
	}
	if sd := stddev(negatives(returns)); sd > 0 {
		m[MetricSortino] = (mean(returns)*periods - riskFreeRate) / (sd * math.Sqrt(periods))
	}

	m[MetricMaxDrawdown] = maxDrawdown(equity)

	if dd := m[MetricMaxDrawdown]; dd < 0 && len(returns) > 0 {
		annualized := m[MetricTotalReturn] * periods / float64(len(returns))
		m[MetricCalmar] = annualized / math.Abs(dd)
	}

	var wins, closing int
	var grossProfit, grossLoss, totalPnL float64
	for _, t := range trades {
		if !t.Closing() {
			continue
		}
		closing++
		totalPnL += t.RealizedPnL
		if t.IsWin() {
			wins++
		}
		if t.RealizedPnL > 0 {
			grossProfit += t.RealizedPnL
		} else {
			grossLoss += -t.RealizedPnL
		}
	}
	m[MetricNumClosingTrades] = float64(closing)
	if closing > 0 {
		m[MetricWinRate] = float64(wins) / float64(closing)
		m[MetricAvgTradePnL] = totalPnL / float64(closing)
	}
	if grossLoss > 0 {
		m[MetricProfitFactor] = grossProfit / grossLoss
	}

	return sanitize(m)
}

// stepReturns converts the equity curve into per-step simple returns.
// A step starting from zero equity contributes a zero return.
func stepReturns(equity []core.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev <= 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (equity[i].Value-prev)/prev)
	}
	return returns
}

// maxDrawdown is the largest peak-to-trough decline of the curve,
// expressed as a negative fraction of the running peak.
func maxDrawdown(equity []core.EquityPoint) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0].Value
	worst := 0.0
	for _, point := range equity {
		if point.Value > peak {
			peak = point.Value
		}
		if peak <= 0 {
			continue
		}
		if dd := (point.Value - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation. Fewer than two points have
// no spread and yield 0.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mu := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - mu
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

func negatives(xs []float64) []float64 {
	var neg []float64
	for _, x := range xs {
		if x < 0 {
			neg = append(neg, x)
		}
	}
	return neg
}

// sanitize replaces any non-finite value that slipped through with 0.
func sanitize(m map[string]float64) map[string]float64 {
	for k, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			m[k] = 0
		}
	}
	return m
}
