package backtest

import (
	"time"

	"ballast/internal/core"
	"ballast/internal/strategy"
)

// Config carries the settings of one simulation run. The initial
// capital lives inside Strategy so the circuit breaker and the ledger
// measure against the same number.
type Config struct {
	Symbol         string
	Strategy       strategy.Params
	PeriodsPerYear int
	RiskFreeRate   float64
}

// DefaultConfig returns a run configuration with the standard
// thresholds, daily bars and the default risk-free rate.
func DefaultConfig(symbol string, initialCapital float64) Config {
	return Config{
		Symbol:         symbol,
		Strategy:       strategy.DefaultParams(initialCapital),
		PeriodsPerYear: 252,
		RiskFreeRate:   0.02,
	}
}

// Result holds the complete backtest output. Once returned it is owned
// solely by the caller; the engine keeps no reference.
type Result struct {
	ID             string             `json:"id"`
	Symbol         string             `json:"symbol"`
	StartDate      time.Time          `json:"start_date"`
	EndDate        time.Time          `json:"end_date"`
	InitialCapital float64            `json:"initial_capital"`
	FinalValue     float64            `json:"final_value"`
	Equity         []core.EquityPoint `json:"equity"`
	Trades         []core.Trade       `json:"trades"`
	Metrics        map[string]float64 `json:"metrics"`
	FinalPortfolio core.Portfolio     `json:"final_portfolio"`
	StartedAt      time.Time          `json:"started_at"`
	FinishedAt     time.Time          `json:"finished_at"`
}

// TotalReturn is the headline return, also present in Metrics.
func (r *Result) TotalReturn() float64 {
	return r.Metrics["total_return"]
}

// Record summarizes the result for the run store.
func (r *Result) Record(configDigest string) core.RunRecord {
	return core.RunRecord{
		ID:             r.ID,
		Symbol:         r.Symbol,
		Start:          r.StartDate,
		End:            r.EndDate,
		InitialCapital: r.InitialCapital,
		FinalValue:     r.FinalValue,
		TotalReturn:    r.Metrics["total_return"],
		Sharpe:         r.Metrics["sharpe"],
		MaxDrawdown:    r.Metrics["max_drawdown"],
		WinRate:        r.Metrics["win_rate"],
		Trades:         len(r.Trades),
		ConfigDigest:   configDigest,
		CreatedAt:      r.FinishedAt,
	}
}
