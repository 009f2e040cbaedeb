// Package backtest drives the decision engine and a ledger across an
// ordered snapshot sequence and derives performance metrics from the
// resulting equity curve.
package backtest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ballast/internal/core"
	"ballast/internal/ledger"
	"ballast/internal/strategy"
)

// Backtester replays market snapshots through a decision engine. It is
// stateless between runs; each Run builds its own ledger.
type Backtester struct {
	engine *strategy.Engine
	logger *zap.Logger
}

// New creates a backtester around the given engine. A nil logger
// disables logging.
func New(engine *strategy.Engine, logger *zap.Logger) *Backtester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backtester{engine: engine, logger: logger}
}

// Run executes one simulation over the snapshots.
//
// The sequence is validated up front: every snapshot must pass its own
// range checks and timestamps must be strictly ascending. Per step the
// engine decides, the ledger applies, and one equity point is appended,
// so len(Result.Equity) always equals len(snapshots). Ledger rejections
// abort the run with the step index and attempted decision attached.
func (b *Backtester) Run(snapshots []core.Snapshot, cfg Config) (*Result, error) {
	if len(snapshots) == 0 {
		return nil, core.ErrNoSnapshots
	}
	if err := validateSequence(snapshots); err != nil {
		return nil, err
	}

	startedAt := time.Now().UTC()
	led := ledger.New(cfg.Strategy.InitialCapital)
	equity := make([]core.EquityPoint, 0, len(snapshots))

	b.logger.Info("backtest started",
		zap.String("symbol", cfg.Symbol),
		zap.Int("snapshots", len(snapshots)),
		zap.Float64("initial_capital", cfg.Strategy.InitialCapital))

	for i, snap := range snapshots {
		decision := b.engine.Decide(snap, led.Portfolio(), cfg.Strategy)

		trade, err := led.Apply(decision, snap)
		if err != nil {
			p := led.Portfolio()
			return nil, fmt.Errorf("step %d at %s: applying %s/%s (cash %.2f, qty %.8f): %w",
				i, snap.Time.Format(time.RFC3339), decision.Action, decision.Tag, p.Cash, p.AssetQty, err)
		}
		if trade != nil {
			b.logger.Debug("trade executed",
				zap.Int("step", i),
				zap.String("action", string(trade.Action)),
				zap.String("tag", string(trade.Tag)),
				zap.Float64("price", trade.Price),
				zap.Float64("quantity", trade.Quantity),
				zap.String("reason", decision.Reason))
		}

		equity = append(equity, core.EquityPoint{
			Time:  snap.Time,
			Value: led.Portfolio().Value(snap.Price),
		})
	}

	finishedAt := time.Now().UTC()
	finalValue := equity[len(equity)-1].Value

	metrics := Compute(equity, led.Trades(), cfg.Strategy.InitialCapital, cfg.PeriodsPerYear, cfg.RiskFreeRate)
	metrics[MetricBuyHoldReturn] = buyHoldReturn(snapshots)

	b.logger.Info("backtest finished",
		zap.String("symbol", cfg.Symbol),
		zap.Float64("final_value", finalValue),
		zap.Float64("total_return", metrics["total_return"]),
		zap.Int("trades", len(led.Trades())),
		zap.Bool("paused", led.Portfolio().Paused))

	return &Result{
		ID:             uuid.NewString(),
		Symbol:         cfg.Symbol,
		StartDate:      snapshots[0].Time,
		EndDate:        snapshots[len(snapshots)-1].Time,
		InitialCapital: cfg.Strategy.InitialCapital,
		FinalValue:     finalValue,
		Equity:         equity,
		Trades:         led.Trades(),
		Metrics:        metrics,
		FinalPortfolio: *led.Portfolio(),
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
	}, nil
}

// validateSequence rejects malformed input before any state exists.
// Equal timestamps are rejected too: a duplicated bar would double a
// simulation step.
func validateSequence(snapshots []core.Snapshot) error {
	for i, snap := range snapshots {
		if err := snap.Validate(); err != nil {
			return core.WrapError(core.ErrInvalidSnapshot, fmt.Errorf("index %d: %w", i, err))
		}
		if i > 0 && !snap.Time.After(snapshots[i-1].Time) {
			return core.WrapError(core.ErrInvalidSnapshot,
				fmt.Errorf("index %d: timestamp %s not after %s",
					i, snap.Time.Format(time.RFC3339), snapshots[i-1].Time.Format(time.RFC3339)))
		}
	}
	return nil
}

// buyHoldReturn is the benchmark return of buying at the first price
// and holding to the last.
func buyHoldReturn(snapshots []core.Snapshot) float64 {
	first := snapshots[0].Price
	last := snapshots[len(snapshots)-1].Price
	if first <= 0 {
		return 0
	}
	return (last - first) / first
}
