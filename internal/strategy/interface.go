package strategy

import (
	"ballast/internal/core"
)

// Params holds the decision thresholds plus the initial capital the
// circuit breaker measures against. Every field is configurable.
type Params struct {
	InitialCapital        float64
	CircuitBreakerRatio   float64
	ATRStopMultiplier     float64
	TakeProfitThreshold   float64
	RSIOversold           float64
	RSIOverbought         float64
	FearGreedBuyThreshold float64
	SwingBuyFraction      float64
	DCABuyFraction        float64
}

// DefaultParams returns the standard thresholds for the given starting
// capital.
func DefaultParams(initialCapital float64) Params {
	return Params{
		InitialCapital:        initialCapital,
		CircuitBreakerRatio:   0.75,
		ATRStopMultiplier:     2.0,
		TakeProfitThreshold:   0.15,
		RSIOversold:           30,
		RSIOverbought:         70,
		FearGreedBuyThreshold: 40,
		SwingBuyFraction:      0.10,
		DCABuyFraction:        0.10,
	}
}

// Rule is one guard in the decision cascade. Evaluate returns the
// decision and true when the rule fires; the engine stops at the first
// firing rule.
type Rule interface {
	Name() string
	Evaluate(snap core.Snapshot, p *core.Portfolio, params Params) (core.Decision, bool)
}
