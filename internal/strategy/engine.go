package strategy

import (
	"ballast/internal/core"
)

// Engine evaluates an ordered rule cascade. The first matching rule
// wins and all lower-priority rules are skipped.
type Engine struct {
	rules []Rule
}

// New creates an engine with the standard cascade: circuit breaker,
// stop-loss, take-profit, swing entry, DCA entry.
func New() *Engine {
	return NewWithRules(
		CircuitBreaker{},
		StopLoss{},
		TakeProfit{},
		SwingEntry{},
		DCAEntry{},
	)
}

// NewWithRules creates an engine with a custom cascade in the given
// priority order.
func NewWithRules(rules ...Rule) *Engine {
	return &Engine{rules: rules}
}

// Decide maps one snapshot and the current portfolio state to a
// decision. Deterministic for identical inputs; the only state it
// touches is the portfolio's paused flag, owned by the circuit breaker.
func (e *Engine) Decide(snap core.Snapshot, p *core.Portfolio, params Params) core.Decision {
	for _, r := range e.rules {
		if d, ok := r.Evaluate(snap, p, params); ok {
			return d
		}
	}
	return core.Hold(core.TagNoSignal, "no entry or exit condition met")
}

// Rules returns the rule names in evaluation order.
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}
