// Package predictor produces one-step-ahead price estimates from a
// trailing candle window. A prediction is advisory input for the
// decision rules, never a trade by itself.
package predictor

import (
	"fmt"

	"ballast/internal/core"
)

// Predictor estimates the next price from the candles seen so far.
// Implementations must not retain or mutate the slice.
type Predictor interface {
	Predict(candles []core.Candle) core.Prediction
}

// New builds the predictor named in configuration. Kind "none" returns
// a nil Predictor, which downstream consumers treat as a neutral
// prediction at the current price.
func New(kind string, window int) (Predictor, error) {
	switch kind {
	case "trend", "":
		return NewTrend(window), nil
	case "none":
		return nil, nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown predictor kind %q", kind))
	}
}
