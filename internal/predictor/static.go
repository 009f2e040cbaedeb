package predictor

import (
	"ballast/internal/core"
)

// Static returns the same prediction for every window. Useful for
// pinning predictor output in tests.
type Static struct {
	prediction core.Prediction
}

func NewStatic(p core.Prediction) *Static {
	return &Static{prediction: p}
}

func (s *Static) Predict([]core.Candle) core.Prediction {
	return s.prediction
}
