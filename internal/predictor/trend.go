package predictor

import (
	"ballast/internal/core"
)

const (
	defaultWindow = 20
	// A line through fewer than three points carries no information.
	minCloses = 3
	// Extrapolations are clamped to this band around the last close.
	maxMove = 0.20
	// Predicted moves inside this band are reported as direction NONE.
	directionBand = 0.001
)

// Trend fits an ordinary least squares line through the closes of a
// trailing window and extrapolates it one step ahead. Confidence is
// the R-squared of the fit, so a choppy window yields a prediction the
// entry rules will ignore.
type Trend struct {
	window int
}

// NewTrend creates a trend predictor over the given window. Non-positive
// windows fall back to the default of 20.
func NewTrend(window int) *Trend {
	if window <= 0 {
		window = defaultWindow
	}
	return &Trend{window: window}
}

func (t *Trend) Predict(candles []core.Candle) core.Prediction {
	if len(candles) == 0 {
		return core.NoPrediction(0)
	}
	last := candles[len(candles)-1].Close

	start := len(candles) - t.window
	if start < 0 {
		start = 0
	}
	closes := make([]float64, 0, len(candles)-start)
	for _, c := range candles[start:] {
		closes = append(closes, c.Close)
	}
	if len(closes) < minCloses {
		return core.NoPrediction(last)
	}

	slope, intercept := fitLine(closes)
	predicted := intercept + slope*float64(len(closes))

	// Keep runaway extrapolations honest.
	if lo := last * (1 - maxMove); predicted < lo {
		predicted = lo
	} else if hi := last * (1 + maxMove); predicted > hi {
		predicted = hi
	}

	direction := core.DirectionNone
	switch {
	case predicted > last*(1+directionBand):
		direction = core.DirectionUp
	case predicted < last*(1-directionBand):
		direction = core.DirectionDown
	}

	return core.Prediction{
		Direction:  direction,
		Confidence: rSquared(closes, slope, intercept),
		Price:      predicted,
	}
}

// fitLine solves least squares for y over x = 0..n-1 in closed form.
func fitLine(ys []float64) (slope, intercept float64) {
	n := float64(len(ys))
	xMean := (n - 1) / 2
	yMean := 0.0
	for _, y := range ys {
		yMean += y
	}
	yMean /= n

	var num, den float64
	for i, y := range ys {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	slope = num / den
	intercept = yMean - slope*xMean
	return slope, intercept
}

// rSquared is the fraction of variance explained by the fit, clamped
// to [0,1]. A flat window has no variance to explain and scores 0.
func rSquared(ys []float64, slope, intercept float64) float64 {
	yMean := 0.0
	for _, y := range ys {
		yMean += y
	}
	yMean /= float64(len(ys))

	var ssTot, ssRes float64
	for i, y := range ys {
		fit := intercept + slope*float64(i)
		ssRes += (y - fit) * (y - fit)
		ssTot += (y - yMean) * (y - yMean)
	}
	if ssTot == 0 {
		return 0
	}
	r2 := 1 - ssRes/ssTot
	if r2 < 0 {
		return 0
	}
	if r2 > 1 {
		return 1
	}
	return r2
}
