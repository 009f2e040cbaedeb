package feed

import (
	"context"
	"fmt"

	"ballast/internal/core"
	"ballast/internal/indicator"
	"ballast/internal/predictor"
)

// Builder turns raw candles into the snapshot sequence. Indicators and
// the predictor at step i see candles [0..i] only; the leading warmup
// window is consumed without emitting snapshots.
type Builder struct {
	RSIPeriod  int
	ATRPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int

	Sentiment SentimentProvider
	Predictor predictor.Predictor
}

// NewBuilder creates a builder with the standard indicator periods
// (RSI 14, ATR 14, MACD 12/26/9). Sentiment and predictor may be nil:
// a nil sentiment provider yields the neutral index, a nil predictor a
// neutral prediction at the close.
func NewBuilder(sentiment SentimentProvider, pred predictor.Predictor) *Builder {
	return &Builder{
		RSIPeriod:  14,
		ATRPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		Sentiment:  sentiment,
		Predictor:  pred,
	}
}

// Warmup is the number of leading candles consumed before the first
// snapshot, the maximum of the indicator warm-up requirements.
func (b *Builder) Warmup() int {
	warmup := b.RSIPeriod
	if b.ATRPeriod > warmup {
		warmup = b.ATRPeriod
	}
	if m := indicator.MACDWarmup(b.MACDFast, b.MACDSlow, b.MACDSignal); m > warmup {
		warmup = m
	}
	return warmup
}

// Snapshots assembles one snapshot per candle after warmup. The
// indicator values are causal filters over the close/high/low series,
// so computing them once over the full series gives each step exactly
// the value it would see from its own prefix.
func (b *Builder) Snapshots(ctx context.Context, candles []core.Candle) ([]core.Snapshot, error) {
	warmup := b.Warmup()
	if len(candles) <= warmup {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("need more than %d candles for indicator warmup, have %d", warmup, len(candles)))
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, candle := range candles {
		if !candle.IsValid() {
			return nil, core.WrapError(core.ErrInvalidSnapshot, fmt.Errorf("candle index %d is malformed", i))
		}
		if i > 0 && !candle.Time.After(candles[i-1].Time) {
			return nil, core.WrapError(core.ErrInvalidSnapshot,
				fmt.Errorf("candle index %d: timestamps not strictly ascending", i))
		}
		closes[i] = candle.Close
		highs[i] = candle.High
		lows[i] = candle.Low
	}

	rsi := indicator.RSI(closes, b.RSIPeriod)
	atr := indicator.ATR(highs, lows, closes, b.ATRPeriod)
	_, _, histogram := indicator.MACD(closes, b.MACDFast, b.MACDSlow, b.MACDSignal)
	macdWarmup := indicator.MACDWarmup(b.MACDFast, b.MACDSlow, b.MACDSignal)

	snapshots := make([]core.Snapshot, 0, len(candles)-warmup)
	for i := warmup; i < len(candles); i++ {
		candle := candles[i]

		sentiment := float64(neutralSentiment)
		if b.Sentiment != nil {
			v, err := b.Sentiment.Index(ctx, candle.Time)
			if err != nil {
				return nil, fmt.Errorf("sentiment at %s: %w", candle.Time, err)
			}
			sentiment = v
		}

		prediction := core.NoPrediction(candle.Close)
		if b.Predictor != nil {
			prediction = b.Predictor.Predict(candles[:i+1])
		}

		snapshots = append(snapshots, core.Snapshot{
			Time:                candle.Time,
			Price:               candle.Close,
			RSI:                 rsi[i-b.RSIPeriod],
			MACDHistogram:       histogram[i-macdWarmup],
			ATR:                 atr[i-b.ATRPeriod],
			FearGreed:           sentiment,
			PredictedDirection:  prediction.Direction,
			PredictedConfidence: prediction.Confidence,
			PredictedPrice:      prediction.Price,
		})
	}

	return snapshots, nil
}
