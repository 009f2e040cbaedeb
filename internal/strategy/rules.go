package strategy

import (
	"fmt"

	"ballast/internal/core"
)

const (
	// Half take-profit triggers above this position gain.
	halfTakeProfitGain = 0.10
	// Swing entries need the predicted price this far above spot.
	swingUpside = 1.03
	// Swing entries need at least this much predictor confidence.
	swingMinConfidence = 0.70
)

// CircuitBreaker halts trading once total value falls below the
// configured fraction of initial capital. The pause survives every
// later step until an explicit Portfolio.Resume; this is the only rule
// that writes to the portfolio.
type CircuitBreaker struct{}

func (CircuitBreaker) Name() string { return "circuit_breaker" }

func (CircuitBreaker) Evaluate(snap core.Snapshot, p *core.Portfolio, params Params) (core.Decision, bool) {
	if p.Paused {
		return core.Hold(core.TagCircuitBreaker, "trading paused by circuit breaker"), true
	}

	total := p.Value(snap.Price)
	threshold := params.CircuitBreakerRatio * params.InitialCapital
	if total < threshold {
		p.Paused = true
		return core.Hold(core.TagCircuitBreaker,
			fmt.Sprintf("total value %.2f fell below breaker threshold %.2f, trading paused", total, threshold)), true
	}

	return core.Decision{}, false
}

// StopLoss exits the whole position when price drops more than
// ATRStopMultiplier true ranges below the weighted entry price.
type StopLoss struct{}

func (StopLoss) Name() string { return "stop_loss" }

func (StopLoss) Evaluate(snap core.Snapshot, p *core.Portfolio, params Params) (core.Decision, bool) {
	if !p.HasPosition() {
		return core.Decision{}, false
	}

	stop := p.EntryPrice - params.ATRStopMultiplier*snap.ATR
	if snap.Price < stop {
		return core.Decision{
			Action:   core.ActionSellAll,
			Tag:      core.TagStopLoss,
			Reason:   fmt.Sprintf("price %.2f below stop %.2f (entry %.2f - %.1fx ATR %.2f)", snap.Price, stop, p.EntryPrice, params.ATRStopMultiplier, snap.ATR),
			Notional: p.AssetQty,
			Fraction: 1,
		}, true
	}

	return core.Decision{}, false
}

// TakeProfit scales out of a winning position. Three sub-cases in
// order: full exit on a large gain into strength, half exit on a
// moderate gain at overbought RSI, and a full emergency exit when an
// overextended RSI meets fading momentum and a bearish prediction.
// The RSI gates sit in a band around RSIOverbought: 5 points under it
// for the full exit, 5 points over it for the emergency exit.
type TakeProfit struct{}

func (TakeProfit) Name() string { return "take_profit" }

func (TakeProfit) Evaluate(snap core.Snapshot, p *core.Portfolio, params Params) (core.Decision, bool) {
	if !p.HasPosition() {
		return core.Decision{}, false
	}

	gain := (snap.Price - p.EntryPrice) / p.EntryPrice

	switch {
	case gain > params.TakeProfitThreshold && snap.RSI > params.RSIOverbought-5:
		return core.Decision{
			Action:   core.ActionSellAll,
			Tag:      core.TagTakeProfitFull,
			Reason:   fmt.Sprintf("gain %.1f%% above target %.1f%% with RSI %.1f", gain*100, params.TakeProfitThreshold*100, snap.RSI),
			Notional: p.AssetQty,
			Fraction: 1,
		}, true

	case gain > halfTakeProfitGain && snap.RSI > params.RSIOverbought:
		return core.Decision{
			Action:   core.ActionSellPartial,
			Tag:      core.TagTakeProfitHalf,
			Reason:   fmt.Sprintf("gain %.1f%% with RSI %.1f overbought, scaling out half", gain*100, snap.RSI),
			Notional: p.AssetQty * 0.5,
			Fraction: 0.5,
		}, true

	case snap.RSI > params.RSIOverbought+5 && snap.MACDHistogram < 0 && snap.PredictedDirection == core.DirectionDown:
		return core.Decision{
			Action:   core.ActionSellAll,
			Tag:      core.TagEmergencyExit,
			Reason:   fmt.Sprintf("RSI %.1f overextended, MACD histogram %.4f fading, predicted DOWN", snap.RSI, snap.MACDHistogram),
			Notional: p.AssetQty,
			Fraction: 1,
		}, true
	}

	return core.Decision{}, false
}

// SwingEntry is the high-conviction buy: every bullish gate must hold
// at once. Sized as a fraction of available cash.
type SwingEntry struct{}

func (SwingEntry) Name() string { return "swing_entry" }

func (SwingEntry) Evaluate(snap core.Snapshot, p *core.Portfolio, params Params) (core.Decision, bool) {
	if p.Cash <= 0 {
		return core.Decision{}, false
	}

	if snap.RSI < params.RSIOversold &&
		snap.MACDHistogram > 0 &&
		snap.PredictedPrice > snap.Price*swingUpside &&
		snap.PredictedConfidence > swingMinConfidence {
		notional := params.SwingBuyFraction * p.Cash
		return core.Decision{
			Action:   core.ActionBuy,
			Tag:      core.TagSwingEntry,
			Reason:   fmt.Sprintf("RSI %.1f oversold, MACD positive, predicted %.2f (+%.1f%%) at %.0f%% confidence", snap.RSI, snap.PredictedPrice, (snap.PredictedPrice/snap.Price-1)*100, snap.PredictedConfidence*100),
			Notional: notional,
		}, true
	}

	return core.Decision{}, false
}

// DCAEntry is the low-conviction accumulation buy: any single fear or
// oversold signal is enough. Sized as a fraction of available cash.
type DCAEntry struct{}

func (DCAEntry) Name() string { return "dca_entry" }

func (DCAEntry) Evaluate(snap core.Snapshot, p *core.Portfolio, params Params) (core.Decision, bool) {
	if p.Cash <= 0 {
		return core.Decision{}, false
	}

	oversold := snap.RSI < params.RSIOversold
	fearful := snap.FearGreed < params.FearGreedBuyThreshold
	if oversold || fearful {
		notional := params.DCABuyFraction * p.Cash
		var why string
		switch {
		case oversold && fearful:
			why = fmt.Sprintf("RSI %.1f oversold and fear index %.0f", snap.RSI, snap.FearGreed)
		case oversold:
			why = fmt.Sprintf("RSI %.1f oversold", snap.RSI)
		default:
			why = fmt.Sprintf("fear index %.0f below %.0f", snap.FearGreed, params.FearGreedBuyThreshold)
		}
		return core.Decision{
			Action:   core.ActionBuy,
			Tag:      core.TagDCAEntry,
			Reason:   why,
			Notional: notional,
		}, true
	}

	return core.Decision{}, false
}
