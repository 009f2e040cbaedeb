package core

import (
	"fmt"
	"time"
)

// Direction represents a predicted price direction
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
	DirectionNone Direction = "NONE"
)

// Action represents a trading action
type Action string

const (
	ActionBuy         Action = "BUY"
	ActionSellAll     Action = "SELL_ALL"
	ActionSellPartial Action = "SELL_PARTIAL"
	ActionHold        Action = "HOLD"
)

// Tag identifies the strategy rule that produced a decision
type Tag string

const (
	TagCircuitBreaker Tag = "CIRCUIT_BREAKER"
	TagStopLoss       Tag = "STOP_LOSS"
	TagTakeProfitFull Tag = "TAKE_PROFIT_FULL"
	TagTakeProfitHalf Tag = "TAKE_PROFIT_HALF"
	TagEmergencyExit  Tag = "EMERGENCY_EXIT"
	TagSwingEntry     Tag = "SWING_ENTRY"
	TagDCAEntry       Tag = "DCA_ENTRY"
	TagNoSignal       Tag = "NO_SIGNAL"
)

// Candle represents a single OHLCV bar
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// IsValid checks if the candle has usable prices
func (c Candle) IsValid() bool {
	return c.Open > 0 && c.High > 0 && c.Low > 0 && c.Close > 0 && c.High >= c.Low
}

// Prediction is the per-step output of a price predictor.
type Prediction struct {
	Direction  Direction
	Confidence float64 // 0..1
	Price      float64 // predicted next price
}

// NoPrediction returns the neutral prediction for the given price.
// It deterministically disables predictor-gated rules.
func NoPrediction(price float64) Prediction {
	return Prediction{Direction: DirectionNone, Confidence: 0, Price: price}
}

// Snapshot is one time step of market state consumed by the decision
// engine. Produced by the feed layer; the engine never mutates it.
type Snapshot struct {
	Time                time.Time
	Price               float64
	RSI                 float64 // 0..100
	MACDHistogram       float64
	ATR                 float64 // >= 0
	FearGreed           float64 // 0..100
	PredictedDirection  Direction
	PredictedConfidence float64 // 0..1
	PredictedPrice      float64 // equals Price when no predictor ran
}

// Validate reports the first range violation in the snapshot, or nil.
func (s Snapshot) Validate() error {
	switch {
	case s.Time.IsZero():
		return fmt.Errorf("zero timestamp")
	case s.Price <= 0:
		return fmt.Errorf("price %v not positive", s.Price)
	case s.RSI < 0 || s.RSI > 100:
		return fmt.Errorf("rsi %v out of range [0,100]", s.RSI)
	case s.ATR < 0:
		return fmt.Errorf("atr %v negative", s.ATR)
	case s.FearGreed < 0 || s.FearGreed > 100:
		return fmt.Errorf("fear_greed %v out of range [0,100]", s.FearGreed)
	case s.PredictedConfidence < 0 || s.PredictedConfidence > 1:
		return fmt.Errorf("predicted_confidence %v out of range [0,1]", s.PredictedConfidence)
	case s.PredictedDirection != DirectionUp && s.PredictedDirection != DirectionDown && s.PredictedDirection != DirectionNone:
		return fmt.Errorf("predicted_direction %q unknown", s.PredictedDirection)
	}
	return nil
}

// Portfolio is the mutable trading state owned by exactly one ledger.
type Portfolio struct {
	Cash       float64 `json:"cash"`
	AssetQty   float64 `json:"asset_qty"`
	EntryPrice float64 `json:"entry_price"` // size-weighted average across open buys; meaningful only while AssetQty > 0
	PeakValue  float64 `json:"peak_value"`  // high-water mark of total value, never decreases
	Paused     bool    `json:"paused"`      // set by the circuit breaker, cleared only by Resume
}

// NewPortfolio returns a portfolio holding only cash.
func NewPortfolio(initialCapital float64) *Portfolio {
	return &Portfolio{Cash: initialCapital, PeakValue: initialCapital}
}

// Value returns total portfolio value at the given price.
func (p *Portfolio) Value(price float64) float64 {
	return p.Cash + p.AssetQty*price
}

// HasPosition reports whether any asset is held.
func (p *Portfolio) HasPosition() bool {
	return p.AssetQty > 0
}

// Resume clears the circuit-breaker pause. Trading never resumes
// automatically.
func (p *Portfolio) Resume() {
	p.Paused = false
}

// Decision is the outcome of one decision-engine evaluation.
type Decision struct {
	Action   Action
	Tag      Tag
	Reason   string
	Notional float64 // cash committed on BUY, asset quantity on sells
	Fraction float64 // fraction of holdings to sell; 1 on SELL_ALL, 0 otherwise
}

// Sells reports whether the decision reduces the position.
func (d Decision) Sells() bool {
	return d.Action == ActionSellAll || d.Action == ActionSellPartial
}

// Hold returns a HOLD decision with the given tag and reason.
func Hold(tag Tag, reason string) Decision {
	return Decision{Action: ActionHold, Tag: tag, Reason: reason}
}

// Trade records one applied non-HOLD decision. Append-only; never
// mutated after the ledger returns it.
type Trade struct {
	Time          time.Time `json:"time"`
	Action        Action    `json:"action"`
	Price         float64   `json:"price"`
	Quantity      float64   `json:"quantity"`
	Tag           Tag       `json:"tag"`
	RealizedPnL   float64   `json:"realized_pnl"` // sells only, measured against the weighted entry price
	ResultingCash float64   `json:"resulting_cash"`
	ResultingQty  float64   `json:"resulting_qty"`
}

// Closing reports whether the trade reduced the position. P&L is
// attributed to closing trades only.
func (t Trade) Closing() bool {
	return t.Action == ActionSellAll || t.Action == ActionSellPartial
}

// IsWin returns true if the closing trade realized a profit
func (t Trade) IsWin() bool {
	return t.Closing() && t.RealizedPnL > 0
}

// EquityPoint is one step of the equity curve.
type EquityPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// RunRecord is the persisted summary of one finished backtest run.
type RunRecord struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	InitialCapital float64   `json:"initial_capital"`
	FinalValue     float64   `json:"final_value"`
	TotalReturn    float64   `json:"total_return"`
	Sharpe         float64   `json:"sharpe"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	WinRate        float64   `json:"win_rate"`
	Trades         int       `json:"trades"`
	ConfigDigest   string    `json:"config_digest"`
	CreatedAt      time.Time `json:"created_at"`
}

// EventType classifies events delivered through the router
type EventType string

const (
	EventTrade          EventType = "trade"
	EventReport         EventType = "report"
	EventCriteriaFailed EventType = "criteria_failed"
)

// Event is a notification payload routed to notifiers.
type Event struct {
	Type     EventType
	Symbol   string
	Tag      Tag     // strategy tag for trade events
	Notional float64 // committed amount for trade events
	Title    string
	Body     string
	Time     time.Time
}
