// Package ledger owns the portfolio state of one simulation run and
// applies decisions as atomic state transitions.
package ledger

import (
	"fmt"

	"ballast/internal/core"
)

// Ledger applies decisions against the portfolio it owns and keeps the
// append-only trade history. One ledger serves exactly one run; it is
// not safe for concurrent use and is never shared across runs.
type Ledger struct {
	portfolio *core.Portfolio
	trades    []core.Trade
}

// New creates a ledger owning a fresh portfolio with the given capital.
func New(initialCapital float64) *Ledger {
	return &Ledger{portfolio: core.NewPortfolio(initialCapital)}
}

// NewWithPortfolio creates a ledger that takes ownership of an existing
// portfolio.
func NewWithPortfolio(p *core.Portfolio) *Ledger {
	return &Ledger{portfolio: p}
}

// Portfolio returns the portfolio owned by this ledger.
func (l *Ledger) Portfolio() *core.Portfolio {
	return l.portfolio
}

// Trades returns the trade history in append order.
func (l *Ledger) Trades() []core.Trade {
	return l.trades
}

// Apply executes one decision at the snapshot's price. It returns the
// resulting trade, or nil for HOLD. Either the full mutation applies or
// none of it does; on error the portfolio is untouched.
func (l *Ledger) Apply(d core.Decision, snap core.Snapshot) (*core.Trade, error) {
	switch d.Action {
	case core.ActionHold:
		l.markToMarket(snap.Price)
		return nil, nil
	case core.ActionBuy:
		return l.buy(d, snap)
	case core.ActionSellAll, core.ActionSellPartial:
		return l.sell(d, snap)
	default:
		return nil, fmt.Errorf("unknown action %q", d.Action)
	}
}

func (l *Ledger) buy(d core.Decision, snap core.Snapshot) (*core.Trade, error) {
	p := l.portfolio

	if d.Notional <= 0 {
		return nil, fmt.Errorf("buy notional %.8f not positive", d.Notional)
	}
	if d.Notional > p.Cash {
		return nil, core.WrapError(core.ErrInsufficientCash,
			fmt.Errorf("notional %.2f exceeds cash %.2f", d.Notional, p.Cash))
	}

	qty := d.Notional / snap.Price
	oldQty := p.AssetQty
	oldEntry := p.EntryPrice
	newQty := oldQty + qty

	p.Cash -= d.Notional
	p.AssetQty = newQty
	// Size-weighted average entry across all open buys.
	p.EntryPrice = (oldQty*oldEntry + qty*snap.Price) / newQty
	l.markToMarket(snap.Price)

	tr := core.Trade{
		Time:          snap.Time,
		Action:        core.ActionBuy,
		Price:         snap.Price,
		Quantity:      qty,
		Tag:           d.Tag,
		ResultingCash: p.Cash,
		ResultingQty:  p.AssetQty,
	}
	l.trades = append(l.trades, tr)
	return &tr, nil
}

func (l *Ledger) sell(d core.Decision, snap core.Snapshot) (*core.Trade, error) {
	p := l.portfolio

	var qty float64
	if d.Action == core.ActionSellAll {
		qty = p.AssetQty
	} else {
		qty = d.Fraction * p.AssetQty
	}
	if qty <= 0 || qty > p.AssetQty {
		return nil, core.WrapError(core.ErrInsufficientAsset,
			fmt.Errorf("sell quantity %.8f against holdings %.8f", qty, p.AssetQty))
	}

	realized := (snap.Price - p.EntryPrice) * qty

	p.Cash += qty * snap.Price
	p.AssetQty -= qty
	// The weighted entry is undefined once the position is closed;
	// partial sells leave it unchanged.
	if p.AssetQty == 0 {
		p.EntryPrice = 0
	}
	l.markToMarket(snap.Price)

	tr := core.Trade{
		Time:          snap.Time,
		Action:        d.Action,
		Price:         snap.Price,
		Quantity:      qty,
		Tag:           d.Tag,
		RealizedPnL:   realized,
		ResultingCash: p.Cash,
		ResultingQty:  p.AssetQty,
	}
	l.trades = append(l.trades, tr)
	return &tr, nil
}

// markToMarket advances the high-water mark. Called on every apply so
// the peak follows price moves on HOLD steps too.
func (l *Ledger) markToMarket(price float64) {
	if v := l.portfolio.Value(price); v > l.portfolio.PeakValue {
		l.portfolio.PeakValue = v
	}
}
