package ledger_test

import (
	"errors"
	"testing"
	"time"

	"ballast/internal/core"
	"ballast/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapAt(price float64) core.Snapshot {
	return core.Snapshot{
		Time:               time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Price:              price,
		RSI:                50,
		ATR:                price * 0.02,
		FearGreed:          50,
		PredictedDirection: core.DirectionNone,
		PredictedPrice:     price,
	}
}

func TestApply_Buy(t *testing.T) {
	l := ledger.New(10000)

	tr, err := l.Apply(core.Decision{
		Action:   core.ActionBuy,
		Tag:      core.TagDCAEntry,
		Notional: 1000,
	}, snapAt(40000))

	require.NoError(t, err)
	require.NotNil(t, tr)

	p := l.Portfolio()
	assert.Equal(t, 9000.0, p.Cash)
	assert.InDelta(t, 0.025, p.AssetQty, 1e-12)
	assert.InDelta(t, 40000.0, p.EntryPrice, 1e-9)

	assert.Equal(t, core.ActionBuy, tr.Action)
	assert.Equal(t, core.TagDCAEntry, tr.Tag)
	assert.InDelta(t, 0.025, tr.Quantity, 1e-12)
	assert.Equal(t, 9000.0, tr.ResultingCash)
}

func TestApply_BuyWeightedEntry(t *testing.T) {
	// Two equal-size buys at 50000 and 40000 average to 45000.
	l := ledger.New(10000)

	_, err := l.Apply(core.Decision{Action: core.ActionBuy, Tag: core.TagDCAEntry, Notional: 5000}, snapAt(50000))
	require.NoError(t, err)
	_, err = l.Apply(core.Decision{Action: core.ActionBuy, Tag: core.TagDCAEntry, Notional: 4000}, snapAt(40000))
	require.NoError(t, err)

	p := l.Portfolio()
	assert.InDelta(t, 0.1+0.1, p.AssetQty, 1e-12)
	assert.InDelta(t, 45000.0, p.EntryPrice, 1e-9)
	assert.Equal(t, 1000.0, p.Cash)
}

func TestApply_BuyInsufficientCash(t *testing.T) {
	l := ledger.New(500)
	before := *l.Portfolio()

	tr, err := l.Apply(core.Decision{Action: core.ActionBuy, Tag: core.TagDCAEntry, Notional: 1000}, snapAt(40000))

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInsufficientCash))
	assert.Nil(t, tr)
	// Nothing may change on failure.
	assert.Equal(t, before, *l.Portfolio())
	assert.Empty(t, l.Trades())
}

func TestApply_SellAll(t *testing.T) {
	// Stop-loss exit: holding 0.1 bought at 50000, sold at 44000.
	l := ledger.NewWithPortfolio(&core.Portfolio{
		Cash: 5000, AssetQty: 0.1, EntryPrice: 50000, PeakValue: 10000,
	})

	tr, err := l.Apply(core.Decision{
		Action:   core.ActionSellAll,
		Tag:      core.TagStopLoss,
		Notional: 0.1,
		Fraction: 1,
	}, snapAt(44000))

	require.NoError(t, err)
	require.NotNil(t, tr)

	p := l.Portfolio()
	assert.Equal(t, 0.0, p.AssetQty)
	assert.InDelta(t, 5000+4400, p.Cash, 1e-9)
	assert.Equal(t, 0.0, p.EntryPrice, "entry price is undefined after a full close")

	assert.InDelta(t, (44000.0-50000.0)*0.1, tr.RealizedPnL, 1e-9)
	assert.Equal(t, core.TagStopLoss, tr.Tag)
}

func TestApply_SellPartialKeepsEntry(t *testing.T) {
	l := ledger.NewWithPortfolio(&core.Portfolio{
		Cash: 1000, AssetQty: 0.2, EntryPrice: 40000, PeakValue: 10000,
	})

	tr, err := l.Apply(core.Decision{
		Action:   core.ActionSellPartial,
		Tag:      core.TagTakeProfitHalf,
		Notional: 0.1,
		Fraction: 0.5,
	}, snapAt(44800))

	require.NoError(t, err)
	p := l.Portfolio()
	assert.InDelta(t, 0.1, p.AssetQty, 1e-12)
	assert.Equal(t, 40000.0, p.EntryPrice, "partial sells must not move the weighted entry")
	assert.InDelta(t, 1000+0.1*44800, p.Cash, 1e-9)
	assert.InDelta(t, (44800.0-40000.0)*0.1, tr.RealizedPnL, 1e-9)
}

func TestApply_SellInsufficientAsset(t *testing.T) {
	l := ledger.NewWithPortfolio(&core.Portfolio{
		Cash: 1000, AssetQty: 0.1, EntryPrice: 40000, PeakValue: 10000,
	})
	before := *l.Portfolio()

	// A fraction above 1 asks for more than is held.
	tr, err := l.Apply(core.Decision{
		Action:   core.ActionSellPartial,
		Tag:      core.TagTakeProfitHalf,
		Fraction: 2,
	}, snapAt(44000))

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInsufficientAsset))
	assert.Nil(t, tr)
	assert.Equal(t, before, *l.Portfolio())
}

func TestApply_SellWithNoPosition(t *testing.T) {
	l := ledger.New(10000)

	_, err := l.Apply(core.Decision{Action: core.ActionSellAll, Tag: core.TagStopLoss, Fraction: 1}, snapAt(40000))

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInsufficientAsset))
}

func TestApply_HoldReturnsNothing(t *testing.T) {
	l := ledger.New(10000)

	tr, err := l.Apply(core.Hold(core.TagNoSignal, "quiet"), snapAt(40000))

	require.NoError(t, err)
	assert.Nil(t, tr)
	assert.Empty(t, l.Trades())
}

func TestApply_PeakValueTracksHolds(t *testing.T) {
	l := ledger.New(10000)

	_, err := l.Apply(core.Decision{Action: core.ActionBuy, Tag: core.TagDCAEntry, Notional: 5000}, snapAt(40000))
	require.NoError(t, err)
	assert.Equal(t, 10000.0, l.Portfolio().PeakValue)

	// Price doubles while holding: the high-water mark follows.
	_, err = l.Apply(core.Hold(core.TagNoSignal, "quiet"), snapAt(80000))
	require.NoError(t, err)
	assert.InDelta(t, 5000+0.125*80000, l.Portfolio().PeakValue, 1e-9)

	// A later drop never lowers it.
	_, err = l.Apply(core.Hold(core.TagNoSignal, "quiet"), snapAt(30000))
	require.NoError(t, err)
	assert.InDelta(t, 15000, l.Portfolio().PeakValue, 1e-9)
}

func TestApply_InvariantsAcrossSequence(t *testing.T) {
	l := ledger.New(10000)

	decisions := []struct {
		d    core.Decision
		snap core.Snapshot
	}{
		{core.Decision{Action: core.ActionBuy, Tag: core.TagDCAEntry, Notional: 1000}, snapAt(40000)},
		{core.Decision{Action: core.ActionBuy, Tag: core.TagSwingEntry, Notional: 900}, snapAt(38000)},
		{core.Hold(core.TagNoSignal, "quiet"), snapAt(39000)},
		{core.Decision{Action: core.ActionSellPartial, Tag: core.TagTakeProfitHalf, Fraction: 0.5}, snapAt(45000)},
		{core.Decision{Action: core.ActionBuy, Tag: core.TagDCAEntry, Notional: 800}, snapAt(42000)},
		{core.Decision{Action: core.ActionSellAll, Tag: core.TagTakeProfitFull, Fraction: 1}, snapAt(50000)},
	}

	for i, step := range decisions {
		_, err := l.Apply(step.d, step.snap)
		require.NoError(t, err, "step %d", i)

		p := l.Portfolio()
		assert.GreaterOrEqual(t, p.Cash, 0.0, "step %d cash", i)
		assert.GreaterOrEqual(t, p.AssetQty, 0.0, "step %d quantity", i)
		// Total value always decomposes into cash plus position.
		assert.InDelta(t, p.Cash+p.AssetQty*step.snap.Price, p.Value(step.snap.Price), 1e-9, "step %d value", i)
	}

	assert.Len(t, l.Trades(), 5)
	assert.False(t, l.Portfolio().HasPosition())
}

func TestApply_UnknownAction(t *testing.T) {
	l := ledger.New(10000)
	_, err := l.Apply(core.Decision{Action: "SHORT"}, snapAt(40000))
	require.Error(t, err)
}
