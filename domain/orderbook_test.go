package domain_test

import (
	"testing"

	"github.com/holowatch/marketpulse/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSymbol(t *testing.T, raw string) domain.Symbol {
	s, err := domain.NewSymbol(raw)
	require.NoError(t, err)
	return s
}

func TestOrderBook_ApplyLevel_TombstoneRemoves(t *testing.T) {
	ob := domain.NewOrderBook(mustSymbol(t, "btcusdt"))

	ob.ApplyBidLevel(100, 1)
	ob.ApplyBidLevel(100, 0) // tombstone

	snap := ob.Snapshot(5)
	assert.Empty(t, snap.TopBids)
}

func TestOrderBook_ApplyLevel_DropsInvalid(t *testing.T) {
	ob := domain.NewOrderBook(mustSymbol(t, "btcusdt"))

	ob.ApplyBidLevel(-5, 1)  // negative price
	ob.ApplyBidLevel(5, -1)  // negative qty
	ob.ApplyBidLevel(0, 1)   // zero price

	snap := ob.Snapshot(5)
	assert.Empty(t, snap.TopBids)
}

func TestOrderBook_ApplyDepthDelta_NoZeroQtyEntriesSurvive(t *testing.T) {
	ob := domain.NewOrderBook(mustSymbol(t, "btcusdt"))

	ob.ApplyDepthDelta(domain.NewDepthUpdate(1, 1, []domain.PriceLevel{
		{Price: 100, Qty: 1}, {Price: 99, Qty: 2},
	}, nil))

	ob.ApplyDepthDelta(domain.NewDepthUpdate(2, 2, []domain.PriceLevel{
		{Price: 100, Qty: 0},
	}, nil))

	snap := ob.Snapshot(10)
	for _, lvl := range snap.TopBids {
		assert.NotEqual(t, 0.0, lvl.Qty)
	}
	assert.Len(t, snap.TopBids, 1)
	assert.Equal(t, 99.0, snap.TopBids[0].Price)
}

func TestOrderBook_Snapshot_SortOrderAndTopN(t *testing.T) {
	ob := domain.NewOrderBook(mustSymbol(t, "btcusdt"))

	ob.ApplyDepthDelta(domain.NewDepthUpdate(1, 1,
		[]domain.PriceLevel{{Price: 90, Qty: 1}, {Price: 100, Qty: 1}, {Price: 95, Qty: 1}},
		[]domain.PriceLevel{{Price: 110, Qty: 1}, {Price: 105, Qty: 1}, {Price: 120, Qty: 1}},
	))

	snap := ob.Snapshot(2)

	require.Len(t, snap.TopBids, 2)
	assert.Equal(t, 100.0, snap.TopBids[0].Price)
	assert.Equal(t, 95.0, snap.TopBids[1].Price)
	assert.Greater(t, snap.TopBids[0].Price, snap.TopBids[1].Price)

	require.Len(t, snap.TopAsks, 2)
	assert.Equal(t, 105.0, snap.TopAsks[0].Price)
	assert.Equal(t, 110.0, snap.TopAsks[1].Price)
	assert.Less(t, snap.TopAsks[0].Price, snap.TopAsks[1].Price)

	assert.Equal(t, 100.0, snap.BestBidPx)
	assert.Equal(t, 105.0, snap.BestAskPx)
}

func TestOrderBook_Snapshot_TopNCappedBySize(t *testing.T) {
	ob := domain.NewOrderBook(mustSymbol(t, "btcusdt"))
	ob.ApplyBidLevel(100, 1)

	snap := ob.Snapshot(5)
	assert.Len(t, snap.TopBids, 1)
}

func TestOrderBook_IsSane(t *testing.T) {
	ob := domain.NewOrderBook(mustSymbol(t, "btcusdt"))
	assert.True(t, ob.IsSane(), "empty book is sane")

	ob.ApplyBidLevel(100, 1)
	assert.True(t, ob.IsSane(), "one-sided book is sane")

	ob.ApplyAskLevel(101, 1)
	assert.True(t, ob.IsSane())

	ob.ApplyAskLevel(99, 1) // crosses: bestBid=100 >= bestAsk=99
	assert.False(t, ob.IsSane())
}

func TestOrderBook_ApplyLevel_OverwritesExistingPrice(t *testing.T) {
	ob := domain.NewOrderBook(mustSymbol(t, "btcusdt"))
	ob.ApplyAskLevel(100, 1)
	ob.ApplyAskLevel(100, 5)

	snap := ob.Snapshot(5)
	require.Len(t, snap.TopAsks, 1)
	assert.Equal(t, 5.0, snap.TopAsks[0].Qty)
}
