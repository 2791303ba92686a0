package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shobande-femi/OrderBook/models"
)

func limitBid(trader string, price, qty float64) *models.Order {
	return models.NewOrder(trader, "EUR-to-USD", models.OrderSideBid, models.OrderKindLimit,
		decimal.NewFromFloat(price), decimal.NewFromFloat(qty))
}

func limitAsk(trader string, price, qty float64) *models.Order {
	return models.NewOrder(trader, "EUR-to-USD", models.OrderSideAsk, models.OrderKindLimit,
		decimal.NewFromFloat(price), decimal.NewFromFloat(qty))
}

func marketAsk(trader string, qty float64) *models.Order {
	return models.NewOrder(trader, "EUR-to-USD", models.OrderSideAsk, models.OrderKindMarket,
		decimal.Zero, decimal.NewFromFloat(qty))
}

func TestRestingLimitOrderDoesNotTrade(t *testing.T) {
	ob := NewOrderBook("EUR-to-USD")

	trades, resting := ob.ProcessOrder(limitBid("alice", 1.25, 100))

	assert.Empty(t, trades)
	require.NotNil(t, resting)
	assert.Equal(t, uint64(1), resting.ID)
	assert.Equal(t, models.OrderStatusOpen, resting.Status)
	assert.Equal(t, 1, ob.Size())
	assert.Same(t, resting, ob.GetOrder(resting.ID))
}

func TestMarketOrderSweepsBestPriceFirst(t *testing.T) {
	ob := NewOrderBook("EUR-to-USD")

	ob.ProcessOrder(limitBid("alice", 1.20, 50))
	ob.ProcessOrder(limitBid("bob", 1.30, 50))
	ob.ProcessOrder(limitBid("carol", 1.25, 50))

	trades, resting := ob.ProcessOrder(marketAsk("dave", 120))

	assert.Nil(t, resting)
	require.Len(t, trades, 3)

	// highest bid first
	assert.Equal(t, "bob", trades[0].MakerTraderID)
	assert.True(t, trades[0].Price.Equal(decimal.NewFromFloat(1.30)))
	assert.True(t, trades[0].Quantity.Equal(decimal.NewFromInt(50)))

	assert.Equal(t, "carol", trades[1].MakerTraderID)
	assert.True(t, trades[1].Price.Equal(decimal.NewFromFloat(1.25)))

	assert.Equal(t, "alice", trades[2].MakerTraderID)
	assert.True(t, trades[2].Price.Equal(decimal.NewFromFloat(1.20)))
	assert.True(t, trades[2].Quantity.Equal(decimal.NewFromInt(20)))

	// alice keeps her unfilled remainder on the book
	assert.Equal(t, 1, ob.Size())
	best := ob.GetBestBid()
	require.NotNil(t, best)
	assert.True(t, best.Price.Equal(decimal.NewFromFloat(1.20)))
	assert.True(t, best.Volume.Equal(decimal.NewFromInt(30)))
}

func TestTimePriorityWithinLevel(t *testing.T) {
	ob := NewOrderBook("EUR-to-USD")

	ob.ProcessOrder(limitBid("first", 1.25, 30))
	ob.ProcessOrder(limitBid("second", 1.25, 30))
	ob.ProcessOrder(limitBid("third", 1.25, 30))

	trades, _ := ob.ProcessOrder(marketAsk("taker", 50))

	require.Len(t, trades, 2)
	assert.Equal(t, "first", trades[0].MakerTraderID)
	assert.True(t, trades[0].Quantity.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, "second", trades[1].MakerTraderID)
	assert.True(t, trades[1].Quantity.Equal(decimal.NewFromInt(20)))

	// second keeps priority over third with its remainder
	trades, _ = ob.ProcessOrder(marketAsk("taker2", 10))
	require.Len(t, trades, 1)
	assert.Equal(t, "second", trades[0].MakerTraderID)
}

func TestMarketOrderNeverRests(t *testing.T) {
	ob := NewOrderBook("EUR-to-USD")

	trades, resting := ob.ProcessOrder(marketAsk("dave", 100))

	assert.Empty(t, trades)
	assert.Nil(t, resting)
	assert.Equal(t, 0, ob.Size())
}

func TestMarketOrderPartialFillLeavesRemainderUnrested(t *testing.T) {
	ob := NewOrderBook("EUR-to-USD")
	ob.ProcessOrder(limitBid("alice", 1.25, 40))

	taker := marketAsk("dave", 100)
	trades, resting := ob.ProcessOrder(taker)

	require.Len(t, trades, 1)
	assert.Nil(t, resting)
	assert.True(t, taker.RemainingQuantity().Equal(decimal.NewFromInt(60)))
	assert.Equal(t, 0, ob.Size())
}

func TestLimitAskDoesNotCrossWorsePricedBids(t *testing.T) {
	ob := NewOrderBook("EUR-to-USD")
	ob.ProcessOrder(limitBid("alice", 1.20, 50))

	trades, resting := ob.ProcessOrder(limitAsk("bob", 1.30, 50))

	assert.Empty(t, trades)
	require.NotNil(t, resting)
	assert.Equal(t, 2, ob.Size())

	// no crossed book: best bid strictly below best ask
	bid := ob.GetBestBidPrice()
	ask := ob.GetBestAskPrice()
	require.NotNil(t, bid)
	require.NotNil(t, ask)
	assert.True(t, bid.LessThan(*ask))
}

func TestLimitAskCrossesAtMakerPrice(t *testing.T) {
	ob := NewOrderBook("EUR-to-USD")
	ob.ProcessOrder(limitBid("alice", 1.30, 50))

	trades, resting := ob.ProcessOrder(limitAsk("bob", 1.25, 30))

	require.Len(t, trades, 1)
	assert.Nil(t, resting)
	// execution at the resting maker's price, not the taker's limit
	assert.True(t, trades[0].Price.Equal(decimal.NewFromFloat(1.30)))
	assert.True(t, trades[0].Quantity.Equal(decimal.NewFromInt(30)))
}

func TestLimitRemainderRestsAfterSweep(t *testing.T) {
	ob := NewOrderBook("EUR-to-USD")
	ob.ProcessOrder(limitBid("alice", 1.30, 20))

	trades, resting := ob.ProcessOrder(limitAsk("bob", 1.25, 50))

	require.Len(t, trades, 1)
	require.NotNil(t, resting)
	assert.True(t, resting.RemainingQuantity().Equal(decimal.NewFromInt(30)))
	assert.Equal(t, models.OrderStatusPartiallyFilled, resting.Status)

	best := ob.GetBestAsk()
	require.NotNil(t, best)
	assert.True(t, best.Price.Equal(decimal.NewFromFloat(1.25)))
}

func TestQuantityConservation(t *testing.T) {
	ob := NewOrderBook("EUR-to-USD")
	ob.ProcessOrder(limitBid("alice", 1.25, 35))
	ob.ProcessOrder(limitBid("bob", 1.20, 45))

	taker := marketAsk("carol", 60)
	trades, _ := ob.ProcessOrder(taker)

	total := decimal.Zero
	for _, trade := range trades {
		total = total.Add(trade.Quantity)
	}
	assert.True(t, total.Add(taker.RemainingQuantity()).Equal(decimal.NewFromInt(60)))
	assert.True(t, taker.FilledQuantity.Equal(total))
}

func TestInvalidOrderRejected(t *testing.T) {
	ob := NewOrderBook("EUR-to-USD")

	order := limitBid("alice", 0, 100) // limit without price
	trades, resting := ob.ProcessOrder(order)

	assert.Empty(t, trades)
	assert.Nil(t, resting)
	assert.Equal(t, models.OrderStatusRejected, order.Status)
	assert.Equal(t, 0, ob.Size())
}

func TestOrderIDsAreMonotonic(t *testing.T) {
	ob := NewOrderBook("EUR-to-USD")

	_, first := ob.ProcessOrder(limitBid("alice", 1.25, 10))
	_, second := ob.ProcessOrder(limitBid("bob", 1.26, 10))

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Greater(t, second.ID, first.ID)
}

func TestEmptyLevelsRemovedAfterSweep(t *testing.T) {
	ob := NewOrderBook("EUR-to-USD")
	ob.ProcessOrder(limitBid("alice", 1.25, 10))
	ob.ProcessOrder(limitBid("bob", 1.30, 10))

	ob.ProcessOrder(marketAsk("carol", 20))

	assert.Equal(t, 0, ob.Bids.Len())
	assert.Equal(t, 0, ob.Size())
	assert.Nil(t, ob.GetOrder(1))
}

func TestSnapshotFormatting(t *testing.T) {
	ob := NewOrderBook("EUR-to-USD")
	ob.ProcessOrder(limitBid("alice", 1.25, 100))
	ob.ProcessOrder(limitBid("bob", 1.25, 50))
	ob.ProcessOrder(limitAsk("carol", 1.30, 25))

	snapshot := ob.Snapshot()

	require.Contains(t, snapshot.Bids, "1.2500")
	assert.Len(t, snapshot.Bids["1.2500"], 2)
	require.Contains(t, snapshot.Asks, "1.3000")

	aliceView, ok := snapshot.Bids["1.2500"]["1"]
	require.True(t, ok)
	assert.Equal(t, "alice", aliceView.TraderID)
	assert.True(t, aliceView.Quantity.Equal(decimal.NewFromInt(100)))
	assert.True(t, aliceView.Price.Equal(decimal.NewFromFloat(1.25)))
}

func TestSnapshotIsStable(t *testing.T) {
	ob := NewOrderBook("EUR-to-USD")
	ob.ProcessOrder(limitBid("alice", 1.25, 100))
	ob.ProcessOrder(limitAsk("bob", 1.40, 60))

	first := ob.Snapshot()
	second := ob.Snapshot()
	assert.Equal(t, first, second)
}

func TestSnapshotReflectsPartialFills(t *testing.T) {
	ob := NewOrderBook("EUR-to-USD")
	ob.ProcessOrder(limitBid("alice", 1.25, 100))
	ob.ProcessOrder(marketAsk("bob", 40))

	snapshot := ob.Snapshot()
	require.Contains(t, snapshot.Bids, "1.2500")

	view := snapshot.Bids["1.2500"]["1"]
	assert.True(t, view.Quantity.Equal(decimal.NewFromInt(60)))
}
