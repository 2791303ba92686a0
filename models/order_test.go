package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Order)
		isValid bool
	}{
		{
			name:    "valid limit bid",
			mutate:  func(o *Order) {},
			isValid: true,
		},
		{
			name: "valid market ask without price",
			mutate: func(o *Order) {
				o.Side = OrderSideAsk
				o.Kind = OrderKindMarket
				o.Price = decimal.Zero
			},
			isValid: true,
		},
		{
			name:    "missing trader",
			mutate:  func(o *Order) { o.TraderID = "" },
			isValid: false,
		},
		{
			name:    "missing pair",
			mutate:  func(o *Order) { o.Pair = "" },
			isValid: false,
		},
		{
			name:    "zero quantity",
			mutate:  func(o *Order) { o.Quantity = decimal.Zero },
			isValid: false,
		},
		{
			name:    "negative quantity",
			mutate:  func(o *Order) { o.Quantity = decimal.NewFromInt(-5) },
			isValid: false,
		},
		{
			name:    "limit order without price",
			mutate:  func(o *Order) { o.Price = decimal.Zero },
			isValid: false,
		},
		{
			name:    "unknown side",
			mutate:  func(o *Order) { o.Side = OrderSide("hold") },
			isValid: false,
		},
		{
			name:    "unknown kind",
			mutate:  func(o *Order) { o.Kind = OrderKind("stop") },
			isValid: false,
		},
		{
			name:    "overfilled",
			mutate:  func(o *Order) { o.FilledQuantity = o.Quantity.Add(decimal.NewFromInt(1)) },
			isValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := NewOrder("alice", "EUR-to-USD", OrderSideBid, OrderKindLimit,
				decimal.NewFromFloat(1.25), decimal.NewFromInt(100))
			tt.mutate(order)
			assert.Equal(t, tt.isValid, order.IsValid())
		})
	}
}

func TestOrderFillTransitions(t *testing.T) {
	order := NewOrder("alice", "EUR-to-USD", OrderSideBid, OrderKindLimit,
		decimal.NewFromFloat(1.25), decimal.NewFromInt(100))

	assert.Equal(t, OrderStatusOpen, order.Status)
	assert.True(t, order.RemainingQuantity().Equal(decimal.NewFromInt(100)))

	order.Fill(decimal.NewFromInt(40))
	assert.Equal(t, OrderStatusPartiallyFilled, order.Status)
	assert.True(t, order.IsPartiallyFilled())
	assert.True(t, order.RemainingQuantity().Equal(decimal.NewFromInt(60)))

	order.Fill(decimal.NewFromInt(60))
	assert.Equal(t, OrderStatusFilled, order.Status)
	assert.True(t, order.IsFilled())
	assert.True(t, order.RemainingQuantity().IsZero())
}

func TestOrderReject(t *testing.T) {
	order := NewOrder("bob", "EUR-to-USD", OrderSideAsk, OrderKindLimit,
		decimal.NewFromFloat(1.30), decimal.NewFromInt(10))
	order.Reject()
	assert.Equal(t, OrderStatusRejected, order.Status)
}

func TestPairKey(t *testing.T) {
	assert.Equal(t, "EUR-to-USD", PairKey("EUR", "USD"))
	assert.Equal(t, "USD-to-EUR", PairKey("USD", "EUR"))
}

func TestSnapshotKeys(t *testing.T) {
	assert.Equal(t, "1.2500", PriceKey(decimal.NewFromFloat(1.25)))
	assert.Equal(t, "0.3333", PriceKey(decimal.RequireFromString("0.33334").Round(PricePrecision)))
	assert.Equal(t, "42", OrderKey(42))
}
