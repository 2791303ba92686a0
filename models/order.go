package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide represents the side of an order (bid or ask)
type OrderSide string

const (
	OrderSideBid OrderSide = "bid"
	OrderSideAsk OrderSide = "ask"
)

// OrderKind represents the kind of order (limit or market)
type OrderKind string

const (
	OrderKindLimit  OrderKind = "limit"
	OrderKindMarket OrderKind = "market"
)

// OrderStatus represents the current status of an order
type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusRejected        OrderStatus = "rejected"
)

// Order represents a single order in a currency-pair book.
//
// ID and Sequence are assigned by the owning OrderBook when the order is
// processed: IDs are monotonically increasing per book and Sequence is the
// FIFO tie-break within a price level. Price is ignored for market orders.
type Order struct {
	ID             uint64          `json:"order_id"`
	TraderID       string          `json:"trader_id"`
	Pair           string          `json:"pair"`
	Side           OrderSide       `json:"side"`
	Kind           OrderKind       `json:"kind"`
	Price          decimal.Decimal `json:"price"`
	Quantity       decimal.Decimal `json:"quantity"`
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
	Sequence       uint64          `json:"-"`
	Status         OrderStatus     `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewOrder creates a new Order instance with default values
func NewOrder(traderID, pair string, side OrderSide, kind OrderKind, price, quantity decimal.Decimal) *Order {
	now := time.Now()
	return &Order{
		TraderID:       traderID,
		Pair:           pair,
		Side:           side,
		Kind:           kind,
		Price:          price,
		Quantity:       quantity,
		FilledQuantity: decimal.Zero,
		Status:         OrderStatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsValid validates the order fields
func (o *Order) IsValid() bool {
	if o.TraderID == "" || o.Pair == "" {
		return false
	}

	if o.Side != OrderSideBid && o.Side != OrderSideAsk {
		return false
	}

	if o.Kind != OrderKindLimit && o.Kind != OrderKindMarket {
		return false
	}

	// Quantity must be strictly positive
	if o.Quantity.LessThanOrEqual(decimal.Zero) {
		return false
	}

	// Limit orders require a positive price; market orders carry none
	if o.Kind == OrderKindLimit && o.Price.LessThanOrEqual(decimal.Zero) {
		return false
	}

	if o.FilledQuantity.GreaterThan(o.Quantity) {
		return false
	}

	return true
}

// RemainingQuantity returns the unfilled quantity of the order
func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// IsFilled checks if the order is completely filled
func (o *Order) IsFilled() bool {
	return o.FilledQuantity.Equal(o.Quantity)
}

// IsPartiallyFilled checks if the order is partially filled
func (o *Order) IsPartiallyFilled() bool {
	return o.FilledQuantity.GreaterThan(decimal.Zero) && o.FilledQuantity.LessThan(o.Quantity)
}

// Fill updates the order with a fill amount
func (o *Order) Fill(quantity decimal.Decimal) {
	o.FilledQuantity = o.FilledQuantity.Add(quantity)
	o.UpdatedAt = time.Now()

	if o.IsFilled() {
		o.Status = OrderStatusFilled
	} else if o.IsPartiallyFilled() {
		o.Status = OrderStatusPartiallyFilled
	}
}

// Reject marks the order as rejected
func (o *Order) Reject() {
	o.Status = OrderStatusRejected
	o.UpdatedAt = time.Now()
}
