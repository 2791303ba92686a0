package models

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// PricePrecision is the number of fractional digits used when a price
// crosses a presentation boundary. Internal matching arithmetic is never
// rounded.
const PricePrecision = 4

// OrderView is the external representation of a resting order
type OrderView struct {
	OrderID  uint64          `json:"order_id"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	TraderID string          `json:"trader_id"`
}

// BookSnapshot is a consistent view of one book, keyed the way the
// presentation layer serializes it: price (fixed to PricePrecision digits,
// as a string) -> order ID (as a string) -> formatted order.
type BookSnapshot struct {
	Bids map[string]map[string]OrderView `json:"bids"`
	Asks map[string]map[string]OrderView `json:"asks"`
}

// PriceKey formats a price as a snapshot map key
func PriceKey(price decimal.Decimal) string {
	return price.StringFixed(PricePrecision)
}

// OrderKey formats an order ID as a snapshot map key
func OrderKey(orderID uint64) string {
	return strconv.FormatUint(orderID, 10)
}
