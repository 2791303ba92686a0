package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shobande-femi/OrderBook/models"
)

// Trade is an immutable record of one match. The execution price is always
// the maker's price. MakerRemaining is the maker's unfilled quantity right
// after this trade; zero means the maker left the book.
//
// Trades are returned to the caller and not retained by the engine.
type Trade struct {
	TradeID        uuid.UUID       `json:"trade_id"`
	Pair           string          `json:"pair"`
	Price          decimal.Decimal `json:"price"`
	Quantity       decimal.Decimal `json:"quantity"`
	MakerTraderID  string          `json:"maker_trader_id"`
	MakerOrderID   uint64          `json:"maker_order_id"`
	MakerRemaining decimal.Decimal `json:"-"`
	TakerTraderID  string          `json:"taker_trader_id"`
	TakerOrderID   uint64          `json:"taker_order_id"`
	Timestamp      time.Time       `json:"timestamp"`
}

// NewTrade records a match between a resting maker and an incoming taker
func NewTrade(pair string, maker, taker *models.Order, price, quantity decimal.Decimal) *Trade {
	return &Trade{
		TradeID:        uuid.New(),
		Pair:           pair,
		Price:          price,
		Quantity:       quantity,
		MakerTraderID:  maker.TraderID,
		MakerOrderID:   maker.ID,
		MakerRemaining: maker.RemainingQuantity(),
		TakerTraderID:  taker.TraderID,
		TakerOrderID:   taker.ID,
		Timestamp:      time.Now(),
	}
}
