package websocket

import (
	"github.com/shopspring/decimal"

	"github.com/shobande-femi/OrderBook/models"
)

type Message struct {
	Type      string      `json:"type"`
	Topic     string      `json:"topic,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

type ClientMessage struct {
	Action string `json:"action"`
	Topic  string `json:"topic,omitempty"`
	Pair   string `json:"pair,omitempty"`
}

// BookDeltaMessage describes one mutation of a pair's book: an order rested
// ("add") or liquidity consumed ("remove")
type BookDeltaMessage struct {
	Pair      string          `json:"pair"`
	Side      string          `json:"side"`
	Action    string          `json:"action"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Timestamp int64           `json:"timestamp"`
}

type TradeMessage struct {
	TradeID       string          `json:"trade_id"`
	Pair          string          `json:"pair"`
	MakerTraderID string          `json:"maker_trader_id"`
	TakerTraderID string          `json:"taker_trader_id"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
	Timestamp     int64           `json:"timestamp"`
}

// BookSnapshotMessage carries the full formatted book for one pair, sent when
// a client subscribes to book deltas or asks for a resync
type BookSnapshotMessage struct {
	Pair      string              `json:"pair"`
	Book      models.BookSnapshot `json:"book"`
	Timestamp int64               `json:"timestamp"`
}
