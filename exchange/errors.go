package exchange

import "errors"

var (
	// ErrBookNotFound is returned when an operation targets a currency pair
	// with no order book. Books are created lazily by liquidity provision,
	// never by market orders.
	ErrBookNotFound = errors.New("order book not found")

	// ErrEngineUnavailable is returned when the pair's matching engine
	// rejected the submission (not running or backlogged).
	ErrEngineUnavailable = errors.New("matching engine unavailable")
)
