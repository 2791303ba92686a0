package models

import "github.com/shopspring/decimal"

// Intent states what the originating request is trying to do, instead of
// leaving callers to infer it from which optional fields happen to be set.
type Intent string

const (
	// IntentProvideLiquidity rests a limit bid on the pair's book.
	IntentProvideLiquidity Intent = "provide_liquidity"
	// IntentTakeMarket sweeps resting liquidity with a market ask.
	IntentTakeMarket Intent = "take_market"
)

// SwapRequest is an inbound order request after the HTTP layer has validated
// it. SourceCurrency and TargetCurrency name the two legs of the exchange as
// the requester sees them; Price is only meaningful for IntentProvideLiquidity.
//
// RecipientID is the ultimate recipient wallet for the requester's side of
// the exchange. For market orders it also becomes the deferred recipient of
// any standing order placed for an unfilled remainder.
type SwapRequest struct {
	Intent         Intent
	SourceCurrency string
	TargetCurrency string
	Quantity       decimal.Decimal
	Price          decimal.Decimal
	TraderID       string
	RecipientID    string
}

// PairKey builds the order book key for a currency pair
func PairKey(sourceCurrency, targetCurrency string) string {
	return sourceCurrency + "-to-" + targetCurrency
}
