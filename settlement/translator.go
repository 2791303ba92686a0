package settlement

import (
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/shobande-femi/OrderBook/engine"
	"github.com/shobande-femi/OrderBook/logging"
	"github.com/shobande-femi/OrderBook/models"
)

// CashPrecision is the number of decimal places for scaled payment amounts
const CashPrecision = 2

// PaymentLeg is one directed transfer between two traders in one currency.
// Every trade translates into exactly two legs, one per currency of the pair.
type PaymentLeg struct {
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Currency  string          `json:"currency"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// RecipientDirectory resolves the deferred recipient registered for a
// standing order when it was placed
type RecipientDirectory interface {
	Lookup(orderID uint64) (string, bool)
}

// Translate derives the payment legs for a batch of trades.
//
// A take_market request names its recipient up front, so both legs are fully
// determined by the trade: the taker pays the maker the source-currency
// quantity as matched, and the maker pays the named recipient the
// target-currency amount scaled by the execution price. A provide_liquidity
// request has no recipient of its own; the source-currency leg is scaled by
// price and routed to whichever recipient was registered for the maker's
// standing order, while the maker sends the taker the target-currency
// quantity unscaled.
func Translate(trades []*engine.Trade, req *models.SwapRequest, directory RecipientDirectory) []PaymentLeg {
	legs := make([]PaymentLeg, 0, 2*len(trades))

	for _, trade := range trades {
		scaled := trade.Quantity.Mul(trade.Price).Round(CashPrecision)

		switch req.Intent {
		case models.IntentTakeMarket:
			legs = append(legs,
				PaymentLeg{
					Sender:    trade.TakerTraderID,
					Recipient: trade.MakerTraderID,
					Currency:  req.SourceCurrency,
					Quantity:  trade.Quantity,
				},
				PaymentLeg{
					Sender:    trade.MakerTraderID,
					Recipient: req.RecipientID,
					Currency:  req.TargetCurrency,
					Quantity:  scaled,
				},
			)

		case models.IntentProvideLiquidity:
			recipient, ok := directory.Lookup(trade.MakerOrderID)
			if !ok {
				// Every resting ask is a standing order with a registered
				// recipient; a miss means the registry lost an entry. Pay
				// the maker directly rather than drop the leg.
				recipient = trade.MakerTraderID
				logging.LogWithFields(logrus.WarnLevel, "No deferred recipient for maker order; paying maker directly", logrus.Fields{
					"pair":           trade.Pair,
					"maker_order_id": trade.MakerOrderID,
				})
			}
			legs = append(legs,
				PaymentLeg{
					Sender:    trade.TakerTraderID,
					Recipient: recipient,
					Currency:  req.SourceCurrency,
					Quantity:  scaled,
				},
				PaymentLeg{
					Sender:    trade.MakerTraderID,
					Recipient: trade.TakerTraderID,
					Currency:  req.TargetCurrency,
					Quantity:  trade.Quantity,
				},
			)
		}
	}

	return legs
}
