package exchange

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shobande-femi/OrderBook/engine"
	"github.com/shobande-femi/OrderBook/logging"
	"github.com/shobande-femi/OrderBook/metrics"
	"github.com/shobande-femi/OrderBook/models"
	"github.com/shobande-femi/OrderBook/settlement"
)

// Outcome classifies what happened to a market order
type Outcome string

const (
	// OutcomeFullyExecuted means the whole requested quantity traded
	OutcomeFullyExecuted Outcome = "fully_executed"
	// OutcomeStandingOrderPlaced means the book ran out of liquidity and the
	// remainder now rests as a standing ask at the last trade price
	OutcomeStandingOrderPlaced Outcome = "standing_order_placed"
	// OutcomeNoReferencePrice means the book produced no trades at all, so
	// there is no price to rest the remainder at and nothing was placed
	OutcomeNoReferencePrice Outcome = "no_reference_price"
)

// LiquidityResult is the outcome of a provide_liquidity request
type LiquidityResult struct {
	Order    *models.Order
	Trades   []*engine.Trade
	Legs     []settlement.PaymentLeg
	Snapshot models.BookSnapshot
}

// MarketResult is the outcome of a take_market request
type MarketResult struct {
	Outcome       Outcome
	Order         *models.Order
	Trades        []*engine.Trade
	Legs          []settlement.PaymentLeg
	StandingOrder *models.Order
	Unfilled      decimal.Decimal
}

// Service orchestrates one request end to end: route it to the pair's
// matching engine, translate the resulting trades into payment legs, and
// hand the legs to the settlement dispatcher.
type Service struct {
	registry   *Registry
	dispatcher *settlement.Dispatcher
}

func NewService(registry *Registry, dispatcher *settlement.Dispatcher) *Service {
	return &Service{
		registry:   registry,
		dispatcher: dispatcher,
	}
}

// AddLiquidity rests a limit bid on the source-to-target book, creating the
// book on first use. Any trades against standing asks are translated and
// dispatched before the call returns.
func (s *Service) AddLiquidity(correlationID string, req *models.SwapRequest) (*LiquidityResult, error) {
	start := time.Now()
	pair := models.PairKey(req.SourceCurrency, req.TargetCurrency)

	metrics.RecordOrderReceived(pair, string(models.OrderSideBid), string(models.OrderKindLimit))
	logging.LogOrderReceived(correlationID, pair, req.TraderID,
		string(models.OrderSideBid), string(models.OrderKindLimit),
		req.Price.InexactFloat64(), req.Quantity.InexactFloat64())

	eng, err := s.registry.GetOrCreate(pair)
	if err != nil {
		return nil, fmt.Errorf("failed to create order book for %s: %w", pair, err)
	}

	order := models.NewOrder(req.TraderID, pair, models.OrderSideBid, models.OrderKindLimit, req.Price, req.Quantity)
	result, err := eng.Place(order)
	if err != nil {
		metrics.RecordOrderRejected(pair, "engine")
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	legs := s.settle(correlationID, pair, result.Trades, req)
	metrics.RecordOrderLatency(pair, string(models.OrderKindLimit), time.Since(start).Seconds())

	return &LiquidityResult{
		Order:    order,
		Trades:   result.Trades,
		Legs:     legs,
		Snapshot: eng.Snapshot(),
	}, nil
}

// PlaceMarketOrder sweeps the target-to-source book with a market ask. The
// market taker quotes the pair from their own perspective, so the book it
// trades against is the one liquidity providers built for the opposite
// direction.
//
// If the sweep leaves a remainder and at least one trade happened, the
// remainder is rested as a standing limit ask at the last trade price and
// the request's recipient is registered against it for later settlement.
// With no trades there is no reference price and nothing is placed.
func (s *Service) PlaceMarketOrder(correlationID string, req *models.SwapRequest) (*MarketResult, error) {
	start := time.Now()
	pair := models.PairKey(req.TargetCurrency, req.SourceCurrency)

	metrics.RecordOrderReceived(pair, string(models.OrderSideAsk), string(models.OrderKindMarket))
	logging.LogOrderReceived(correlationID, pair, req.TraderID,
		string(models.OrderSideAsk), string(models.OrderKindMarket),
		0, req.Quantity.InexactFloat64())

	eng, err := s.registry.Get(pair)
	if err != nil {
		metrics.RecordOrderRejected(pair, "book_not_found")
		return nil, err
	}

	order := models.NewOrder(req.TraderID, pair, models.OrderSideAsk, models.OrderKindMarket, decimal.Zero, req.Quantity)
	result, err := eng.Place(order)
	if err != nil {
		metrics.RecordOrderRejected(pair, "engine")
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	legs := s.settle(correlationID, pair, result.Trades, req)

	res := &MarketResult{
		Outcome:  OutcomeFullyExecuted,
		Order:    order,
		Trades:   result.Trades,
		Legs:     legs,
		Unfilled: order.RemainingQuantity(),
	}

	if res.Unfilled.IsPositive() {
		if len(result.Trades) == 0 {
			res.Outcome = OutcomeNoReferencePrice
			logging.LogLiquidityExhausted(correlationID, pair, res.Unfilled.InexactFloat64())
		} else {
			standing, crossed, crossLegs, serr := s.placeStandingOrder(correlationID, eng, pair, req, result.Trades, res.Unfilled)
			if serr != nil {
				return nil, serr
			}
			res.Outcome = OutcomeStandingOrderPlaced
			res.StandingOrder = standing
			res.Trades = append(res.Trades, crossed...)
			res.Legs = append(res.Legs, crossLegs...)
		}
	}

	metrics.RecordOrderLatency(pair, string(models.OrderKindMarket), time.Since(start).Seconds())
	return res, nil
}

// placeStandingOrder rests the unfilled remainder of a market order as a
// limit ask at the last trade price, and registers the request's recipient
// against the new order ID.
//
// The sweep and this placement are separate engine commands, so a bid rested
// by a concurrent liquidity add can already cross the standing ask. Those
// fills are settled here with the originating request; only a remainder that
// actually rested waits on the registry for its recipient.
func (s *Service) placeStandingOrder(correlationID string, eng *engine.MatchingEngine, pair string, req *models.SwapRequest, trades []*engine.Trade, unfilled decimal.Decimal) (*models.Order, []*engine.Trade, []settlement.PaymentLeg, error) {
	lastPrice := trades[len(trades)-1].Price.Round(models.PricePrecision)

	standing := models.NewOrder(req.TraderID, pair, models.OrderSideAsk, models.OrderKindLimit, lastPrice, unfilled)
	result, err := eng.Place(standing)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	legs := s.settle(correlationID, pair, result.Trades, req)

	if result.Resting != nil {
		s.registry.RegisterRecipient(pair, result.Resting.ID, req.RecipientID)
	}

	metrics.RecordStandingOrderPlaced(pair)
	logging.LogStandingOrderPlaced(correlationID, pair, standing.ID,
		lastPrice.InexactFloat64(), unfilled.InexactFloat64(), req.RecipientID)

	return standing, result.Trades, legs, nil
}

// settle translates trades into payment legs, hands them to the dispatcher,
// and evicts deferred-recipient entries for standing orders that just filled
// completely
func (s *Service) settle(correlationID, pair string, trades []*engine.Trade, req *models.SwapRequest) []settlement.PaymentLeg {
	if len(trades) == 0 {
		return nil
	}

	for _, trade := range trades {
		metrics.RecordTrade(pair, trade.Quantity.InexactFloat64())
		logging.LogTradeExecuted(correlationID, trade.TradeID.String(), pair,
			trade.MakerOrderID, trade.MakerTraderID, trade.TakerTraderID,
			trade.Price.InexactFloat64(), trade.Quantity.InexactFloat64())
	}

	legs := settlement.Translate(trades, req, s.registry.Directory(pair))

	// Eviction must come after translation: the last fill of a standing
	// order still settles to its registered recipient.
	if req.Intent == models.IntentProvideLiquidity {
		for _, trade := range trades {
			if trade.MakerRemaining.IsZero() {
				s.registry.EvictRecipient(pair, trade.MakerOrderID)
			}
		}
	}

	s.dispatcher.Dispatch(legs)
	return legs
}

// OrderBookSnapshot returns the formatted book for a pair
func (s *Service) OrderBookSnapshot(sourceCurrency, targetCurrency string) (models.BookSnapshot, error) {
	pair := models.PairKey(sourceCurrency, targetCurrency)

	eng, err := s.registry.Get(pair)
	if err != nil {
		return models.BookSnapshot{}, err
	}

	return eng.Snapshot(), nil
}

// Registry exposes the underlying registry for stats and shutdown
func (s *Service) Registry() *Registry {
	return s.registry
}
