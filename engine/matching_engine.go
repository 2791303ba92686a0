package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shobande-femi/OrderBook/metrics"
	"github.com/shobande-femi/OrderBook/models"
)

// placeCommand asks the matching worker to process one order
type placeCommand struct {
	Order    *models.Order
	Response chan *PlaceResult
}

// PlaceResult is the outcome of processing one order: the trades produced,
// the resting order if a limit remainder was added to the book, and the
// processed order itself with its final status.
type PlaceResult struct {
	Trades  []*Trade
	Resting *models.Order
	Order   *models.Order
	Err     error
}

// MatchingEngine serializes all matching against one book through a single
// worker goroutine. Only that goroutine ever runs the sweep, so multi-step
// book mutations appear atomic to every caller; submissions are messages,
// not shared memory.
type MatchingEngine struct {
	orderBook   *OrderBook
	commandChan chan *placeCommand
	stopChan    chan struct{}
	wg          sync.WaitGroup
	isRunning   bool
	mu          sync.RWMutex

	eventBus *EventBus

	commandsProcessed uint64
}

func NewMatchingEngine(pair string) *MatchingEngine {
	return &MatchingEngine{
		orderBook:   NewOrderBook(pair),
		commandChan: make(chan *placeCommand, 1000),
		stopChan:    make(chan struct{}),
		eventBus:    NewEventBus(),
	}
}

func (me *MatchingEngine) GetEventBus() *EventBus {
	return me.eventBus
}

func (me *MatchingEngine) SubscribeToEvents(eventType EventType, listener EventListener) {
	me.eventBus.Subscribe(eventType, listener)
}

// Start begins the single-threaded matching worker
func (me *MatchingEngine) Start(ctx context.Context) error {
	me.mu.Lock()
	if me.isRunning {
		me.mu.Unlock()
		return fmt.Errorf("matching engine is already running")
	}
	me.isRunning = true
	me.mu.Unlock()

	me.wg.Add(1)
	go me.matchingWorker(ctx)

	return nil
}

// Stop gracefully shuts down the matching engine
func (me *MatchingEngine) Stop() error {
	me.mu.Lock()
	if !me.isRunning {
		me.mu.Unlock()
		return fmt.Errorf("matching engine is not running")
	}
	me.mu.Unlock()

	close(me.stopChan)
	me.wg.Wait()

	me.mu.Lock()
	me.isRunning = false
	me.mu.Unlock()

	return nil
}

// IsRunning returns whether the matching engine is currently running
func (me *MatchingEngine) IsRunning() bool {
	me.mu.RLock()
	defer me.mu.RUnlock()
	return me.isRunning
}

func (me *MatchingEngine) matchingWorker(ctx context.Context) {
	defer me.wg.Done()

	for {
		select {
		case <-ctx.Done():
			me.drainCommands()
			return

		case <-me.stopChan:
			me.drainCommands()
			return

		case cmd := <-me.commandChan:
			me.processCommand(cmd)
		}
	}
}

// drainCommands processes any remaining commands in the channel before stopping
func (me *MatchingEngine) drainCommands() {
	for {
		select {
		case cmd := <-me.commandChan:
			me.processCommand(cmd)
		default:
			return
		}
	}
}

// processCommand handles a single command (only called by matchingWorker)
func (me *MatchingEngine) processCommand(cmd *placeCommand) {
	me.mu.Lock()
	me.commandsProcessed++
	me.mu.Unlock()

	order := cmd.Order
	trades, resting := me.orderBook.ProcessOrder(order)

	var err error
	if order.Status == models.OrderStatusRejected {
		err = fmt.Errorf("order rejected: invalid order")
	}

	if resting != nil {
		me.publishBookChange(string(resting.Side), "add", resting.Price, resting.RemainingQuantity())
	}

	for _, trade := range trades {
		makerSide := models.OrderSideBid
		if order.Side == models.OrderSideBid {
			makerSide = models.OrderSideAsk
		}
		me.publishBookChange(string(makerSide), "remove", trade.Price, trade.Quantity)

		me.eventBus.Publish(Event{
			Type:      EventTypeTrade,
			Timestamp: time.Now(),
			Data:      trade,
		})
	}

	me.updateBookMetrics()

	if cmd.Response != nil {
		cmd.Response <- &PlaceResult{
			Trades:  trades,
			Resting: resting,
			Order:   order,
			Err:     err,
		}
		close(cmd.Response)
	}
}

// Place submits an order to the matching worker and waits for the result.
// This is safe to call from any goroutine: it only passes a message.
func (me *MatchingEngine) Place(order *models.Order) (*PlaceResult, error) {
	me.mu.RLock()
	if !me.isRunning {
		me.mu.RUnlock()
		return nil, fmt.Errorf("matching engine is not running")
	}
	me.mu.RUnlock()

	responseChan := make(chan *PlaceResult, 1)
	cmd := &placeCommand{
		Order:    order,
		Response: responseChan,
	}

	select {
	case me.commandChan <- cmd:
		response := <-responseChan
		return response, response.Err
	default:
		return nil, fmt.Errorf("command channel is full")
	}
}

func (me *MatchingEngine) GetOrderBook() *OrderBook {
	return me.orderBook
}

// Snapshot returns a consistent formatted view of the book
func (me *MatchingEngine) Snapshot() models.BookSnapshot {
	return me.orderBook.Snapshot()
}

func (me *MatchingEngine) GetStats() map[string]interface{} {
	me.mu.RLock()
	defer me.mu.RUnlock()

	return map[string]interface{}{
		"pair":               me.orderBook.Pair,
		"is_running":         me.isRunning,
		"resting_orders":     me.orderBook.Size(),
		"command_backlog":    len(me.commandChan),
		"command_capacity":   cap(me.commandChan),
		"bid_levels":         me.orderBook.Bids.Len(),
		"ask_levels":         me.orderBook.Asks.Len(),
		"commands_processed": me.commandsProcessed,
		"event_listeners": me.eventBus.GetListenerCount(EventTypeTrade) +
			me.eventBus.GetListenerCount(EventTypeBookChange),
	}
}

func (me *MatchingEngine) publishBookChange(side, action string, price, size decimal.Decimal) {
	me.eventBus.Publish(Event{
		Type:      EventTypeBookChange,
		Timestamp: time.Now(),
		Data: BookChangeEvent{
			Pair:      me.orderBook.Pair,
			Side:      side,
			Action:    action,
			Price:     price,
			Size:      size,
			Timestamp: time.Now(),
		},
	})
}

// updateBookMetrics refreshes the Prometheus gauges for this book
func (me *MatchingEngine) updateBookMetrics() {
	pair := me.orderBook.Pair

	metrics.UpdateBookDepth(pair, "bid", float64(me.orderBook.GetBidDepth()))
	metrics.UpdateBookDepth(pair, "ask", float64(me.orderBook.GetAskDepth()))

	bestBid := me.orderBook.GetBestBidPrice()
	bestAsk := me.orderBook.GetBestAskPrice()

	bestBidPrice := 0.0
	bestAskPrice := 0.0

	if bestBid != nil {
		bestBidPrice, _ = bestBid.Float64()
	}
	if bestAsk != nil {
		bestAskPrice, _ = bestAsk.Float64()
	}

	metrics.UpdateBestPrices(pair, bestBidPrice, bestAskPrice)
}
