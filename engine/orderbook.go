package engine

import (
	"container/list"
	"sync"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/shobande-femi/OrderBook/models"
)

// PriceLevel holds every resting order at one exact price, oldest first
type PriceLevel struct {
	Price  decimal.Decimal
	Orders *list.List
	Volume decimal.Decimal
}

// NewPriceLevel creates a new price level
func NewPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{
		Price:  price,
		Orders: list.New(),
		Volume: decimal.Zero,
	}
}

func (pl *PriceLevel) AddOrder(order *models.Order) *list.Element {
	element := pl.Orders.PushBack(order)
	pl.Volume = pl.Volume.Add(order.RemainingQuantity())
	return element
}

func (pl *PriceLevel) RemoveOrder(element *list.Element) {
	if element == nil {
		return
	}
	order := element.Value.(*models.Order)
	pl.Volume = pl.Volume.Sub(order.RemainingQuantity())
	pl.Orders.Remove(element)
}

func (pl *PriceLevel) IsEmpty() bool {
	return pl.Orders.Len() == 0
}

func (pl *PriceLevel) Less(than btree.Item) bool {
	other := than.(*PriceLevel)
	return pl.Price.LessThan(other.Price)
}

// BookSide is the price-indexed collection of levels for one side of a book.
// The btree keeps levels ordered by price, so best-price access and ordered
// traversal are O(log n) without re-sorting.
type BookSide struct {
	tree *btree.BTree
}

func NewBookSide() *BookSide {
	return &BookSide{
		tree: btree.New(32),
	}
}

func (bs *BookSide) GetOrCreatePriceLevel(price decimal.Decimal) *PriceLevel {
	searchLevel := &PriceLevel{Price: price}

	if item := bs.tree.Get(searchLevel); item != nil {
		return item.(*PriceLevel)
	}

	newLevel := NewPriceLevel(price)
	bs.tree.ReplaceOrInsert(newLevel)
	return newLevel
}

func (bs *BookSide) GetPriceLevel(price decimal.Decimal) *PriceLevel {
	searchLevel := &PriceLevel{Price: price}
	if item := bs.tree.Get(searchLevel); item != nil {
		return item.(*PriceLevel)
	}
	return nil
}

// RemovePriceLevel removes a price level from the tree
func (bs *BookSide) RemovePriceLevel(price decimal.Decimal) {
	searchLevel := &PriceLevel{Price: price}
	bs.tree.Delete(searchLevel)
}

// GetBestPrice returns the best price level (highest for bids, lowest for asks)
func (bs *BookSide) GetBestPrice(isBid bool) *PriceLevel {
	var item btree.Item
	if isBid {
		item = bs.tree.Max()
	} else {
		item = bs.tree.Min()
	}

	if item != nil {
		return item.(*PriceLevel)
	}
	return nil
}

// Ascend iterates through price levels in ascending order
func (bs *BookSide) Ascend(iterator btree.ItemIterator) {
	bs.tree.Ascend(iterator)
}

// Descend iterates through price levels in descending order
func (bs *BookSide) Descend(iterator btree.ItemIterator) {
	bs.tree.Descend(iterator)
}

// Len returns the number of price levels
func (bs *BookSide) Len() int {
	return bs.tree.Len()
}

// OrderLocation tracks where a resting order sits in the book
type OrderLocation struct {
	PriceLevel *PriceLevel
	Element    *list.Element
}

// OrderBook pairs a bid side and an ask side for one currency pair and owns
// the matching algorithm. ProcessOrder mutates both sides under the book
// mutex, so a half-completed sweep is never observable; snapshot reads take
// the same mutex.
type OrderBook struct {
	Pair   string
	Bids   *BookSide
	Asks   *BookSide
	orders map[uint64]*OrderLocation
	seq    uint64
	mu     sync.RWMutex
}

// NewOrderBook creates a new order book for a currency pair
func NewOrderBook(pair string) *OrderBook {
	return &OrderBook{
		Pair:   pair,
		Bids:   NewBookSide(),
		Asks:   NewBookSide(),
		orders: make(map[uint64]*OrderLocation),
	}
}

// ProcessOrder runs the incoming order through the matching algorithm and
// returns the trades produced, plus the resting order if any limit remainder
// was added to the book.
//
// Market orders sweep the opposite side from the best price outward until
// the quantity is exhausted or the side is empty; they are never added to
// the book. Limit orders sweep only while the opposite price is at least as
// favorable as their own limit, then rest any remainder at the tail of its
// price level.
func (ob *OrderBook) ProcessOrder(order *models.Order) ([]*Trade, *models.Order) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	trades := make([]*Trade, 0)

	if !order.IsValid() {
		order.Reject()
		return trades, nil
	}

	ob.seq++
	order.ID = ob.seq
	order.Sequence = ob.seq

	switch order.Kind {
	case models.OrderKindMarket:
		trades = ob.sweep(order, decimal.Zero, false)
		return trades, nil

	default: // limit
		trades = ob.sweep(order, order.Price, true)
		if !order.IsFilled() {
			ob.rest(order)
			return trades, order
		}
		return trades, nil
	}
}

// sweep matches the taker against the opposite side, best price first and
// FIFO within each level. When bounded, matching stops as soon as the best
// opposite price is worse than the taker's limit.
func (ob *OrderBook) sweep(taker *models.Order, limit decimal.Decimal, bounded bool) []*Trade {
	trades := make([]*Trade, 0)

	var opposite *BookSide
	oppositeIsBid := taker.Side == models.OrderSideAsk
	if oppositeIsBid {
		opposite = ob.Bids
	} else {
		opposite = ob.Asks
	}

	for taker.RemainingQuantity().GreaterThan(decimal.Zero) {
		level := opposite.GetBestPrice(oppositeIsBid)
		if level == nil {
			break
		}

		if bounded {
			if taker.Side == models.OrderSideBid && level.Price.GreaterThan(limit) {
				break
			}
			if taker.Side == models.OrderSideAsk && level.Price.LessThan(limit) {
				break
			}
		}

		element := level.Orders.Front()
		for element != nil && taker.RemainingQuantity().GreaterThan(decimal.Zero) {
			next := element.Next()
			maker := element.Value.(*models.Order)

			matched := decimal.Min(taker.RemainingQuantity(), maker.RemainingQuantity())

			taker.Fill(matched)
			maker.Fill(matched)
			level.Volume = level.Volume.Sub(matched)

			trades = append(trades, NewTrade(ob.Pair, maker, taker, level.Price, matched))

			if maker.IsFilled() {
				level.Orders.Remove(element)
				delete(ob.orders, maker.ID)
			}

			element = next
		}

		if level.IsEmpty() {
			opposite.RemovePriceLevel(level.Price)
		}
	}

	return trades
}

// rest appends a limit order to the tail of its price level, creating the
// level if this is the first order at that exact price
func (ob *OrderBook) rest(order *models.Order) {
	var side *BookSide
	if order.Side == models.OrderSideBid {
		side = ob.Bids
	} else {
		side = ob.Asks
	}

	level := side.GetOrCreatePriceLevel(order.Price)
	element := level.AddOrder(order)

	ob.orders[order.ID] = &OrderLocation{
		PriceLevel: level,
		Element:    element,
	}
}

// GetOrder retrieves a resting order by ID (O(1) lookup)
func (ob *OrderBook) GetOrder(orderID uint64) *models.Order {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	location, exists := ob.orders[orderID]
	if !exists {
		return nil
	}

	return location.Element.Value.(*models.Order)
}

// GetBestBid returns the highest bid price level
func (ob *OrderBook) GetBestBid() *PriceLevel {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.Bids.GetBestPrice(true)
}

// GetBestAsk returns the lowest ask price level
func (ob *OrderBook) GetBestAsk() *PriceLevel {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.Asks.GetBestPrice(false)
}

// GetBestBidPrice returns the highest bid price as decimal (nil if no bids)
func (ob *OrderBook) GetBestBidPrice() *decimal.Decimal {
	bestBid := ob.GetBestBid()
	if bestBid == nil {
		return nil
	}
	return &bestBid.Price
}

// GetBestAskPrice returns the lowest ask price as decimal (nil if no asks)
func (ob *OrderBook) GetBestAskPrice() *decimal.Decimal {
	bestAsk := ob.GetBestAsk()
	if bestAsk == nil {
		return nil
	}
	return &bestAsk.Price
}

// Size returns the total number of resting orders in the order book
func (ob *OrderBook) Size() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return len(ob.orders)
}

// GetBidDepth returns the number of resting bid orders
func (ob *OrderBook) GetBidDepth() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	count := 0
	ob.Bids.Descend(func(i btree.Item) bool {
		pl := i.(*PriceLevel)
		count += pl.Orders.Len()
		return true
	})
	return count
}

// GetAskDepth returns the number of resting ask orders
func (ob *OrderBook) GetAskDepth() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	count := 0
	ob.Asks.Ascend(func(i btree.Item) bool {
		pl := i.(*PriceLevel)
		count += pl.Orders.Len()
		return true
	})
	return count
}

// Snapshot returns a consistent formatted view of the whole book. Formatting
// the same unmutated book twice yields identical output.
func (ob *OrderBook) Snapshot() models.BookSnapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	snapshot := models.BookSnapshot{
		Bids: make(map[string]map[string]models.OrderView),
		Asks: make(map[string]map[string]models.OrderView),
	}

	collect := func(target map[string]map[string]models.OrderView) btree.ItemIterator {
		return func(item btree.Item) bool {
			level := item.(*PriceLevel)
			views := make(map[string]models.OrderView, level.Orders.Len())
			for e := level.Orders.Front(); e != nil; e = e.Next() {
				order := e.Value.(*models.Order)
				views[models.OrderKey(order.ID)] = models.OrderView{
					OrderID:  order.ID,
					Quantity: order.RemainingQuantity(),
					Price:    order.Price.Round(models.PricePrecision),
					TraderID: order.TraderID,
				}
			}
			target[models.PriceKey(level.Price)] = views
			return true
		}
	}

	ob.Bids.Descend(collect(snapshot.Bids))
	ob.Asks.Ascend(collect(snapshot.Asks))

	return snapshot
}
