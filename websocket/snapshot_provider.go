package websocket

import (
	"time"

	"github.com/shobande-femi/OrderBook/engine"
	"github.com/shobande-femi/OrderBook/exchange"
)

// SnapshotProvider supplies full book snapshots for subscribe and resync
type SnapshotProvider interface {
	BookSnapshots(pair string) []BookSnapshotMessage
}

// RegistrySnapshots reads snapshots straight from the live book registry
type RegistrySnapshots struct {
	registry *exchange.Registry
}

func NewRegistrySnapshots(registry *exchange.Registry) *RegistrySnapshots {
	return &RegistrySnapshots{registry: registry}
}

// BookSnapshots returns the snapshot for one pair, or for every live pair
// when pair is empty. A pair with no book yields nothing.
func (rs *RegistrySnapshots) BookSnapshots(pair string) []BookSnapshotMessage {
	pairs := []string{pair}
	if pair == "" {
		pairs = rs.registry.Pairs()
	}

	snapshots := make([]BookSnapshotMessage, 0, len(pairs))
	for _, p := range pairs {
		eng, err := rs.registry.Get(p)
		if err != nil {
			continue
		}
		snapshots = append(snapshots, BookSnapshotMessage{
			Pair:      p,
			Book:      eng.Snapshot(),
			Timestamp: time.Now().UnixMilli(),
		})
	}

	return snapshots
}

// AttachEngine subscribes the hub to a matching engine's event bus so every
// trade and book mutation reaches WebSocket subscribers
func AttachEngine(hub *Hub, eng *engine.MatchingEngine) {
	eng.SubscribeToEvents(engine.EventTypeTrade, func(event engine.Event) {
		trade, ok := event.Data.(*engine.Trade)
		if !ok {
			return
		}
		hub.BroadcastTrade(&TradeMessage{
			TradeID:       trade.TradeID.String(),
			Pair:          trade.Pair,
			MakerTraderID: trade.MakerTraderID,
			TakerTraderID: trade.TakerTraderID,
			Price:         trade.Price,
			Quantity:      trade.Quantity,
			Timestamp:     trade.Timestamp.UnixMilli(),
		})
	})

	eng.SubscribeToEvents(engine.EventTypeBookChange, func(event engine.Event) {
		change, ok := event.Data.(engine.BookChangeEvent)
		if !ok {
			return
		}
		hub.BroadcastBookDelta(&BookDeltaMessage{
			Pair:      change.Pair,
			Side:      change.Side,
			Action:    change.Action,
			Price:     change.Price,
			Size:      change.Size,
			Timestamp: change.Timestamp.UnixMilli(),
		})
	})
}
