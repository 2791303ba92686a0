package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shobande-femi/OrderBook/logging"
)

// Topic is a subscription stream a client can attach to
type Topic string

const (
	TopicBookDeltas Topic = "book_deltas"
	TopicTrades     Topic = "trades"
)

// Hub fans engine events out to subscribed WebSocket clients. Trades go out
// immediately; book deltas are batched on a short timer because a single
// sweep can touch many levels at once.
type Hub struct {
	clients       map[*Client]bool
	subscriptions map[Topic]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcastDelta chan *BookDeltaMessage
	broadcastTrade chan *TradeMessage

	batchMutex    sync.Mutex
	pendingDeltas []*BookDeltaMessage
	batchTimer    *time.Timer
	batchInterval time.Duration

	snapshots SnapshotProvider

	idleCheckInterval time.Duration
	idleTimeout       time.Duration
	lastActivity      map[*Client]time.Time
	activityMutex     sync.RWMutex

	mu sync.RWMutex
}

func NewHub(snapshots SnapshotProvider) *Hub {
	return &Hub{
		clients:           make(map[*Client]bool),
		subscriptions:     make(map[Topic]map[*Client]bool),
		register:          make(chan *Client),
		unregister:        make(chan *Client),
		broadcastDelta:    make(chan *BookDeltaMessage, 256),
		broadcastTrade:    make(chan *TradeMessage, 256),
		pendingDeltas:     make([]*BookDeltaMessage, 0, 100),
		batchInterval:     100 * time.Millisecond,
		idleCheckInterval: 30 * time.Second,
		idleTimeout:       5 * time.Minute,
		lastActivity:      make(map[*Client]time.Time),
		snapshots:         snapshots,
	}
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	go h.cleanupIdleClients()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

			h.activityMutex.Lock()
			h.lastActivity[client] = time.Now()
			h.activityMutex.Unlock()

			logging.LogWebSocketEvent(logging.EventWebSocketConnected, client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				for topic := range h.subscriptions {
					delete(h.subscriptions[topic], client)
				}
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

			h.activityMutex.Lock()
			delete(h.lastActivity, client)
			h.activityMutex.Unlock()

		case delta := <-h.broadcastDelta:
			h.batchMutex.Lock()
			h.pendingDeltas = append(h.pendingDeltas, delta)
			if h.batchTimer == nil {
				h.batchTimer = time.AfterFunc(h.batchInterval, h.flushDeltas)
			}
			h.batchMutex.Unlock()

		case trade := <-h.broadcastTrade:
			h.broadcastToTopic(TopicTrades, Message{
				Type:      "trade",
				Topic:     string(TopicTrades),
				Data:      trade,
				Timestamp: time.Now().Unix(),
			})
		}
	}
}

// flushDeltas sends all pending book deltas as one batch
func (h *Hub) flushDeltas() {
	h.batchMutex.Lock()
	defer h.batchMutex.Unlock()

	if len(h.pendingDeltas) == 0 {
		h.batchTimer = nil
		return
	}

	h.broadcastToTopic(TopicBookDeltas, Message{
		Type:      "book_delta_batch",
		Topic:     string(TopicBookDeltas),
		Data:      h.pendingDeltas,
		Timestamp: time.Now().Unix(),
	})

	h.pendingDeltas = h.pendingDeltas[:0]
	h.batchTimer = nil
}

func (h *Hub) broadcastToTopic(topic Topic, message Message) {
	h.mu.RLock()
	subscribers := h.subscriptions[topic]
	h.mu.RUnlock()

	if len(subscribers) == 0 {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		logging.GetLogger().WithError(err).Error("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range subscribers {
		select {
		case client.send <- data:
		default:
			// client's buffer is full; it can resync later
		}
	}
}

func (h *Hub) Subscribe(client *Client, topic Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscriptions[topic] == nil {
		h.subscriptions[topic] = make(map[*Client]bool)
	}
	h.subscriptions[topic][client] = true
}

func (h *Hub) Unsubscribe(client *Client, topic Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.subscriptions[topic]; ok {
		delete(subscribers, client)
	}
}

// BroadcastBookDelta queues a book mutation for the next batch
func (h *Hub) BroadcastBookDelta(delta *BookDeltaMessage) {
	select {
	case h.broadcastDelta <- delta:
	default:
		logging.LogWithFields(logrus.WarnLevel, "Book delta channel full, dropping message", logrus.Fields{
			"pair": delta.Pair,
		})
	}
}

// BroadcastTrade queues a trade notification for immediate broadcast
func (h *Hub) BroadcastTrade(trade *TradeMessage) {
	select {
	case h.broadcastTrade <- trade:
	default:
		logging.LogWithFields(logrus.WarnLevel, "Trade channel full, dropping message", logrus.Fields{
			"pair": trade.Pair,
		})
	}
}

func (h *Hub) GetStats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := make(map[string]int)
	for topic, subscribers := range h.subscriptions {
		subs[string(topic)] = len(subscribers)
	}

	return map[string]interface{}{
		"total_clients": len(h.clients),
		"subscriptions": subs,
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// UpdateActivity refreshes the idle timer for a client
func (h *Hub) UpdateActivity(client *Client) {
	h.activityMutex.Lock()
	h.lastActivity[client] = time.Now()
	h.activityMutex.Unlock()
}

func (h *Hub) cleanupIdleClients() {
	ticker := time.NewTicker(h.idleCheckInterval)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		var idle []*Client

		h.activityMutex.RLock()
		h.mu.RLock()
		for client := range h.clients {
			if lastActive, ok := h.lastActivity[client]; ok && now.Sub(lastActive) > h.idleTimeout {
				idle = append(idle, client)
			}
		}
		h.mu.RUnlock()
		h.activityMutex.RUnlock()

		for _, client := range idle {
			// closing the connection triggers unregister in readPump
			_ = client.conn.Close()
		}
	}
}
