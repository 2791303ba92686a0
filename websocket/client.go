package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shobande-femi/OrderBook/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 256
)

type Client struct {
	id            string
	conn          *websocket.Conn
	hub           *Hub
	send          chan []byte
	subscriptions map[Topic]bool
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:            uuid.New().String(),
		conn:          conn,
		hub:           hub,
		send:          make(chan []byte, sendBufferSize),
		subscriptions: make(map[Topic]bool),
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.GetLogger().WithError(err).Debug("WebSocket read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			// coalesce whatever else is queued into this frame
			n := len(c.send)
			for i := 0; i < n; i++ {
				_, _ = w.Write([]byte{'\n'})
				_, _ = w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	c.hub.UpdateActivity(c)

	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("Invalid message format")
		return
	}

	switch msg.Action {
	case "subscribe":
		c.handleSubscribe(msg.Topic, msg.Pair)
	case "unsubscribe":
		c.handleUnsubscribe(msg.Topic)
	case "ping":
		c.sendPong()
	case "resync":
		c.handleResync(msg.Topic, msg.Pair)
	default:
		c.sendError("Unknown action: " + msg.Action)
	}
}

func validTopic(topic Topic) bool {
	return topic == TopicBookDeltas || topic == TopicTrades
}

func (c *Client) handleSubscribe(topicStr, pair string) {
	topic := Topic(topicStr)
	if !validTopic(topic) {
		c.sendError("Invalid topic: " + topicStr)
		return
	}

	c.hub.Subscribe(c, topic)
	c.subscriptions[topic] = true

	c.sendMessage(Message{
		Type:      "subscribed",
		Topic:     topicStr,
		Timestamp: time.Now().Unix(),
	})

	if topic == TopicBookDeltas {
		c.sendBookSnapshots(pair)
	}
}

func (c *Client) handleUnsubscribe(topicStr string) {
	topic := Topic(topicStr)

	c.hub.Unsubscribe(c, topic)
	delete(c.subscriptions, topic)

	c.sendMessage(Message{
		Type:      "unsubscribed",
		Topic:     topicStr,
		Timestamp: time.Now().Unix(),
	})
}

// handleResync resends book snapshots so a client that dropped delta batches
// can rebuild its local book
func (c *Client) handleResync(topicStr, pair string) {
	topic := Topic(topicStr)
	if !validTopic(topic) {
		c.sendError("Invalid topic for resync: " + topicStr)
		return
	}
	if !c.subscriptions[topic] {
		c.sendError("Not subscribed to topic: " + topicStr)
		return
	}

	if topic == TopicBookDeltas {
		c.sendBookSnapshots(pair)
	}

	c.sendMessage(Message{
		Type:      "resynced",
		Topic:     topicStr,
		Timestamp: time.Now().Unix(),
	})
}

// sendBookSnapshots sends the full book for one pair, or for every live
// pair when none is named
func (c *Client) sendBookSnapshots(pair string) {
	if c.hub.snapshots == nil {
		return
	}

	for _, snapshot := range c.hub.snapshots.BookSnapshots(pair) {
		c.sendMessage(Message{
			Type:      "snapshot",
			Topic:     string(TopicBookDeltas),
			Timestamp: time.Now().Unix(),
			Data:      snapshot,
		})
	}
}

func (c *Client) sendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.GetLogger().WithError(err).Error("Failed to marshal WebSocket message")
		return
	}

	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(errorMsg string) {
	c.sendMessage(Message{
		Type:      "error",
		Timestamp: time.Now().Unix(),
		Data:      map[string]interface{}{"error": errorMsg},
	})
}

func (c *Client) sendPong() {
	c.sendMessage(Message{
		Type:      "pong",
		Timestamp: time.Now().Unix(),
	})
}

// Start begins the read and write pumps for this client
func (c *Client) Start() {
	c.sendMessage(Message{
		Type:      "welcome",
		Timestamp: time.Now().Unix(),
		Data: map[string]interface{}{
			"client_id": c.id,
			"topics":    []string{string(TopicBookDeltas), string(TopicTrades)},
		},
	})

	go c.writePump()
	go c.readPump()
}
