package engine

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventTypeTrade      EventType = "Trade"
	EventTypeBookChange EventType = "BookChange"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// BookChangeEvent describes one mutation of a book side: an order added to a
// price level ("add") or liquidity consumed from it ("remove")
type BookChangeEvent struct {
	Pair      string
	Side      string
	Action    string
	Price     decimal.Decimal
	Size      decimal.Decimal
	Timestamp time.Time
}

type EventListener func(event Event)

type EventBus struct {
	listeners map[EventType][]EventListener
	mu        sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		listeners: make(map[EventType][]EventListener),
	}
}

func (eb *EventBus) Subscribe(eventType EventType, listener EventListener) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.listeners[eventType] = append(eb.listeners[eventType], listener)
}

func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	listeners := eb.listeners[event.Type]
	eb.mu.RUnlock()

	for _, listener := range listeners {
		go listener(event)
	}
}

// GetListenerCount returns the number of listeners for an event type
func (eb *EventBus) GetListenerCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.listeners[eventType])
}
