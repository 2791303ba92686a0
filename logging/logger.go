package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

// errorThrottle caps how often an identical error line is emitted so a
// flapping downstream (e.g. the transfer service) cannot flood the log.
// At most logBudgetPerWindow lines per distinct error per window; the first
// line of a new window reports how many were swallowed.
type errorThrottle struct {
	mu      sync.Mutex
	windows map[string]*throttleWindow
}

type throttleWindow struct {
	openedAt  time.Time
	logged    int
	swallowed int
}

const (
	throttleWindowLen  = time.Minute
	logBudgetPerWindow = 5
)

var (
	throttle     *errorThrottle
	throttleOnce sync.Once
)

func settlementThrottle() *errorThrottle {
	throttleOnce.Do(func() {
		throttle = &errorThrottle{windows: make(map[string]*throttleWindow)}
		go throttle.sweepIdle(5 * time.Minute)
	})
	return throttle
}

// admit reports whether this occurrence may be logged, and how many identical
// occurrences were swallowed in the window that just closed
func (et *errorThrottle) admit(key string) (ok bool, swallowed int) {
	et.mu.Lock()
	defer et.mu.Unlock()

	now := time.Now()
	w := et.windows[key]

	if w == nil || now.Sub(w.openedAt) > throttleWindowLen {
		var prior int
		if w != nil {
			prior = w.swallowed
		}
		et.windows[key] = &throttleWindow{openedAt: now, logged: 1}
		return true, prior
	}

	if w.logged < logBudgetPerWindow {
		w.logged++
		return true, 0
	}

	w.swallowed++
	return false, 0
}

func (et *errorThrottle) sweepIdle(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		et.mu.Lock()
		now := time.Now()
		for key, w := range et.windows {
			if now.Sub(w.openedAt) > 10*time.Minute {
				delete(et.windows, key)
			}
		}
		et.mu.Unlock()
	}
}

// InitLogger initializes the structured logger with JSON format
func InitLogger() *logrus.Logger {
	log = logrus.New()

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "ts",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	log.SetOutput(os.Stdout)

	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	log.WithFields(logrus.Fields{
		"event": "logger_initialized",
		"level": log.Level.String(),
	}).Info("Structured logging initialized")

	return log
}

// NewCorrelationID generates a new correlation ID for request tracing
func NewCorrelationID() string {
	return uuid.New().String()
}

// GetLogger returns the global logger instance
func GetLogger() *logrus.Logger {
	if log == nil {
		return InitLogger()
	}
	return log
}

// Event types as constants
const (
	EventOrderReceived        = "order_received"
	EventOrderRejected        = "order_rejected"
	EventTradeExecuted        = "trade_executed"
	EventBookCreated          = "book_created"
	EventStandingOrderPlaced  = "standing_order_placed"
	EventLiquidityExhausted   = "liquidity_exhausted"
	EventSettlementDispatched = "settlement_dispatched"
	EventSettlementFailed     = "settlement_failed"
	EventServerStarted        = "server_started"
	EventServerStopped        = "server_stopped"
	EventWebSocketConnected   = "websocket_connected"
)

// LogOrderReceived logs when an order is received
func LogOrderReceived(correlationID, pair, traderID, side, kind string, price, quantity float64) {
	fields := logrus.Fields{
		"event":     EventOrderReceived,
		"pair":      pair,
		"trader_id": traderID,
		"side":      side,
		"kind":      kind,
		"price":     price,
		"quantity":  quantity,
	}
	if correlationID != "" {
		fields["correlation_id"] = correlationID
	}
	GetLogger().WithFields(fields).Info("Order received")
}

// LogOrderRejected logs when an order is rejected
func LogOrderRejected(correlationID, pair, traderID, reason string, details interface{}) {
	fields := logrus.Fields{
		"event":     EventOrderRejected,
		"pair":      pair,
		"trader_id": traderID,
		"reason":    reason,
		"details":   details,
	}
	if correlationID != "" {
		fields["correlation_id"] = correlationID
	}
	GetLogger().WithFields(fields).Warn("Order rejected")
}

// LogTradeExecuted logs when a trade is executed
func LogTradeExecuted(correlationID, tradeID, pair string, makerOrderID uint64, makerTrader, takerTrader string, price, quantity float64) {
	fields := logrus.Fields{
		"event":          EventTradeExecuted,
		"trade_id":       tradeID,
		"pair":           pair,
		"maker_order_id": makerOrderID,
		"maker_trader":   makerTrader,
		"taker_trader":   takerTrader,
		"price":          price,
		"quantity":       quantity,
	}
	if correlationID != "" {
		fields["correlation_id"] = correlationID
	}
	GetLogger().WithFields(fields).Info("Trade executed")
}

// LogBookCreated logs lazy creation of a pair's order book
func LogBookCreated(pair string) {
	GetLogger().WithFields(logrus.Fields{
		"event": EventBookCreated,
		"pair":  pair,
	}).Info("Order book created")
}

// LogStandingOrderPlaced logs a standing order absorbing a market remainder
func LogStandingOrderPlaced(correlationID, pair string, orderID uint64, price, quantity float64, recipient string) {
	fields := logrus.Fields{
		"event":     EventStandingOrderPlaced,
		"pair":      pair,
		"order_id":  orderID,
		"price":     price,
		"quantity":  quantity,
		"recipient": recipient,
	}
	if correlationID != "" {
		fields["correlation_id"] = correlationID
	}
	GetLogger().WithFields(fields).Info("Standing order placed")
}

// LogLiquidityExhausted logs a market order that found no reference price
func LogLiquidityExhausted(correlationID, pair string, unfilled float64) {
	fields := logrus.Fields{
		"event":    EventLiquidityExhausted,
		"pair":     pair,
		"unfilled": unfilled,
	}
	if correlationID != "" {
		fields["correlation_id"] = correlationID
	}
	GetLogger().WithFields(fields).Warn("No liquidity and no reference price; no standing order placed")
}

// LogSettlementDispatched logs a batch of payment legs handed off
func LogSettlementDispatched(legCount int) {
	GetLogger().WithFields(logrus.Fields{
		"event":     EventSettlementDispatched,
		"leg_count": legCount,
	}).Debug("Payment legs dispatched")
}

// LogSettlementError logs transfer hand-off failures with rate limiting
func LogSettlementError(err error, details interface{}) {
	ok, swallowed := settlementThrottle().admit("settlement:" + err.Error())
	if !ok {
		return
	}

	fields := logrus.Fields{
		"event":   EventSettlementFailed,
		"error":   err.Error(),
		"details": details,
	}

	if swallowed > 0 {
		fields["suppressed_count"] = swallowed
		fields["suppressed_msg"] = fmt.Sprintf("%d identical errors were suppressed in the last minute", swallowed)
	}

	GetLogger().WithFields(fields).Error("Settlement dispatch failed")
}

// LogServerStarted logs server startup
func LogServerStarted(port int, features interface{}) {
	GetLogger().WithFields(logrus.Fields{
		"event":    EventServerStarted,
		"port":     port,
		"features": features,
	}).Info("Exchange server started")
}

// LogWebSocketEvent logs WebSocket connection events
func LogWebSocketEvent(event, clientID string) {
	GetLogger().WithFields(logrus.Fields{
		"event":     event,
		"client_id": clientID,
	}).Info("WebSocket event")
}

// LogWithFields provides a flexible logging method
func LogWithFields(level logrus.Level, message string, fields logrus.Fields) {
	GetLogger().WithFields(fields).Log(level, message)
}
