package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counter: Total orders received
	OrdersReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_received_total",
			Help: "Total number of orders received by the exchange",
		},
		[]string{"pair", "side", "kind"},
	)

	// Counter: Total orders rejected
	OrdersRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_rejected_total",
			Help: "Total number of orders rejected due to validation or other errors",
		},
		[]string{"pair", "reason"},
	)

	// Histogram: Order processing latency
	OrderLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_latency_seconds",
			Help:    "Time taken to process an order from receipt to execution",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to ~3.2s
		},
		[]string{"pair", "kind"},
	)

	// Gauge: Current book depth (resting orders per side)
	CurrentBookDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "current_book_depth",
			Help: "Current number of resting orders in the book",
		},
		[]string{"pair", "side"},
	)

	// Gauge: Best bid/ask prices
	BestBidPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "best_bid_price",
			Help: "Current best bid price in the book",
		},
		[]string{"pair"},
	)

	BestAskPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "best_ask_price",
			Help: "Current best ask price in the book",
		},
		[]string{"pair"},
	)

	// Gauge: Spread (difference between best ask and best bid)
	BookSpread = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "book_spread",
			Help: "Current spread between best bid and best ask",
		},
		[]string{"pair"},
	)

	// Counter: Total trades executed
	TradesExecutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trades_executed_total",
			Help: "Total number of trades executed",
		},
		[]string{"pair"},
	)

	// Counter: Total volume traded
	TradedVolumeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "traded_volume_total",
			Help: "Total volume traded",
		},
		[]string{"pair"},
	)

	// Counter: Standing orders placed for market-order overflow
	StandingOrdersPlacedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standing_orders_placed_total",
			Help: "Total number of standing orders placed to absorb unfilled market remainders",
		},
		[]string{"pair"},
	)

	// Gauge: Deferred recipients currently registered
	PendingRecipients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_recipients",
			Help: "Number of standing orders with a registered deferred recipient",
		},
	)

	// Counter: Payment legs handed to the settlement dispatcher
	PaymentLegsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_legs_emitted_total",
			Help: "Total number of payment legs derived from trades",
		},
		[]string{"currency"},
	)

	// Counter: Settlement dispatch failures (fire-and-forget, never retried)
	SettlementDispatchFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_dispatch_failures_total",
			Help: "Total number of payment legs that failed to reach the transfer service",
		},
	)
)

// RecordOrderReceived increments the orders_received_total counter
func RecordOrderReceived(pair, side, kind string) {
	OrdersReceivedTotal.WithLabelValues(pair, side, kind).Inc()
}

// RecordOrderRejected increments the orders_rejected_total counter
func RecordOrderRejected(pair, reason string) {
	OrdersRejectedTotal.WithLabelValues(pair, reason).Inc()
}

// RecordOrderLatency records the time taken to process an order
func RecordOrderLatency(pair, kind string, seconds float64) {
	OrderLatencySeconds.WithLabelValues(pair, kind).Observe(seconds)
}

// UpdateBookDepth updates the current book depth gauge
func UpdateBookDepth(pair, side string, depth float64) {
	CurrentBookDepth.WithLabelValues(pair, side).Set(depth)
}

// UpdateBestPrices updates best bid/ask prices and the spread
func UpdateBestPrices(pair string, bestBid, bestAsk float64) {
	if bestBid > 0 {
		BestBidPrice.WithLabelValues(pair).Set(bestBid)
	}
	if bestAsk > 0 {
		BestAskPrice.WithLabelValues(pair).Set(bestAsk)
	}
	if bestBid > 0 && bestAsk > 0 {
		BookSpread.WithLabelValues(pair).Set(bestAsk - bestBid)
	}
}

// RecordTrade records a trade execution
func RecordTrade(pair string, quantity float64) {
	TradesExecutedTotal.WithLabelValues(pair).Inc()
	TradedVolumeTotal.WithLabelValues(pair).Add(quantity)
}

// RecordStandingOrderPlaced increments the standing order counter
func RecordStandingOrderPlaced(pair string) {
	StandingOrdersPlacedTotal.WithLabelValues(pair).Inc()
}

// UpdatePendingRecipients sets the deferred-recipient gauge
func UpdatePendingRecipients(count float64) {
	PendingRecipients.Set(count)
}

// RecordPaymentLeg counts one emitted payment leg
func RecordPaymentLeg(currency string) {
	PaymentLegsEmittedTotal.WithLabelValues(currency).Inc()
}

// RecordSettlementDispatchFailure counts one failed hand-off
func RecordSettlementDispatchFailure() {
	SettlementDispatchFailuresTotal.Inc()
}
