package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	gorilla_ws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/shobande-femi/OrderBook/engine"
	"github.com/shobande-femi/OrderBook/exchange"
	"github.com/shobande-femi/OrderBook/logging"
	"github.com/shobande-femi/OrderBook/ratelimit"
	"github.com/shobande-femi/OrderBook/validation"
	"github.com/shobande-femi/OrderBook/websocket"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// Router holds the HTTP router and all handlers
type Router struct {
	router      *mux.Router
	service     *exchange.Service
	redisClient *redis.Client
	wsHub       *websocket.Hub
	wsUpgrader  gorilla_ws.Upgrader
	rateLimiter *ratelimit.TokenBucketLimiter
	cors        *cors.Cors
}

// Config tunes the HTTP surface
type Config struct {
	AllowedOrigins  []string
	RateLimitTokens int
	RateLimitRefill int
}

// NewRouter creates a new router with all API routes
func NewRouter(service *exchange.Service, redisClient *redis.Client, config Config) *Router {
	hub := websocket.NewHub(websocket.NewRegistrySnapshots(service.Registry()))
	go hub.Run()

	service.Registry().SetOnCreate(func(pair string, eng *engine.MatchingEngine) {
		websocket.AttachEngine(hub, eng)
	})

	r := &Router{
		router:      mux.NewRouter(),
		service:     service,
		redisClient: redisClient,
		wsHub:       hub,
		wsUpgrader: gorilla_ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		cors: cors.New(cors.Options{
			AllowedOrigins: config.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type", "Idempotency-Key", "X-Correlation-ID", "X-Trader-ID"},
		}),
	}

	r.rateLimiter = ratelimit.NewTokenBucketLimiter(redisClient, ratelimit.Config{
		MaxTokens:  config.RateLimitTokens,
		RefillRate: config.RateLimitRefill,
	})

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	guards := validation.NewGuards()
	r.router.Use(guards.SecureHeaders)
	r.router.Use(guards.LimitRequestBody)
	r.router.Use(guards.ValidateContentType)
	r.router.Use(guards.LogRequests)

	r.router.Use(correlationIDMiddleware)

	rateLimitMiddleware := ratelimit.NewMiddleware(ratelimit.MiddlewareConfig{
		Limiter:   r.rateLimiter,
		SkipPaths: []string{"/", "/healthz", "/metrics", "/stream"},
	})
	r.router.Use(rateLimitMiddleware.Handler)

	r.router.HandleFunc("/", r.Home).Methods("GET")

	r.router.HandleFunc("/liquidity", HandleAddLiquidity(r.service, r.redisClient)).Methods("POST")
	r.router.HandleFunc("/market_order", HandleMarketOrder(r.service, r.redisClient)).Methods("POST")
	r.router.HandleFunc("/order_book", r.GetOrderBook).Methods("GET")

	r.router.HandleFunc("/stream", r.HandleWebSocket).Methods("GET")

	r.router.HandleFunc("/healthz", r.HealthCheck).Methods("GET")
	r.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// ServeHTTP implements http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.cors.Handler(r.router).ServeHTTP(w, req)
}

// Home handles GET /
func (r *Router) Home(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("PAPLE Mini Exchange"))
}

// GetOrderBook handles GET /order_book?source_currency=X&target_currency=Y
func (r *Router) GetOrderBook(w http.ResponseWriter, req *http.Request) {
	sourceCurrency := req.URL.Query().Get("source_currency")
	targetCurrency := req.URL.Query().Get("target_currency")

	snapshot, err := r.service.OrderBookSnapshot(sourceCurrency, targetCurrency)
	if err != nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"msg": "Order book not found"})
		return
	}

	w.Header().Set("Cache-Control", "no-cache, must-revalidate")
	respondJSON(w, http.StatusOK, snapshot)
}

// HealthCheck handles GET /healthz
func (r *Router) HealthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"pairs":  len(r.service.Registry().Pairs()),
	})
}

// HandleWebSocket handles the /stream WebSocket endpoint
func (r *Router) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := r.wsUpgrader.Upgrade(w, req, nil)
	if err != nil {
		logging.GetLogger().WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := websocket.NewClient(r.wsHub, conn)
	r.wsHub.Register(client)
	client.Start()
}

// correlationIDMiddleware adds a correlation ID to each request for tracing
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.NewCorrelationID()
		}

		w.Header().Set("X-Correlation-ID", correlationID)

		ctx := context.WithValue(r.Context(), contextKey("correlation_id"), correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCorrelationID extracts correlation ID from request context
func GetCorrelationID(r *http.Request) string {
	if correlationID, ok := r.Context().Value(contextKey("correlation_id")).(string); ok {
		return correlationID
	}
	return ""
}
