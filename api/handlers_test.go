package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shobande-femi/OrderBook/exchange"
	"github.com/shobande-femi/OrderBook/settlement"
)

type noopTransfers struct{}

func (noopTransfers) Transfer(_ context.Context, _ settlement.PaymentLeg) error {
	return nil
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()

	dispatcher := settlement.NewDispatcher(noopTransfers{})
	registry := exchange.NewRegistry(context.Background())
	t.Cleanup(func() {
		registry.Shutdown()
		dispatcher.Stop()
	})

	service := exchange.NewService(registry, dispatcher)
	return NewRouter(service, nil, Config{
		AllowedOrigins:  []string{"*"},
		RateLimitTokens: 1000,
		RateLimitRefill: 1000,
	})
}

func postJSON(t *testing.T, router *Router, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func addLiquidity(t *testing.T, router *Router, trader string, price, qty float64) *httptest.ResponseRecorder {
	t.Helper()

	return postJSON(t, router, "/liquidity", map[string]interface{}{
		"trader_id":       trader,
		"source_currency": "USD",
		"target_currency": "EUR",
		"quantity":        qty,
		"price":           price,
	})
}

func placeMarketOrder(t *testing.T, router *Router, sender, recipient string, qty float64) *httptest.ResponseRecorder {
	t.Helper()

	return postJSON(t, router, "/market_order", map[string]interface{}{
		"sender_wallet_id":    sender,
		"recipient_wallet_id": recipient,
		"source_currency":     "EUR",
		"target_currency":     "USD",
		"quantity":            qty,
	})
}

func TestHome(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "PAPLE Mini Exchange", recorder.Body.String())
}

func TestAddLiquidityEndpoint(t *testing.T) {
	router := newTestRouter(t)

	recorder := addLiquidity(t, router, "alice", 1.25, 100)
	require.Equal(t, http.StatusCreated, recorder.Code)

	var response LiquidityResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Contains(t, response.OrderBook.Bids, "1.2500")
	assert.Empty(t, response.Payments)

	// payments stays a JSON array even with no trades
	assert.Contains(t, recorder.Body.String(), `"payments":[]`)
}

func TestAddLiquidityValidation(t *testing.T) {
	tests := []struct {
		name  string
		body  map[string]interface{}
		field string
	}{
		{
			name: "missing trader_id",
			body: map[string]interface{}{
				"source_currency": "USD",
				"target_currency": "EUR",
				"quantity":        100,
				"price":           1.25,
			},
			field: "trader_id",
		},
		{
			name: "same currencies",
			body: map[string]interface{}{
				"trader_id":       "alice",
				"source_currency": "USD",
				"target_currency": "USD",
				"quantity":        100,
				"price":           1.25,
			},
			field: "target_currency",
		},
		{
			name: "zero quantity",
			body: map[string]interface{}{
				"trader_id":       "alice",
				"source_currency": "USD",
				"target_currency": "EUR",
				"quantity":        0,
				"price":           1.25,
			},
			field: "quantity",
		},
		{
			name: "negative price",
			body: map[string]interface{}{
				"trader_id":       "alice",
				"source_currency": "USD",
				"target_currency": "EUR",
				"quantity":        100,
				"price":           -1,
			},
			field: "price",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t)
			recorder := postJSON(t, router, "/liquidity", tt.body)
			require.Equal(t, http.StatusBadRequest, recorder.Code)

			var response struct {
				Success bool              `json:"success"`
				Error   string            `json:"error"`
				Errors  []ValidationError `json:"errors"`
			}
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
			assert.False(t, response.Success)
			assert.Equal(t, "Validation failed", response.Error)

			found := false
			for _, fieldError := range response.Errors {
				if fieldError.Field == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected an error for field %s", tt.field)
		})
	}
}

func TestAddLiquidityRejectsUnknownFields(t *testing.T) {
	router := newTestRouter(t)

	recorder := postJSON(t, router, "/liquidity", map[string]interface{}{
		"trader_id":       "alice",
		"source_currency": "USD",
		"target_currency": "EUR",
		"quantity":        100,
		"price":           1.25,
		"side":            "bid",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestMarketOrderBookNotFound(t *testing.T) {
	router := newTestRouter(t)

	recorder := placeMarketOrder(t, router, "sender", "recipient", 10)
	require.Equal(t, http.StatusNotFound, recorder.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "Order book not found", response["msg"])
}

func TestMarketOrderFullyExecuted(t *testing.T) {
	router := newTestRouter(t)

	require.Equal(t, http.StatusCreated, addLiquidity(t, router, "alice", 1.25, 100).Code)

	recorder := placeMarketOrder(t, router, "sender", "recipient", 60)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response MarketOrderResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "Order Fully Executed", response.Msg)
	require.Len(t, response.Payments, 2)
	assert.Equal(t, "sender", response.Payments[0].Sender)
	assert.Equal(t, "alice", response.Payments[0].Recipient)
	assert.Equal(t, "recipient", response.Payments[1].Recipient)
}

func TestMarketOrderStandingOrderMessage(t *testing.T) {
	router := newTestRouter(t)

	require.Equal(t, http.StatusCreated, addLiquidity(t, router, "alice", 1.25, 40).Code)

	recorder := placeMarketOrder(t, router, "sender", "recipient", 100)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response MarketOrderResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Contains(t, response.Msg, "Not enough liquidity to fulfil full order")
	assert.Contains(t, response.Msg, "remaining EUR60")
	assert.Contains(t, response.Msg, "price of 1.25")
	assert.Contains(t, response.Msg, "automatically execute once liquidity is available")
	assert.Len(t, response.Payments, 2)
}

func TestMarketOrderNoReferencePriceMessage(t *testing.T) {
	router := newTestRouter(t)

	require.Equal(t, http.StatusCreated, addLiquidity(t, router, "alice", 1.25, 40).Code)
	require.Equal(t, http.StatusOK, placeMarketOrder(t, router, "s1", "r1", 40).Code)

	recorder := placeMarketOrder(t, router, "s2", "r2", 10)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response MarketOrderResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Contains(t, response.Msg, "couldn't determine price to place ask offer")
	assert.Empty(t, response.Payments)
}

func TestMarketOrderValidation(t *testing.T) {
	router := newTestRouter(t)

	recorder := postJSON(t, router, "/market_order", map[string]interface{}{
		"sender_wallet_id": "sender",
		"source_currency":  "EUR",
		"target_currency":  "USD",
		"quantity":         10,
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "recipient_wallet_id")
}

func TestGetOrderBookEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/order_book?source_currency=USD&target_currency=EUR", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	require.Equal(t, http.StatusCreated, addLiquidity(t, router, "alice", 1.25, 100).Code)

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "1.2500")
}

func TestContentTypeGuard(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/liquidity", bytes.NewReader([]byte("trader_id=alice")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, recorder.Code)
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t)

	require.Equal(t, http.StatusCreated, addLiquidity(t, router, "alice", 1.25, 100).Code)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, float64(1), response["pairs"])
}

func TestCorrelationIDHeader(t *testing.T) {
	router := newTestRouter(t)

	recorder := addLiquidity(t, router, "alice", 1.25, 100)
	assert.NotEmpty(t, recorder.Header().Get("X-Correlation-ID"))

	payload, err := json.Marshal(map[string]interface{}{
		"trader_id":       "alice",
		"source_currency": "USD",
		"target_currency": "EUR",
		"quantity":        100,
		"price":           1.25,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/liquidity", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-ID", "req-1234")
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, "req-1234", recorder.Header().Get("X-Correlation-ID"))
}

func TestValidationBounds(t *testing.T) {
	router := newTestRouter(t)

	recorder := addLiquidity(t, router, "alice", 1.25, 2_000_000_000)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), fmt.Sprintf("quantity exceeds maximum allowed (%s)", maxQuantity))

	recorder = addLiquidity(t, router, "alice", 2_000_000, 100)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), fmt.Sprintf("price exceeds maximum allowed (%s)", maxPrice))
}
