package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/shobande-femi/OrderBook/exchange"
	"github.com/shobande-femi/OrderBook/logging"
	"github.com/shobande-femi/OrderBook/metrics"
	"github.com/shobande-femi/OrderBook/models"
	"github.com/shobande-femi/OrderBook/settlement"
)

// LiquidityRequest is the POST /liquidity body. The provider bids for
// source currency at the given price per unit of target currency.
type LiquidityRequest struct {
	TraderID       string          `json:"trader_id"`
	SourceCurrency string          `json:"source_currency"`
	TargetCurrency string          `json:"target_currency"`
	Quantity       decimal.Decimal `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
}

// MarketOrderRequest is the POST /market_order body. The sender swaps
// source currency for target currency at whatever the book offers, with the
// proceeds routed to the recipient wallet.
type MarketOrderRequest struct {
	SenderWalletID    string          `json:"sender_wallet_id"`
	RecipientWalletID string          `json:"recipient_wallet_id"`
	SourceCurrency    string          `json:"source_currency"`
	TargetCurrency    string          `json:"target_currency"`
	Quantity          decimal.Decimal `json:"quantity"`
}

// LiquidityResponse mirrors the shape liquidity providers consume: the book
// they now rest on plus any payments their bid triggered immediately
type LiquidityResponse struct {
	OrderBook models.BookSnapshot     `json:"order_book"`
	Payments  []settlement.PaymentLeg `json:"payments"`
	Replayed  bool                    `json:"replayed,omitempty"`
}

// MarketOrderResponse carries the derived payments and a human-readable
// outcome message
type MarketOrderResponse struct {
	Payments []settlement.PaymentLeg `json:"payments"`
	Msg      string                  `json:"msg"`
	Replayed bool                    `json:"replayed,omitempty"`
}

// ValidationError reports one invalid request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	maxQuantity = decimal.NewFromInt(1_000_000_000)
	minQuantity = decimal.NewFromFloat(0.0001)
	maxPrice    = decimal.NewFromInt(1_000_000)
)

// HandleAddLiquidity handles POST /liquidity
func HandleAddLiquidity(service *exchange.Service, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := GetCorrelationID(r)

		idempotencyKey := r.Header.Get("Idempotency-Key")
		if idempotencyKey != "" && redisClient != nil {
			var cached LiquidityResponse
			if found, _ := checkIdempotencyKey(r.Context(), redisClient, idempotencyKey, &cached); found {
				cached.Replayed = true
				w.Header().Set("X-Idempotency-Key", idempotencyKey)
				w.Header().Set("X-Idempotency-Replayed", "true")
				respondJSON(w, http.StatusCreated, cached)
				return
			}
		}

		var req LiquidityRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
			return
		}
		defer r.Body.Close()

		if validationErrors := validateLiquidityRequest(&req); len(validationErrors) > 0 {
			pair := models.PairKey(req.SourceCurrency, req.TargetCurrency)
			metrics.RecordOrderRejected(pair, "validation_failed")
			logging.LogOrderRejected(correlationID, pair, req.TraderID, "validation_failed", validationErrors)
			respondValidationErrors(w, validationErrors)
			return
		}

		swap := &models.SwapRequest{
			Intent:         models.IntentProvideLiquidity,
			SourceCurrency: req.SourceCurrency,
			TargetCurrency: req.TargetCurrency,
			Quantity:       req.Quantity,
			Price:          req.Price,
			TraderID:       req.TraderID,
		}

		result, err := service.AddLiquidity(correlationID, swap)
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to add liquidity: %v", err))
			return
		}

		response := LiquidityResponse{
			OrderBook: result.Snapshot,
			Payments:  paymentsOrEmpty(result.Legs),
		}

		if idempotencyKey != "" && redisClient != nil {
			_ = cacheIdempotencyResponse(r.Context(), redisClient, idempotencyKey, &response)
			w.Header().Set("X-Idempotency-Key", idempotencyKey)
		}

		respondJSON(w, http.StatusCreated, response)
	}
}

// HandleMarketOrder handles POST /market_order
func HandleMarketOrder(service *exchange.Service, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := GetCorrelationID(r)

		idempotencyKey := r.Header.Get("Idempotency-Key")
		if idempotencyKey != "" && redisClient != nil {
			var cached MarketOrderResponse
			if found, _ := checkIdempotencyKey(r.Context(), redisClient, idempotencyKey, &cached); found {
				cached.Replayed = true
				w.Header().Set("X-Idempotency-Key", idempotencyKey)
				w.Header().Set("X-Idempotency-Replayed", "true")
				respondJSON(w, http.StatusOK, cached)
				return
			}
		}

		var req MarketOrderRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
			return
		}
		defer r.Body.Close()

		if validationErrors := validateMarketOrderRequest(&req); len(validationErrors) > 0 {
			pair := models.PairKey(req.TargetCurrency, req.SourceCurrency)
			metrics.RecordOrderRejected(pair, "validation_failed")
			logging.LogOrderRejected(correlationID, pair, req.SenderWalletID, "validation_failed", validationErrors)
			respondValidationErrors(w, validationErrors)
			return
		}

		swap := &models.SwapRequest{
			Intent:         models.IntentTakeMarket,
			SourceCurrency: req.SourceCurrency,
			TargetCurrency: req.TargetCurrency,
			Quantity:       req.Quantity,
			TraderID:       req.SenderWalletID,
			RecipientID:    req.RecipientWalletID,
		}

		result, err := service.PlaceMarketOrder(correlationID, swap)
		if err != nil {
			if errors.Is(err, exchange.ErrBookNotFound) {
				respondJSON(w, http.StatusNotFound, map[string]string{"msg": "Order book not found"})
				return
			}
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to place market order: %v", err))
			return
		}

		response := MarketOrderResponse{
			Payments: paymentsOrEmpty(result.Legs),
			Msg:      marketOutcomeMessage(result, &req),
		}

		if idempotencyKey != "" && redisClient != nil {
			_ = cacheIdempotencyResponse(r.Context(), redisClient, idempotencyKey, &response)
			w.Header().Set("X-Idempotency-Key", idempotencyKey)
		}

		respondJSON(w, http.StatusOK, response)
	}
}

func marketOutcomeMessage(result *exchange.MarketResult, req *MarketOrderRequest) string {
	switch result.Outcome {
	case exchange.OutcomeStandingOrderPlaced:
		return fmt.Sprintf("Not enough liquidity to fulfil full order. A standing order for the remaining %s%s at a "+
			"price of %s has been placed. It will automatically execute once liquidity is available",
			req.SourceCurrency, result.Unfilled.String(), result.StandingOrder.Price.String())
	case exchange.OutcomeNoReferencePrice:
		return "Not enough liquidity to fulfil full order. Also couldn't determine price to place ask offer, " +
			"hence no ask order is placed"
	default:
		return "Order Fully Executed"
	}
}

func validateLiquidityRequest(req *LiquidityRequest) []ValidationError {
	var errs []ValidationError

	if req.TraderID == "" {
		errs = append(errs, ValidationError{Field: "trader_id", Message: "trader_id is required"})
	}
	errs = append(errs, validateCurrencies(req.SourceCurrency, req.TargetCurrency)...)
	errs = append(errs, validateQuantity(req.Quantity)...)

	if req.Price.LessThanOrEqual(decimal.Zero) {
		errs = append(errs, ValidationError{Field: "price", Message: "price must be positive"})
	} else if req.Price.GreaterThan(maxPrice) {
		errs = append(errs, ValidationError{Field: "price", Message: fmt.Sprintf("price exceeds maximum allowed (%s)", maxPrice)})
	}

	return errs
}

func validateMarketOrderRequest(req *MarketOrderRequest) []ValidationError {
	var errs []ValidationError

	if req.SenderWalletID == "" {
		errs = append(errs, ValidationError{Field: "sender_wallet_id", Message: "sender_wallet_id is required"})
	}
	if req.RecipientWalletID == "" {
		errs = append(errs, ValidationError{Field: "recipient_wallet_id", Message: "recipient_wallet_id is required"})
	}
	errs = append(errs, validateCurrencies(req.SourceCurrency, req.TargetCurrency)...)
	errs = append(errs, validateQuantity(req.Quantity)...)

	return errs
}

func validateCurrencies(source, target string) []ValidationError {
	var errs []ValidationError

	if source == "" {
		errs = append(errs, ValidationError{Field: "source_currency", Message: "source_currency is required"})
	}
	if target == "" {
		errs = append(errs, ValidationError{Field: "target_currency", Message: "target_currency is required"})
	}
	if source != "" && source == target {
		errs = append(errs, ValidationError{Field: "target_currency", Message: "target_currency must differ from source_currency"})
	}

	return errs
}

func validateQuantity(quantity decimal.Decimal) []ValidationError {
	var errs []ValidationError

	if quantity.LessThanOrEqual(decimal.Zero) {
		errs = append(errs, ValidationError{Field: "quantity", Message: "quantity must be positive"})
		return errs
	}
	if quantity.GreaterThan(maxQuantity) {
		errs = append(errs, ValidationError{Field: "quantity", Message: fmt.Sprintf("quantity exceeds maximum allowed (%s)", maxQuantity)})
	}
	if quantity.LessThan(minQuantity) {
		errs = append(errs, ValidationError{Field: "quantity", Message: fmt.Sprintf("quantity below minimum allowed (%s)", minQuantity)})
	}

	return errs
}

// paymentsOrEmpty keeps the payments field an array in JSON even when no
// trades happened
func paymentsOrEmpty(legs []settlement.PaymentLeg) []settlement.PaymentLeg {
	if legs == nil {
		return []settlement.PaymentLeg{}
	}
	return legs
}

func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func respondValidationErrors(w http.ResponseWriter, validationErrors []ValidationError) {
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"success": false,
		"error":   "Validation failed",
		"errors":  validationErrors,
	})
}

// respondError is a helper to send error responses
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]interface{}{
		"success":   false,
		"error":     message,
		"timestamp": time.Now().UnixMilli(),
	})
}

// checkIdempotencyKey looks up a cached response for the key; found reports
// whether dest was populated
func checkIdempotencyKey(ctx context.Context, redisClient *redis.Client, key string, dest interface{}) (bool, error) {
	redisKey := fmt.Sprintf("idempotency:%s", hashIdempotencyKey(key))

	cachedData, err := redisClient.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal([]byte(cachedData), dest); err != nil {
		return false, err
	}
	return true, nil
}

// cacheIdempotencyResponse stores the response with a 24-hour expiration
func cacheIdempotencyResponse(ctx context.Context, redisClient *redis.Client, key string, response interface{}) error {
	redisKey := fmt.Sprintf("idempotency:%s", hashIdempotencyKey(key))

	responseData, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to serialize response: %w", err)
	}

	if err := redisClient.Set(ctx, redisKey, responseData, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}
	return nil
}

// hashIdempotencyKey hashes the caller-supplied key so storage keys have a
// uniform shape
func hashIdempotencyKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
