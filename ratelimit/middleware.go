package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shobande-femi/OrderBook/logging"
)

// Middleware enforces the limiter on HTTP requests
type Middleware struct {
	limiter      *TokenBucketLimiter
	keyExtractor KeyExtractor
	skipPaths    map[string]bool
}

// KeyExtractor derives the bucket key for a request
type KeyExtractor func(r *http.Request) string

// MiddlewareConfig configures the rate limiting middleware
type MiddlewareConfig struct {
	Limiter      *TokenBucketLimiter
	KeyExtractor KeyExtractor
	SkipPaths    []string
}

func NewMiddleware(config MiddlewareConfig) *Middleware {
	if config.KeyExtractor == nil {
		config.KeyExtractor = TraderKeyExtractor
	}

	skipPaths := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return &Middleware{
		limiter:      config.Limiter,
		keyExtractor: config.KeyExtractor,
		skipPaths:    skipPaths,
	}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		clientKey := m.keyExtractor(r)

		result, err := m.limiter.Allow(r.Context(), clientKey)
		if err != nil {
			// fail open: an unavailable limiter must not reject trades
			logging.GetLogger().WithError(err).Warn("Rate limiter error, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", m.limiter.MaxTokens()))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))

		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds()) + 1

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetAt.Unix()))
			w.WriteHeader(http.StatusTooManyRequests)

			logging.GetLogger().WithField("client_key", clientKey).
				WithField("retry_after", retryAfter).
				Warn("Rate limit exceeded")

			fmt.Fprintf(w, `{"msg": "Too many requests", "retry_after_seconds": %d, "reset_at": "%s"}`,
				retryAfter, result.ResetAt.Format(time.RFC3339))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// TraderKeyExtractor buckets by trader identity when the caller supplies it,
// falling back to the client IP
func TraderKeyExtractor(r *http.Request) string {
	if traderID := r.Header.Get("X-Trader-ID"); traderID != "" {
		return "trader:" + traderID
	}
	if traderID := r.URL.Query().Get("trader_id"); traderID != "" {
		return "trader:" + traderID
	}
	return "ip:" + ClientIP(r)
}

// ClientIP extracts the caller's IP, honoring proxy headers
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
