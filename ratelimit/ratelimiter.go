package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and debits a bucket atomically so concurrent
// instances sharing one Redis agree on the count
const tokenBucketScript = `
	local key = KEYS[1]
	local max_tokens = tonumber(ARGV[1])
	local refill_rate = tonumber(ARGV[2])
	local refill_interval_ms = tonumber(ARGV[3])
	local now_ms = tonumber(ARGV[4])

	local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
	local tokens = tonumber(bucket[1])
	local last_refill_ms = tonumber(bucket[2])

	if tokens == nil then
		tokens = max_tokens
		last_refill_ms = now_ms
	end

	local elapsed_ms = now_ms - last_refill_ms
	local tokens_to_add = (elapsed_ms / refill_interval_ms) * refill_rate
	tokens = math.min(max_tokens, tokens + tokens_to_add)

	local allowed = tokens >= 1
	if allowed then
		tokens = tokens - 1
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_refill', now_ms)
	redis.call('EXPIRE', key, 3600)

	return {allowed and 1 or 0, math.floor(tokens), tostring(tokens)}
`

// TokenBucketLimiter is a per-client token bucket. State lives in Redis when
// available so every instance enforces the same budget; otherwise it falls
// back to a local in-memory store.
type TokenBucketLimiter struct {
	redisClient *redis.Client
	local       *localStore
	useRedis    bool
	mu          sync.Mutex

	maxTokens      int
	refillRate     int
	refillInterval time.Duration
	keyPrefix      string
}

// Config sets the bucket shape. A zero value field takes its default.
type Config struct {
	MaxTokens      int
	RefillRate     int
	RefillInterval time.Duration
	KeyPrefix      string
}

// Result reports one admission decision
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

func DefaultConfig() Config {
	return Config{
		MaxTokens:      100,
		RefillRate:     10,
		RefillInterval: time.Second,
		KeyPrefix:      "ratelimit:",
	}
}

func NewTokenBucketLimiter(redisClient *redis.Client, config Config) *TokenBucketLimiter {
	defaults := DefaultConfig()
	if config.MaxTokens == 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if config.RefillRate == 0 {
		config.RefillRate = defaults.RefillRate
	}
	if config.RefillInterval == 0 {
		config.RefillInterval = defaults.RefillInterval
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaults.KeyPrefix
	}

	limiter := &TokenBucketLimiter{
		redisClient:    redisClient,
		maxTokens:      config.MaxTokens,
		refillRate:     config.RefillRate,
		refillInterval: config.RefillInterval,
		keyPrefix:      config.KeyPrefix,
	}

	if redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err == nil {
			limiter.useRedis = true
		}
	}

	if !limiter.useRedis {
		limiter.local = newLocalStore()
	}

	return limiter
}

// Allow decides whether one request from clientKey may proceed
func (tbl *TokenBucketLimiter) Allow(ctx context.Context, clientKey string) (*Result, error) {
	if tbl.isRedis() {
		return tbl.allowRedis(ctx, clientKey)
	}
	return tbl.allowLocal(clientKey), nil
}

// MaxTokens returns the configured bucket capacity
func (tbl *TokenBucketLimiter) MaxTokens() int {
	return tbl.maxTokens
}

func (tbl *TokenBucketLimiter) isRedis() bool {
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	return tbl.useRedis
}

// degrade switches to the local store after a Redis failure
func (tbl *TokenBucketLimiter) degrade() {
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	if tbl.local == nil {
		tbl.local = newLocalStore()
	}
	tbl.useRedis = false
}

func (tbl *TokenBucketLimiter) allowRedis(ctx context.Context, clientKey string) (*Result, error) {
	now := time.Now()

	raw, err := tbl.redisClient.Eval(ctx, tokenBucketScript, []string{tbl.keyPrefix + clientKey},
		tbl.maxTokens,
		tbl.refillRate,
		tbl.refillInterval.Milliseconds(),
		now.UnixMilli(),
	).Result()
	if err != nil {
		tbl.degrade()
		return tbl.allowLocal(clientKey), nil
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) < 3 {
		tbl.degrade()
		return tbl.allowLocal(clientKey), nil
	}

	allowed := values[0].(int64) == 1
	remaining := int(values[1].(int64))

	result := &Result{
		Allowed:   allowed,
		Remaining: remaining,
	}
	if !allowed {
		result.RetryAfter = tbl.timeToNextToken(0)
		result.ResetAt = now.Add(result.RetryAfter)
	}

	return result, nil
}

func (tbl *TokenBucketLimiter) allowLocal(clientKey string) *Result {
	bucket := tbl.local.getOrCreate(clientKey, tbl.maxTokens, tbl.refillRate, tbl.refillInterval)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(bucket.lastRefill)
	bucket.tokens = minf(float64(bucket.maxTokens), bucket.tokens+elapsed.Seconds()*bucket.refillPerSec)
	bucket.lastRefill = now

	result := &Result{Allowed: bucket.tokens >= 1}
	if result.Allowed {
		bucket.tokens--
	} else {
		result.RetryAfter = tbl.timeToNextToken(bucket.tokens)
		result.ResetAt = now.Add(result.RetryAfter)
	}
	result.Remaining = int(bucket.tokens)

	return result
}

// timeToNextToken computes how long until one whole token is available
func (tbl *TokenBucketLimiter) timeToNextToken(current float64) time.Duration {
	perSecond := float64(tbl.refillRate) / tbl.refillInterval.Seconds()
	return time.Duration((1.0 - current) / perSecond * float64(time.Second))
}

type localStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	mu           sync.Mutex
	tokens       float64
	lastRefill   time.Time
	maxTokens    int
	refillPerSec float64
}

func newLocalStore() *localStore {
	store := &localStore{buckets: make(map[string]*bucket)}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			store.evictIdle()
		}
	}()

	return store
}

func (ls *localStore) getOrCreate(clientKey string, maxTokens, refillRate int, refillInterval time.Duration) *bucket {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	b, ok := ls.buckets[clientKey]
	if !ok {
		b = &bucket{
			tokens:       float64(maxTokens),
			lastRefill:   time.Now(),
			maxTokens:    maxTokens,
			refillPerSec: float64(refillRate) / refillInterval.Seconds(),
		}
		ls.buckets[clientKey] = b
	}
	return b
}

func (ls *localStore) evictIdle() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	now := time.Now()
	for key, b := range ls.buckets {
		if now.Sub(b.lastRefill) > time.Hour {
			delete(ls.buckets, key)
		}
	}
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
