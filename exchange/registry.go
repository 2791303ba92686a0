package exchange

import (
	"context"
	"sync"

	"github.com/shobande-femi/OrderBook/engine"
	"github.com/shobande-femi/OrderBook/logging"
	"github.com/shobande-femi/OrderBook/metrics"
	"github.com/shobande-femi/OrderBook/settlement"
)

// Registry owns every live order book, one matching engine per currency
// pair, plus the deferred-recipient entries for standing orders.
//
// Order IDs are scoped to a book, so recipient entries are keyed by
// (pair, order ID).
type Registry struct {
	mu        sync.RWMutex
	engines   map[string]*engine.MatchingEngine
	pending   map[string]map[uint64]string
	pendingCt int

	onCreate func(pair string, eng *engine.MatchingEngine)

	ctx context.Context
}

func NewRegistry(ctx context.Context) *Registry {
	return &Registry{
		engines: make(map[string]*engine.MatchingEngine),
		pending: make(map[string]map[uint64]string),
		ctx:     ctx,
	}
}

// Get returns the engine for a pair, or ErrBookNotFound if no liquidity has
// ever been provided for it
func (r *Registry) Get(pair string) (*engine.MatchingEngine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	eng, ok := r.engines[pair]
	if !ok {
		return nil, ErrBookNotFound
	}
	return eng, nil
}

// GetOrCreate returns the engine for a pair, creating and starting it on
// first use
func (r *Registry) GetOrCreate(pair string) (*engine.MatchingEngine, error) {
	r.mu.RLock()
	eng, ok := r.engines[pair]
	r.mu.RUnlock()
	if ok {
		return eng, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// re-check under the write lock
	if eng, ok = r.engines[pair]; ok {
		return eng, nil
	}

	eng = engine.NewMatchingEngine(pair)
	if err := eng.Start(r.ctx); err != nil {
		return nil, err
	}

	r.engines[pair] = eng
	logging.LogBookCreated(pair)

	if r.onCreate != nil {
		r.onCreate(pair, eng)
	}

	return eng, nil
}

// SetOnCreate registers a hook invoked whenever a new book's engine starts.
// Must be set before any book exists.
func (r *Registry) SetOnCreate(hook func(pair string, eng *engine.MatchingEngine)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCreate = hook
}

// Pairs returns the keys of all live books
func (r *Registry) Pairs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pairs := make([]string, 0, len(r.engines))
	for pair := range r.engines {
		pairs = append(pairs, pair)
	}
	return pairs
}

// RegisterRecipient records the deferred recipient for a standing order
func (r *Registry) RegisterRecipient(pair string, orderID uint64, recipient string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byOrder, ok := r.pending[pair]
	if !ok {
		byOrder = make(map[uint64]string)
		r.pending[pair] = byOrder
	}
	if _, exists := byOrder[orderID]; !exists {
		r.pendingCt++
	}
	byOrder[orderID] = recipient

	metrics.UpdatePendingRecipients(float64(r.pendingCt))
}

// LookupRecipient resolves the deferred recipient for a standing order
func (r *Registry) LookupRecipient(pair string, orderID uint64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recipient, ok := r.pending[pair][orderID]
	return recipient, ok
}

// EvictRecipient drops the entry for a standing order once it has fully
// filled and can never trade again
func (r *Registry) EvictRecipient(pair string, orderID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byOrder, ok := r.pending[pair]
	if !ok {
		return
	}
	if _, exists := byOrder[orderID]; !exists {
		return
	}

	delete(byOrder, orderID)
	r.pendingCt--
	if len(byOrder) == 0 {
		delete(r.pending, pair)
	}

	metrics.UpdatePendingRecipients(float64(r.pendingCt))
}

// PendingCount returns the number of registered deferred recipients
func (r *Registry) PendingCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pendingCt
}

// Directory returns a settlement.RecipientDirectory bound to one pair
func (r *Registry) Directory(pair string) settlement.RecipientDirectory {
	return &pairDirectory{registry: r, pair: pair}
}

type pairDirectory struct {
	registry *Registry
	pair     string
}

func (d *pairDirectory) Lookup(orderID uint64) (string, bool) {
	return d.registry.LookupRecipient(d.pair, orderID)
}

// Shutdown stops every matching engine
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for pair, eng := range r.engines {
		if err := eng.Stop(); err != nil {
			logging.GetLogger().WithField("pair", pair).WithError(err).Warn("Failed to stop matching engine")
		}
	}
}
