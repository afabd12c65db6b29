package oracle

import (
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrFeedNotBound   = errors.New("no price feed bound for collection")
	ErrFeedAlreadySet = errors.New("price feed already bound for collection")
	ErrNilFeed        = errors.New("nil price feed")
)

// Binding ties a collection to its price feed and the maximum tolerated
// staleness for that feed's rounds.
type Binding struct {
	Feed       PriceFeed
	MaxLatency time.Duration
}

// FeedRegistry maps collections to price-feed bindings. By default a
// binding is immutable once set; AllowRebind selects the overridable
// variant.
type FeedRegistry struct {
	mu          sync.RWMutex
	bindings    map[common.Address]Binding
	allowRebind bool
}

// NewFeedRegistry creates an empty registry.
func NewFeedRegistry(allowRebind bool) *FeedRegistry {
	return &FeedRegistry{
		bindings:    make(map[common.Address]Binding),
		allowRebind: allowRebind,
	}
}

// Bind associates a collection with a feed. Fails with ErrFeedAlreadySet
// when the collection is bound and rebinding is not allowed.
func (r *FeedRegistry) Bind(collection common.Address, feed PriceFeed, maxLatency time.Duration) error {
	if feed == nil {
		return ErrNilFeed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bindings[collection]; exists && !r.allowRebind {
		return ErrFeedAlreadySet
	}
	r.bindings[collection] = Binding{Feed: feed, MaxLatency: maxLatency}
	return nil
}

// Lookup returns the binding for a collection.
func (r *FeedRegistry) Lookup(collection common.Address) (Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[collection]
	if !ok {
		return Binding{}, ErrFeedNotBound
	}
	return b, nil
}
