// Package oracle provides the price-feed surface consumed by the
// Chainlink-dependent execution strategies, per-collection feed bindings,
// the websocket gateway that keeps in-memory feeds current, and the
// off-chain attestation format used by collection offers.
package oracle

import (
	"errors"
	"math/big"
	"sync"
)

var (
	ErrNoRoundData = errors.New("feed has no round data yet")
)

// PriceFeed reports the latest oracle answer. Consumers must treat a
// non-positive answer and a stale updatedAt as hard failures, never as
// zero or a default.
type PriceFeed interface {
	LatestRoundData() (answer *big.Int, updatedAt int64, err error)
}

// MemoryFeed is a PriceFeed backed by process memory, written by the
// gateway (or by tests) and read by strategies.
type MemoryFeed struct {
	mu        sync.RWMutex
	answer    *big.Int
	updatedAt int64
}

// NewMemoryFeed creates an empty feed. LatestRoundData fails until the
// first Update.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{}
}

// Update records a new round. The answer is copied.
func (f *MemoryFeed) Update(answer *big.Int, updatedAt int64) {
	f.mu.Lock()
	f.answer = new(big.Int).Set(answer)
	f.updatedAt = updatedAt
	f.mu.Unlock()
}

// LatestRoundData returns the most recent round.
func (f *MemoryFeed) LatestRoundData() (*big.Int, int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.answer == nil {
		return nil, 0, ErrNoRoundData
	}
	return new(big.Int).Set(f.answer), f.updatedAt, nil
}
