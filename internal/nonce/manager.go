// Package nonce tracks per-user order consumption state: bid/ask direction
// counters, individually cancelled order nonces, and cancelled subset
// nonces. Transitions are one-directional (valid to invalid); the only way
// an order nonce becomes usable again is under a new direction counter
// value, because counters are compared, never treated as seen/unseen sets.
package nonce

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tidepool-markets/tidepool/internal/order"
)

var (
	ErrNoNoncesToCancel     = errors.New("no nonces supplied to cancel")
	ErrGlobalNonceStale     = errors.New("direction nonce does not match current counter")
	ErrOrderNonceCancelled  = errors.New("order nonce cancelled or consumed")
	ErrSubsetNonceCancelled = errors.New("subset nonce cancelled")
)

// Journal receives nonce state transitions for durable recording. A nil
// journal is valid; entries are advisory and must not block.
type Journal interface {
	NonceIncremented(user common.Address, side order.Side, newValue uint64)
	OrderNoncesCancelled(user common.Address, nonces []uint64)
	SubsetNoncesCancelled(user common.Address, nonces []uint64)
}

// userState holds one user's counters and cancellation ledgers.
type userState struct {
	askNonce         uint64
	bidNonce         uint64
	cancelledOrders  map[uint64]struct{}
	cancelledSubsets map[uint64]struct{}
}

// Manager owns all nonce state. It is safe for concurrent use; the
// settlement engine serializes trades above it but cancellation entry
// points may be called from any goroutine.
type Manager struct {
	mu      sync.RWMutex
	users   map[common.Address]*userState
	journal Journal
}

// NewManager creates an empty Manager. journal may be nil.
func NewManager(journal Journal) *Manager {
	return &Manager{
		users:   make(map[common.Address]*userState),
		journal: journal,
	}
}

func (m *Manager) state(user common.Address) *userState {
	st, ok := m.users[user]
	if !ok {
		st = &userState{
			cancelledOrders:  make(map[uint64]struct{}),
			cancelledSubsets: make(map[uint64]struct{}),
		}
		m.users[user] = st
	}
	return st
}

// IncrementAskNonce bumps the user's ask counter, invalidating every
// unexecuted ask signed under the old value. Returns the new counter.
func (m *Manager) IncrementAskNonce(user common.Address) uint64 {
	m.mu.Lock()
	st := m.state(user)
	st.askNonce++
	v := st.askNonce
	m.mu.Unlock()

	if m.journal != nil {
		m.journal.NonceIncremented(user, order.Ask, v)
	}
	return v
}

// IncrementBidNonce bumps the user's bid counter, invalidating every
// unexecuted bid signed under the old value. Returns the new counter.
func (m *Manager) IncrementBidNonce(user common.Address) uint64 {
	m.mu.Lock()
	st := m.state(user)
	st.bidNonce++
	v := st.bidNonce
	m.mu.Unlock()

	if m.journal != nil {
		m.journal.NonceIncremented(user, order.Bid, v)
	}
	return v
}

// CancelOrderNonces marks specific order nonces permanently unusable for
// the user, regardless of the direction counter.
func (m *Manager) CancelOrderNonces(user common.Address, nonces []uint64) error {
	if len(nonces) == 0 {
		return ErrNoNoncesToCancel
	}

	m.mu.Lock()
	st := m.state(user)
	for _, n := range nonces {
		st.cancelledOrders[n] = struct{}{}
	}
	m.mu.Unlock()

	if m.journal != nil {
		m.journal.OrderNoncesCancelled(user, nonces)
	}
	return nil
}

// CancelSubsetNonces invalidates whole groups of related orders without
// bumping the global counter.
func (m *Manager) CancelSubsetNonces(user common.Address, nonces []uint64) error {
	if len(nonces) == 0 {
		return ErrNoNoncesToCancel
	}

	m.mu.Lock()
	st := m.state(user)
	for _, n := range nonces {
		st.cancelledSubsets[n] = struct{}{}
	}
	m.mu.Unlock()

	if m.journal != nil {
		m.journal.SubsetNoncesCancelled(user, nonces)
	}
	return nil
}

// Validate reports whether the maker order's nonces are currently live for
// its signer. Pure read; returns the first violated condition.
func (m *Manager) Validate(mo *order.MakerOrder) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.users[mo.Signer]
	if !ok {
		// Fresh user: counters are zero, nothing cancelled.
		if mo.GlobalNonce != 0 {
			return ErrGlobalNonceStale
		}
		return nil
	}

	current := st.askNonce
	if mo.Side == order.Bid {
		current = st.bidNonce
	}
	if mo.GlobalNonce != current {
		return ErrGlobalNonceStale
	}
	if _, cancelled := st.cancelledOrders[mo.OrderNonce]; cancelled {
		return ErrOrderNonceCancelled
	}
	if _, cancelled := st.cancelledSubsets[mo.SubsetNonce]; cancelled {
		return ErrSubsetNonceCancelled
	}
	return nil
}

// Consume marks the order nonce as used after successful execution. It is
// recorded in the same ledger as explicit cancellation: consumed and
// cancelled are indistinguishable to later validity checks.
func (m *Manager) Consume(user common.Address, orderNonce uint64) {
	m.mu.Lock()
	st := m.state(user)
	st.cancelledOrders[orderNonce] = struct{}{}
	m.mu.Unlock()
}

// CurrentNonces returns the user's current ask and bid counters.
func (m *Manager) CurrentNonces(user common.Address) (askNonce, bidNonce uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.users[user]
	if !ok {
		return 0, 0
	}
	return st.askNonce, st.bidNonce
}
