package strategy

import (
	"errors"
	"sync"
)

var (
	ErrStrategyNotAvailable = errors.New("strategy not available")
	ErrStrategyExists       = errors.New("strategy id already registered")
	ErrFeeTooHigh           = errors.New("protocol fee exceeds strategy maximum")
	ErrZeroSelector         = errors.New("strategy selector must be set")
	ErrNilStrategy          = errors.New("nil strategy implementation")
)

// Entry binds a strategy id to an implementation, the execution variant it
// is pinned to, its fee schedule, and its activation state.
type Entry struct {
	Impl          Strategy
	Selector      [4]byte
	Active        bool
	ProtocolFeeBp uint16
	MaxFeeBp      uint16
}

// Registry maps strategy ids to entries. Removal is logical deactivation:
// historical ids stay addressable so makers of already-signed orders can
// still cancel them explicitly.
type Registry struct {
	mu      sync.RWMutex
	entries map[uint16]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint16]Entry)}
}

// Add registers a strategy. Fails on a duplicate id, a zero selector, a
// nil implementation, or a protocol fee above the entry's own maximum.
func (r *Registry) Add(id uint16, e Entry) error {
	if e.Impl == nil {
		return ErrNilStrategy
	}
	if e.Selector == ([4]byte{}) {
		return ErrZeroSelector
	}
	if e.ProtocolFeeBp > e.MaxFeeBp {
		return ErrFeeTooHigh
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return ErrStrategyExists
	}
	e.Active = true
	r.entries[id] = e
	return nil
}

// Update changes a strategy's activation flag and protocol fee. The fee
// bound set at Add time still applies.
func (r *Registry) Update(id uint16, active bool, protocolFeeBp uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[id]
	if !exists {
		return ErrStrategyNotAvailable
	}
	if protocolFeeBp > e.MaxFeeBp {
		return ErrFeeTooHigh
	}
	e.Active = active
	e.ProtocolFeeBp = protocolFeeBp
	r.entries[id] = e
	return nil
}

// Remove deactivates a strategy. New trades can no longer select it; past
// executions are unaffected and the entry remains inspectable.
func (r *Registry) Remove(id uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[id]
	if !exists {
		return ErrStrategyNotAvailable
	}
	e.Active = false
	r.entries[id] = e
	return nil
}

// Resolve returns the entry for an active strategy id. Unknown and
// deactivated ids both fail with ErrStrategyNotAvailable.
func (r *Registry) Resolve(id uint16) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[id]
	if !exists || !e.Active {
		return Entry{}, ErrStrategyNotAvailable
	}
	return e, nil
}

// Inspect returns the entry regardless of activation state, for
// cancellation tooling and operators.
func (r *Registry) Inspect(id uint16) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, exists := r.entries[id]
	return e, exists
}
