// Package attestor is the oracle side of the collection-offer flow: it
// holds the oracle signing key in locked memory and produces the signed
// flagged-status attestations the settlement strategies verify.
package attestor

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tidepool-markets/tidepool/internal/oracle"
)

var (
	ErrNoActiveSession = errors.New("no active session")
	ErrSessionExpired  = errors.New("session expired")
)

// Session holds the decrypted oracle key in locked memory with a TTL. The
// key is encrypted at rest via memguard.Enclave and only opened
// momentarily while signing one attestation.
type Session struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave // encrypted-at-rest key buffer
	address   common.Address    // derived oracle signer address
	expiresAt time.Time
	ttl       time.Duration
}

// NewSession creates a session manager with the given TTL. No session is
// active until Activate is called.
func NewSession(ttl time.Duration) *Session {
	return &Session{ttl: ttl}
}

// Activate seals keyBytes into a memguard Enclave, derives the oracle
// address, and sets expiry. The caller MUST zero their copy of keyBytes
// after calling this.
func (s *Session) Activate(keyBytes []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Derive the address before sealing the key.
	privKey, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return fmt.Errorf("invalid oracle key: %w", err)
	}
	addr := crypto.PubkeyToAddress(privKey.PublicKey)

	// Clear any previous session.
	s.enclave = nil

	s.enclave = memguard.NewEnclave(keyBytes)
	s.expiresAt = time.Now().Add(s.ttl)
	s.address = addr
	return nil
}

// Attest opens the enclave momentarily and signs a flagged-status
// attestation for one item, timestamped now.
func (s *Session) Attest(collection common.Address, itemID *big.Int, flagged bool, lastTransferTime int64) (*oracle.Attestation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enclave == nil {
		return nil, ErrNoActiveSession
	}
	if time.Now().After(s.expiresAt) {
		s.destroyLocked()
		return nil, ErrSessionExpired
	}

	buf, err := s.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("open enclave: %w", err)
	}

	privKey, err := crypto.ToECDSA(buf.Bytes())
	buf.Destroy()
	if err != nil {
		return nil, fmt.Errorf("parse oracle key: %w", err)
	}

	return oracle.SignAttestation(privKey, collection, itemID, flagged, lastTransferTime, time.Now().Unix())
}

// Address returns the oracle signer address, or the zero address when no
// session is active.
func (s *Session) Address() common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.enclave == nil || time.Now().After(s.expiresAt) {
		return common.Address{}
	}
	return s.address
}

// Destroy zeroes and destroys the enclave, resetting all session state.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyLocked()
}

// destroyLocked performs the actual cleanup. Caller must hold s.mu.
func (s *Session) destroyLocked() {
	s.enclave = nil
	s.address = common.Address{}
}
