package oracle

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tidepool-markets/tidepool/internal/signature"
)

var (
	ErrPayloadLength = errors.New("attestation payload length invalid")
)

// Type hashes for the attestation scheme. The message id binds the
// attestation to one (collection, item) pair; the attestation hash binds
// id, payload, and timestamp into the signed digest.
var (
	flaggedStatusTypeHash = crypto.Keccak256Hash([]byte(
		"FlaggedStatus(address collection,uint256 itemId)",
	))
	attestationTypeHash = crypto.Keccak256Hash([]byte(
		"Attestation(bytes32 id,bytes32 payloadHash,uint256 timestamp)",
	))
)

// Attestation is the off-chain oracle statement consumed by the
// collection-offer strategy: the oracle attests, as of Timestamp, to the
// flagged status and last transfer time of one item.
type Attestation struct {
	ID        common.Hash
	Payload   []byte
	Timestamp int64
	Signature []byte
}

// FlaggedStatusID computes the expected message id for an item. The
// strategy recomputes this from the trade's (collection, itemId) and
// requires it to match the attested id.
func FlaggedStatusID(collection common.Address, itemID *big.Int) common.Hash {
	return crypto.Keccak256Hash(
		flaggedStatusTypeHash.Bytes(),
		common.LeftPadBytes(collection.Bytes(), 32),
		common.LeftPadBytes(itemID.Bytes(), 32),
	)
}

// EncodePayload packs (flagged, lastTransferTime) into two 32-byte words.
func EncodePayload(flagged bool, lastTransferTime int64) []byte {
	flaggedWord := big.NewInt(0)
	if flagged {
		flaggedWord = big.NewInt(1)
	}
	payload := make([]byte, 0, 64)
	payload = append(payload, common.LeftPadBytes(flaggedWord.Bytes(), 32)...)
	payload = append(payload, common.LeftPadBytes(big.NewInt(lastTransferTime).Bytes(), 32)...)
	return payload
}

// DecodePayload unpacks an attestation payload.
func DecodePayload(payload []byte) (flagged bool, lastTransferTime int64, err error) {
	if len(payload) != 64 {
		return false, 0, ErrPayloadLength
	}
	flagged = new(big.Int).SetBytes(payload[:32]).Sign() != 0
	last := new(big.Int).SetBytes(payload[32:])
	if !last.IsInt64() {
		return false, 0, ErrPayloadLength
	}
	return flagged, last.Int64(), nil
}

// Digest computes the signing digest for the attestation.
func (a *Attestation) Digest() common.Hash {
	return crypto.Keccak256Hash(
		attestationTypeHash.Bytes(),
		a.ID.Bytes(),
		crypto.Keccak256(a.Payload),
		common.LeftPadBytes(big.NewInt(a.Timestamp).Bytes(), 32),
	)
}

// SignAttestation produces a signed attestation for an item. Used by the
// attestor daemon and by tests; settlement only verifies.
func SignAttestation(key *ecdsa.PrivateKey, collection common.Address, itemID *big.Int, flagged bool, lastTransferTime, timestamp int64) (*Attestation, error) {
	a := &Attestation{
		ID:        FlaggedStatusID(collection, itemID),
		Payload:   EncodePayload(flagged, lastTransferTime),
		Timestamp: timestamp,
	}
	sig, err := crypto.Sign(a.Digest().Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("sign attestation: %w", err)
	}
	// Ethereum convention: v in {27, 28}.
	sig[64] += 27
	a.Signature = sig
	return a, nil
}

// RecoverSigner returns the address that signed the attestation.
func (a *Attestation) RecoverSigner() (common.Address, error) {
	return signature.Recover(a.Digest(), a.Signature)
}
