// Package signature validates that an order digest was signed by the
// claimed maker. Externally-owned signers are checked by ECDSA public key
// recovery; contract-wallet signers are asked to validate via the ERC-1271
// callback, which executes untrusted code (the settlement engine guards
// the full trade path against reentrancy for this reason).
package signature

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrSignatureLength  = errors.New("signature length invalid")
	ErrSignatureInvalid = errors.New("signature invalid")
	ErrSignerInvalid    = errors.New("recovered signer does not match")
)

// MagicValue is the ERC-1271 success return for isValidSignature.
var MagicValue = [4]byte{0x16, 0x26, 0xba, 0x7e}

// WalletValidator asks a contract wallet to validate a signature over a
// digest. Implementations call the wallet's isValidSignature entry point
// and return whatever 4-byte value it answers with.
type WalletValidator interface {
	IsValidSignature(wallet common.Address, digest common.Hash, sig []byte) ([4]byte, error)
}

// CodeChecker reports whether an address hosts contract code, which
// selects the ERC-1271 path over plain recovery.
type CodeChecker interface {
	HasCode(addr common.Address) bool
}

// Verifier validates signatures for both signer classes.
type Verifier struct {
	wallets WalletValidator
	code    CodeChecker
}

// NewVerifier creates a Verifier. Both collaborators may be nil, in which
// case every signer is treated as externally owned.
func NewVerifier(wallets WalletValidator, code CodeChecker) *Verifier {
	return &Verifier{wallets: wallets, code: code}
}

// Verify checks that sig is a valid signature over digest by signer.
// Accepts 65-byte r||s||v (v in {0,1,27,28}) and 64-byte EIP-2098 compact
// signatures; anything else fails with ErrSignatureLength.
func (v *Verifier) Verify(digest common.Hash, signer common.Address, sig []byte) error {
	if v.code != nil && v.wallets != nil && v.code.HasCode(signer) {
		magic, err := v.wallets.IsValidSignature(signer, digest, sig)
		if err != nil {
			return ErrSignatureInvalid
		}
		if magic != MagicValue {
			return ErrSignatureInvalid
		}
		return nil
	}

	recovered, err := Recover(digest, sig)
	if err != nil {
		return err
	}
	if recovered != signer {
		return ErrSignerInvalid
	}
	return nil
}

// Recover normalizes the signature into the 65-byte [r||s||v] form with
// v in {0,1} that go-ethereum expects, then recovers the signing address.
func Recover(digest common.Hash, sig []byte) (common.Address, error) {
	var normalized []byte

	switch len(sig) {
	case 65:
		normalized = append([]byte(nil), sig...)
		if normalized[64] >= 27 {
			normalized[64] -= 27
		}
		if normalized[64] > 1 {
			return common.Address{}, ErrSignatureInvalid
		}
	case 64:
		// EIP-2098: v is packed into the top bit of s.
		normalized = make([]byte, 65)
		copy(normalized[:32], sig[:32])
		copy(normalized[32:64], sig[32:])
		normalized[64] = normalized[32] >> 7
		normalized[32] &= 0x7f
	default:
		return common.Address{}, ErrSignatureLength
	}

	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, ErrSignatureInvalid
	}
	return crypto.PubkeyToAddress(*pub), nil
}
