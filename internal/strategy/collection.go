package strategy

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tidepool-markets/tidepool/internal/oracle"
	"github.com/tidepool-markets/tidepool/internal/order"
)

// CollectionOffer executes a blanket maker bid on any qualifying item in a
// collection, optionally restricted to a merkle-committed item subset. The
// taker supplies the item id and an oracle attestation of its flagged
// status and last transfer time; every attestation check has its own code
// so clients can tell "flagged right now" from "proof invalid" from
// "attestation expired".
type CollectionOffer struct {
	oracleSigner   common.Address
	validityWindow time.Duration
	now            Clock
}

// NewCollectionOffer creates the strategy pinned to a fixed oracle
// identity.
func NewCollectionOffer(oracleSigner common.Address, validityWindow time.Duration) *CollectionOffer {
	return &CollectionOffer{
		oracleSigner:   oracleSigner,
		validityWindow: validityWindow,
		now:            defaultClock,
	}
}

// ExecuteTakerBid always fails: a collection offer is a maker bid.
func (s *CollectionOffer) ExecuteTakerBid(*order.TakerOrder, *order.MakerOrder, [4]byte) (Execution, error) {
	return Execution{}, ErrSelectorInvalid
}

// ExecuteTakerAsk settles a taker selling one item into the offer.
func (s *CollectionOffer) ExecuteTakerAsk(taker *order.TakerOrder, maker *order.MakerOrder, selector [4]byte) (Execution, error) {
	withProof, ok := s.variant(selector)
	if !ok {
		return Execution{}, ErrSelectorInvalid
	}

	makerParams, code := s.evalMaker(maker, withProof)
	if code != CodeOK {
		return Execution{}, code.Err()
	}

	takerParams, err := decodeCollectionTakerParams(taker.Params, withProof)
	if err != nil {
		return Execution{}, ErrParamsInvalid
	}

	if code := s.checkAttestation(maker, makerParams, takerParams, withProof); code != CodeOK {
		return Execution{}, code.Err()
	}

	// Offer price is the maker's signed maximum; the taker's limit is a
	// minimum it must not undercut.
	if taker.Price.Cmp(maker.Price) > 0 {
		return Execution{}, ErrAskTooHigh
	}

	return Execution{
		Price:           new(big.Int).Set(maker.Price),
		ItemIDs:         []*big.Int{takerParams.ItemID},
		Amounts:         []*big.Int{big.NewInt(1)},
		InvalidateNonce: true,
	}, nil
}

// IsMakerOrderValid screens the maker side. Attestation and proof
// material arrive with the taker, so only shape, parameters, and selector
// pinning are checkable here.
func (s *CollectionOffer) IsMakerOrderValid(maker *order.MakerOrder, selector [4]byte) (bool, Code) {
	withProof, ok := s.variant(selector)
	if !ok {
		return false, CodeSelectorInvalid
	}
	_, code := s.evalMaker(maker, withProof)
	return code == CodeOK, code
}

func (s *CollectionOffer) variant(selector [4]byte) (withProof, ok bool) {
	switch selector {
	case SelectorCollectionOfferTakerAsk:
		return false, true
	case SelectorCollectionOfferProofTakerAsk:
		return true, true
	default:
		return false, false
	}
}

// evalMaker is the shared pure maker-side evaluation.
func (s *CollectionOffer) evalMaker(maker *order.MakerOrder, withProof bool) (CollectionMakerParams, Code) {
	var p CollectionMakerParams

	if maker.Side != order.Bid {
		return p, CodeSelectorInvalid
	}
	if err := maker.Validate(true); err != nil {
		return p, CodeItemsMalformed
	}
	// The item set is implicit: a collection offer naming explicit items
	// belongs to the fixed-price strategy.
	if len(maker.ItemIDs) != 0 {
		return p, CodeItemsMalformed
	}

	p, err := decodeCollectionMakerParams(maker.Params, withProof)
	if err != nil {
		return p, CodeParamsInvalid
	}
	if p.Cooldown <= 0 {
		return p, CodeParamsInvalid
	}
	if withProof && p.Root == (common.Hash{}) {
		return p, CodeParamsInvalid
	}
	return p, CodeOK
}

// checkAttestation runs the taker-supplied oracle attestation through
// every guard, in a fixed order so each failure is independently
// distinguishable.
func (s *CollectionOffer) checkAttestation(maker *order.MakerOrder, mp CollectionMakerParams, tp CollectionTakerParams, withProof bool) Code {
	now := s.now()
	att := tp.Attestation

	// 1. Attestation must be fresh: within the validity window and not
	// from the future.
	if att.Timestamp > now || now-att.Timestamp > int64(s.validityWindow.Seconds()) {
		return CodeAttestationExpired
	}

	// 2. The attested message id must match the one recomputed from the
	// trade's own (collection, item) pair.
	if oracle.FlaggedStatusID(maker.Collection, tp.ItemID) != att.ID {
		return CodeAttestationIDMismatch
	}

	// 3. The signature must recover to the fixed oracle identity.
	signer, err := att.RecoverSigner()
	if err != nil || signer != s.oracleSigner {
		return CodeAttestationSignerInvalid
	}

	// 4. Payload rules: not flagged, a known last transfer time, and a
	// transfer no more recent than the maker's cooldown tolerance.
	flagged, lastTransfer, err := oracle.DecodePayload(att.Payload)
	if err != nil {
		return CodeParamsInvalid
	}
	if flagged {
		return CodeItemFlagged
	}
	if lastTransfer == 0 {
		return CodeLastTransferUnknown
	}
	if now-lastTransfer < mp.Cooldown {
		return CodeTransferCooldown
	}

	// 5. Merkle membership for the scoped variant.
	if withProof {
		leaf := crypto.Keccak256Hash(common.LeftPadBytes(tp.ItemID.Bytes(), 32))
		if !order.VerifyProof(mp.Root, leaf, tp.Proof) {
			return CodeMerkleProofInvalid
		}
	}

	return CodeOK
}
