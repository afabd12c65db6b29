// Package strategy implements the pluggable execution strategies that turn
// a (maker, taker) order pair into a concrete fulfillment decision, and the
// registry that maps strategy ids to implementations.
//
// Every strategy exposes two entry points over the same rule set: Execute*
// (hard-failing, used at settlement) and IsMakerOrderValid (never fails,
// returns a stable code, used by off-chain screeners). Both route through
// shared pure evaluation helpers so they cannot diverge: a non-OK code and
// its sentinel error are two views of the same condition, linked by
// Code.Err.
package strategy

import (
	"errors"
	"math/big"
	"time"

	"github.com/tidepool-markets/tidepool/internal/order"
)

// Execution is a strategy's fulfillment decision.
type Execution struct {
	Price           *big.Int
	ItemIDs         []*big.Int
	Amounts         []*big.Int
	InvalidateNonce bool
}

// Clock supplies the current unix time in seconds. Injected so staleness
// and cooldown rules are testable.
type Clock func() int64

// Code is a stable screening result. Transient codes (stale feed, item
// flagged, underwater discount) can clear on their own; structural ones
// (malformed items, discount over 100%) never will.
type Code uint8

const (
	CodeOK Code = iota
	CodeSelectorInvalid
	CodeItemsMalformed
	CodeItemMismatch
	CodeParamsInvalid
	CodePriceFeedNotBound
	CodePriceNotPositive
	CodePriceFeedStale
	CodeDiscountOver100
	CodeDiscountExceedsFloor
	CodeBidTooLow
	CodeAskTooHigh
	CodeAttestationExpired
	CodeAttestationIDMismatch
	CodeAttestationSignerInvalid
	CodeItemFlagged
	CodeLastTransferUnknown
	CodeTransferCooldown
	CodeMerkleProofInvalid
)

// Sentinel errors, one per code.
var (
	ErrSelectorInvalid          = errors.New("function selector invalid for strategy")
	ErrItemsMalformed           = errors.New("maker item lists malformed")
	ErrItemMismatch             = errors.New("taker items do not match maker items")
	ErrParamsInvalid            = errors.New("strategy parameters invalid")
	ErrPriceFeedNotBound        = errors.New("no price feed bound for collection")
	ErrPriceNotPositive         = errors.New("oracle price not positive")
	ErrPriceFeedStale           = errors.New("oracle price stale")
	ErrDiscountOver100          = errors.New("discount of 100% or more")
	ErrDiscountExceedsFloor     = errors.New("discount meets or exceeds floor price")
	ErrBidTooLow                = errors.New("taker bid below execution price")
	ErrAskTooHigh               = errors.New("taker ask above execution price")
	ErrAttestationExpired       = errors.New("oracle attestation outside validity window")
	ErrAttestationIDMismatch    = errors.New("oracle attestation id mismatch")
	ErrAttestationSignerInvalid = errors.New("oracle attestation signer invalid")
	ErrItemFlagged              = errors.New("item is flagged")
	ErrLastTransferUnknown      = errors.New("oracle reported no last transfer time")
	ErrTransferCooldown         = errors.New("item transferred more recently than cooldown tolerance")
	ErrMerkleProofInvalid       = errors.New("item set merkle proof invalid")
)

var codeErrs = map[Code]error{
	CodeSelectorInvalid:          ErrSelectorInvalid,
	CodeItemsMalformed:           ErrItemsMalformed,
	CodeItemMismatch:             ErrItemMismatch,
	CodeParamsInvalid:            ErrParamsInvalid,
	CodePriceFeedNotBound:        ErrPriceFeedNotBound,
	CodePriceNotPositive:         ErrPriceNotPositive,
	CodePriceFeedStale:           ErrPriceFeedStale,
	CodeDiscountOver100:          ErrDiscountOver100,
	CodeDiscountExceedsFloor:     ErrDiscountExceedsFloor,
	CodeBidTooLow:                ErrBidTooLow,
	CodeAskTooHigh:               ErrAskTooHigh,
	CodeAttestationExpired:       ErrAttestationExpired,
	CodeAttestationIDMismatch:    ErrAttestationIDMismatch,
	CodeAttestationSignerInvalid: ErrAttestationSignerInvalid,
	CodeItemFlagged:              ErrItemFlagged,
	CodeLastTransferUnknown:      ErrLastTransferUnknown,
	CodeTransferCooldown:         ErrTransferCooldown,
	CodeMerkleProofInvalid:       ErrMerkleProofInvalid,
}

// Err returns the sentinel error for a non-OK code, nil for CodeOK.
func (c Code) Err() error {
	if c == CodeOK {
		return nil
	}
	if err, ok := codeErrs[c]; ok {
		return err
	}
	return ErrParamsInvalid
}

func (c Code) String() string {
	if c == CodeOK {
		return "ok"
	}
	return c.Err().Error()
}

// Strategy is the execution-strategy contract. The selector pins a signed
// maker order to one variant when an implementation exposes several;
// implementations must reject selectors that are not theirs.
type Strategy interface {
	// ExecuteTakerBid settles a taker buying against a maker ask.
	ExecuteTakerBid(taker *order.TakerOrder, maker *order.MakerOrder, selector [4]byte) (Execution, error)

	// ExecuteTakerAsk settles a taker selling into a maker bid.
	ExecuteTakerAsk(taker *order.TakerOrder, maker *order.MakerOrder, selector [4]byte) (Execution, error)

	// IsMakerOrderValid screens a maker order without the taker side.
	// It never fails; it reports the first violated rule as a Code.
	IsMakerOrderValid(maker *order.MakerOrder, selector [4]byte) (bool, Code)
}

func defaultClock() int64 { return time.Now().Unix() }
