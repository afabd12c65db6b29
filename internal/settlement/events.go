package settlement

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tidepool-markets/tidepool/internal/fees"
	"github.com/tidepool-markets/tidepool/internal/order"
)

// TradeKind distinguishes which side initiated settlement.
type TradeKind uint8

const (
	TakerBid TradeKind = iota + 1 // taker buys against a maker ask
	TakerAsk                      // taker sells into a maker bid
)

func (k TradeKind) String() string {
	switch k {
	case TakerBid:
		return "taker-bid"
	case TakerAsk:
		return "taker-ask"
	default:
		return "unknown"
	}
}

// Trade bundles everything one settlement needs.
type Trade struct {
	Kind           TradeKind
	Taker          *order.TakerOrder
	Maker          *order.MakerOrder
	MakerSignature []byte
	Batch          *order.MerkleBatch // set when the maker signed a batch root
	Affiliate      common.Address     // zero when no affiliate
}

// Fulfillment is emitted after a trade fully settles. It mirrors what
// marketplace indexers consume.
type Fulfillment struct {
	Kind       TradeKind
	OrderHash  common.Hash
	Maker      common.Address
	Taker      common.Address
	StrategyID uint16
	Collection common.Address
	Currency   common.Address
	ItemIDs    []*big.Int
	Amounts    []*big.Int
	Price      *big.Int
	Fees       fees.Breakdown
	ExecutedAt int64

	// invalidateNonce carries the strategy's decision from validation to
	// the commit step.
	invalidateNonce bool
}

// Publisher receives fulfillment events. Implementations must not block;
// the ledger writer buffers internally.
type Publisher interface {
	Fulfilled(f Fulfillment)
}
