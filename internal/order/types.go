package order

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Shape errors returned by MakerOrder.Validate.
var (
	ErrInvalidSide        = errors.New("invalid order side")
	ErrInvalidAssetType   = errors.New("invalid asset type")
	ErrItemLengthMismatch = errors.New("item id and amount lists differ in length")
	ErrNoItems            = errors.New("order carries no items")
	ErrZeroAmount         = errors.New("item amount must be positive")
	ErrERC721Amount       = errors.New("erc721 item amount must be exactly one")
)

// Side represents the direction of a maker order.
type Side uint8

const (
	Ask Side = iota + 1 // maker is selling
	Bid                 // maker is buying
)

func (s Side) String() string {
	switch s {
	case Ask:
		return "ask"
	case Bid:
		return "bid"
	default:
		return "unknown"
	}
}

// AssetType identifies the token standard of the traded collection.
type AssetType uint8

const (
	ERC721  AssetType = 0
	ERC1155 AssetType = 1
)

func (t AssetType) String() string {
	switch t {
	case ERC721:
		return "erc721"
	case ERC1155:
		return "erc1155"
	default:
		return "unknown"
	}
}

// MakerOrder is a signed, off-chain-created standing trade intent.
// It is a transient call-scoped value and is never persisted.
type MakerOrder struct {
	Side        Side
	GlobalNonce uint64 // per-direction counter value the order was signed under
	SubsetNonce uint64 // groups related orders for bulk cancellation
	OrderNonce  uint64 // consumed at most once per counter value
	StrategyID  uint16
	AssetType   AssetType
	Collection  common.Address
	Currency    common.Address // zero address means the native asset
	Signer      common.Address
	StartTime   int64    // unix seconds, inclusive
	EndTime     int64    // unix seconds, inclusive
	Price       *big.Int // reserve: minimum for an ask, maximum for a bid
	ItemIDs     []*big.Int
	Amounts     []*big.Int
	Params      []byte // opaque strategy-specific parameters
}

// TakerOrder is the immediate counter-intent supplied at settlement time.
// It is never signed; the caller is the taker.
type TakerOrder struct {
	Recipient common.Address
	Price     *big.Int // limit: maximum for a taker bid, minimum for a taker ask
	ItemIDs   []*big.Int
	Amounts   []*big.Int
	Params    []byte
}

// Validate checks the structural shape of the order. Strategies that permit
// an implicit item set (collection offers) pass allowEmptyItems.
func (m *MakerOrder) Validate(allowEmptyItems bool) error {
	if m.Side != Ask && m.Side != Bid {
		return ErrInvalidSide
	}
	if m.AssetType != ERC721 && m.AssetType != ERC1155 {
		return ErrInvalidAssetType
	}
	if len(m.ItemIDs) != len(m.Amounts) {
		return ErrItemLengthMismatch
	}
	if len(m.ItemIDs) == 0 && !allowEmptyItems {
		return ErrNoItems
	}
	for _, amt := range m.Amounts {
		if amt == nil || amt.Sign() <= 0 {
			return ErrZeroAmount
		}
		if m.AssetType == ERC721 && amt.Cmp(big.NewInt(1)) != 0 {
			return ErrERC721Amount
		}
	}
	return nil
}
