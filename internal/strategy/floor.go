package strategy

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tidepool-markets/tidepool/internal/oracle"
	"github.com/tidepool-markets/tidepool/internal/order"
)

// ChainlinkFloor prices orders relative to a collection's oracle-reported
// floor. Asks execute at floor plus a premium (fixed amount or basis
// points), bids at floor minus a discount. The computed price is clamped
// against the maker's signed reserve so the maker never does worse than
// their limit.
type ChainlinkFloor struct {
	feeds *oracle.FeedRegistry

	// allowZeroNetPrice accepts a fixed discount exactly equal to the
	// floor (zero net price). Discounts above the floor, and basis-point
	// discounts of 100% or more, are always rejected.
	allowZeroNetPrice bool

	now Clock
}

// NewChainlinkFloor creates the floor strategy over the given feed
// registry.
func NewChainlinkFloor(feeds *oracle.FeedRegistry, allowZeroNetPrice bool) *ChainlinkFloor {
	return &ChainlinkFloor{
		feeds:             feeds,
		allowZeroNetPrice: allowZeroNetPrice,
		now:               defaultClock,
	}
}

// ExecuteTakerBid settles a taker buying against a floor-premium ask.
func (s *ChainlinkFloor) ExecuteTakerBid(taker *order.TakerOrder, maker *order.MakerOrder, selector [4]byte) (Execution, error) {
	price, code := s.evalPremium(maker, selector)
	if code != CodeOK {
		return Execution{}, code.Err()
	}
	if !itemsEqual(taker, maker) {
		return Execution{}, ErrItemMismatch
	}
	if taker.Price.Cmp(price) < 0 {
		return Execution{}, ErrBidTooLow
	}
	return Execution{
		Price:           price,
		ItemIDs:         maker.ItemIDs,
		Amounts:         maker.Amounts,
		InvalidateNonce: true,
	}, nil
}

// ExecuteTakerAsk settles a taker selling into a floor-discount bid.
func (s *ChainlinkFloor) ExecuteTakerAsk(taker *order.TakerOrder, maker *order.MakerOrder, selector [4]byte) (Execution, error) {
	price, code := s.evalDiscount(maker, selector)
	if code != CodeOK {
		return Execution{}, code.Err()
	}
	if !itemsEqual(taker, maker) {
		return Execution{}, ErrItemMismatch
	}
	if taker.Price.Cmp(price) > 0 {
		return Execution{}, ErrAskTooHigh
	}
	return Execution{
		Price:           price,
		ItemIDs:         maker.ItemIDs,
		Amounts:         maker.Amounts,
		InvalidateNonce: true,
	}, nil
}

// IsMakerOrderValid screens the maker order, including the oracle reads,
// so a transiently-underwater order reports a transient code.
func (s *ChainlinkFloor) IsMakerOrderValid(maker *order.MakerOrder, selector [4]byte) (bool, Code) {
	var code Code
	if maker.Side == order.Ask {
		_, code = s.evalPremium(maker, selector)
	} else {
		_, code = s.evalDiscount(maker, selector)
	}
	return code == CodeOK, code
}

// evalPremium computes the execution price for a floor-premium ask.
func (s *ChainlinkFloor) evalPremium(maker *order.MakerOrder, selector [4]byte) (*big.Int, Code) {
	if selector != SelectorFloorPremiumFixedTakerBid && selector != SelectorFloorPremiumBpTakerBid {
		return nil, CodeSelectorInvalid
	}
	if maker.Side != order.Ask {
		return nil, CodeSelectorInvalid
	}
	if err := maker.Validate(false); err != nil {
		return nil, CodeItemsMalformed
	}

	premium, err := decodeUintParam(maker.Params)
	if err != nil {
		return nil, CodeParamsInvalid
	}

	floor, code := s.floorPrice(maker.Collection)
	if code != CodeOK {
		return nil, code
	}

	var desired *big.Int
	if selector == SelectorFloorPremiumFixedTakerBid {
		desired = new(big.Int).Add(floor, premium)
	} else {
		desired = applyPremiumBp(floor, premium)
	}

	// Never sell below the maker's signed minimum.
	return new(big.Int).Set(maxBig(desired, maker.Price)), CodeOK
}

// evalDiscount computes the execution price for a floor-discount bid.
// Structural discount violations are reported before feed reads so they
// surface even while the oracle is unhealthy.
func (s *ChainlinkFloor) evalDiscount(maker *order.MakerOrder, selector [4]byte) (*big.Int, Code) {
	if selector != SelectorFloorDiscountFixedTakerAsk && selector != SelectorFloorDiscountBpTakerAsk {
		return nil, CodeSelectorInvalid
	}
	if maker.Side != order.Bid {
		return nil, CodeSelectorInvalid
	}
	if err := maker.Validate(false); err != nil {
		return nil, CodeItemsMalformed
	}

	discount, err := decodeUintParam(maker.Params)
	if err != nil {
		return nil, CodeParamsInvalid
	}

	if selector == SelectorFloorDiscountBpTakerAsk && discount.Cmp(bpDenominatorBig) >= 0 {
		return nil, CodeDiscountOver100
	}

	floor, code := s.floorPrice(maker.Collection)
	if code != CodeOK {
		return nil, code
	}

	var desired *big.Int
	if selector == SelectorFloorDiscountFixedTakerAsk {
		switch cmp := discount.Cmp(floor); {
		case cmp > 0:
			return nil, CodeDiscountExceedsFloor
		case cmp == 0 && !s.allowZeroNetPrice:
			return nil, CodeDiscountExceedsFloor
		}
		desired = new(big.Int).Sub(floor, discount)
	} else {
		desired = applyDiscountBp(floor, discount)
	}

	// Never buy above the maker's signed maximum.
	return new(big.Int).Set(minBig(desired, maker.Price)), CodeOK
}

// floorPrice reads the collection's bound feed, applying the unset,
// non-positive, and staleness guards.
func (s *ChainlinkFloor) floorPrice(collection common.Address) (*big.Int, Code) {
	binding, err := s.feeds.Lookup(collection)
	if err != nil {
		return nil, CodePriceFeedNotBound
	}

	answer, updatedAt, err := binding.Feed.LatestRoundData()
	if err != nil {
		return nil, CodePriceFeedNotBound
	}
	if answer.Sign() <= 0 {
		return nil, CodePriceNotPositive
	}
	if s.now()-updatedAt > int64(binding.MaxLatency.Seconds()) {
		return nil, CodePriceFeedStale
	}
	return answer, CodeOK
}
