package strategy

import (
	"math/big"
	"time"

	"github.com/tidepool-markets/tidepool/internal/oracle"
	"github.com/tidepool-markets/tidepool/internal/order"
)

// usdUnitScale bridges the 18-decimal USD ask carried in the maker params
// and the 8-decimal ETH/USD oracle answer: ethPrice = usd * 1e8 / answer.
var usdUnitScale = big.NewInt(100_000_000)

// USDDynamicAsk lets a seller sign both a minimum price in the native
// asset and a desired price in USD. At execution the USD leg is converted
// through the ETH/USD oracle and the higher of the two becomes the
// execution price, still subject to the taker's limit.
type USDDynamicAsk struct {
	feed       oracle.PriceFeed // ETH/USD aggregate, 8 decimals
	maxLatency time.Duration
	now        Clock
}

// NewUSDDynamicAsk creates the strategy over an ETH/USD feed.
func NewUSDDynamicAsk(feed oracle.PriceFeed, maxLatency time.Duration) *USDDynamicAsk {
	return &USDDynamicAsk{
		feed:       feed,
		maxLatency: maxLatency,
		now:        defaultClock,
	}
}

// ExecuteTakerBid settles a taker buying against a USD-denominated ask.
func (s *USDDynamicAsk) ExecuteTakerBid(taker *order.TakerOrder, maker *order.MakerOrder, selector [4]byte) (Execution, error) {
	price, code := s.eval(maker, selector)
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

// ExecuteTakerAsk always fails: the strategy only prices maker asks.
func (s *USDDynamicAsk) ExecuteTakerAsk(*order.TakerOrder, *order.MakerOrder, [4]byte) (Execution, error) {
	return Execution{}, ErrSelectorInvalid
}

// IsMakerOrderValid screens the maker order including the oracle
// conversion.
func (s *USDDynamicAsk) IsMakerOrderValid(maker *order.MakerOrder, selector [4]byte) (bool, Code) {
	_, code := s.eval(maker, selector)
	return code == CodeOK, code
}

func (s *USDDynamicAsk) eval(maker *order.MakerOrder, selector [4]byte) (*big.Int, Code) {
	if selector != SelectorUSDDynamicAskTakerBid {
		return nil, CodeSelectorInvalid
	}
	if maker.Side != order.Ask {
		return nil, CodeSelectorInvalid
	}
	if err := maker.Validate(false); err != nil {
		return nil, CodeItemsMalformed
	}

	usdPrice, err := decodeUintParam(maker.Params)
	if err != nil || usdPrice.Sign() <= 0 {
		return nil, CodeParamsInvalid
	}

	answer, updatedAt, err := s.feed.LatestRoundData()
	if err != nil {
		return nil, CodePriceFeedNotBound
	}
	if answer.Sign() <= 0 {
		return nil, CodePriceNotPositive
	}
	if s.now()-updatedAt > int64(s.maxLatency.Seconds()) {
		return nil, CodePriceFeedStale
	}

	converted := new(big.Int).Mul(usdPrice, usdUnitScale)
	converted.Div(converted, answer)

	// The floor candidate is whichever of the signed minimum and the
	// converted USD price favors the seller.
	return new(big.Int).Set(maxBig(converted, maker.Price)), CodeOK
}
