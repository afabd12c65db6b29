package strategy

import (
	"math/big"

	"github.com/tidepool-markets/tidepool/internal/order"
)

// FixedPrice executes at exactly the maker's signed reserve price. The
// taker must name the same items in the same order; any divergence fails
// the trade.
type FixedPrice struct{}

// NewFixedPrice creates the fixed-price strategy.
func NewFixedPrice() *FixedPrice {
	return &FixedPrice{}
}

// ExecuteTakerBid settles a taker buying against a maker ask. The taker's
// limit is a maximum: it must cover the maker's reserve.
func (s *FixedPrice) ExecuteTakerBid(taker *order.TakerOrder, maker *order.MakerOrder, selector [4]byte) (Execution, error) {
	if selector != SelectorFixedTakerBid {
		return Execution{}, ErrSelectorInvalid
	}
	if ok, code := s.evalMaker(maker); !ok {
		return Execution{}, code.Err()
	}
	if !itemsEqual(taker, maker) {
		return Execution{}, ErrItemMismatch
	}
	if taker.Price.Cmp(maker.Price) < 0 {
		return Execution{}, ErrBidTooLow
	}
	return fixedExecution(maker), nil
}

// ExecuteTakerAsk settles a taker selling into a maker bid. The taker's
// limit is a minimum: the maker's reserve must cover it.
func (s *FixedPrice) ExecuteTakerAsk(taker *order.TakerOrder, maker *order.MakerOrder, selector [4]byte) (Execution, error) {
	if selector != SelectorFixedTakerAsk {
		return Execution{}, ErrSelectorInvalid
	}
	if ok, code := s.evalMaker(maker); !ok {
		return Execution{}, code.Err()
	}
	if !itemsEqual(taker, maker) {
		return Execution{}, ErrItemMismatch
	}
	if taker.Price.Cmp(maker.Price) > 0 {
		return Execution{}, ErrAskTooHigh
	}
	return fixedExecution(maker), nil
}

// IsMakerOrderValid screens the maker side only; the item-list comparison
// needs a taker and happens at execution.
func (s *FixedPrice) IsMakerOrderValid(maker *order.MakerOrder, selector [4]byte) (bool, Code) {
	expected := SelectorFixedTakerBid
	if maker.Side == order.Bid {
		expected = SelectorFixedTakerAsk
	}
	if selector != expected {
		return false, CodeSelectorInvalid
	}
	return s.evalMaker(maker)
}

// evalMaker is the shared pure rule evaluation for both channels.
func (s *FixedPrice) evalMaker(maker *order.MakerOrder) (bool, Code) {
	if err := maker.Validate(false); err != nil {
		return false, CodeItemsMalformed
	}
	if maker.Price == nil || maker.Price.Sign() < 0 {
		return false, CodeParamsInvalid
	}
	return true, CodeOK
}

func fixedExecution(maker *order.MakerOrder) Execution {
	return Execution{
		Price:           new(big.Int).Set(maker.Price),
		ItemIDs:         maker.ItemIDs,
		Amounts:         maker.Amounts,
		InvalidateNonce: true,
	}
}

// itemsEqual requires identical length, elements, and ordering: reordering
// item ids is a different trade.
func itemsEqual(taker *order.TakerOrder, maker *order.MakerOrder) bool {
	if len(taker.ItemIDs) != len(maker.ItemIDs) || len(taker.Amounts) != len(maker.Amounts) {
		return false
	}
	for i := range maker.ItemIDs {
		if taker.ItemIDs[i].Cmp(maker.ItemIDs[i]) != 0 {
			return false
		}
	}
	for i := range maker.Amounts {
		if taker.Amounts[i].Cmp(maker.Amounts[i]) != 0 {
			return false
		}
	}
	return true
}
