package settlement

import (
	"errors"
	"fmt"

	"github.com/tidepool-markets/tidepool/internal/order"
)

// Sentinel errors returned by the order-level precondition checks.
var (
	ErrInvalidKind            = errors.New("invalid trade kind")
	ErrWrongSide              = errors.New("maker side does not match trade kind")
	ErrOrderNotStarted        = errors.New("order start time not reached")
	ErrOrderExpired           = errors.New("order end time passed")
	ErrCurrencyNotWhitelisted = errors.New("currency not whitelisted")
	ErrMissingTakerPrice      = errors.New("taker order has no limit price")
	ErrMissingMakerPrice      = errors.New("maker order has no reserve price")
)

// preflight runs the global order-level preconditions every trade must
// pass before strategy dispatch. It fails fast: the first failing check
// rejects the trade.
func (e *Engine) preflight(t *Trade) error {
	// 1. Kind and side consistency.
	switch t.Kind {
	case TakerBid:
		if t.Maker.Side != order.Ask {
			return ErrWrongSide
		}
	case TakerAsk:
		if t.Maker.Side != order.Bid {
			return ErrWrongSide
		}
	default:
		return ErrInvalidKind
	}

	// 2. Basic field presence.
	if t.Taker.Price == nil {
		return ErrMissingTakerPrice
	}
	if t.Maker.Price == nil {
		return ErrMissingMakerPrice
	}
	if t.Maker.AssetType != order.ERC721 && t.Maker.AssetType != order.ERC1155 {
		return order.ErrInvalidAssetType
	}

	// 3. Time window, inclusive on both ends.
	now := e.now()
	if t.Maker.StartTime > now {
		return ErrOrderNotStarted
	}
	if t.Maker.EndTime < now {
		return ErrOrderExpired
	}

	// 4. Currency whitelist. The zero address (native asset) must be
	// whitelisted explicitly like any other currency.
	if !e.currencies[t.Maker.Currency] {
		return fmt.Errorf("%w: %s", ErrCurrencyNotWhitelisted, t.Maker.Currency.Hex())
	}

	return nil
}
