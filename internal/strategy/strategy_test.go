package strategy

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tidepool-markets/tidepool/internal/order"
)

var (
	testCollection = common.HexToAddress("0x5555555555555555555555555555555555555555")
	testMaker      = common.HexToAddress("0x6666666666666666666666666666666666666666")
	testTaker      = common.HexToAddress("0x7777777777777777777777777777777777777777")
)

// eth converts whole ether to wei for readable test amounts.
func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func makerAsk(price *big.Int, itemIDs ...int64) *order.MakerOrder {
	ids := make([]*big.Int, len(itemIDs))
	amounts := make([]*big.Int, len(itemIDs))
	for i, id := range itemIDs {
		ids[i] = big.NewInt(id)
		amounts[i] = big.NewInt(1)
	}
	return &order.MakerOrder{
		Side:       order.Ask,
		AssetType:  order.ERC721,
		Collection: testCollection,
		Signer:     testMaker,
		Price:      price,
		ItemIDs:    ids,
		Amounts:    amounts,
	}
}

func makerBid(price *big.Int, itemIDs ...int64) *order.MakerOrder {
	m := makerAsk(price, itemIDs...)
	m.Side = order.Bid
	return m
}

// takerFor mirrors the maker's item lists at the given limit price.
func takerFor(m *order.MakerOrder, price *big.Int) *order.TakerOrder {
	return &order.TakerOrder{
		Recipient: testTaker,
		Price:     price,
		ItemIDs:   m.ItemIDs,
		Amounts:   m.Amounts,
	}
}

func TestCodeErrLinksChannels(t *testing.T) {
	if CodeOK.Err() != nil {
		t.Fatal("CodeOK must map to nil")
	}

	// Every declared code maps to a distinct sentinel.
	seen := make(map[error]Code)
	for code := CodeSelectorInvalid; code <= CodeMerkleProofInvalid; code++ {
		err := code.Err()
		if err == nil {
			t.Fatalf("code %d has no sentinel", code)
		}
		if prev, dup := seen[err]; dup {
			t.Fatalf("codes %d and %d share sentinel %v", prev, code, err)
		}
		seen[err] = code
	}
}

func TestCodeString(t *testing.T) {
	if CodeOK.String() != "ok" {
		t.Fatalf("unexpected CodeOK string %q", CodeOK.String())
	}
	if CodeBidTooLow.String() != ErrBidTooLow.Error() {
		t.Fatalf("unexpected string %q", CodeBidTooLow.String())
	}
}

func TestSelectorsDistinct(t *testing.T) {
	selectors := [][4]byte{
		SelectorFixedTakerBid,
		SelectorFixedTakerAsk,
		SelectorFloorPremiumFixedTakerBid,
		SelectorFloorPremiumBpTakerBid,
		SelectorFloorDiscountFixedTakerAsk,
		SelectorFloorDiscountBpTakerAsk,
		SelectorUSDDynamicAskTakerBid,
		SelectorCollectionOfferTakerAsk,
		SelectorCollectionOfferProofTakerAsk,
	}
	seen := make(map[[4]byte]int)
	for i, s := range selectors {
		if s == ([4]byte{}) {
			t.Fatalf("selector %d is zero", i)
		}
		if prev, dup := seen[s]; dup {
			t.Fatalf("selectors %d and %d collide", prev, i)
		}
		seen[s] = i
	}
}

func TestBpMath(t *testing.T) {
	if got := applyPremiumBp(big.NewInt(10_000), big.NewInt(500)); got.Int64() != 10_500 {
		t.Fatalf("premium: got %s", got)
	}
	if got := applyDiscountBp(big.NewInt(10_000), big.NewInt(500)); got.Int64() != 9_500 {
		t.Fatalf("discount: got %s", got)
	}
	// Truncating division.
	if got := applyDiscountBp(big.NewInt(3), big.NewInt(1)); got.Int64() != 2 {
		t.Fatalf("truncation: got %s", got)
	}
}

func requireErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
