package order

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func testHasher() *Hasher {
	return NewHasher(&Domain{
		Name:              "Tidepool Exchange",
		Version:           "1",
		ChainID:           big.NewInt(1),
		VerifyingContract: common.HexToAddress("0x00000000000000000000000000000000000CAFE0"),
	})
}

func TestDigestDeterministic(t *testing.T) {
	h := testHasher()
	m := validAsk()

	if h.Digest(m) != h.Digest(m) {
		t.Fatal("digest not deterministic for identical input")
	}
}

func TestDigestSensitiveToEveryField(t *testing.T) {
	h := testHasher()
	base := h.Digest(validAsk())

	mutations := []struct {
		name   string
		mutate func(*MakerOrder)
	}{
		{"global nonce", func(m *MakerOrder) { m.GlobalNonce = 1 }},
		{"subset nonce", func(m *MakerOrder) { m.SubsetNonce = 1 }},
		{"order nonce", func(m *MakerOrder) { m.OrderNonce = 1 }},
		{"strategy id", func(m *MakerOrder) { m.StrategyID = 9 }},
		{"asset type", func(m *MakerOrder) { m.AssetType = ERC1155 }},
		{"collection", func(m *MakerOrder) { m.Collection = common.HexToAddress("0x9999999999999999999999999999999999999999") }},
		{"currency", func(m *MakerOrder) { m.Currency = common.HexToAddress("0x9999999999999999999999999999999999999999") }},
		{"signer", func(m *MakerOrder) { m.Signer = common.HexToAddress("0x9999999999999999999999999999999999999999") }},
		{"start time", func(m *MakerOrder) { m.StartTime = 42 }},
		{"end time", func(m *MakerOrder) { m.EndTime = 42 }},
		{"price", func(m *MakerOrder) { m.Price = big.NewInt(2) }},
		{"item ids", func(m *MakerOrder) { m.ItemIDs = []*big.Int{big.NewInt(8)} }},
		{"params", func(m *MakerOrder) { m.Params = []byte{0x01} }},
	}

	for _, tc := range mutations {
		t.Run(tc.name, func(t *testing.T) {
			m := validAsk()
			tc.mutate(m)
			if h.Digest(m) == base {
				t.Fatal("digest unchanged after field mutation")
			}
		})
	}
}

func TestAskAndBidHashDiffer(t *testing.T) {
	h := testHasher()

	ask := validAsk()
	bid := validAsk()
	bid.Side = Bid

	if h.Hash(ask) == h.Hash(bid) {
		t.Fatal("ask and bid with identical fields must hash differently")
	}
}

func TestItemOrderMatters(t *testing.T) {
	h := testHasher()

	a := validAsk()
	a.AssetType = ERC1155
	a.ItemIDs = []*big.Int{big.NewInt(1), big.NewInt(2)}
	a.Amounts = []*big.Int{big.NewInt(3), big.NewInt(4)}

	b := validAsk()
	b.AssetType = ERC1155
	b.ItemIDs = []*big.Int{big.NewInt(2), big.NewInt(1)}
	b.Amounts = []*big.Int{big.NewInt(4), big.NewInt(3)}

	if h.Hash(a) == h.Hash(b) {
		t.Fatal("reordered item lists must hash differently")
	}
}

func TestDomainBindsDigest(t *testing.T) {
	m := validAsk()

	h1 := testHasher()
	h2 := NewHasher(&Domain{
		Name:              "Tidepool Exchange",
		Version:           "1",
		ChainID:           big.NewInt(137),
		VerifyingContract: common.HexToAddress("0x00000000000000000000000000000000000CAFE0"),
	})

	if h1.Hash(m) != h2.Hash(m) {
		t.Fatal("struct hash must not depend on the domain")
	}
	if h1.Digest(m) == h2.Digest(m) {
		t.Fatal("digest must differ across chain ids")
	}
}

func TestBatchDigestDiffersFromOrderDigest(t *testing.T) {
	h := testHasher()
	m := validAsk()

	root := h.Hash(m)
	if h.BatchDigest(root) == h.Digest(m) {
		t.Fatal("batch digest must not collide with the order digest")
	}
}
