package fees

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	protocolAddr  = common.HexToAddress("0x8888888888888888888888888888888888888888")
	creatorAddr   = common.HexToAddress("0x9999999999999999999999999999999999999999")
	affiliateAddr = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	collection    = common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
)

// mockRoyalties answers a fixed creator fee.
type mockRoyalties struct {
	recipient common.Address
	feeBp     uint16
	err       error
}

func (m *mockRoyalties) CreatorFeeInfo(common.Address, *big.Int, []*big.Int) (common.Address, uint16, error) {
	return m.recipient, m.feeBp, m.err
}

func TestComputeProtocolOnly(t *testing.T) {
	s := NewSchedule(protocolAddr, nil)
	price := big.NewInt(1e18)

	b, err := s.Compute(150, price, collection, nil, common.Address{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b.Protocol.Cmp(big.NewInt(15e15)) != 0 {
		t.Fatalf("expected protocol fee 0.015 ETH, got %s", b.Protocol)
	}
	if b.ProtocolRecipient != protocolAddr {
		t.Fatalf("unexpected protocol recipient %s", b.ProtocolRecipient.Hex())
	}
	if b.Creator.Sign() != 0 || b.Affiliate.Sign() != 0 {
		t.Fatal("no creator or affiliate leg expected")
	}

	wantNet := new(big.Int).Sub(price, b.Protocol)
	if b.Net.Cmp(wantNet) != 0 {
		t.Fatalf("expected net %s, got %s", wantNet, b.Net)
	}
}

func TestComputeWithRoyalties(t *testing.T) {
	s := NewSchedule(protocolAddr, &mockRoyalties{recipient: creatorAddr, feeBp: 500})
	price := big.NewInt(1e18)

	b, err := s.Compute(150, price, collection, nil, common.Address{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b.Creator.Cmp(big.NewInt(5e16)) != 0 {
		t.Fatalf("expected creator fee 0.05 ETH, got %s", b.Creator)
	}
	if b.CreatorRecipient != creatorAddr {
		t.Fatalf("unexpected creator recipient %s", b.CreatorRecipient.Hex())
	}

	wantNet := new(big.Int).Sub(price, new(big.Int).Add(b.Protocol, b.Creator))
	if b.Net.Cmp(wantNet) != 0 {
		t.Fatalf("expected net %s, got %s", wantNet, b.Net)
	}
}

func TestComputeRoyaltyFailureSkipsCreatorLeg(t *testing.T) {
	s := NewSchedule(protocolAddr, &mockRoyalties{err: errors.New("lookup failed")})

	b, err := s.Compute(150, big.NewInt(1e18), collection, nil, common.Address{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Creator.Sign() != 0 {
		t.Fatal("creator leg must be zero when royalty lookup fails")
	}
}

func TestComputeAffiliateCarveOut(t *testing.T) {
	s := NewSchedule(protocolAddr, nil)
	if err := s.SetAffiliateRate(affiliateAddr, 2000); err != nil { // 20% of protocol
		t.Fatalf("unexpected error: %v", err)
	}
	price := big.NewInt(1e18)

	b, err := s.Compute(150, price, collection, nil, affiliateAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fullProtocol := big.NewInt(15e15)
	wantAffiliate := big.NewInt(3e15)
	if b.Affiliate.Cmp(wantAffiliate) != 0 {
		t.Fatalf("expected affiliate leg %s, got %s", wantAffiliate, b.Affiliate)
	}
	if b.AffiliateAddr != affiliateAddr {
		t.Fatalf("unexpected affiliate address %s", b.AffiliateAddr.Hex())
	}
	if got := new(big.Int).Add(b.Protocol, b.Affiliate); got.Cmp(fullProtocol) != 0 {
		t.Fatalf("affiliate leg must come out of the protocol fee: %s + %s != %s", b.Protocol, b.Affiliate, fullProtocol)
	}

	// The seller's net is unaffected by the affiliate split.
	wantNet := new(big.Int).Sub(price, fullProtocol)
	if b.Net.Cmp(wantNet) != 0 {
		t.Fatalf("expected net %s, got %s", wantNet, b.Net)
	}
}

func TestComputeUnregisteredAffiliate(t *testing.T) {
	s := NewSchedule(protocolAddr, nil)

	b, err := s.Compute(150, big.NewInt(1e18), collection, nil, affiliateAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Affiliate.Sign() != 0 || b.AffiliateAddr != (common.Address{}) {
		t.Fatal("unregistered affiliate must not earn a leg")
	}
}

func TestSetAffiliateRate(t *testing.T) {
	s := NewSchedule(protocolAddr, nil)

	if err := s.SetAffiliateRate(affiliateAddr, 10_001); !errors.Is(err, ErrAffiliateRate) {
		t.Fatalf("expected ErrAffiliateRate, got %v", err)
	}

	if err := s.SetAffiliateRate(affiliateAddr, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A zero rate removes the affiliate.
	if err := s.SetAffiliateRate(affiliateAddr, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := s.Compute(150, big.NewInt(1e18), collection, nil, affiliateAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Affiliate.Sign() != 0 {
		t.Fatal("removed affiliate must not earn a leg")
	}
}

func TestComputeFeesExceedPrice(t *testing.T) {
	s := NewSchedule(protocolAddr, &mockRoyalties{recipient: creatorAddr, feeBp: 9900})

	_, err := s.Compute(150, big.NewInt(1e18), collection, nil, common.Address{})
	if !errors.Is(err, ErrFeesExceedPrice) {
		t.Fatalf("expected ErrFeesExceedPrice, got %v", err)
	}
}

func TestComputeZeroPrice(t *testing.T) {
	s := NewSchedule(protocolAddr, nil)

	b, err := s.Compute(150, big.NewInt(0), collection, nil, common.Address{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Protocol.Sign() != 0 || b.Net.Sign() != 0 {
		t.Fatal("zero price must split into zero legs")
	}
}
