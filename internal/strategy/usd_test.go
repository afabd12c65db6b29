package strategy

import (
	"math/big"
	"testing"
	"time"

	"github.com/tidepool-markets/tidepool/internal/oracle"
)

// usdFixture pins an ETH/USD answer (8 decimals) and the strategy clock.
func usdFixture(t *testing.T, answer *big.Int, updatedAt int64) *USDDynamicAsk {
	t.Helper()
	feed := oracle.NewMemoryFeed()
	feed.Update(answer, updatedAt)

	s := NewUSDDynamicAsk(feed, time.Hour)
	s.now = func() int64 { return floorNow }
	return s
}

// usd converts whole dollars to the 18-decimal representation carried in
// maker params.
func usd(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func TestUSDDynamicAskConversion(t *testing.T) {
	// ETH at $1500: a $3000 ask converts to 2 ETH.
	s := usdFixture(t, big.NewInt(1500e8), floorNow)

	maker := makerAsk(eth(1), 7)
	maker.Params = mustUintParam(t, usd(3000))

	exec, err := s.ExecuteTakerBid(takerFor(maker, eth(2)), maker, SelectorUSDDynamicAskTakerBid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Price.Cmp(eth(2)) != 0 {
		t.Fatalf("expected 2 ETH, got %s", exec.Price)
	}
}

func TestUSDDynamicAskReserveWins(t *testing.T) {
	// ETH at $6000: the $3000 ask converts to 0.5 ETH, below the signed
	// 1 ETH minimum.
	s := usdFixture(t, big.NewInt(6000e8), floorNow)

	maker := makerAsk(eth(1), 7)
	maker.Params = mustUintParam(t, usd(3000))

	exec, err := s.ExecuteTakerBid(takerFor(maker, eth(2)), maker, SelectorUSDDynamicAskTakerBid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Price.Cmp(eth(1)) != 0 {
		t.Fatalf("expected 1 ETH reserve, got %s", exec.Price)
	}
}

func TestUSDDynamicAskBidTooLow(t *testing.T) {
	s := usdFixture(t, big.NewInt(1500e8), floorNow)

	maker := makerAsk(eth(1), 7)
	maker.Params = mustUintParam(t, usd(3000))

	_, err := s.ExecuteTakerBid(takerFor(maker, eth(1)), maker, SelectorUSDDynamicAskTakerBid)
	requireErr(t, err, ErrBidTooLow)
}

func TestUSDDynamicAskStale(t *testing.T) {
	s := usdFixture(t, big.NewInt(1500e8), floorNow-3601)

	maker := makerAsk(eth(1), 7)
	maker.Params = mustUintParam(t, usd(3000))

	_, err := s.ExecuteTakerBid(takerFor(maker, eth(2)), maker, SelectorUSDDynamicAskTakerBid)
	requireErr(t, err, ErrPriceFeedStale)
}

func TestUSDDynamicAskBadParams(t *testing.T) {
	s := usdFixture(t, big.NewInt(1500e8), floorNow)
	maker := makerAsk(eth(1), 7)

	// Unparseable params.
	maker.Params = []byte{0xff}
	_, err := s.ExecuteTakerBid(takerFor(maker, eth(2)), maker, SelectorUSDDynamicAskTakerBid)
	requireErr(t, err, ErrParamsInvalid)

	// A zero USD ask is meaningless.
	maker.Params = mustUintParam(t, big.NewInt(0))
	_, err = s.ExecuteTakerBid(takerFor(maker, eth(2)), maker, SelectorUSDDynamicAskTakerBid)
	requireErr(t, err, ErrParamsInvalid)
}

func TestUSDDynamicAskRejectsTakerAsk(t *testing.T) {
	s := usdFixture(t, big.NewInt(1500e8), floorNow)
	maker := makerBid(eth(1), 7)

	_, err := s.ExecuteTakerAsk(takerFor(maker, eth(1)), maker, SelectorUSDDynamicAskTakerBid)
	requireErr(t, err, ErrSelectorInvalid)
}

func TestUSDDynamicAskScreening(t *testing.T) {
	s := usdFixture(t, big.NewInt(1500e8), floorNow)

	maker := makerAsk(eth(1), 7)
	maker.Params = mustUintParam(t, usd(3000))

	ok, code := s.IsMakerOrderValid(maker, SelectorUSDDynamicAskTakerBid)
	if !ok || code != CodeOK {
		t.Fatalf("expected valid, got %v", code)
	}

	ok, code = s.IsMakerOrderValid(maker, SelectorFixedTakerBid)
	if ok || code != CodeSelectorInvalid {
		t.Fatalf("expected CodeSelectorInvalid, got %v", code)
	}
}
