// Package fees computes how an execution price is split between protocol,
// creator-royalty, affiliate, and seller legs. Royalty lookup is an
// external collaborator reached through the RoyaltyEngine interface.
package fees

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrFeesExceedPrice = errors.New("combined fees exceed execution price")
	ErrAffiliateRate   = errors.New("affiliate rate exceeds 100%")
)

const bpDenominator = 10_000

var bpDenominatorBig = big.NewInt(bpDenominator)

// RoyaltyEngine resolves the creator fee for a trade.
type RoyaltyEngine interface {
	CreatorFeeInfo(collection common.Address, price *big.Int, itemIDs []*big.Int) (recipient common.Address, feeBp uint16, err error)
}

// Breakdown is the disbursement plan for one execution price.
type Breakdown struct {
	Protocol          *big.Int
	ProtocolRecipient common.Address
	Creator           *big.Int
	CreatorRecipient  common.Address
	Affiliate         *big.Int // carved out of the protocol leg
	AffiliateAddr     common.Address
	Net               *big.Int // what the seller receives
}

// Schedule computes fee splits. Affiliate rates are registered per
// affiliate address as basis points of the protocol fee.
type Schedule struct {
	protocolRecipient common.Address
	royalties         RoyaltyEngine

	mu         sync.RWMutex
	affiliates map[common.Address]uint16
}

// NewSchedule creates a Schedule. royalties may be nil, in which case no
// creator leg is ever paid.
func NewSchedule(protocolRecipient common.Address, royalties RoyaltyEngine) *Schedule {
	return &Schedule{
		protocolRecipient: protocolRecipient,
		royalties:         royalties,
		affiliates:        make(map[common.Address]uint16),
	}
}

// SetAffiliateRate registers an affiliate's share of the protocol fee.
// A zero rate removes the affiliate.
func (s *Schedule) SetAffiliateRate(affiliate common.Address, rateBp uint16) error {
	if rateBp > bpDenominator {
		return ErrAffiliateRate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rateBp == 0 {
		delete(s.affiliates, affiliate)
		return nil
	}
	s.affiliates[affiliate] = rateBp
	return nil
}

// Compute splits price into protocol, creator, affiliate, and net legs.
// The affiliate leg comes out of the protocol fee, never out of the
// seller's net. A zero affiliate address means no affiliate.
func (s *Schedule) Compute(protocolFeeBp uint16, price *big.Int, collection common.Address, itemIDs []*big.Int, affiliate common.Address) (Breakdown, error) {
	b := Breakdown{
		Protocol:          applyBp(price, protocolFeeBp),
		ProtocolRecipient: s.protocolRecipient,
		Creator:           new(big.Int),
		Affiliate:         new(big.Int),
	}

	if s.royalties != nil {
		recipient, feeBp, err := s.royalties.CreatorFeeInfo(collection, price, itemIDs)
		if err == nil && recipient != (common.Address{}) {
			b.Creator = applyBp(price, feeBp)
			b.CreatorRecipient = recipient
		}
	}

	total := new(big.Int).Add(b.Protocol, b.Creator)
	if total.Cmp(price) > 0 {
		return Breakdown{}, ErrFeesExceedPrice
	}

	if affiliate != (common.Address{}) {
		s.mu.RLock()
		rate, ok := s.affiliates[affiliate]
		s.mu.RUnlock()
		if ok {
			b.Affiliate = applyBp(b.Protocol, rate)
			b.AffiliateAddr = affiliate
			b.Protocol = new(big.Int).Sub(b.Protocol, b.Affiliate)
		}
	}

	b.Net = new(big.Int).Sub(price, total)
	return b, nil
}

// applyBp returns amount * bp / 10000, truncating.
func applyBp(amount *big.Int, bp uint16) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(int64(bp)))
	return out.Div(out, bpDenominatorBig)
}
