package strategy

import "github.com/ethereum/go-ethereum/crypto"

// Function selectors, one per execution variant. A maker order is pinned
// to exactly one variant through the registry entry's selector; a strategy
// asked to run under a foreign selector rejects the whole trade.
var (
	SelectorFixedTakerBid = sel("executeFixedPriceTakerBid(bytes,bytes)")
	SelectorFixedTakerAsk = sel("executeFixedPriceTakerAsk(bytes,bytes)")

	SelectorFloorPremiumFixedTakerBid  = sel("executeFloorPremiumFixedTakerBid(bytes,bytes)")
	SelectorFloorPremiumBpTakerBid     = sel("executeFloorPremiumBasisPointsTakerBid(bytes,bytes)")
	SelectorFloorDiscountFixedTakerAsk = sel("executeFloorDiscountFixedTakerAsk(bytes,bytes)")
	SelectorFloorDiscountBpTakerAsk    = sel("executeFloorDiscountBasisPointsTakerAsk(bytes,bytes)")

	SelectorUSDDynamicAskTakerBid = sel("executeUSDDynamicAskTakerBid(bytes,bytes)")

	SelectorCollectionOfferTakerAsk      = sel("executeCollectionOfferTakerAsk(bytes,bytes)")
	SelectorCollectionOfferProofTakerAsk = sel("executeCollectionOfferWithProofTakerAsk(bytes,bytes)")
)

func sel(signature string) [4]byte {
	var s [4]byte
	copy(s[:], crypto.Keccak256([]byte(signature))[:4])
	return s
}
