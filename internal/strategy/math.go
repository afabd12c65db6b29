package strategy

import "math/big"

// Basis-point math with a fixed denominator of 10,000 and truncating
// integer division.
const bpDenominator = 10_000

var bpDenominatorBig = big.NewInt(bpDenominator)

// applyPremiumBp returns price * (10000 + bp) / 10000.
func applyPremiumBp(price, bp *big.Int) *big.Int {
	factor := new(big.Int).Add(bpDenominatorBig, bp)
	out := new(big.Int).Mul(price, factor)
	return out.Div(out, bpDenominatorBig)
}

// applyDiscountBp returns price * (10000 - bp) / 10000. The caller must
// have rejected bp >= 10000, so the subtraction cannot go negative.
func applyDiscountBp(price, bp *big.Int) *big.Int {
	factor := new(big.Int).Sub(bpDenominatorBig, bp)
	out := new(big.Int).Mul(price, factor)
	return out.Div(out, bpDenominatorBig)
}

func maxBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
