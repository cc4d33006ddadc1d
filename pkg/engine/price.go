package engine

import "math/bits"

// Price encoding (C1): a price is mantissa * 10^(biasedExp-16), packed into a
// u32 as (biasedExp << mantissaBits) | mantissa. Mantissa occupies the low
// 27 bits and must fall in [minMantissa, maxMantissa]; biasedExp occupies the
// high 5 bits and must fall in [0,31]. Zero and u32::MAX are reserved
// sentinels meaning "minimum/market-sell" and "maximum/market-buy".
const (
	mantissaBits uint32 = 27
	mantissaMask uint32 = 1<<mantissaBits - 1

	minMantissa uint32 = 10_000_000
	maxMantissa uint32 = 99_999_999

	priceBias uint8 = 16
	maxBiasedExp uint8 = 31

	encodedZero     uint32 = 0
	encodedInfinity uint32 = 1<<32 - 1
)

// ValidatedMantissa is a price mantissa already checked to fall within
// [minMantissa, maxMantissa].
type ValidatedMantissa uint32

// NewValidatedMantissa range-checks a raw mantissa value.
func NewValidatedMantissa(raw uint32) (ValidatedMantissa, error) {
	if raw < minMantissa || raw > maxMantissa {
		return 0, Err(InvalidPriceMantissa)
	}
	return ValidatedMantissa(raw), nil
}

func (m ValidatedMantissa) AsU32() uint32 { return uint32(m) }

// EncodedPrice is the packed u32 price representation used everywhere an
// order or cancel/post instruction carries a price.
type EncodedPrice uint32

// Zero is the market-sell / minimum-price sentinel.
func Zero() EncodedPrice { return EncodedPrice(encodedZero) }

// Infinity is the market-buy / maximum-price sentinel.
func Infinity() EncodedPrice { return EncodedPrice(encodedInfinity) }

func (p EncodedPrice) IsZero() bool     { return uint32(p) == encodedZero }
func (p EncodedPrice) IsInfinity() bool { return uint32(p) == encodedInfinity }
func (p EncodedPrice) AsU32() uint32    { return uint32(p) }

// HasHigherAskPriority reports whether p should sit closer to the head of
// the ask side than other: lower price wins.
func (p EncodedPrice) HasHigherAskPriority(other EncodedPrice) bool { return p < other }

// HasHigherBidPriority reports whether p should sit closer to the head of
// the bid side than other: higher price wins.
func (p EncodedPrice) HasHigherBidPriority(other EncodedPrice) bool { return p > other }

// NewEncodedPrice packs a validated mantissa and biased exponent.
func NewEncodedPrice(mantissa ValidatedMantissa, biasedExp uint8) (EncodedPrice, error) {
	if biasedExp > maxBiasedExp {
		return 0, Err(InvalidBiasedExponent)
	}
	return EncodedPrice(uint32(biasedExp)<<mantissaBits | mantissa.AsU32()), nil
}

// DecodedPrice is the result of splitting an EncodedPrice back into its
// components, or one of the two sentinel states.
type DecodedPrice struct {
	IsZeroSentinel     bool
	IsInfinitySentinel bool
	BiasedExp          uint8
	Mantissa           ValidatedMantissa
}

// Decode splits an EncodedPrice into (mantissa, biasedExp), or reports which
// sentinel it is.
func Decode(p EncodedPrice) (DecodedPrice, error) {
	switch uint32(p) {
	case encodedZero:
		return DecodedPrice{IsZeroSentinel: true}, nil
	case encodedInfinity:
		return DecodedPrice{IsInfinitySentinel: true}, nil
	default:
		raw := uint32(p)
		biasedExp := uint8(raw >> mantissaBits)
		mantissa, err := NewValidatedMantissa(raw & mantissaMask)
		if err != nil {
			return DecodedPrice{}, err
		}
		return DecodedPrice{BiasedExp: biasedExp, Mantissa: mantissa}, nil
	}
}

// ToFloat64 converts a non-sentinel decoded price to a float64, matching the
// reference conversion mantissa * 10^(biasedExp-16).
func (d DecodedPrice) ToFloat64() (float64, error) {
	if d.IsInfinitySentinel {
		return 0, Err(InvalidPriceMantissa)
	}
	if d.IsZeroSentinel {
		return 0, nil
	}
	exp := int(d.BiasedExp) - int(priceBias)
	return float64(d.Mantissa.AsU32()) * pow10f(exp), nil
}

func pow10f(exp int) float64 {
	v := 1.0
	if exp >= 0 {
		for i := 0; i < exp; i++ {
			v *= 10
		}
		return v
	}
	for i := 0; i < -exp; i++ {
		v *= 10
	}
	return 1 / v
}

var pow10Table = [20]uint64{
	1, 10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000, 100_000_000,
	1_000_000_000, 10_000_000_000, 100_000_000_000, 1_000_000_000_000,
	10_000_000_000_000, 100_000_000_000_000, 1_000_000_000_000_000,
	10_000_000_000_000_000, 100_000_000_000_000_000, 1_000_000_000_000_000_000,
	10_000_000_000_000_000_000,
}

func pow10u64(n int) (uint64, bool) {
	if n < 0 || n >= len(pow10Table) {
		return 0, false
	}
	return pow10Table[n], true
}

// mulDivPow10 computes floor(a * b * 10^k) with a full 128-bit intermediate
// product, checking that the final result fits in a uint64. k may be
// negative (division by 10^-k, floored) or non-negative (exact multiply,
// rejecting overflow).
func mulDivPow10(a, b uint64, k int) (uint64, error) {
	hi, lo := bits.Mul64(a, b)

	if k == 0 {
		if hi != 0 {
			return 0, Err(ArithmeticOverflow)
		}
		return lo, nil
	}

	if k > 0 {
		p, ok := pow10u64(k)
		if !ok {
			return 0, Err(ArithmeticOverflow)
		}
		loHi, loLo := bits.Mul64(lo, p)
		hiHi, hiLo := bits.Mul64(hi, p)
		mid, carry := bits.Add64(loHi, hiLo, 0)
		top := hiHi + carry
		if top != 0 || mid != 0 {
			return 0, Err(ArithmeticOverflow)
		}
		return loLo, nil
	}

	p, ok := pow10u64(-k)
	if !ok || p == 0 {
		return 0, Err(ArithmeticOverflow)
	}
	if hi >= p {
		return 0, Err(ArithmeticOverflow)
	}
	q, _ := bits.Div64(hi, lo, p)
	return q, nil
}

// AtomAmounts carries the result of converting a validated mantissa and pair
// of biased exponents into base/quote atom counts and the derived encoded
// price, per spec.md §3.6.
type AtomAmounts struct {
	BaseAtoms    uint64
	QuoteAtoms   uint64
	EncodedPrice EncodedPrice
}

// ToOrderInfo implements the §3.6 conversion:
//
//	base_atoms  = base_scalar * 10^(base_exp_biased-16)
//	quote_atoms = mantissa * base_scalar * 10^(quote_exp_biased-16)
//	encoded_price = ((quote_exp_biased - base_exp_biased + 16) << 27) | mantissa
//
// after verifying quote_exp_biased >= base_exp_biased - 15.
func ToOrderInfo(mantissa ValidatedMantissa, baseScalar uint64, baseExpBiased, quoteExpBiased uint8) (AtomAmounts, error) {
	if int(quoteExpBiased) < int(baseExpBiased)-15 {
		return AtomAmounts{}, Err(InvalidBiasedExponent)
	}
	priceExpBiased := int(quoteExpBiased) - int(baseExpBiased) + int(priceBias)
	if priceExpBiased < 0 || priceExpBiased > int(maxBiasedExp) {
		return AtomAmounts{}, Err(InvalidBiasedExponent)
	}

	baseAtoms, err := mulDivPow10(1, baseScalar, int(baseExpBiased)-int(priceBias))
	if err != nil {
		return AtomAmounts{}, err
	}

	quoteAtoms, err := mulDivPow10(uint64(mantissa.AsU32()), baseScalar, int(quoteExpBiased)-int(priceBias))
	if err != nil {
		return AtomAmounts{}, err
	}

	encoded, err := NewEncodedPrice(mantissa, uint8(priceExpBiased))
	if err != nil {
		return AtomAmounts{}, err
	}

	return AtomAmounts{BaseAtoms: baseAtoms, QuoteAtoms: quoteAtoms, EncodedPrice: encoded}, nil
}
