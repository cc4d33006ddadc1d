package engine

import "math/bits"

// mulDiv computes floor(a*b/c) via a 128-bit intermediate product, rejecting
// overflow of the quotient (c must be > 0).
func mulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, Err(ArithmeticOverflow)
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, Err(ArithmeticOverflow)
	}
	q, _ := bits.Div64(hi, lo, c)
	return q, nil
}

// MatchResult is the aggregate outcome of a MarketOrder call, in the units
// the caller will use to settle with the external token program.
type MatchResult struct {
	BaseFilled  uint64
	QuoteFilled uint64
}

// MarketOrder walks the opposite side's head, fully filling resting orders
// while the taker's constrained-asset remainder covers them, then partially
// fills the final resting order via a checked mul-div (spec.md §4.5).
//
// isBuy selects which side is walked (true = asks); baseDenominated selects
// which of size's units constrains the taker (true = base atoms).
func MarketOrder(r *Region, size uint64, isBuy bool, baseDenominated bool) (MatchResult, error) {
	isBidSide := !isBuy
	dll := sideDLL(r, isBidSide)

	remaining := size
	counterFilled := uint64(0)

	for remaining > 0 {
		top := TopOfBook(r, isBidSide)
		if top == NIL {
			break
		}
		order, err := LoadOrder(r, top)
		if err != nil {
			return MatchResult{}, err
		}
		baseRem := order.BaseRemaining()
		quoteRem := order.QuoteRemaining()

		var topConstrained uint64
		if baseDenominated {
			topConstrained = baseRem
		} else {
			topConstrained = quoteRem
		}

		if topConstrained <= remaining {
			// Full fill: the entire resting order is consumed.
			filledBase, filledQuote := baseRem, quoteRem

			maker, err := LoadSeat(r, order.MakerSeatSector())
			if err != nil {
				return MatchResult{}, err
			}
			if isBuy {
				if err := maker.TryIncrementQuoteAvailable(filledQuote); err != nil {
					return MatchResult{}, err
				}
				if _, err := maker.Side(false).Remove(order.EncodedPrice().AsU32()); err != nil {
					return MatchResult{}, err
				}
			} else {
				if err := maker.TryIncrementBaseAvailable(filledBase); err != nil {
					return MatchResult{}, err
				}
				if _, err := maker.Side(true).Remove(order.EncodedPrice().AsU32()); err != nil {
					return MatchResult{}, err
				}
			}
			if err := dll.RemoveAt(top); err != nil {
				return MatchResult{}, err
			}

			if baseDenominated {
				remaining -= filledBase
			} else {
				remaining -= filledQuote
			}
			var counterDelta uint64
			if baseDenominated {
				counterDelta = filledQuote
			} else {
				counterDelta = filledBase
			}
			sum, ok := checkedAdd(counterFilled, counterDelta)
			if !ok {
				return MatchResult{}, Err(ArithmeticOverflow)
			}
			counterFilled = sum
			continue
		}

		// Partial fill: topConstrained > remaining > 0.
		if topConstrained == 0 {
			return MatchResult{}, Err(AmountCannotBeZero)
		}
		var topCounter uint64
		if baseDenominated {
			topCounter = quoteRem
		} else {
			topCounter = baseRem
		}
		partialCounter, err := mulDiv(remaining, topCounter, topConstrained)
		if err != nil {
			return MatchResult{}, err
		}

		var filledBase, filledQuote uint64
		if baseDenominated {
			filledBase, filledQuote = remaining, partialCounter
		} else {
			filledQuote, filledBase = remaining, partialCounter
		}

		order.SetBaseRemaining(baseRem - filledBase)
		order.SetQuoteRemaining(quoteRem - filledQuote)

		maker, err := LoadSeat(r, order.MakerSeatSector())
		if err != nil {
			return MatchResult{}, err
		}
		if isBuy {
			if err := maker.TryIncrementQuoteAvailable(filledQuote); err != nil {
				return MatchResult{}, err
			}
		} else {
			if err := maker.TryIncrementBaseAvailable(filledBase); err != nil {
				return MatchResult{}, err
			}
		}

		counterFilled += partialCounter
		remaining = 0
	}

	if baseDenominated {
		return MatchResult{BaseFilled: size - remaining, QuoteFilled: counterFilled}, nil
	}
	return MatchResult{BaseFilled: counterFilled, QuoteFilled: size - remaining}, nil
}
