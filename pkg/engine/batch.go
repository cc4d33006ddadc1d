package engine

// OrderIntent is one decoded (mantissa, base_scalar, base_exp_biased,
// quote_exp_biased) tuple from a BatchReplace instruction's Orders array.
type OrderIntent struct {
	Mantissa       uint32
	BaseScalar     uint64
	BaseExpBiased  uint8
	QuoteExpBiased uint8
}

// BatchReplaceParams are the validated, decoded parameters of a BatchReplace
// instruction.
type BatchReplaceParams struct {
	SeatHint uint32
	User     UserID
	Bids     []OrderIntent // already truncated at the first out-of-range mantissa
	Asks     []OrderIntent
}

// BatchReplace atomically cancels every resting order the seat holds on both
// sides and reposts the supplied replacements (spec.md §4.6). Callers must
// have already truncated Bids/Asks at the first tuple whose mantissa falls
// outside the valid range (§6.1).
//
// cancelAllOnSide's frees and repostSide's inserts both mutate the region
// before every fallible step has run (a crossing violation or insufficient
// balance can surface only after some orders are already cancelled), so the
// whole mutating section below runs against a byte snapshot taken up front
// and restored verbatim on any error path, leaving the region exactly as it
// was at instruction entry (spec.md §5, §7).
func BatchReplace(r *Region, p BatchReplaceParams) error {
	if len(p.Bids) > MaxOrdersPerSide || len(p.Asks) > MaxOrdersPerSide {
		return Err(InvalidInstructionData)
	}
	if err := checkStrictlySorted(p.Bids, true); err != nil {
		return err
	}
	if err := checkStrictlySorted(p.Asks, false); err != nil {
		return err
	}

	seat, err := FindSeatWithHint(r, p.SeatHint, p.User)
	if err != nil {
		return err
	}

	snapshot := append([]byte(nil), r.Bytes()...)

	if err := batchReplaceMutate(r, seat, p); err != nil {
		copy(r.Bytes(), snapshot)
		return err
	}
	return nil
}

// batchReplaceMutate runs BatchReplace's fallible mutating steps in order;
// the caller restores r from a pre-call snapshot if this returns an error.
func batchReplaceMutate(r *Region, seat *Seat, p BatchReplaceParams) error {
	if err := cancelAllOnSide(r, seat, true); err != nil {
		return err
	}
	if err := cancelAllOnSide(r, seat, false); err != nil {
		return err
	}

	if len(p.Bids) > 0 {
		if err := postOnlyCheckFirst(r, p.Bids[0], true); err != nil {
			return err
		}
	}
	if len(p.Asks) > 0 {
		if err := postOnlyCheckFirst(r, p.Asks[0], false); err != nil {
			return err
		}
	}

	if err := repostSide(r, seat, p.Bids, true); err != nil {
		return err
	}
	if err := repostSide(r, seat, p.Asks, false); err != nil {
		return err
	}

	return nil
}

// checkStrictlySorted rejects a replacement batch whose prices aren't in
// strictly decreasing priority order for the side (bids descending, asks
// ascending), so the resumption-index optimization in repostSide never has
// to walk backwards.
func checkStrictlySorted(orders []OrderIntent, isBid bool) error {
	for i := 1; i < len(orders); i++ {
		prevMantissa, err := NewValidatedMantissa(orders[i-1].Mantissa)
		if err != nil {
			return err
		}
		curMantissa, err := NewValidatedMantissa(orders[i].Mantissa)
		if err != nil {
			return err
		}
		prevAmounts, err := ToOrderInfo(prevMantissa, orders[i-1].BaseScalar, orders[i-1].BaseExpBiased, orders[i-1].QuoteExpBiased)
		if err != nil {
			return err
		}
		curAmounts, err := ToOrderInfo(curMantissa, orders[i].BaseScalar, orders[i].BaseExpBiased, orders[i].QuoteExpBiased)
		if err != nil {
			return err
		}
		var strictlyLowerPriority bool
		if isBid {
			strictlyLowerPriority = prevAmounts.EncodedPrice.HasHigherBidPriority(curAmounts.EncodedPrice)
		} else {
			strictlyLowerPriority = prevAmounts.EncodedPrice.HasHigherAskPriority(curAmounts.EncodedPrice)
		}
		if !strictlyLowerPriority {
			return Err(OrdersNotSorted)
		}
	}
	return nil
}

// cancelAllOnSide scans the seat's price->sector map for one side, removing
// every live order from the book and crediting its remaining collateral
// back to the seat's available balance.
func cancelAllOnSide(r *Region, seat *Seat, isBid bool) error {
	table := seat.Side(isBid)
	for _, e := range table.Entries() {
		order, err := LoadOrder(r, e.Sector)
		if err != nil {
			return err
		}
		if isBid {
			if err := seat.TryIncrementQuoteAvailable(order.QuoteRemaining()); err != nil {
				return err
			}
		} else {
			if err := seat.TryIncrementBaseAvailable(order.BaseRemaining()); err != nil {
				return err
			}
		}
		if err := sideDLL(r, isBid).RemoveAt(e.Sector); err != nil {
			return err
		}
		if _, err := table.Remove(e.Price); err != nil {
			return err
		}
	}
	return nil
}

func postOnlyCheckFirst(r *Region, first OrderIntent, isBid bool) error {
	mantissa, err := NewValidatedMantissa(first.Mantissa)
	if err != nil {
		return err
	}
	amounts, err := ToOrderInfo(mantissa, first.BaseScalar, first.BaseExpBiased, first.QuoteExpBiased)
	if err != nil {
		return err
	}
	return PostOnlyCrossingCheck(r, isBid, amounts.EncodedPrice)
}

// repostSide re-posts up to MaxOrdersPerSide replacement orders for one
// side, in input order, using the resumption-index optimization: each
// successive insertion point search resumes from the previous insertion,
// since callers are required to supply strictly decreasing priority order.
func repostSide(r *Region, seat *Seat, orders []OrderIntent, isBid bool) error {
	table := seat.Side(isBid)
	dll := sideDLL(r, isBid)

	resumeFrom := uint32(NIL)
	for _, intent := range orders {
		mantissa, err := NewValidatedMantissa(intent.Mantissa)
		if err != nil {
			return err
		}
		amounts, err := ToOrderInfo(mantissa, intent.BaseScalar, intent.BaseExpBiased, intent.QuoteExpBiased)
		if err != nil {
			return err
		}
		if amounts.BaseAtoms == 0 || amounts.QuoteAtoms == 0 {
			return Err(AmountCannotBeZero)
		}

		if isBid {
			if amounts.QuoteAtoms > seat.QuoteAvailable() {
				return Err(InsufficientUserBalance)
			}
		} else {
			if amounts.BaseAtoms > seat.BaseAvailable() {
				return Err(InsufficientUserBalance)
			}
		}

		insertBefore, err := findInsertionPoint(r, isBid, resumeFrom, amounts.EncodedPrice)
		if err != nil {
			return err
		}

		payload := newOrderPayload(amounts.EncodedPrice, seat.Index(), amounts.BaseAtoms, amounts.QuoteAtoms)

		var sector uint32
		if insertBefore == NIL {
			sector, err = dll.PushBack(payload)
		} else {
			sector, err = dll.InsertBefore(insertBefore, payload)
		}
		if err != nil {
			return err
		}
		resumeFrom = sector

		if isBid {
			if err := seat.TryDecrementQuoteAvailable(amounts.QuoteAtoms); err != nil {
				return err
			}
		} else {
			if err := seat.TryDecrementBaseAvailable(amounts.BaseAtoms); err != nil {
				return err
			}
		}
		if err := table.Add(amounts.EncodedPrice.AsU32(), sector); err != nil {
			return err
		}
	}
	return nil
}
