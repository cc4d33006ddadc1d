package engine

import "encoding/binary"

// Instruction tags, contiguous and frozen once chosen (spec.md §6.1).
const (
	TagDeposit byte = iota
	TagWithdraw
	TagRegisterMarket
	TagCloseSeat
	TagPostOrder
	TagCancelOrder
	TagBatchReplace
	TagMarketOrder
	TagFlushEvents
)

// RegisterMarket formats a freshly allocated, zeroed account of
// HeaderSize+numSectors*SectorSize bytes as a new market region.
func RegisterMarket(data []byte, numSectors uint16, bump uint8, baseMint, quoteMint Mint) (*Region, error) {
	want := HeaderSize + int(numSectors)*SectorSize
	if len(data) != want {
		return nil, Err(MismatchedDataLengths)
	}
	return InitRegion(data, bump, baseMint, quoteMint)
}

// Deposit credits amount to a seat's deposited and available balance for
// the given asset, registering a new seat first when seatHint is NIL.
func Deposit(r *Region, user UserID, seatHint uint32, isBase bool, amount uint64) (uint32, error) {
	var seat *Seat
	if seatHint == NIL {
		idx, err := InsertSeat(r, user)
		if err != nil {
			return 0, err
		}
		s, err := LoadSeat(r, idx)
		if err != nil {
			return 0, err
		}
		seat = s
	} else {
		s, err := FindSeatWithHint(r, seatHint, user)
		if err != nil {
			return 0, err
		}
		seat = s
	}

	if isBase {
		if err := seat.IncrementBaseDeposited(amount); err != nil {
			return 0, err
		}
	} else {
		if err := seat.IncrementQuoteDeposited(amount); err != nil {
			return 0, err
		}
	}
	return seat.Index(), nil
}

// Withdraw debits amount from a seat's deposited and available balance for
// the given asset, returning the seat's index for event reporting.
func Withdraw(r *Region, user UserID, seatHint uint32, isBase bool, amount uint64) (uint32, error) {
	seat, err := FindSeatWithHint(r, seatHint, user)
	if err != nil {
		return 0, err
	}
	if isBase {
		if err := seat.DecrementBaseWithdraw(amount); err != nil {
			return 0, err
		}
	} else {
		if err := seat.DecrementQuoteWithdraw(amount); err != nil {
			return 0, err
		}
	}
	return seat.Index(), nil
}

// DecodePostOrderBody parses a PostOrder instruction body:
// mantissa:u32, base_scalar:u64, base_exp_biased:u8, quote_exp_biased:u8,
// is_bid:u8, seat_hint:u32.
func DecodePostOrderBody(user UserID, body []byte) (PostOrderParams, error) {
	if len(body) < 4+8+1+1+1+4 {
		return PostOrderParams{}, Err(InsufficientByteLength)
	}
	return PostOrderParams{
		Mantissa:       binary.LittleEndian.Uint32(body[0:]),
		BaseScalar:     binary.LittleEndian.Uint64(body[4:]),
		BaseExpBiased:  body[12],
		QuoteExpBiased: body[13],
		IsBid:          body[14] != 0,
		SeatHint:       binary.LittleEndian.Uint32(body[15:]),
		User:           user,
	}, nil
}

// DecodeCancelOrderBody parses a CancelOrder instruction body:
// encoded_price:u32, is_bid:u8, seat_hint:u32.
func DecodeCancelOrderBody(body []byte) (encodedPrice uint32, isBid bool, seatHint uint32, err error) {
	if len(body) < 4+1+4 {
		return 0, false, 0, Err(InsufficientByteLength)
	}
	encodedPrice = binary.LittleEndian.Uint32(body[0:])
	isBid = body[4] != 0
	seatHint = binary.LittleEndian.Uint32(body[5:])
	return encodedPrice, isBid, seatHint, nil
}

// orderIntentSize is the wire size of one BatchReplace Orders tuple:
// mantissa:u32, base_scalar:u64, base_exp_biased:u8, quote_exp_biased:u8.
const orderIntentSize = 4 + 8 + 1 + 1

// decodeOrderIntents reads up to MaxOrdersPerSide tuples, stopping at the
// first whose mantissa falls outside the valid range (§6.1).
func decodeOrderIntents(body []byte) ([]OrderIntent, error) {
	if len(body) < MaxOrdersPerSide*orderIntentSize {
		return nil, Err(InsufficientByteLength)
	}
	var out []OrderIntent
	for i := 0; i < MaxOrdersPerSide; i++ {
		off := i * orderIntentSize
		mantissa := binary.LittleEndian.Uint32(body[off:])
		if _, err := NewValidatedMantissa(mantissa); err != nil {
			break
		}
		out = append(out, OrderIntent{
			Mantissa:       mantissa,
			BaseScalar:     binary.LittleEndian.Uint64(body[off+4:]),
			BaseExpBiased:  body[off+12],
			QuoteExpBiased: body[off+13],
		})
	}
	return out, nil
}

// DecodeBatchReplaceBody parses a BatchReplace instruction body: seat_hint:u32,
// bids:Orders, asks:Orders.
func DecodeBatchReplaceBody(user UserID, body []byte) (BatchReplaceParams, error) {
	if len(body) < 4+2*MaxOrdersPerSide*orderIntentSize {
		return BatchReplaceParams{}, Err(InsufficientByteLength)
	}
	seatHint := binary.LittleEndian.Uint32(body[0:])
	bids, err := decodeOrderIntents(body[4:])
	if err != nil {
		return BatchReplaceParams{}, err
	}
	asks, err := decodeOrderIntents(body[4+MaxOrdersPerSide*orderIntentSize:])
	if err != nil {
		return BatchReplaceParams{}, err
	}
	return BatchReplaceParams{SeatHint: seatHint, User: user, Bids: bids, Asks: asks}, nil
}

// DecodeMarketOrderBody parses a MarketOrder instruction body: order_size:u64,
// is_buy:u8, base_denominated:u8.
func DecodeMarketOrderBody(body []byte) (size uint64, isBuy bool, baseDenominated bool, err error) {
	if len(body) < 8+1+1 {
		return 0, false, false, Err(InsufficientByteLength)
	}
	size = binary.LittleEndian.Uint64(body[0:])
	isBuy = body[8] != 0
	baseDenominated = body[9] != 0
	return size, isBuy, baseDenominated, nil
}

// Dispatch routes one instruction's tag:u8|body bytes to the matching
// engine operation, appending a typed event for every successful mutation
// and unconditionally flushing the instruction's event buffer at the end
// (spec.md §2, §4.7). data must be at least one byte (the tag).
//
// isBaseAsset resolves which vault/mint a Deposit or Withdraw moves
// (§6.1's body carries no asset selector; the host determines it from
// which of the two vault token accounts was passed to the instruction).
// It's ignored for every other tag.
//
// market identifies the region for the event header; disp receives the
// flushed event buffer as a self-dispatched TagFlushEvents instruction. A
// nil disp skips event accounting entirely, so callers that only care
// about the region mutation (tests, RegisterMarket's own caller) don't pay
// for a buffer they'll never read.
func Dispatch(r *Region, user UserID, isBaseAsset bool, data []byte, market [32]byte, disp Dispatcher) error {
	if len(data) < 1 {
		return Err(InvalidInstructionData)
	}
	tag, body := data[0], data[1:]

	var events *EventBuffer
	if disp != nil {
		events = NewEventBuffer(disp, TagFlushEvents, tag, market, user, r.Nonce())
	}

	if err := dispatchBody(r, user, isBaseAsset, tag, body, events); err != nil {
		return err
	}

	if events != nil {
		if err := events.Flush(); err != nil {
			return err
		}
		r.IncrementNonce()
	}
	return nil
}

// appendEvent is a nil-safe Append: Dispatch callers pass a nil *EventBuffer
// when the caller opted out of event accounting.
func appendEvent(events *EventBuffer, tag byte, body []byte) error {
	if events == nil {
		return nil
	}
	return events.Append(tag, body)
}

func dispatchBody(r *Region, user UserID, isBaseAsset bool, tag byte, body []byte, events *EventBuffer) error {
	switch tag {
	case TagDeposit:
		if len(body) < 8+4 {
			return Err(InsufficientByteLength)
		}
		amount := binary.LittleEndian.Uint64(body[0:])
		seatHint := binary.LittleEndian.Uint32(body[8:])
		seatIdx, err := Deposit(r, user, seatHint, isBaseAsset, amount)
		if err != nil {
			return err
		}
		return appendEvent(events, EventDeposit, EncodeDepositEvent(user, seatIdx, amount, isBaseAsset))

	case TagWithdraw:
		if len(body) < 8+4 {
			return Err(InsufficientByteLength)
		}
		amount := binary.LittleEndian.Uint64(body[0:])
		seatHint := binary.LittleEndian.Uint32(body[8:])
		seatIdx, err := Withdraw(r, user, seatHint, isBaseAsset, amount)
		if err != nil {
			return err
		}
		return appendEvent(events, EventWithdraw, EncodeDepositEvent(user, seatIdx, amount, isBaseAsset))

	case TagRegisterMarket:
		return Err(InvalidInstructionData) // requires the raw account slice; see RegisterMarket

	case TagCloseSeat:
		if len(body) < 4 {
			return Err(InsufficientByteLength)
		}
		seatHint := binary.LittleEndian.Uint32(body[0:])
		if err := CloseSeat(r, seatHint); err != nil {
			return err
		}
		return appendEvent(events, EventCloseSeat, EncodeCloseSeatEvent(user, seatHint))

	case TagPostOrder:
		p, err := DecodePostOrderBody(user, body)
		if err != nil {
			return err
		}
		sector, encoded, err := PostOrder(r, p)
		if err != nil {
			return err
		}
		amounts, err := ToOrderInfo(mustValidatedMantissa(p.Mantissa), p.BaseScalar, p.BaseExpBiased, p.QuoteExpBiased)
		if err != nil {
			return err
		}
		return appendEvent(events, EventPostOrder, EncodePostOrderEvent(user, p.SeatHint, sector, encoded.AsU32(), p.IsBid, amounts.BaseAtoms, amounts.QuoteAtoms))

	case TagCancelOrder:
		encodedPrice, isBid, seatHint, err := DecodeCancelOrderBody(body)
		if err != nil {
			return err
		}
		if err := CancelOrder(r, encodedPrice, isBid, seatHint, user); err != nil {
			return err
		}
		return appendEvent(events, EventCancelOrder, EncodeCancelOrderEvent(user, seatHint, encodedPrice, isBid))

	case TagBatchReplace:
		p, err := DecodeBatchReplaceBody(user, body)
		if err != nil {
			return err
		}
		if err := BatchReplace(r, p); err != nil {
			return err
		}
		return appendEvent(events, EventBatchReplace, EncodeBatchReplaceEvent(user, p.SeatHint, len(p.Bids), len(p.Asks)))

	case TagMarketOrder:
		size, isBuy, baseDenominated, err := DecodeMarketOrderBody(body)
		if err != nil {
			return err
		}
		result, err := MarketOrder(r, size, isBuy, baseDenominated)
		if err != nil {
			return err
		}
		return appendEvent(events, EventMarketOrder, EncodeMarketOrderEvent(user, isBuy, baseDenominated, result))

	case TagFlushEvents:
		return nil

	default:
		return Err(InvalidInstructionData)
	}
}

// mustValidatedMantissa re-validates a mantissa already accepted by
// PostOrder, for event encoding after the fact. PostOrder already proved
// it's in range, so the error branch here is unreachable in practice.
func mustValidatedMantissa(raw uint32) ValidatedMantissa {
	m, err := NewValidatedMantissa(raw)
	if err != nil {
		return 0
	}
	return m
}
