package engine

import (
	"encoding/binary"
	"testing"
)

func TestDecodePostOrderBodyRoundTrip(t *testing.T) {
	body := make([]byte, 4+8+1+1+1+4)
	binary.LittleEndian.PutUint32(body[0:], 50_000_000)
	binary.LittleEndian.PutUint64(body[4:], 1_000)
	body[12] = 16
	body[13] = 16
	body[14] = 1
	binary.LittleEndian.PutUint32(body[15:], 7)

	u := testUser(3)
	p, err := DecodePostOrderBody(u, body)
	if err != nil {
		t.Fatal(err)
	}
	if p.Mantissa != 50_000_000 || p.BaseScalar != 1_000 || p.BaseExpBiased != 16 ||
		p.QuoteExpBiased != 16 || !p.IsBid || p.SeatHint != 7 || p.User != u {
		t.Fatalf("unexpected decode: %+v", p)
	}
}

func TestDecodePostOrderBodyRejectsShortInput(t *testing.T) {
	if _, err := DecodePostOrderBody(testUser(1), make([]byte, 3)); CodeOf(err) != InsufficientByteLength {
		t.Fatalf("expected InsufficientByteLength, got %v", err)
	}
}

func TestDecodeCancelOrderBodyRoundTrip(t *testing.T) {
	body := make([]byte, 4+1+4)
	binary.LittleEndian.PutUint32(body[0:], 12345)
	body[4] = 0
	binary.LittleEndian.PutUint32(body[5:], 9)

	price, isBid, seatHint, err := DecodeCancelOrderBody(body)
	if err != nil {
		t.Fatal(err)
	}
	if price != 12345 || isBid || seatHint != 9 {
		t.Fatalf("unexpected decode: price=%d isBid=%v seatHint=%d", price, isBid, seatHint)
	}
}

func TestDecodeOrderIntentsStopsAtInvalidMantissa(t *testing.T) {
	body := make([]byte, MaxOrdersPerSide*orderIntentSize)
	binary.LittleEndian.PutUint32(body[0:], 50_000_000)
	binary.LittleEndian.PutUint64(body[4:], 100)
	body[12], body[13] = 16, 16
	// Second tuple has an out-of-range mantissa (too small).
	binary.LittleEndian.PutUint32(body[orderIntentSize:], 1)

	intents, err := decodeOrderIntents(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(intents) != 1 {
		t.Fatalf("expected decoding to stop after the first invalid mantissa, got %d intents", len(intents))
	}
}

func TestDecodeBatchReplaceBodyRoundTrip(t *testing.T) {
	body := make([]byte, 4+2*MaxOrdersPerSide*orderIntentSize)
	binary.LittleEndian.PutUint32(body[0:], 42) // seat hint
	bidsOff := 4
	binary.LittleEndian.PutUint32(body[bidsOff:], 30_000_000)
	binary.LittleEndian.PutUint64(body[bidsOff+4:], 100)
	body[bidsOff+12], body[bidsOff+13] = 16, 16

	u := testUser(5)
	p, err := DecodeBatchReplaceBody(u, body)
	if err != nil {
		t.Fatal(err)
	}
	if p.SeatHint != 42 || p.User != u {
		t.Fatalf("unexpected header: %+v", p)
	}
	if len(p.Bids) != 1 || p.Bids[0].Mantissa != 30_000_000 {
		t.Fatalf("unexpected bids: %+v", p.Bids)
	}
	if len(p.Asks) != 0 {
		t.Fatalf("expected no asks, got %+v", p.Asks)
	}
}

func TestDecodeMarketOrderBodyRoundTrip(t *testing.T) {
	body := make([]byte, 8+1+1)
	binary.LittleEndian.PutUint64(body[0:], 1_000)
	body[8] = 1
	body[9] = 0

	size, isBuy, baseDenominated, err := DecodeMarketOrderBody(body)
	if err != nil {
		t.Fatal(err)
	}
	if size != 1_000 || !isBuy || baseDenominated {
		t.Fatalf("unexpected decode: size=%d isBuy=%v baseDenominated=%v", size, isBuy, baseDenominated)
	}
}

func TestDispatchRejectsEmptyData(t *testing.T) {
	r := newTestRegion(t, 4)
	if err := Dispatch(r, testUser(1), true, nil, [32]byte{}, nil); CodeOf(err) != InvalidInstructionData {
		t.Fatalf("expected InvalidInstructionData, got %v", err)
	}
}

func TestDispatchRejectsUnknownTag(t *testing.T) {
	r := newTestRegion(t, 4)
	if err := Dispatch(r, testUser(1), true, []byte{0xFF}, [32]byte{}, nil); CodeOf(err) != InvalidInstructionData {
		t.Fatalf("expected InvalidInstructionData for unknown tag, got %v", err)
	}
}

func TestDispatchRegisterMarketIsRejected(t *testing.T) {
	r := newTestRegion(t, 4)
	if err := Dispatch(r, testUser(1), true, []byte{TagRegisterMarket}, [32]byte{}, nil); CodeOf(err) != InvalidInstructionData {
		t.Fatalf("RegisterMarket must go through the dedicated entrypoint, got %v", err)
	}
}

func TestDispatchFlushEventsIsNoop(t *testing.T) {
	r := newTestRegion(t, 4)
	if err := Dispatch(r, testUser(1), true, []byte{TagFlushEvents}, [32]byte{}, nil); err != nil {
		t.Fatalf("FlushEvents dispatch should be a no-op, got %v", err)
	}
}

func TestDispatchDepositRoutesToBaseOrQuoteByFlag(t *testing.T) {
	r := newTestRegion(t, 4)
	u := testUser(1)

	body := make([]byte, 1+8+4)
	body[0] = TagDeposit
	binary.LittleEndian.PutUint64(body[1:], 500)
	binary.LittleEndian.PutUint32(body[9:], NIL)

	if err := Dispatch(r, u, true, body, [32]byte{}, nil); err != nil {
		t.Fatal(err)
	}

	var idx uint32 = NIL
	seatsDLL(r).Iterate(func(i uint32) bool {
		seat, err := LoadSeat(r, i)
		if err != nil {
			t.Fatal(err)
		}
		if seat.User() == u {
			idx = i
			return false
		}
		return true
	})
	if idx == NIL {
		t.Fatal("deposit with NIL seat hint should have registered a new seat")
	}
	view, err := LoadSeat(r, idx)
	if err != nil {
		t.Fatal(err)
	}
	if view.BaseDeposited() != 500 {
		t.Fatalf("base_deposited = %d, want 500 after base deposit", view.BaseDeposited())
	}

	// A second deposit tagged quote should land on quote_deposited, not base.
	body2 := make([]byte, 1+8+4)
	body2[0] = TagDeposit
	binary.LittleEndian.PutUint64(body2[1:], 300)
	binary.LittleEndian.PutUint32(body2[9:], idx)
	if err := Dispatch(r, u, false, body2, [32]byte{}, nil); err != nil {
		t.Fatal(err)
	}
	if view.QuoteDeposited() != 300 {
		t.Fatalf("quote_deposited = %d, want 300 after quote deposit", view.QuoteDeposited())
	}
	if view.BaseDeposited() != 500 {
		t.Fatalf("base_deposited changed unexpectedly: %d", view.BaseDeposited())
	}
}

func TestDispatchWithdrawRoutesByFlag(t *testing.T) {
	r := newTestRegion(t, 4)
	u := testUser(1)
	idx := seatWithBalance(t, r, u, 1_000, 2_000)

	body := make([]byte, 1+8+4)
	body[0] = TagWithdraw
	binary.LittleEndian.PutUint64(body[1:], 1_000)
	binary.LittleEndian.PutUint32(body[9:], idx)
	if err := Dispatch(r, u, true, body, [32]byte{}, nil); err != nil {
		t.Fatal(err)
	}

	view, err := LoadSeat(r, idx)
	if err != nil {
		t.Fatal(err)
	}
	if view.BaseAvailable() != 0 {
		t.Fatalf("base_available = %d, want 0 after full base withdrawal", view.BaseAvailable())
	}
	if view.QuoteAvailable() != 2_000 {
		t.Fatalf("quote_available changed unexpectedly: %d", view.QuoteAvailable())
	}
}
