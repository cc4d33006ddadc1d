package engine

import (
	"bytes"
	"testing"
)

func TestBatchReplaceAtomicCancelAndRepost(t *testing.T) {
	r := newTestRegion(t, 16)
	u := testUser(1)
	seat := seatWithBalance(t, r, u, 1_000_000_000, 1_000_000_000_000)

	// Post two initial bids.
	postSimpleBid(t, r, seat, u, 30_000_000, 100)
	postSimpleBid(t, r, seat, u, 20_000_000, 100)
	if r.NumBids() != 2 {
		t.Fatalf("NumBids = %d, want 2 before replace", r.NumBids())
	}

	err := BatchReplace(r, BatchReplaceParams{
		SeatHint: seat,
		User:     u,
		Bids: []OrderIntent{
			{Mantissa: 40_000_000, BaseScalar: 50, BaseExpBiased: 16, QuoteExpBiased: 16},
			{Mantissa: 35_000_000, BaseScalar: 50, BaseExpBiased: 16, QuoteExpBiased: 16},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.NumBids() != 2 {
		t.Fatalf("NumBids = %d, want 2 after replace", r.NumBids())
	}

	dll := bidsDLL(r)
	var prices []uint32
	dll.Iterate(func(i uint32) bool {
		order, err := LoadOrder(r, i)
		if err != nil {
			t.Fatal(err)
		}
		prices = append(prices, order.EncodedPrice().AsU32())
		return true
	})
	if len(prices) != 2 {
		t.Fatalf("expected 2 resting bids, got %d", len(prices))
	}
}

func TestBatchReplaceRejectsUnsortedOrders(t *testing.T) {
	r := newTestRegion(t, 8)
	u := testUser(1)
	seat := seatWithBalance(t, r, u, 1_000_000_000, 1_000_000_000_000)

	err := BatchReplace(r, BatchReplaceParams{
		SeatHint: seat,
		User:     u,
		Bids: []OrderIntent{
			{Mantissa: 20_000_000, BaseScalar: 50, BaseExpBiased: 16, QuoteExpBiased: 16},
			{Mantissa: 30_000_000, BaseScalar: 50, BaseExpBiased: 16, QuoteExpBiased: 16},
		},
	})
	if CodeOf(err) != OrdersNotSorted {
		t.Fatalf("expected OrdersNotSorted, got %v", err)
	}
}

func TestBatchReplaceLeavesBookUntouchedOnPostOnlyViolation(t *testing.T) {
	r := newTestRegion(t, 8)
	maker := testUser(1)
	makerSeat := seatWithBalance(t, r, maker, 1_000_000_000, 1_000_000_000_000)
	postSimpleAsk(t, r, makerSeat, maker, 50_000_000, 100)

	u := testUser(2)
	seat := seatWithBalance(t, r, u, 1_000_000_000, 1_000_000_000_000)

	err := BatchReplace(r, BatchReplaceParams{
		SeatHint: seat,
		User:     u,
		Bids: []OrderIntent{
			{Mantissa: 50_000_000, BaseScalar: 50, BaseExpBiased: 16, QuoteExpBiased: 16},
		},
	})
	if CodeOf(err) != PostOnlyWouldImmediatelyFill {
		t.Fatalf("expected PostOnlyWouldImmediatelyFill, got %v", err)
	}
	if r.NumBids() != 0 {
		t.Fatalf("crossing batch should not post any bids, got NumBids=%d", r.NumBids())
	}
}

func TestBatchReplaceCrossingViolationRestoresPriorOrders(t *testing.T) {
	r := newTestRegion(t, 16)
	maker := testUser(1)
	makerSeat := seatWithBalance(t, r, maker, 1_000_000_000, 1_000_000_000_000)
	postSimpleAsk(t, r, makerSeat, maker, 50_000_000, 100)

	u := testUser(2)
	seat := seatWithBalance(t, r, u, 1_000_000_000, 1_000_000_000_000)
	// u already rests a non-crossing bid before the replace; cancelAllOnSide
	// will free this order's sector before the crossing check below fires.
	_, existingPrice := postTestOrder(t, r, seat, u, 10_000_000, 100, true)

	seatView, err := LoadSeat(r, seat)
	if err != nil {
		t.Fatal(err)
	}
	quoteBefore := seatView.QuoteAvailable()
	bidsBefore := r.NumBids()

	regionBefore := append([]byte(nil), r.Bytes()...)

	// The replacement bid's price crosses the maker's resting ask, so the
	// post-only check rejects it after cancelAllOnSide has already freed
	// the seat's prior resting bid.
	err = BatchReplace(r, BatchReplaceParams{
		SeatHint: seat,
		User:     u,
		Bids: []OrderIntent{
			{Mantissa: 50_000_000, BaseScalar: 50, BaseExpBiased: 16, QuoteExpBiased: 16},
		},
	})
	if CodeOf(err) != PostOnlyWouldImmediatelyFill {
		t.Fatalf("expected PostOnlyWouldImmediatelyFill, got %v", err)
	}

	if r.NumBids() != bidsBefore {
		t.Fatalf("NumBids = %d, want %d restored after the failed replace", r.NumBids(), bidsBefore)
	}
	if seatView.QuoteAvailable() != quoteBefore {
		t.Fatalf("quote_available = %d, want %d restored after the failed replace", seatView.QuoteAvailable(), quoteBefore)
	}
	if _, ok := seatView.Side(true).Get(existingPrice.AsU32()); !ok {
		t.Fatal("seat's pre-existing bid entry should survive a failed replace")
	}
	if !bytes.Equal(r.Bytes(), regionBefore) {
		t.Fatal("region bytes changed after a failed BatchReplace; must be byte-identical to entry state")
	}
}

func TestBatchReplaceEmptyClearsSide(t *testing.T) {
	r := newTestRegion(t, 8)
	u := testUser(1)
	seat := seatWithBalance(t, r, u, 1_000_000_000, 1_000_000_000_000)
	postSimpleBid(t, r, seat, u, 30_000_000, 100)

	seatView, err := LoadSeat(r, seat)
	if err != nil {
		t.Fatal(err)
	}
	quoteBefore := seatView.QuoteAvailable()

	if err := BatchReplace(r, BatchReplaceParams{SeatHint: seat, User: u}); err != nil {
		t.Fatal(err)
	}
	if r.NumBids() != 0 {
		t.Fatalf("NumBids = %d, want 0 after emptying replace", r.NumBids())
	}
	if seatView.QuoteAvailable() <= quoteBefore {
		t.Fatalf("cancelled order's collateral should be returned to available balance")
	}
}
