package engine

import "testing"

// postSimpleAsk posts an ask at mantissa (price) for baseScalar base atoms,
// using exponents that make base_atoms == baseScalar and quote_atoms ==
// mantissa * baseScalar exactly (bias-zero exponents both sides).
func postSimpleAsk(t *testing.T, r *Region, seat uint32, u UserID, mantissa uint32, baseScalar uint64) {
	t.Helper()
	postTestOrder(t, r, seat, u, mantissa, baseScalar, false)
}

func postSimpleBid(t *testing.T, r *Region, seat uint32, u UserID, mantissa uint32, baseScalar uint64) {
	t.Helper()
	postTestOrder(t, r, seat, u, mantissa, baseScalar, true)
}

func TestMarketOrderFullFillSingleMaker(t *testing.T) {
	r := newTestRegion(t, 8)
	maker := testUser(1)
	makerSeat := seatWithBalance(t, r, maker, 1_000_000_000, 1_000_000_000_000)
	postSimpleAsk(t, r, makerSeat, maker, 50_000_000, 1_000) // price 5e7, base 1000, quote 5e10

	// MarketOrder settles the resting maker's seat directly; the taker has no
	// seat of its own to update (spec.md §4.5 returns fill amounts for the
	// caller to settle via token transfer).
	result, err := MarketOrder(r, 1_000, true, true) // buy 1000 base atoms
	if err != nil {
		t.Fatal(err)
	}
	if result.BaseFilled != 1_000 {
		t.Fatalf("BaseFilled = %d, want 1000", result.BaseFilled)
	}
	if result.QuoteFilled != 50_000_000*1_000 {
		t.Fatalf("QuoteFilled = %d, want %d", result.QuoteFilled, uint64(50_000_000)*1_000)
	}
	if r.NumAsks() != 0 {
		t.Fatalf("ask should be fully consumed, NumAsks = %d", r.NumAsks())
	}

	makerView, err := LoadSeat(r, makerSeat)
	if err != nil {
		t.Fatal(err)
	}
	if makerView.QuoteAvailable() != 1_000_000_000_000+50_000_000*1_000 {
		t.Fatalf("maker quote_available = %d, want %d", makerView.QuoteAvailable(), uint64(1_000_000_000_000)+uint64(50_000_000)*1_000)
	}
}

func TestMarketOrderPartialFillBaseDenominated(t *testing.T) {
	r := newTestRegion(t, 8)
	maker := testUser(1)
	makerSeat := seatWithBalance(t, r, maker, 1_000_000_000, 1_000_000_000_000)
	postSimpleAsk(t, r, makerSeat, maker, 50_000_000, 1_000) // 1000 base resting at price 5e7

	result, err := MarketOrder(r, 400, true, true) // buy only 400 base atoms
	if err != nil {
		t.Fatal(err)
	}
	if result.BaseFilled != 400 {
		t.Fatalf("BaseFilled = %d, want 400", result.BaseFilled)
	}
	wantQuote := uint64(400) * 50_000_000
	if result.QuoteFilled != wantQuote {
		t.Fatalf("QuoteFilled = %d, want %d", result.QuoteFilled, wantQuote)
	}
	if r.NumAsks() != 1 {
		t.Fatalf("order should remain resting, NumAsks = %d", r.NumAsks())
	}

	askSector := r.AsksHead()
	order, err := LoadOrder(r, askSector)
	if err != nil {
		t.Fatal(err)
	}
	if order.BaseRemaining() != 600 {
		t.Fatalf("base_remaining = %d, want 600", order.BaseRemaining())
	}
	wantQuoteRemaining := uint64(1_000)*50_000_000 - wantQuote
	if order.QuoteRemaining() != wantQuoteRemaining {
		t.Fatalf("quote_remaining = %d, want %d", order.QuoteRemaining(), wantQuoteRemaining)
	}
}

func TestMarketOrderQuoteDenominated(t *testing.T) {
	r := newTestRegion(t, 8)
	maker := testUser(1)
	makerSeat := seatWithBalance(t, r, maker, 1_000_000_000, 1_000_000_000_000)
	postSimpleAsk(t, r, makerSeat, maker, 50_000_000, 1_000) // quote_remaining = 5e10

	// Spend exactly half the resting order's quote value.
	spend := uint64(1_000) * 50_000_000 / 2
	result, err := MarketOrder(r, spend, true, false)
	if err != nil {
		t.Fatal(err)
	}
	if result.QuoteFilled != spend {
		t.Fatalf("QuoteFilled = %d, want %d", result.QuoteFilled, spend)
	}
	if result.BaseFilled != 500 {
		t.Fatalf("BaseFilled = %d, want 500", result.BaseFilled)
	}
}

func TestMarketOrderWalksMultipleMakers(t *testing.T) {
	r := newTestRegion(t, 8)
	maker1 := testUser(1)
	maker2 := testUser(2)
	seat1 := seatWithBalance(t, r, maker1, 1_000_000_000, 1_000_000_000_000)
	seat2 := seatWithBalance(t, r, maker2, 1_000_000_000, 1_000_000_000_000)

	// Best ask first (lowest price), second ask slightly worse.
	postSimpleAsk(t, r, seat1, maker1, 40_000_000, 500)
	postSimpleAsk(t, r, seat2, maker2, 50_000_000, 500)

	result, err := MarketOrder(r, 700, true, true)
	if err != nil {
		t.Fatal(err)
	}
	if result.BaseFilled != 700 {
		t.Fatalf("BaseFilled = %d, want 700", result.BaseFilled)
	}
	wantQuote := uint64(500)*40_000_000 + uint64(200)*50_000_000
	if result.QuoteFilled != wantQuote {
		t.Fatalf("QuoteFilled = %d, want %d", result.QuoteFilled, wantQuote)
	}
	if r.NumAsks() != 1 {
		t.Fatalf("one ask should remain resting, NumAsks = %d", r.NumAsks())
	}
}

func TestMarketOrderEmptyBookReturnsZero(t *testing.T) {
	r := newTestRegion(t, 4)
	result, err := MarketOrder(r, 1_000, true, true)
	if err != nil {
		t.Fatal(err)
	}
	if result.BaseFilled != 0 || result.QuoteFilled != 0 {
		t.Fatalf("expected no fill against an empty book, got %+v", result)
	}
}

func TestMarketOrderSellCreditsBaseToMaker(t *testing.T) {
	r := newTestRegion(t, 8)
	maker := testUser(1)
	makerSeat := seatWithBalance(t, r, maker, 1_000_000_000, 1_000_000_000_000)
	postSimpleBid(t, r, makerSeat, maker, 50_000_000, 1_000)

	makerView, err := LoadSeat(r, makerSeat)
	if err != nil {
		t.Fatal(err)
	}
	baseBefore := makerView.BaseAvailable()

	result, err := MarketOrder(r, 1_000, false, true) // market sell 1000 base
	if err != nil {
		t.Fatal(err)
	}
	if result.BaseFilled != 1_000 {
		t.Fatalf("BaseFilled = %d, want 1000", result.BaseFilled)
	}
	if makerView.BaseAvailable() != baseBefore+1_000 {
		t.Fatalf("maker base_available = %d, want %d", makerView.BaseAvailable(), baseBefore+1_000)
	}
}
