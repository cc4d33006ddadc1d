package engine

import "testing"

func TestInsertSeatAscendingOrder(t *testing.T) {
	r := newTestRegion(t, 4)

	u5 := testUser(5)
	u1 := testUser(1)
	u9 := testUser(9)

	if _, err := InsertSeat(r, u5); err != nil {
		t.Fatal(err)
	}
	if _, err := InsertSeat(r, u1); err != nil {
		t.Fatal(err)
	}
	if _, err := InsertSeat(r, u9); err != nil {
		t.Fatal(err)
	}

	dll := seatsDLL(r)
	var users []byte
	dll.Iterate(func(i uint32) bool {
		seat, err := LoadSeat(r, i)
		if err != nil {
			t.Fatal(err)
		}
		users = append(users, seat.User()[0])
		return true
	})
	if len(users) != 3 || users[0] != 1 || users[1] != 5 || users[2] != 9 {
		t.Fatalf("seats not sorted ascending: %v", users)
	}
}

func TestInsertSeatRejectsDuplicate(t *testing.T) {
	r := newTestRegion(t, 2)
	u := testUser(7)
	if _, err := InsertSeat(r, u); err != nil {
		t.Fatal(err)
	}
	if _, err := InsertSeat(r, u); CodeOf(err) != UserAlreadyExists {
		t.Fatalf("expected UserAlreadyExists, got %v", err)
	}
}

func TestFindSeatWithHintRejectsMismatch(t *testing.T) {
	r := newTestRegion(t, 2)
	idx, err := InsertSeat(r, testUser(3))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := FindSeatWithHint(r, idx, testUser(99)); CodeOf(err) != InvalidIndexHint {
		t.Fatalf("expected InvalidIndexHint for wrong user, got %v", err)
	}
	if _, err := FindSeatWithHint(r, idx, testUser(3)); err != nil {
		t.Fatalf("expected hint resolution to succeed: %v", err)
	}
}

func TestCloseSeatRejectsWithOpenOrders(t *testing.T) {
	r := newTestRegion(t, 4)
	idx, err := InsertSeat(r, testUser(1))
	if err != nil {
		t.Fatal(err)
	}
	seat, err := LoadSeat(r, idx)
	if err != nil {
		t.Fatal(err)
	}
	if err := seat.IncrementBaseDeposited(1_000_000); err != nil {
		t.Fatal(err)
	}
	postTestOrder(t, r, idx, testUser(1), 50_000_000, 1_000, false)

	if err := CloseSeat(r, idx); CodeOf(err) != SeatHasOpenOrders {
		t.Fatalf("expected SeatHasOpenOrders, got %v", err)
	}
}

func TestCloseSeatSucceedsWhenEmpty(t *testing.T) {
	r := newTestRegion(t, 2)
	idx, err := InsertSeat(r, testUser(1))
	if err != nil {
		t.Fatal(err)
	}
	if err := CloseSeat(r, idx); err != nil {
		t.Fatalf("CloseSeat should succeed on an empty seat: %v", err)
	}
	if r.NumSeats() != 0 {
		t.Fatalf("NumSeats = %d, want 0", r.NumSeats())
	}
}

func TestSeatBalanceOverflowRejected(t *testing.T) {
	r := newTestRegion(t, 2)
	idx, err := InsertSeat(r, testUser(1))
	if err != nil {
		t.Fatal(err)
	}
	seat, err := LoadSeat(r, idx)
	if err != nil {
		t.Fatal(err)
	}
	if err := seat.IncrementBaseDeposited(1<<64 - 1); err != nil {
		t.Fatal(err)
	}
	if err := seat.IncrementBaseDeposited(1); CodeOf(err) != ArithmeticOverflow {
		t.Fatalf("expected ArithmeticOverflow, got %v", err)
	}
}

func TestWithdrawRejectsInsufficientBalance(t *testing.T) {
	r := newTestRegion(t, 2)
	idx, err := InsertSeat(r, testUser(1))
	if err != nil {
		t.Fatal(err)
	}
	seat, err := LoadSeat(r, idx)
	if err != nil {
		t.Fatal(err)
	}
	if err := seat.IncrementBaseDeposited(100); err != nil {
		t.Fatal(err)
	}
	if err := seat.DecrementBaseWithdraw(101); CodeOf(err) != InsufficientUserBalance {
		t.Fatalf("expected InsufficientUserBalance, got %v", err)
	}
	if err := seat.DecrementBaseWithdraw(100); err != nil {
		t.Fatalf("full withdrawal should succeed: %v", err)
	}
	if seat.BaseAvailable() != 0 || seat.BaseDeposited() != 0 {
		t.Fatalf("balances should be zero after full withdrawal")
	}
}

func TestPriceEntriesCapacityAndDuplicates(t *testing.T) {
	r := newTestRegion(t, 2)
	idx, err := InsertSeat(r, testUser(1))
	if err != nil {
		t.Fatal(err)
	}
	seat, err := LoadSeat(r, idx)
	if err != nil {
		t.Fatal(err)
	}
	bids := seat.Side(true)
	for i := 0; i < MaxOrdersPerSide; i++ {
		if err := bids.Add(uint32(1000+i), uint32(i)); err != nil {
			t.Fatalf("Add #%d: %v", i, err)
		}
	}
	if err := bids.Add(9999, 99); CodeOf(err) != UserHasMaxOrders {
		t.Fatalf("expected UserHasMaxOrders, got %v", err)
	}
	if err := bids.Add(1000, 100); CodeOf(err) != OrderWithPriceAlreadyExists {
		t.Fatalf("expected OrderWithPriceAlreadyExists, got %v", err)
	}
	if _, err := bids.Remove(1000); err != nil {
		t.Fatal(err)
	}
	if _, err := bids.Remove(1000); CodeOf(err) != OrderNotFound {
		t.Fatalf("expected OrderNotFound on double-remove, got %v", err)
	}
}

func TestFindSeatScansWithoutHint(t *testing.T) {
	r := newTestRegion(t, 3)
	idx1, err := InsertSeat(r, testUser(1))
	if err != nil {
		t.Fatal(err)
	}
	idx2, err := InsertSeat(r, testUser(2))
	if err != nil {
		t.Fatal(err)
	}

	seat, err := FindSeat(r, testUser(2))
	if err != nil {
		t.Fatalf("FindSeat: %v", err)
	}
	if seat.Index() != idx2 {
		t.Fatalf("FindSeat returned index %d, want %d", seat.Index(), idx2)
	}

	seat1, err := FindSeat(r, testUser(1))
	if err != nil || seat1.Index() != idx1 {
		t.Fatalf("FindSeat for user 1: seat=%v err=%v", seat1, err)
	}

	if _, err := FindSeat(r, testUser(3)); CodeOf(err) != OrderNotFound {
		t.Fatalf("expected OrderNotFound for unknown user, got %v", err)
	}
}
