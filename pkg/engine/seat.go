package engine

import (
	"bytes"
	"encoding/binary"
)

// MarketSeat payload offsets (within the 144-byte payload — see
// DESIGN.md Open Question #2 for why the payload is wider than spec.md's
// stated 64 bytes).
const (
	seatOffUser           = 0
	seatOffBaseDeposited   = 32
	seatOffQuoteDeposited  = 40
	seatOffBaseAvailable   = 48
	seatOffQuoteAvailable  = 56
	seatOffBidsTable       = 64
	seatOffAsksTable       = 104

	// MaxOrdersPerSide is the capacity of each per-seat price->sector map.
	MaxOrdersPerSide = 5
	priceEntrySize   = 8 // encoded_price:u32 + sector_index:u32
)

// Seat is a view over one sector's payload interpreted as a MarketSeat.
type Seat struct {
	r   *Region
	idx uint32
	pl  []byte
}

// LoadSeat returns a Seat view over sector idx, bounds-checked.
func LoadSeat(r *Region, idx uint32) (*Seat, error) {
	pl, err := r.Payload(idx)
	if err != nil {
		return nil, err
	}
	return &Seat{r: r, idx: idx, pl: pl}, nil
}

func (s *Seat) Index() uint32 { return s.idx }

func (s *Seat) User() UserID {
	var u UserID
	copy(u[:], s.pl[seatOffUser:seatOffUser+32])
	return u
}

func (s *Seat) setUser(u UserID) { copy(s.pl[seatOffUser:seatOffUser+32], u[:]) }

func (s *Seat) BaseDeposited() uint64 { return binary.LittleEndian.Uint64(s.pl[seatOffBaseDeposited:]) }
func (s *Seat) QuoteDeposited() uint64 {
	return binary.LittleEndian.Uint64(s.pl[seatOffQuoteDeposited:])
}
func (s *Seat) BaseAvailable() uint64 { return binary.LittleEndian.Uint64(s.pl[seatOffBaseAvailable:]) }
func (s *Seat) QuoteAvailable() uint64 {
	return binary.LittleEndian.Uint64(s.pl[seatOffQuoteAvailable:])
}

func (s *Seat) setBaseDeposited(v uint64) {
	binary.LittleEndian.PutUint64(s.pl[seatOffBaseDeposited:], v)
}
func (s *Seat) setQuoteDeposited(v uint64) {
	binary.LittleEndian.PutUint64(s.pl[seatOffQuoteDeposited:], v)
}
func (s *Seat) setBaseAvailable(v uint64) {
	binary.LittleEndian.PutUint64(s.pl[seatOffBaseAvailable:], v)
}
func (s *Seat) setQuoteAvailable(v uint64) {
	binary.LittleEndian.PutUint64(s.pl[seatOffQuoteAvailable:], v)
}

// IncrementBaseDeposited adds to both deposited and available base balances
// (used by Deposit), checking for overflow.
func (s *Seat) IncrementBaseDeposited(amount uint64) error {
	dep, ok := checkedAdd(s.BaseDeposited(), amount)
	if !ok {
		return Err(ArithmeticOverflow)
	}
	avail, ok := checkedAdd(s.BaseAvailable(), amount)
	if !ok {
		return Err(ArithmeticOverflow)
	}
	s.setBaseDeposited(dep)
	s.setBaseAvailable(avail)
	return nil
}

func (s *Seat) IncrementQuoteDeposited(amount uint64) error {
	dep, ok := checkedAdd(s.QuoteDeposited(), amount)
	if !ok {
		return Err(ArithmeticOverflow)
	}
	avail, ok := checkedAdd(s.QuoteAvailable(), amount)
	if !ok {
		return Err(ArithmeticOverflow)
	}
	s.setQuoteDeposited(dep)
	s.setQuoteAvailable(avail)
	return nil
}

// DecrementBaseWithdraw removes amount from both deposited and available
// base balances (used by Withdraw), rejecting if available would underflow.
func (s *Seat) DecrementBaseWithdraw(amount uint64) error {
	if amount > s.BaseAvailable() {
		return Err(InsufficientUserBalance)
	}
	s.setBaseAvailable(s.BaseAvailable() - amount)
	s.setBaseDeposited(s.BaseDeposited() - amount)
	return nil
}

func (s *Seat) DecrementQuoteWithdraw(amount uint64) error {
	if amount > s.QuoteAvailable() {
		return Err(InsufficientUserBalance)
	}
	s.setQuoteAvailable(s.QuoteAvailable() - amount)
	s.setQuoteDeposited(s.QuoteDeposited() - amount)
	return nil
}

func (s *Seat) TryDecrementBaseAvailable(amount uint64) error {
	if amount > s.BaseAvailable() {
		return Err(InsufficientUserBalance)
	}
	s.setBaseAvailable(s.BaseAvailable() - amount)
	return nil
}

func (s *Seat) TryDecrementQuoteAvailable(amount uint64) error {
	if amount > s.QuoteAvailable() {
		return Err(InsufficientUserBalance)
	}
	s.setQuoteAvailable(s.QuoteAvailable() - amount)
	return nil
}

func (s *Seat) TryIncrementBaseAvailable(amount uint64) error {
	v, ok := checkedAdd(s.BaseAvailable(), amount)
	if !ok {
		return Err(ArithmeticOverflow)
	}
	s.setBaseAvailable(v)
	return nil
}

func (s *Seat) TryIncrementQuoteAvailable(amount uint64) error {
	v, ok := checkedAdd(s.QuoteAvailable(), amount)
	if !ok {
		return Err(ArithmeticOverflow)
	}
	s.setQuoteAvailable(v)
	return nil
}

func checkedAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// priceEntries is one 40-byte side (bids or asks) of a seat's price->sector
// map: five (encoded_price:u32, sector_index:u32) entries. sector_index ==
// NIL marks an entry free.
type priceEntries struct{ b []byte }

func (s *Seat) bids() priceEntries {
	return priceEntries{b: s.pl[seatOffBidsTable : seatOffBidsTable+MaxOrdersPerSide*priceEntrySize]}
}
func (s *Seat) asks() priceEntries {
	return priceEntries{b: s.pl[seatOffAsksTable : seatOffAsksTable+MaxOrdersPerSide*priceEntrySize]}
}

// Side selects which per-seat price->sector table an order instruction
// addresses.
func (s *Seat) Side(isBid bool) priceEntries {
	if isBid {
		return s.bids()
	}
	return s.asks()
}

func (e priceEntries) entry(i int) (price uint32, sector uint32) {
	off := i * priceEntrySize
	return binary.LittleEndian.Uint32(e.b[off:]), binary.LittleEndian.Uint32(e.b[off+4:])
}

func (e priceEntries) setEntry(i int, price, sector uint32) {
	off := i * priceEntrySize
	binary.LittleEndian.PutUint32(e.b[off:], price)
	binary.LittleEndian.PutUint32(e.b[off+4:], sector)
}

// Get returns the sector index mapped to encodedPrice, or (0, false).
func (e priceEntries) Get(encodedPrice uint32) (uint32, bool) {
	for i := 0; i < MaxOrdersPerSide; i++ {
		p, sec := e.entry(i)
		if sec != NIL && p == encodedPrice {
			return sec, true
		}
	}
	return 0, false
}

// Add inserts a new (price, sector) pair into the first free entry.
func (e priceEntries) Add(encodedPrice uint32, sector uint32) error {
	for i := 0; i < MaxOrdersPerSide; i++ {
		p, sec := e.entry(i)
		if sec != NIL && p == encodedPrice {
			return Err(OrderWithPriceAlreadyExists)
		}
	}
	for i := 0; i < MaxOrdersPerSide; i++ {
		_, sec := e.entry(i)
		if sec == NIL {
			e.setEntry(i, encodedPrice, sector)
			return nil
		}
	}
	return Err(UserHasMaxOrders)
}

// Remove frees the entry for encodedPrice and returns its sector index.
func (e priceEntries) Remove(encodedPrice uint32) (uint32, error) {
	for i := 0; i < MaxOrdersPerSide; i++ {
		p, sec := e.entry(i)
		if sec != NIL && p == encodedPrice {
			e.setEntry(i, 0, NIL)
			return sec, nil
		}
	}
	return 0, Err(OrderNotFound)
}

// AllFree reports whether every entry on this side is free.
func (e priceEntries) AllFree() bool {
	for i := 0; i < MaxOrdersPerSide; i++ {
		_, sec := e.entry(i)
		if sec != NIL {
			return false
		}
	}
	return true
}

// Entries returns the live (price, sector) pairs on this side.
func (e priceEntries) Entries() []struct {
	Price  uint32
	Sector uint32
} {
	var out []struct {
		Price  uint32
		Sector uint32
	}
	for i := 0; i < MaxOrdersPerSide; i++ {
		p, sec := e.entry(i)
		if sec != NIL {
			out = append(out, struct {
				Price  uint32
				Sector uint32
			}{p, sec})
		}
	}
	return out
}

// HasOpenOrders reports whether the seat holds any live bid or ask.
func (s *Seat) HasOpenOrders() bool {
	return !s.bids().AllFree() || !s.asks().AllFree()
}

func zeroSeatPayload(pl []byte) {
	for i := range pl {
		pl[i] = 0
	}
	asks := pl[seatOffBidsTable:]
	for i := 0; i < 2*MaxOrdersPerSide; i++ {
		binary.LittleEndian.PutUint32(asks[i*priceEntrySize+4:], NIL)
	}
}

func newSeatPayload(user UserID) []byte {
	pl := make([]byte, PayloadSize)
	zeroSeatPayload(pl)
	copy(pl[seatOffUser:seatOffUser+32], user[:])
	return pl
}

// --- Seat index (C5): DLL instance over seats, sorted ascending by user
// address as unsigned big-endian bytes. ---

func seatsDLL(r *Region) *DLL { return &DLL{R: r, Role: seatsRole{r}} }

// InsertSeat walks the seat list to find the first seat whose user is >=
// the new user, rejecting an exact match, then inserts before it (or
// appends if none found). Returns the new seat's sector index.
func InsertSeat(r *Region, user UserID) (uint32, error) {
	dll := seatsDLL(r)

	var foundAt uint32 = NIL
	var rejectErr error
	dll.Iterate(func(i uint32) bool {
		pl, err := r.Payload(i)
		if err != nil {
			rejectErr = err
			return false
		}
		var existing UserID
		copy(existing[:], pl[seatOffUser:seatOffUser+32])
		cmp := bytes.Compare(user[:], existing[:])
		if cmp == 0 {
			rejectErr = Err(UserAlreadyExists)
			return false
		}
		if cmp < 0 {
			foundAt = i
			return false
		}
		return true
	})
	if rejectErr != nil {
		return 0, rejectErr
	}

	payload := newSeatPayload(user)
	if foundAt != NIL {
		return dll.InsertBefore(foundAt, payload)
	}
	return dll.PushBack(payload)
}

// FindSeatWithHint resolves a seat in O(1) via a caller-supplied sector
// index, verifying the stored user matches.
func FindSeatWithHint(r *Region, hint uint32, user UserID) (*Seat, error) {
	if err := r.boundsCheck(hint); err != nil {
		return nil, Err(InvalidIndexHint)
	}
	seat, err := LoadSeat(r, hint)
	if err != nil {
		return nil, Err(InvalidIndexHint)
	}
	if seat.User() != user {
		return nil, Err(InvalidIndexHint)
	}
	return seat, nil
}

// FindSeat scans the seat list for user's seat without a caller-supplied
// hint, for read paths (API/WS lookups) that don't carry one. Returns
// OrderNotFound if no seat exists for user.
func FindSeat(r *Region, user UserID) (*Seat, error) {
	var found *Seat
	var err error
	seatsDLL(r).Iterate(func(i uint32) bool {
		s, e := LoadSeat(r, i)
		if e != nil {
			err = e
			return false
		}
		if s.User() == user {
			found = s
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, Err(OrderNotFound)
	}
	return found, nil
}

// CloseSeat removes a seat with no open orders. Caller is responsible for
// having already moved base/quote available balances out via an external
// token transfer.
func CloseSeat(r *Region, hint uint32) error {
	seat, err := LoadSeat(r, hint)
	if err != nil {
		return err
	}
	if seat.HasOpenOrders() {
		return Err(SeatHasOpenOrders)
	}
	return seatsDLL(r).RemoveAt(hint)
}
