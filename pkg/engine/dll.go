package engine

// Role supplies the head/tail pointers and element counter a DLL instance
// reads and writes. Each of the three lists in a region (seats, bids, asks)
// has its own Role backed by different header fields; DLL itself is
// list-identity-agnostic (spec.md §4.2, §9 "Polymorphism across list
// roles").
type Role interface {
	Head() uint32
	SetHead(uint32)
	Tail() uint32
	SetTail(uint32)
	IncrCount()
	DecrCount()
}

type seatsRole struct{ r *Region }

func (s seatsRole) Head() uint32     { return s.r.SeatsHead() }
func (s seatsRole) SetHead(v uint32) { s.r.setSeatsHead(v) }
func (s seatsRole) Tail() uint32     { return s.r.SeatsTail() }
func (s seatsRole) SetTail(v uint32) { s.r.setSeatsTail(v) }
func (s seatsRole) IncrCount()       { s.r.setNumSeats(s.r.NumSeats() + 1) }
func (s seatsRole) DecrCount()       { s.r.setNumSeats(s.r.NumSeats() - 1) }

type bidsRole struct{ r *Region }

func (b bidsRole) Head() uint32     { return b.r.BidsHead() }
func (b bidsRole) SetHead(v uint32) { b.r.setBidsHead(v) }
func (b bidsRole) Tail() uint32     { return b.r.BidsTail() }
func (b bidsRole) SetTail(v uint32) { b.r.setBidsTail(v) }
func (b bidsRole) IncrCount()       { b.r.setNumBids(b.r.NumBids() + 1) }
func (b bidsRole) DecrCount()       { b.r.setNumBids(b.r.NumBids() - 1) }

type asksRole struct{ r *Region }

func (a asksRole) Head() uint32     { return a.r.AsksHead() }
func (a asksRole) SetHead(v uint32) { a.r.setAsksHead(v) }
func (a asksRole) Tail() uint32     { return a.r.AsksTail() }
func (a asksRole) SetTail(v uint32) { a.r.setAsksTail(v) }
func (a asksRole) IncrCount()       { a.r.setNumAsks(a.r.NumAsks() + 1) }
func (a asksRole) DecrCount()       { a.r.setNumAsks(a.r.NumAsks() - 1) }

// DLL is the generic intrusive doubly-linked-list primitive (C4): push
// front/back, insert-before, remove-at, all O(1) given a free sector is
// available. Payload bytes are opaque to DLL; callers interpret them as
// MarketSeat or Order depending on which Role they instantiated it with.
type DLL struct {
	R    *Region
	Role Role
}

func (d *DLL) PushFront(payload []byte) (uint32, error) {
	i, err := d.R.FreePop()
	if err != nil {
		return 0, err
	}
	oldHead := d.Role.Head()
	d.R.setSectorPrev(i, NIL)
	d.R.setSectorNext(i, oldHead)
	pl, _ := d.R.Payload(i)
	copy(pl, payload)

	if oldHead != NIL {
		d.R.setSectorPrev(oldHead, i)
	}
	if d.Role.Tail() == NIL {
		d.Role.SetTail(i)
	}
	d.Role.SetHead(i)
	d.Role.IncrCount()
	return i, nil
}

func (d *DLL) PushBack(payload []byte) (uint32, error) {
	i, err := d.R.FreePop()
	if err != nil {
		return 0, err
	}
	oldTail := d.Role.Tail()
	d.R.setSectorPrev(i, oldTail)
	d.R.setSectorNext(i, NIL)
	pl, _ := d.R.Payload(i)
	copy(pl, payload)

	if oldTail != NIL {
		d.R.setSectorNext(oldTail, i)
	}
	if d.Role.Head() == NIL {
		d.Role.SetHead(i)
	}
	d.Role.SetTail(i)
	d.Role.IncrCount()
	return i, nil
}

// InsertBefore splices a new sector between nextI's current predecessor and
// nextI. nextI must not be NIL.
func (d *DLL) InsertBefore(nextI uint32, payload []byte) (uint32, error) {
	if nextI == NIL {
		return 0, Err(InvalidSectorIndex)
	}
	if err := d.R.boundsCheck(nextI); err != nil {
		return 0, err
	}

	i, err := d.R.FreePop()
	if err != nil {
		return 0, err
	}

	prevI := d.R.sectorPrev(nextI)
	d.R.setSectorPrev(i, prevI)
	d.R.setSectorNext(i, nextI)
	pl, _ := d.R.Payload(i)
	copy(pl, payload)

	d.R.setSectorPrev(nextI, i)
	if prevI != NIL {
		d.R.setSectorNext(prevI, i)
	} else {
		d.Role.SetHead(i)
	}
	d.Role.IncrCount()
	return i, nil
}

// RemoveAt unlinks sector i from this list and returns it to the free
// stack, zeroing its payload.
func (d *DLL) RemoveAt(i uint32) error {
	if err := d.R.boundsCheck(i); err != nil {
		return err
	}
	prev := d.R.sectorPrev(i)
	next := d.R.sectorNext(i)

	if prev != NIL {
		d.R.setSectorNext(prev, next)
	} else {
		d.Role.SetHead(next)
	}
	if next != NIL {
		d.R.setSectorPrev(next, prev)
	} else {
		d.Role.SetTail(prev)
	}

	d.R.FreePush(i)
	d.Role.DecrCount()
	return nil
}

// Iterate walks the list from head to tail, calling fn with each sector
// index until fn returns false or the list is exhausted.
func (d *DLL) Iterate(fn func(i uint32) bool) {
	i := d.Role.Head()
	for i != NIL {
		next := d.R.sectorNext(i)
		if !fn(i) {
			return
		}
		i = next
	}
}
