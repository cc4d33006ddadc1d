package engine

import "encoding/binary"

// Order payload offsets, within the first 64 bytes of the shared 152-byte
// sector's 144-byte payload (see DESIGN.md Open Question #2); the remainder
// is reserved and left zeroed.
const (
	orderOffEncodedPrice    = 0
	orderOffMakerSeatSector = 4
	orderOffBaseRemaining   = 8
	orderOffQuoteRemaining  = 16
)

// Order is a view over one sector's payload interpreted as a resting order.
type Order struct {
	r   *Region
	idx uint32
	pl  []byte
}

func LoadOrder(r *Region, idx uint32) (*Order, error) {
	pl, err := r.Payload(idx)
	if err != nil {
		return nil, err
	}
	return &Order{r: r, idx: idx, pl: pl}, nil
}

func (o *Order) Index() uint32 { return o.idx }

func (o *Order) EncodedPrice() EncodedPrice {
	return EncodedPrice(binary.LittleEndian.Uint32(o.pl[orderOffEncodedPrice:]))
}
func (o *Order) MakerSeatSector() uint32 {
	return binary.LittleEndian.Uint32(o.pl[orderOffMakerSeatSector:])
}
func (o *Order) BaseRemaining() uint64 {
	return binary.LittleEndian.Uint64(o.pl[orderOffBaseRemaining:])
}
func (o *Order) QuoteRemaining() uint64 {
	return binary.LittleEndian.Uint64(o.pl[orderOffQuoteRemaining:])
}

func (o *Order) SetBaseRemaining(v uint64) {
	binary.LittleEndian.PutUint64(o.pl[orderOffBaseRemaining:], v)
}
func (o *Order) SetQuoteRemaining(v uint64) {
	binary.LittleEndian.PutUint64(o.pl[orderOffQuoteRemaining:], v)
}

func newOrderPayload(encodedPrice EncodedPrice, makerSeatSector uint32, baseRemaining, quoteRemaining uint64) []byte {
	pl := make([]byte, PayloadSize)
	binary.LittleEndian.PutUint32(pl[orderOffEncodedPrice:], encodedPrice.AsU32())
	binary.LittleEndian.PutUint32(pl[orderOffMakerSeatSector:], makerSeatSector)
	binary.LittleEndian.PutUint64(pl[orderOffBaseRemaining:], baseRemaining)
	binary.LittleEndian.PutUint64(pl[orderOffQuoteRemaining:], quoteRemaining)
	return pl
}

func bidsDLL(r *Region) *DLL { return &DLL{R: r, Role: bidsRole{r}} }
func asksDLL(r *Region) *DLL { return &DLL{R: r, Role: asksRole{r}} }

func sideDLL(r *Region, isBid bool) *DLL {
	if isBid {
		return bidsDLL(r)
	}
	return asksDLL(r)
}

// TopOfBook returns the sector index of the head of a side, or NIL if
// empty.
func TopOfBook(r *Region, isBid bool) uint32 {
	if isBid {
		return r.BidsHead()
	}
	return r.AsksHead()
}

// OrderView is a read-only snapshot of one resting order, for API/WS
// consumers that shouldn't reach into sector bytes directly.
type OrderView struct {
	Sector          uint32
	EncodedPrice    uint32
	MakerSeatSector uint32
	BaseRemaining   uint64
	QuoteRemaining  uint64
}

// SideLevels walks one side of the book head-to-tail and returns every
// resting order, best price first.
func SideLevels(r *Region, isBid bool) ([]OrderView, error) {
	var views []OrderView
	var iterErr error
	sideDLL(r, isBid).Iterate(func(i uint32) bool {
		o, err := LoadOrder(r, i)
		if err != nil {
			iterErr = err
			return false
		}
		views = append(views, OrderView{
			Sector:          i,
			EncodedPrice:    o.EncodedPrice().AsU32(),
			MakerSeatSector: o.MakerSeatSector(),
			BaseRemaining:   o.BaseRemaining(),
			QuoteRemaining:  o.QuoteRemaining(),
		})
		return true
	})
	return views, iterErr
}

// findInsertionPoint walks a side from head (or from a resumption index, for
// batch_replace's monotonic-insert optimization) and returns the sector
// index of the first existing order with strictly lower priority than
// newPrice, or NIL if none (append at tail). Ties are broken by insertion
// order: the walk only stops at a STRICTLY lower-priority order, so a new
// order at an existing price is always placed after the existing ones.
func findInsertionPoint(r *Region, isBid bool, from uint32, newPrice EncodedPrice) (uint32, error) {
	dll := sideDLL(r, isBid)

	start := from
	if start == NIL {
		start = dll.Role.Head()
	} else if err := r.boundsCheck(start); err != nil {
		return 0, err
	}

	result := NIL
	i := start
	for i != NIL {
		order, err := LoadOrder(r, i)
		if err != nil {
			return 0, err
		}
		existing := order.EncodedPrice()
		lowerPriority := false
		if isBid {
			lowerPriority = existing < newPrice
		} else {
			lowerPriority = existing > newPrice
		}
		if lowerPriority {
			result = i
			break
		}
		i = r.sectorNext(i)
	}
	return result, nil
}

// PostOnlyCrossingCheck rejects a new order that would immediately cross
// the opposite side's top of book. Equality always rejects (strict
// inequality is the only accepted case).
func PostOnlyCrossingCheck(r *Region, isBid bool, newPrice EncodedPrice) error {
	oppositeTop := TopOfBook(r, !isBid)
	if oppositeTop == NIL {
		return nil
	}
	topOrder, err := LoadOrder(r, oppositeTop)
	if err != nil {
		return err
	}
	topPrice := topOrder.EncodedPrice()

	if isBid {
		if newPrice < topPrice {
			return nil
		}
	} else {
		if newPrice > topPrice {
			return nil
		}
	}
	return Err(PostOnlyWouldImmediatelyFill)
}

// PostOrderParams are the validated, decoded parameters of a PostOrder
// instruction.
type PostOrderParams struct {
	SeatHint       uint32
	User           UserID
	Mantissa       uint32
	BaseScalar     uint64
	BaseExpBiased  uint8
	QuoteExpBiased uint8
	IsBid          bool
}

// PostOrder posts a new resting order, enforcing the post-only crossing
// check and reserving the appropriate collateral from the seat before any
// list mutation (spec.md §4.4, §7).
func PostOrder(r *Region, p PostOrderParams) (orderSector uint32, encoded EncodedPrice, err error) {
	mantissa, err := NewValidatedMantissa(p.Mantissa)
	if err != nil {
		return 0, 0, err
	}
	amounts, err := ToOrderInfo(mantissa, p.BaseScalar, p.BaseExpBiased, p.QuoteExpBiased)
	if err != nil {
		return 0, 0, err
	}
	if amounts.BaseAtoms == 0 || amounts.QuoteAtoms == 0 {
		return 0, 0, Err(AmountCannotBeZero)
	}

	seat, err := FindSeatWithHint(r, p.SeatHint, p.User)
	if err != nil {
		return 0, 0, err
	}

	if err := PostOnlyCrossingCheck(r, p.IsBid, amounts.EncodedPrice); err != nil {
		return 0, 0, err
	}

	// Validate collateral and capacity before any mutation.
	if p.IsBid {
		if amounts.QuoteAtoms > seat.QuoteAvailable() {
			return 0, 0, Err(InsufficientUserBalance)
		}
	} else {
		if amounts.BaseAtoms > seat.BaseAvailable() {
			return 0, 0, Err(InsufficientUserBalance)
		}
	}
	table := seat.Side(p.IsBid)
	if _, exists := table.Get(amounts.EncodedPrice.AsU32()); exists {
		return 0, 0, Err(OrderWithPriceAlreadyExists)
	}
	if len(table.Entries()) >= MaxOrdersPerSide {
		return 0, 0, Err(UserHasMaxOrders)
	}

	insertBefore, err := findInsertionPoint(r, p.IsBid, NIL, amounts.EncodedPrice)
	if err != nil {
		return 0, 0, err
	}

	payload := newOrderPayload(amounts.EncodedPrice, seat.Index(), amounts.BaseAtoms, amounts.QuoteAtoms)

	var sector uint32
	dll := sideDLL(r, p.IsBid)
	if insertBefore == NIL {
		sector, err = dll.PushBack(payload)
	} else {
		sector, err = dll.InsertBefore(insertBefore, payload)
	}
	if err != nil {
		return 0, 0, err
	}

	if p.IsBid {
		_ = seat.TryDecrementQuoteAvailable(amounts.QuoteAtoms)
	} else {
		_ = seat.TryDecrementBaseAvailable(amounts.BaseAtoms)
	}
	if err := table.Add(amounts.EncodedPrice.AsU32(), sector); err != nil {
		return 0, 0, err
	}

	return sector, amounts.EncodedPrice, nil
}

// CancelOrder removes a resting order via the seat's price->sector map,
// returning its remaining collateral to the seat.
func CancelOrder(r *Region, encodedPrice uint32, isBid bool, seatHint uint32, user UserID) error {
	seat, err := FindSeatWithHint(r, seatHint, user)
	if err != nil {
		return err
	}

	table := seat.Side(isBid)
	sector, err := table.Remove(encodedPrice)
	if err != nil {
		return err
	}

	order, err := LoadOrder(r, sector)
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

	return sideDLL(r, isBid).RemoveAt(sector)
}
