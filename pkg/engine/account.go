package engine

import "encoding/binary"

// Header byte layout (128 bytes). spec.md §3.2's prose says "exactly 104
// bytes" but its own field table sums to 128; the field table is followed
// here as authoritative (see DESIGN.md, "Resolved Open Questions" #1).
// Sector size: spec.md states both "each sector is exactly 72 bytes" (§3.1,
// §3.3) and a MarketSeat payload of "(64 bytes)" (§3.4) whose own listed
// fields (user:32, four u64 balances:32) already consume all 64 bytes
// before the UserOrderSectors table the same paragraph says is "co-located
// in the seat". original_source/interface/src/state/user_order_sectors.rs
// fixes that table's real size at 80 bytes (2 sides * 5 entries *
// (price:4 + sector_index:4)), which cannot fit in the remaining 0 bytes.
// Since the header carries exactly one free-stack/one sector pool shared by
// seats and orders (no separate seat arena, no second free-stack field),
// sector size must be uniform across both roles — so the contradiction is
// resolved by sizing the shared sector to fit the larger payload (144 bytes:
// 64 base fields + 80 order-table bytes) rather than by the stated 64.
// Order payloads use only their first 64 bytes; the remainder is reserved.
// See DESIGN.md, "Resolved Open Questions" #2.
const (
	HeaderSize  = 128
	SectorSize  = 152
	PayloadSize = SectorSize - 8

	offDiscriminant    = 0
	offNumSeats        = 8
	offNumBids         = 12
	offNumAsks         = 16
	offNumFreeSectors  = 20
	offFreeStackTop    = 24
	offSeatsHead       = 28
	offSeatsTail       = 32
	offBidsHead        = 36
	offBidsTail        = 40
	offAsksHead        = 44
	offAsksTail        = 48
	offBaseMint        = 52
	offQuoteMint       = 84
	offMarketBump      = 116
	offNonce           = 117
	offPadding         = 125
)

// MarketDiscriminant is the constant account discriminant; a mismatch means
// the bytes handed to the engine are not a market region.
const MarketDiscriminant uint64 = 0xd00d00b00b00f00d

// NIL is the sentinel sector index meaning "no such sector".
const NIL uint32 = 1<<32 - 1

// Mint and UserID are the 32-byte identifiers carried in the header and in
// seat payloads.
type Mint [32]byte
type UserID [32]byte

// Region is a zero-copy view over one market account's bytes: a Header
// followed by a flat array of fixed-size Sectors. All reads/writes go
// through fixed little-endian offsets directly against the backing slice,
// matching spec.md's unit-alignment requirement.
type Region struct {
	data []byte
}

// NewRegion wraps an existing byte slice without validating it. Use Load to
// validate the discriminant and alignment of an existing region.
func NewRegion(data []byte) *Region { return &Region{data: data} }

// Bytes returns the backing slice.
func (r *Region) Bytes() []byte { return r.data }

// NumSectors derives the sector count from the region's total length.
func (r *Region) NumSectors() uint32 {
	return uint32((len(r.data) - HeaderSize) / SectorSize)
}

// Load validates an existing region: minimum length, sector alignment, and
// discriminant.
func Load(data []byte) (*Region, error) {
	if len(data) < HeaderSize {
		return nil, Err(UnallocatedAccountData)
	}
	if (len(data)-HeaderSize)%SectorSize != 0 {
		return nil, Err(MismatchedDataLengths)
	}
	r := &Region{data: data}
	if r.Discriminant() != MarketDiscriminant {
		return nil, Err(InvalidAccountDiscriminant)
	}
	return r, nil
}

// InitRegion formats a zeroed byte slice as a fresh market region: writes
// the header and pushes every sector onto the free stack in reverse order
// so sector 0 is the first one popped (spec.md §3.7, confirmed against
// original_source/interface/src/state/market.rs's `Market::init`).
func InitRegion(data []byte, bump uint8, baseMint, quoteMint Mint) (*Region, error) {
	if len(data) < HeaderSize {
		return nil, Err(UnallocatedAccountData)
	}
	if (len(data)-HeaderSize)%SectorSize != 0 {
		return nil, Err(UnalignedData)
	}

	r := &Region{data: data}
	binary.LittleEndian.PutUint64(r.data[offDiscriminant:], MarketDiscriminant)
	r.setU32(offNumSeats, 0)
	r.setU32(offNumBids, 0)
	r.setU32(offNumAsks, 0)
	r.setU32(offNumFreeSectors, 0)
	r.setU32(offFreeStackTop, NIL)
	r.setU32(offSeatsHead, NIL)
	r.setU32(offSeatsTail, NIL)
	r.setU32(offBidsHead, NIL)
	r.setU32(offBidsTail, NIL)
	r.setU32(offAsksHead, NIL)
	r.setU32(offAsksTail, NIL)
	copy(r.data[offBaseMint:offBaseMint+32], baseMint[:])
	copy(r.data[offQuoteMint:offQuoteMint+32], quoteMint[:])
	r.data[offMarketBump] = bump
	binary.LittleEndian.PutUint64(r.data[offNonce:], 0)

	n := r.NumSectors()
	for i := int64(n) - 1; i >= 0; i-- {
		r.freePush(uint32(i))
	}

	return r, nil
}

func (r *Region) u32(off int) uint32 { return binary.LittleEndian.Uint32(r.data[off:]) }
func (r *Region) setU32(off int, v uint32) { binary.LittleEndian.PutUint32(r.data[off:], v) }

func (r *Region) Discriminant() uint64 { return binary.LittleEndian.Uint64(r.data[offDiscriminant:]) }

func (r *Region) NumSeats() uint32       { return r.u32(offNumSeats) }
func (r *Region) NumBids() uint32        { return r.u32(offNumBids) }
func (r *Region) NumAsks() uint32        { return r.u32(offNumAsks) }
func (r *Region) NumFreeSectors() uint32 { return r.u32(offNumFreeSectors) }
func (r *Region) FreeStackTop() uint32   { return r.u32(offFreeStackTop) }
func (r *Region) SeatsHead() uint32      { return r.u32(offSeatsHead) }
func (r *Region) SeatsTail() uint32      { return r.u32(offSeatsTail) }
func (r *Region) BidsHead() uint32       { return r.u32(offBidsHead) }
func (r *Region) BidsTail() uint32       { return r.u32(offBidsTail) }
func (r *Region) AsksHead() uint32       { return r.u32(offAsksHead) }
func (r *Region) AsksTail() uint32       { return r.u32(offAsksTail) }
func (r *Region) MarketBump() uint8      { return r.data[offMarketBump] }
func (r *Region) Nonce() uint64          { return binary.LittleEndian.Uint64(r.data[offNonce:]) }

func (r *Region) BaseMint() Mint {
	var m Mint
	copy(m[:], r.data[offBaseMint:offBaseMint+32])
	return m
}

func (r *Region) QuoteMint() Mint {
	var m Mint
	copy(m[:], r.data[offQuoteMint:offQuoteMint+32])
	return m
}

func (r *Region) setNumSeats(v uint32)       { r.setU32(offNumSeats, v) }
func (r *Region) setNumBids(v uint32)        { r.setU32(offNumBids, v) }
func (r *Region) setNumAsks(v uint32)        { r.setU32(offNumAsks, v) }
func (r *Region) setNumFreeSectors(v uint32) { r.setU32(offNumFreeSectors, v) }
func (r *Region) setFreeStackTop(v uint32)   { r.setU32(offFreeStackTop, v) }
func (r *Region) setSeatsHead(v uint32)      { r.setU32(offSeatsHead, v) }
func (r *Region) setSeatsTail(v uint32)      { r.setU32(offSeatsTail, v) }
func (r *Region) setBidsHead(v uint32)       { r.setU32(offBidsHead, v) }
func (r *Region) setBidsTail(v uint32)       { r.setU32(offBidsTail, v) }
func (r *Region) setAsksHead(v uint32)       { r.setU32(offAsksHead, v) }
func (r *Region) setAsksTail(v uint32)       { r.setU32(offAsksTail, v) }

func (r *Region) IncrementNonce() {
	binary.LittleEndian.PutUint64(r.data[offNonce:], r.Nonce()+1)
}

// --- Sector store (C2) ---

// boundsCheck validates a sector index is addressable and not NIL.
func (r *Region) boundsCheck(i uint32) error {
	if i == NIL {
		return Err(InvalidSectorIndex)
	}
	if i >= r.NumSectors() {
		return Err(IndexOutOfBounds)
	}
	return nil
}

// sectorOffset returns the byte offset of sector i. Caller must have
// already bounds-checked i.
func (r *Region) sectorOffset(i uint32) int { return HeaderSize + int(i)*SectorSize }

// Sector returns the 152-byte (SectorSize) slice for sector i, bounds-checked.
func (r *Region) Sector(i uint32) ([]byte, error) {
	if err := r.boundsCheck(i); err != nil {
		return nil, err
	}
	off := r.sectorOffset(i)
	return r.data[off : off+SectorSize], nil
}

func (r *Region) sectorPrev(i uint32) uint32 {
	off := r.sectorOffset(i)
	return binary.LittleEndian.Uint32(r.data[off:])
}
func (r *Region) setSectorPrev(i uint32, v uint32) {
	off := r.sectorOffset(i)
	binary.LittleEndian.PutUint32(r.data[off:], v)
}
func (r *Region) sectorNext(i uint32) uint32 {
	off := r.sectorOffset(i)
	return binary.LittleEndian.Uint32(r.data[off+4:])
}
func (r *Region) setSectorNext(i uint32, v uint32) {
	off := r.sectorOffset(i)
	binary.LittleEndian.PutUint32(r.data[off+4:], v)
}

// Payload returns the 144-byte (PayloadSize) payload slice of sector i, bounds-checked.
func (r *Region) Payload(i uint32) ([]byte, error) {
	if err := r.boundsCheck(i); err != nil {
		return nil, err
	}
	off := r.sectorOffset(i) + 8
	return r.data[off : off+PayloadSize], nil
}

func (r *Region) zeroSector(i uint32) {
	off := r.sectorOffset(i)
	for j := 0; j < SectorSize; j++ {
		r.data[off+j] = 0
	}
}

// --- Free stack (C3) ---

// freePush zeroes the sector's payload, links it in front of the current
// free-stack top, and makes it the new top. Exported as FreePush for use by
// remove_at style callers (DLL.RemoveAt).
func (r *Region) freePush(i uint32) {
	r.zeroSector(i)
	r.setSectorNext(i, r.FreeStackTop())
	r.setFreeStackTop(i)
	r.setNumFreeSectors(r.NumFreeSectors() + 1)
}

// FreePush is the exported form of freePush, used by dll.go's RemoveAt.
func (r *Region) FreePush(i uint32) { r.freePush(i) }

// FreePop pops the top of the free stack, or returns NoFreeSectors if empty.
func (r *Region) FreePop() (uint32, error) {
	top := r.FreeStackTop()
	if top == NIL {
		return 0, Err(NoFreeSectors)
	}
	next := r.sectorNext(top)
	r.setFreeStackTop(next)
	r.setSectorNext(top, 0)
	r.setNumFreeSectors(r.NumFreeSectors() - 1)
	return top, nil
}
