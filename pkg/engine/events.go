package engine

import "encoding/binary"

// EventBufferCapacity bounds the stack-resident scratch buffer an
// instruction accumulates events into before a self-flush (spec.md §4.7).
const EventBufferCapacity = 10240

const headerEventTag byte = 0

// Header event body layout: instruction tag, market address, sender
// address, header nonce snapshot, running emitted_count.
const (
	headerBodyInstrTag = 0
	headerBodyMarket    = 1
	headerBodySender    = 33
	headerBodyNonce     = 65
	headerBodyEmitted   = 73
	headerBodySize      = headerBodyEmitted + 4
)

const headerSizeWithTags = 2 + headerBodySize // dispatcher_tag + header_event_tag + body

// Dispatcher self-invokes with a buffer's initialized prefix as instruction
// data, consuming only a signed "event authority" account.
type Dispatcher interface {
	Dispatch(data []byte) error
}

// EventBuffer accumulates (tag, body) events behind a single header event,
// flushing to the Dispatcher whenever an append would exceed capacity and
// unconditionally at instruction end if anything was emitted.
type EventBuffer struct {
	disp Dispatcher
	buf  []byte

	dispatcherTag byte
	instrTag      byte
	market        [32]byte
	sender        [32]byte
	nonce         uint64
}

// NewEventBuffer initializes a buffer's fixed header prefix: dispatcher
// tag, header event tag, and header body (instruction tag, market, sender,
// nonce, emitted_count=0).
func NewEventBuffer(disp Dispatcher, dispatcherTag byte, instrTag byte, market, sender [32]byte, nonce uint64) *EventBuffer {
	b := &EventBuffer{disp: disp, buf: make([]byte, 0, EventBufferCapacity)}
	b.resetHeader(dispatcherTag, instrTag, market, sender, nonce)
	return b
}

func (b *EventBuffer) resetHeader(dispatcherTag, instrTag byte, market, sender [32]byte, nonce uint64) {
	b.buf = b.buf[:0]
	b.buf = append(b.buf, dispatcherTag, headerEventTag)
	b.buf = append(b.buf, instrTag)
	b.buf = append(b.buf, market[:]...)
	b.buf = append(b.buf, sender[:]...)
	var nonceBuf [8]byte
	binary.LittleEndian.PutUint64(nonceBuf[:], nonce)
	b.buf = append(b.buf, nonceBuf[:]...)
	b.buf = append(b.buf, 0, 0, 0, 0) // emitted_count = 0
	b.dispatcherTag = dispatcherTag
	b.instrTag = instrTag
	b.market = market
	b.sender = sender
	b.nonce = nonce
}

func (b *EventBuffer) emittedCountOffset() int { return 2 + headerBodyEmitted }

func (b *EventBuffer) EmittedCount() uint32 {
	return binary.LittleEndian.Uint32(b.buf[b.emittedCountOffset():])
}

func (b *EventBuffer) setEmittedCount(v uint32) {
	binary.LittleEndian.PutUint32(b.buf[b.emittedCountOffset():], v)
}

// Append adds one (tag, body) event, flushing first if it would not fit.
func (b *EventBuffer) Append(tag byte, body []byte) error {
	needed := 1 + len(body)
	if len(b.buf)+needed > EventBufferCapacity {
		if err := b.Flush(); err != nil {
			return err
		}
	}
	b.buf = append(b.buf, tag)
	b.buf = append(b.buf, body...)
	b.setEmittedCount(b.EmittedCount() + 1)
	return nil
}

// Flush self-invokes the dispatcher with the buffer's current contents, then
// resets the buffer to its initialized header prefix with emitted_count=0.
// A no-op when nothing has been emitted.
func (b *EventBuffer) Flush() error {
	if b.EmittedCount() == 0 {
		return nil
	}
	if err := b.disp.Dispatch(append([]byte(nil), b.buf...)); err != nil {
		return err
	}
	b.resetHeader(b.dispatcherTag, b.instrTag, b.market, b.sender, b.nonce)
	return nil
}

// Event tags, one per operation that mutates a region and is worth
// reporting to off-region consumers (spec.md §2, §4.7). headerEventTag (0)
// is reserved for the header itself.
const (
	EventDeposit byte = iota + 1
	EventWithdraw
	EventRegisterMarket
	EventCloseSeat
	EventPostOrder
	EventCancelOrder
	EventBatchReplace
	EventMarketOrder
)

// EncodeDepositEvent packs a Deposit/Withdraw event body: trader(32),
// seat(4), amount(8), is_base(1). Shared by both tags since their payload
// shape is identical (original_source/client/src/events/dropset_event.rs's
// DepositInstructionData/WithdrawInstructionData).
func EncodeDepositEvent(trader UserID, seat uint32, amount uint64, isBase bool) []byte {
	body := make([]byte, 32+4+8+1)
	copy(body[0:32], trader[:])
	binary.LittleEndian.PutUint32(body[32:36], seat)
	binary.LittleEndian.PutUint64(body[36:44], amount)
	if isBase {
		body[44] = 1
	}
	return body
}

// EncodeRegisterMarketEvent packs a RegisterMarket event body: market(32),
// base_mint(32), quote_mint(32), bump(1).
func EncodeRegisterMarketEvent(market [32]byte, baseMint, quoteMint Mint, bump uint8) []byte {
	body := make([]byte, 32+32+32+1)
	copy(body[0:32], market[:])
	copy(body[32:64], baseMint[:])
	copy(body[64:96], quoteMint[:])
	body[96] = bump
	return body
}

// EncodeCloseSeatEvent packs a CloseSeat event body: trader(32), seat(4).
func EncodeCloseSeatEvent(trader UserID, seat uint32) []byte {
	body := make([]byte, 32+4)
	copy(body[0:32], trader[:])
	binary.LittleEndian.PutUint32(body[32:36], seat)
	return body
}

// EncodePostOrderEvent packs a PostOrder event body: trader(32), seat(4),
// sector(4), encoded_price(4), is_bid(1), base_atoms(8), quote_atoms(8).
func EncodePostOrderEvent(trader UserID, seat, sector uint32, encodedPrice uint32, isBid bool, baseAtoms, quoteAtoms uint64) []byte {
	body := make([]byte, 32+4+4+4+1+8+8)
	off := 0
	copy(body[off:off+32], trader[:])
	off += 32
	binary.LittleEndian.PutUint32(body[off:], seat)
	off += 4
	binary.LittleEndian.PutUint32(body[off:], sector)
	off += 4
	binary.LittleEndian.PutUint32(body[off:], encodedPrice)
	off += 4
	if isBid {
		body[off] = 1
	}
	off++
	binary.LittleEndian.PutUint64(body[off:], baseAtoms)
	off += 8
	binary.LittleEndian.PutUint64(body[off:], quoteAtoms)
	return body
}

// EncodeCancelOrderEvent packs a CancelOrder event body: trader(32),
// seat(4), encoded_price(4), is_bid(1).
func EncodeCancelOrderEvent(trader UserID, seat uint32, encodedPrice uint32, isBid bool) []byte {
	body := make([]byte, 32+4+4+1)
	copy(body[0:32], trader[:])
	binary.LittleEndian.PutUint32(body[32:36], seat)
	binary.LittleEndian.PutUint32(body[36:40], encodedPrice)
	if isBid {
		body[40] = 1
	}
	return body
}

// EncodeBatchReplaceEvent packs a BatchReplace event body: trader(32),
// seat(4), bids_posted(1), asks_posted(1).
func EncodeBatchReplaceEvent(trader UserID, seat uint32, bidsPosted, asksPosted int) []byte {
	body := make([]byte, 32+4+1+1)
	copy(body[0:32], trader[:])
	binary.LittleEndian.PutUint32(body[32:36], seat)
	body[36] = byte(bidsPosted)
	body[37] = byte(asksPosted)
	return body
}

// EncodeMarketOrderEvent packs a MarketOrder event body: trader(32),
// is_buy(1), base_denominated(1), base_filled(8), quote_filled(8).
func EncodeMarketOrderEvent(trader UserID, isBuy, baseDenominated bool, result MatchResult) []byte {
	body := make([]byte, 32+1+1+8+8)
	off := 0
	copy(body[off:off+32], trader[:])
	off += 32
	if isBuy {
		body[off] = 1
	}
	off++
	if baseDenominated {
		body[off] = 1
	}
	off++
	binary.LittleEndian.PutUint64(body[off:], result.BaseFilled)
	off += 8
	binary.LittleEndian.PutUint64(body[off:], result.QuoteFilled)
	return body
}
