package mempool

import "sync"

// TxType classifies a raw instruction envelope into proposal-ordering
// buckets.
type TxType int

const (
	TxNonOrder TxType = iota
	TxCancel
	TxOrder
)

// instrTag mirrors engine's dispatch tags without importing pkg/engine, so
// classification stays a pure byte-sniffing concern with no dependency on
// the matching engine's decode paths.
const (
	instrTagDeposit byte = iota
	instrTagWithdraw
	instrTagRegisterMarket
	instrTagCloseSeat
	instrTagPostOrder
	instrTagCancelOrder
	instrTagBatchReplace
	instrTagMarketOrder
	instrTagFlushEvents
)

// ClassifyRaw classifies a raw instruction envelope by its leading tag
// byte (spec.md §6.1). Orders (PostOrder, BatchReplace, MarketOrder) and
// cancels sort into their own buckets; everything else (Deposit, Withdraw,
// RegisterMarket, CloseSeat, FlushEvents) is non-order. Empty or unknown
// envelopes default to non-order so they never jump ahead of real cancels.
func ClassifyRaw(b []byte) TxType {
	if len(b) == 0 {
		return TxNonOrder
	}
	switch b[0] {
	case instrTagCancelOrder:
		return TxCancel
	case instrTagPostOrder, instrTagBatchReplace, instrTagMarketOrder:
		return TxOrder
	default:
		return TxNonOrder
	}
}

// Mempool maintains three queues per the house ordering rule: (1)
// non-order, (2) cancel, (3) orders. Within each bucket, FIFO by admission
// order.
type Mempool struct {
	mu       sync.Mutex
	nonOrder [][]byte
	cancel   [][]byte
	orders   [][]byte
}

func NewMempool() *Mempool {
	return &Mempool{}
}

// PushRaw classifies and enqueues a signed instruction envelope.
func (m *Mempool) PushRaw(b []byte) {
	cp := append([]byte(nil), b...)
	m.mu.Lock()
	defer m.mu.Unlock()
	switch ClassifyRaw(b) {
	case TxCancel:
		m.cancel = append(m.cancel, cp)
	case TxOrder:
		m.orders = append(m.orders, cp)
	default:
		m.nonOrder = append(m.nonOrder, cp)
	}
}

// SelectForProposal returns up to maxBytes worth of envelopes in house
// order, removing selected entries from the mempool. maxBytes <= 0 means
// unbounded.
func (m *Mempool) SelectForProposal(maxBytes int64) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out [][]byte
	var used int64

	pull := func(q *[][]byte) {
		for len(*q) > 0 {
			tx := (*q)[0]
			n := int64(len(tx))
			if maxBytes > 0 && used+n > maxBytes {
				return
			}
			out = append(out, tx)
			used += n
			*q = (*q)[1:]
		}
	}

	pull(&m.nonOrder)
	pull(&m.cancel)
	pull(&m.orders)

	return out
}

// Len returns total pending envelopes.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nonOrder) + len(m.cancel) + len(m.orders)
}
