// Package matching adapts a market registry, mempool and signed-instruction
// host to the PrepareProposal/ProcessProposal/FinalizeBlock shape
// pkg/app/perp.App implements over its in-memory order book, dispatching
// into engine.Region through pkg/host instead.
package matching

import (
	"crypto/sha256"
	"encoding/binary"
	"log"
	"sort"
	"sync"

	"github.com/dropset-labs/dropset/pkg/abci"
	"github.com/dropset-labs/dropset/pkg/consensus"
	"github.com/dropset-labs/dropset/pkg/host"
	"github.com/dropset-labs/dropset/pkg/market"
	"github.com/dropset-labs/dropset/pkg/mempool"
)

// CommitBroadcaster is called once per market touched by a finalized
// block, mirroring perp.App.OnTrade's hook for pushing WebSocket updates
// from the consensus commit path without coupling this package to pkg/api.
type CommitBroadcaster func(market [32]byte, height int64)

// App wires a market registry, mempool and host into the three-method
// shape pkg/abci.Bridge expects from its Application interface.
type App struct {
	Markets *market.Registry
	Mempool *mempool.Mempool
	Host    *host.Host

	mu       sync.Mutex
	OnCommit CommitBroadcaster
}

// NewApp builds an App. markets, mp and h must be non-nil.
func NewApp(markets *market.Registry, mp *mempool.Mempool, h *host.Host) *App {
	return &App{Markets: markets, Mempool: mp, Host: h}
}

// PushTx enqueues a raw signed instruction envelope.
func (a *App) PushTx(b []byte) { a.Mempool.PushRaw(b) }

func (a *App) PrepareProposal(req abci.RequestPrepareProposal) abci.ResponsePrepareProposal {
	return abci.ResponsePrepareProposal{Txs: a.Mempool.SelectForProposal(req.MaxTxBytes)}
}

func (a *App) ProcessProposal(_ abci.RequestProcessProposal) abci.ResponseProcessProposal {
	return abci.ResponseProcessProposal{Accept: true}
}

// FinalizeBlock decodes and applies every instruction envelope in order,
// skipping (rather than failing the block on) any envelope that fails to
// decode or is rejected by the host — mirroring applyTxV2WithFills's
// per-transaction error tolerance.
func (a *App) FinalizeBlock(req abci.RequestFinalizeBlock) abci.ResponseFinalizeBlock {
	touched := make(map[[32]byte]bool)
	applied := 0

	for _, envelope := range req.Txs {
		instr, sig, isBase, coSig, err := host.DecodeEnvelope(envelope)
		if err != nil {
			log.Printf("[app] malformed instruction envelope: %v", err)
			continue
		}
		res, err := a.Host.Apply(instr, sig, isBase, coSig)
		if err != nil {
			log.Printf("[app] instruction rejected: %v", err)
			continue
		}
		touched[res.Market] = true
		applied++
		if len(res.Events) > 0 {
			log.Printf("[app] instruction tag=%d flushed %d event buffer segment(s)", res.Tag, len(res.Events))
		}
	}

	a.mu.Lock()
	broadcaster := a.OnCommit
	a.mu.Unlock()
	if broadcaster != nil {
		for m := range touched {
			broadcaster(m, req.Height)
		}
	}

	appHash := a.computeStateHash(req.Height, req.Timestamp)

	if len(req.Txs) > 0 {
		log.Printf("[app] FinalizeBlock h=%d txs=%d applied=%d", req.Height, len(req.Txs), applied)
	}

	return abci.ResponseFinalizeBlock{
		Events:  []string{"commit"},
		AppHash: appHash,
	}
}

// computeStateHash hashes height, timestamp, and every registered market's
// raw region bytes in address-sorted order, following the teacher's
// height+timestamp+sorted-book hashing shape (see perp.App's
// computeStateHash) with the order book's price-level walk replaced by a
// whole-region byte hash, since a region's bytes already encode its full
// book and seat state.
func (a *App) computeStateHash(height, timestamp int64) consensus.Hash {
	h := sha256.New()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(height))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(timestamp))
	h.Write(buf[:])

	entries := a.Markets.List()
	sort.Slice(entries, func(i, j int) bool {
		return string(entries[i].Address[:]) < string(entries[j].Address[:])
	})
	for _, e := range entries {
		h.Write(e.Address[:])
		h.Write(e.Region.Bytes())
	}

	var out consensus.Hash
	copy(out[:], h.Sum(nil))
	return out
}
