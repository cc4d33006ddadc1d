package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/dropset-labs/dropset/pkg/consensus"
)

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}
func (s *PebbleStore) Close() error { return s.db.Close() }

// keys: b:<32-byte-hash>, c:<8-byte-view>, cm:committed
func kBlock(h consensus.Hash) []byte { return append([]byte("b:"), h[:]...) }
func kCert(v consensus.View) []byte  { return append([]byte("c:"), viewKey(v)...) }
func kCommitted() []byte             { return []byte("cm") }

func (s *PebbleStore) SaveBlock(b consensus.Block) {
	key := kBlock(consensus.HashOfBlock(b))
	val, err := encodeGob(b)
	if err != nil {
		panic(fmt.Errorf("encode block: %w", err))
	}
	if err := s.db.Set(key, val, pebble.Sync); err != nil {
		panic(err)
	}
}

func (s *PebbleStore) GetBlock(h consensus.Hash) (consensus.Block, bool) {
	val, closer, err := s.db.Get(kBlock(h))
	if err != nil {
		if err == pebble.ErrNotFound {
			return consensus.Block{}, false
		}
		panic(err)
	}
	defer closer.Close()
	var out consensus.Block
	if err := decodeGob(val, &out); err != nil {
		panic(err)
	}
	return out, true
}

func (s *PebbleStore) SaveCert(c consensus.Certificate) {
	val, err := encodeGob(c)
	if err != nil {
		panic(fmt.Errorf("encode cert: %w", err))
	}
	if err := s.db.Set(kCert(c.View), val, pebble.Sync); err != nil {
		panic(err)
	}
}

func (s *PebbleStore) GetCert(v consensus.View) (consensus.Certificate, bool) {
	val, closer, err := s.db.Get(kCert(v))
	if err != nil {
		if err == pebble.ErrNotFound {
			return consensus.Certificate{}, false
		}
		panic(err)
	}
	defer closer.Close()
	var out consensus.Certificate
	if err := decodeGob(val, &out); err != nil {
		panic(err)
	}
	return out, true
}

func (s *PebbleStore) SetCommitted(h consensus.Hash) {
	if err := s.db.Set(kCommitted(), h[:], pebble.Sync); err != nil {
		panic(err)
	}
}

func (s *PebbleStore) GetCommitted() (consensus.Hash, bool) {
	val, closer, err := s.db.Get(kCommitted())
	if err != nil {
		if err == pebble.ErrNotFound {
			return consensus.Hash{}, false
		}
		panic(err)
	}
	defer closer.Close()
	var out consensus.Hash
	copy(out[:], val)
	return out, true
}

var _ consensus.BlockStore = (*PebbleStore)(nil)

// ============================================================================
// Market region persistence
// ============================================================================

// SaveRegion persists a market's full account snapshot (header + sectors).
func (s *PebbleStore) SaveRegion(market [32]byte, data []byte) error {
	if err := s.db.Set(regionKey(market), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save region %x: %w", market, err)
	}
	return nil
}

// LoadRegion loads a market's account snapshot. Returns nil, nil if the
// market has never been saved.
func (s *PebbleStore) LoadRegion(market [32]byte) ([]byte, error) {
	data, closer, err := s.db.Get(regionKey(market))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load region %x: %w", market, err)
	}
	defer closer.Close()

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// LoggedInstruction records one instruction dispatched against a market, in
// the order it was applied, for crash recovery and audit replay.
type LoggedInstruction struct {
	Sender [32]byte
	Nonce  uint64
	Tag    byte
	Body   []byte
}

// AppendInstruction appends one applied instruction to a market's sequence
// log. seq must increase monotonically per market so the log replays in
// dispatch order.
func (s *PebbleStore) AppendInstruction(market [32]byte, seq uint64, li LoggedInstruction) error {
	data, err := json.Marshal(li)
	if err != nil {
		return fmt.Errorf("failed to marshal logged instruction: %w", err)
	}
	if err := s.db.Set(instrLogKey(market, seq), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to append instruction log: %w", err)
	}
	return nil
}

// LoadInstructionLog loads a market's full instruction log, oldest first.
func (s *PebbleStore) LoadInstructionLog(market [32]byte) ([]LoggedInstruction, error) {
	prefix := instrLogPrefix(market)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var log []LoggedInstruction
	for iter.First(); iter.Valid(); iter.Next() {
		var li LoggedInstruction
		if err := json.Unmarshal(iter.Value(), &li); err != nil {
			continue
		}
		log = append(log, li)
	}
	return log, nil
}
