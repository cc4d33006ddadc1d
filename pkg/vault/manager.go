package vault

import (
	"fmt"
	"sync"
)

// Manager layers an in-memory per-user nonce cache over the Pebble-backed
// ledger, mirroring the teacher's cache-plus-persistence account manager
// shape: nonces are checked and recorded without touching disk on the hot
// path, and every accepted deposit/withdrawal is still durably appended.
type Manager struct {
	mu         sync.RWMutex
	seenNonces map[[32]byte]map[uint64]bool // user -> nonce -> seen
	store      *Store
}

// NewManager creates a vault manager with Pebble persistence.
func NewManager(dbPath string) (*Manager, error) {
	store, err := NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault store: %w", err)
	}
	return &Manager{
		seenNonces: make(map[[32]byte]map[uint64]bool),
		store:      store,
	}, nil
}

// Close closes the underlying Pebble database.
func (m *Manager) Close() error {
	return m.store.Close()
}

// Record checks the (user, nonce) pair for replay, appends the record to
// the durable ledger on first sight, and reports whether it was accepted.
func (m *Manager) Record(r Record) (accepted bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	nonces, ok := m.seenNonces[r.User]
	if !ok {
		nonces = make(map[uint64]bool)
		m.seenNonces[r.User] = nonces
	}
	if nonces[r.Nonce] {
		return false, nil
	}

	if err := m.store.Append(r); err != nil {
		return false, err
	}
	nonces[r.Nonce] = true
	return true, nil
}

// History returns a user's full deposit/withdraw history for a market.
func (m *Manager) History(market, user [32]byte) ([]Record, error) {
	return m.store.LoadUserHistory(market, user)
}
