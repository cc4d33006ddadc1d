package market

import (
	"fmt"
	"sync"

	"github.com/dropset-labs/dropset/pkg/engine"
)

// Entry pairs a market's derived address and registration params with the
// live account region backing its order book and seat index.
type Entry struct {
	Address [32]byte
	Params  Params
	Region  *engine.Region
}

// Registry manages every market known to this node in a thread-safe manner,
// keyed by derived address rather than a human-chosen symbol.
type Registry struct {
	mu      sync.RWMutex
	markets map[[32]byte]*Entry
}

// NewRegistry creates an empty market registry.
func NewRegistry() *Registry {
	return &Registry{markets: make(map[[32]byte]*Entry)}
}

// Register formats a freshly allocated account as a new market region and
// adds it to the registry under its derived address.
func (r *Registry) Register(data []byte, p Params) (*Entry, error) {
	addr := DeriveAddress(p.BaseMint, p.QuoteMint, p.Bump)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markets[addr]; exists {
		return nil, fmt.Errorf("market %x already registered", addr)
	}

	region, err := engine.RegisterMarket(data, p.NumSectors, p.Bump, engine.Mint(p.BaseMint), engine.Mint(p.QuoteMint))
	if err != nil {
		return nil, fmt.Errorf("register market %x: %w", addr, err)
	}

	entry := &Entry{Address: addr, Params: p, Region: region}
	r.markets[addr] = entry
	return entry, nil
}

// Get retrieves a market's entry by its derived address.
func (r *Registry) Get(addr [32]byte) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.markets[addr]
	if !exists {
		return nil, fmt.Errorf("market %x not found", addr)
	}
	return e, nil
}

// List returns every registered market's entry.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entry, 0, len(r.markets))
	for _, e := range r.markets {
		out = append(out, e)
	}
	return out
}

// Count returns the number of registered markets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}

// Exists reports whether a market is registered under addr.
func (r *Registry) Exists(addr [32]byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.markets[addr]
	return exists
}
