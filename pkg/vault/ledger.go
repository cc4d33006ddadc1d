// Package vault keeps an append-only audit ledger of every deposit and
// withdrawal applied to a market's seats. The seats themselves (balances,
// open orders) live inside the engine.Region account bytes; vault exists so
// a node can answer "what token transfers produced this balance" without
// replaying the whole instruction log.
package vault

import "fmt"

// Record is one deposit or withdrawal against a seat.
type Record struct {
	Market    [32]byte
	User      [32]byte
	IsBase    bool
	IsDeposit bool
	Amount    uint64
	Nonce     uint64
	Timestamp int64 // Unix time, stamped by the caller (pkg/host stamps seconds)
}

func (r Record) String() string {
	dir := "withdraw"
	if r.IsDeposit {
		dir = "deposit"
	}
	asset := "quote"
	if r.IsBase {
		asset = "base"
	}
	return fmt.Sprintf("%s %s market=%x user=%x amount=%d nonce=%d", dir, asset, r.Market[:4], r.User[:4], r.Amount, r.Nonce)
}
