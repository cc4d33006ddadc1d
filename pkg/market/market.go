// Package market derives a spot market's on-chain-style address and keeps a
// process-wide registry mapping that address to its backing account region.
package market

import (
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Params describes the inputs a RegisterMarket instruction carries: the two
// mints it trades, the bump used in address derivation, and how many
// sectors to carve the account into (spec.md §3.1, §4.1).
type Params struct {
	BaseMint   [32]byte
	QuoteMint  [32]byte
	Bump       uint8
	NumSectors uint16
}

// DeriveAddress computes a market's address as
// keccak256(base_mint || quote_mint || bump), mirroring the PDA-style
// derivation in original_source/interface/src/state/market.rs so a market's
// address is a pure function of its mints rather than an externally chosen
// identifier (see DESIGN.md's market-address resolution).
func DeriveAddress(baseMint, quoteMint [32]byte, bump uint8) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(baseMint[:])
	h.Write(quoteMint[:])
	h.Write([]byte{bump})
	var addr [32]byte
	copy(addr[:], h.Sum(nil))
	return addr
}

// AccountSize returns the byte length a market account of numSectors must
// have: a fixed header plus numSectors fixed-size sectors.
func AccountSize(numSectors uint16, headerSize, sectorSize int) int {
	return headerSize + int(numSectors)*sectorSize
}

func (p Params) String() string {
	return fmt.Sprintf("market{base=%x quote=%x bump=%d sectors=%d}",
		p.BaseMint[:4], p.QuoteMint[:4], p.Bump, p.NumSectors)
}
