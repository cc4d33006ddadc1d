package storage

import "fmt"

// Key schema for Pebble storage. Uses different prefixes than consensus
// keys (see pebble_store.go's kBlock/kCert/kCommitted) to avoid collisions:
//
// Consensus keys (existing):
//   b:<hash>     → Block
//   c:<view>     → Certificate
//   cm           → Committed hash
//
// Market/region keys:
//   region:<market>              → raw account bytes (header + sectors)
//   instrlog:<market>:<seq>       → applied instruction (tag + body + sender)

const (
	prefixRegion   = "region:"
	prefixInstrLog = "instrlog:"
)

// regionKey returns the key for a market's raw account bytes.
// Format: "region:{market}"
func regionKey(market [32]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", prefixRegion, market))
}

// instrLogKey returns the key for one applied instruction in a market's
// sequence log. seq is zero-padded (20 digits) for lexicographic sorting.
// Format: "instrlog:{market}:{seq}"
func instrLogKey(market [32]byte, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%x:%020d", prefixInstrLog, market, seq))
}

// instrLogPrefix returns the prefix for all logged instructions of a market.
// Format: "instrlog:{market}:"
func instrLogPrefix(market [32]byte) []byte {
	return []byte(fmt.Sprintf("%s%x:", prefixInstrLog, market))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
