package vault

import "fmt"

// Pebble key schema, mirroring the teacher's prefix-based, lexicographically
// ordered account store: a record key sorts by market, then user, then a
// zero-padded timestamp so a range scan over a prefix yields chronological
// order.
const (
	prefixRecord = "vr:" // vault record
)

// recordKey returns the key for one ledger record.
// Format: "vr:{market}:{user}:{timestamp(20)}:{nonce}"
func recordKey(market, user [32]byte, timestamp int64, nonce uint64) []byte {
	return []byte(fmt.Sprintf("%s%x:%x:%020d:%020d", prefixRecord, market, user, timestamp, nonce))
}

// userPrefix returns the prefix for all records of one user in one market.
// Format: "vr:{market}:{user}:"
func userPrefix(market, user [32]byte) []byte {
	return []byte(fmt.Sprintf("%s%x:%x:", prefixRecord, market, user))
}

// marketPrefix returns the prefix for all records in one market.
// Format: "vr:{market}:"
func marketPrefix(market [32]byte) []byte {
	return []byte(fmt.Sprintf("%s%x:", prefixRecord, market))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
