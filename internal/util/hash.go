// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// PageHash hashes a page index for shard selection.
// Consecutive pages are the common access pattern (scrolling), so the raw
// index is run through xxhash to spread neighbours across shards.
func PageHash(page int) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(page))
	return xxhash.Sum64(b[:])
}
