package filter

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// digest hashes an id into two 64-bit words for double hashing.
//
// The id is encoded as a fixed 8-byte little-endian value before hashing, so
// every id produces a digest of identical width regardless of its magnitude.
// The second word is forced odd; with the usual power-of-two widths this keeps
// the probe stride coprime to the counter vector.
func digest(id uint32) (h1, h2 uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(id))

	h := xxh3.Hash128(buf[:])

	return h.Hi, h.Lo | 1
}

// position returns the i-th probe position for a digest within width counters.
func position(h1, h2 uint64, i int, width uint64) uint64 {
	return (h1 + uint64(i)*h2) % width
}
