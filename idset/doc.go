// Package idset provides an exact, compressed set of 32-bit ids.
//
// It is the in-memory representation used by both allocator tiers: the hot
// tier accumulates recently allocated ids, and the durable tier keeps its
// resident copy of the archived ids in a Set. The roaring-based
// serialization (WriteTo/ReadFrom) doubles as the snapshot payload format.
package idset
