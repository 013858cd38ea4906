// Package coldstore persists the archive of retired ids.
//
// The archive is a single roaring bitmap stored as generation snapshots
// behind an atomically updated pointer blob:
//
//	SNAP-000001    full snapshot for generation 1
//	SNAP-000002    full snapshot for generation 2
//	CURRENT        {"codec":"go-json","generation":2,"snapshot":"SNAP-000002"}
//
// # Copy-on-Write Commits
//
// Every mutation clones the resident set, applies the change, writes the
// result as a brand-new snapshot blob, and then flips CURRENT to point at
// it. The flip is the commit point: a crash before it leaves the previous
// generation visible, and the orphaned snapshot is swept on the next Open.
// After a successful flip the superseded snapshot is deleted best-effort.
//
// # Resident Set
//
// The full archive stays resident in memory, so Contains never touches
// storage. Commits swap in a fresh set rather than mutating in place,
// which keeps sets returned by Members stable for their holders.
//
// # Snapshot Format
//
// Snapshots carry a fixed header (magic, version, compression, cardinality,
// payload lengths, CRC32C) followed by the portable roaring serialization,
// optionally ZSTD- or LZ4-compressed. Decoding validates every field and
// reports corruption through typed errors (ErrInvalidSnapshot, ErrChecksum,
// ErrUnsupportedVersion).
package coldstore
