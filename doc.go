// Package idgo provides a probabilistic allocator for unique uint32 ids.
//
// Idgo hands out ids from a bounded domain by sampling random candidates
// and testing them against increasingly exact membership tiers: a
// counting Bloom filter in front, then an in-memory hot set, then a
// durable cold archive. There is no free list, so memory stays small no
// matter how large the domain is, and the filter answers most probes
// without touching the exact tiers at all.
//
// # Quick Start
//
// In-memory mode:
//
//	ctx := context.Background()
//	alloc, _ := idgo.New(ctx, 1_000_000)
//	id, _ := alloc.Allocate(ctx)
//	_ = alloc.Release(ctx, id)
//
// Durable mode:
//
//	alloc, _ := idgo.Open(ctx, "./data", 1_000_000)
//	defer alloc.Close(ctx)
//
// Cloud mode:
//
//	s3Store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("ids/"))
//	alloc, _ := idgo.Open(ctx, "", 1_000_000, idgo.WithBlobStore(s3Store))
//
// # Durability Model
//
// Allocated ids start in the hot tier. When the hot tier reaches
// WithFlushThreshold ids it is flushed into the cold archive as a fresh
// copy-on-write snapshot, committed by atomically flipping the CURRENT
// pointer. Reopening loads the current snapshot and rebuilds the filter
// from it, so archived ids survive restarts. Hot ids only become durable
// once Flush or Close ran:
//
//	alloc, _ := idgo.Open(ctx, "./data", 1_000_000)
//	id, _ := alloc.Allocate(ctx)  // hot, in memory
//	alloc.Flush(ctx)              // durable after this
//
// A failed flush changes nothing, in memory or durable, and can simply
// be retried.
//
// # Scaling Writes
//
// A single allocator serializes every operation on one lock. For
// write-heavy workloads, OpenSharded and NewSharded split the domain
// into contiguous ranges with one independent allocator per range, so
// allocations in different ranges commit in parallel:
//
//	alloc, _ := idgo.OpenSharded(ctx, "./data", 1_000_000, idgo.WithNumShards(4))
//
// # Key Features
//
//   - Constant-memory membership: counting filter front, exact tiers behind
//   - Copy-on-write snapshots with atomic pointer flips (crash safe)
//   - Pluggable archive backends (local disk, S3, S3 Express Zone, MinIO)
//   - Sharded mode for parallel allocation
//   - zstd and lz4 snapshot compression
//   - Structured logging via log/slog and pluggable metrics
package idgo
