package idgo

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"time"

	"github.com/hupe1980/idgo/blobstore"
	"github.com/hupe1980/idgo/internal/fs"
	"github.com/hupe1980/idgo/resource"
	"golang.org/x/sync/errgroup"
)

// ShardedAllocator partitions the id domain into contiguous ranges and
// runs one independent Allocator per range.
//
// # Routing
//
// Candidates are still sampled uniformly from the whole domain and then
// routed to the shard owning the range they fall in, so the sampling
// distribution is exactly that of a single allocator. Release routes the
// same way: the owning shard follows from the id alone in O(1).
//
// # Design
//
//   - Each shard is a complete Allocator with its own lock, filter, hot
//     set and cold archive
//   - Allocations landing in different ranges commit in parallel instead
//     of serializing on one lock
//   - Flush and Close fan out across shards; a resource controller, when
//     configured, bounds how many shard flushes run at once
//
// On durable storage every shard keeps its archive in its own shard-NN
// subdirectory (or under a shard-NN/ key prefix when the archive sits on
// a shared blob store), so a sharded layout is just N single-allocator
// layouts side by side.
type ShardedAllocator struct {
	domainSize  uint32
	span        uint32
	maxAttempts int

	shards []*Allocator
	rc     *resource.Controller

	rngMu sync.Mutex
	rng   *rand.Rand

	metrics MetricsCollector
	logger  *Logger

	mu     sync.RWMutex
	closed bool
}

// OpenSharded creates or reopens a durable sharded allocator rooted at
// dir, split into WithNumShards ranges (default 1). Every shard recovers
// its own archive, so reopening restores the full allocated population.
//
// WithBlobStore overrides dir and places each shard under its own
// shard-NN/ key prefix on the given backend; dir may then be empty.
func OpenSharded(ctx context.Context, dir string, domainSize uint32, optFns ...Option) (*ShardedAllocator, error) {
	opts := applyOptions(optFns)

	makeStore := func(i int) (blobstore.BlobStore, error) {
		if opts.blobStore != nil {
			return blobstore.NewPrefixStore(opts.blobStore, shardName(i)), nil
		}

		if dir == "" {
			return nil, fmt.Errorf("idgo: directory required (or use WithBlobStore)")
		}

		fsys := opts.fs
		if fsys == nil {
			fsys = fs.Default
		}

		shardDir := filepath.Join(dir, shardName(i))
		if err := fsys.MkdirAll(shardDir, 0755); err != nil {
			return nil, fmt.Errorf("idgo: create shard directory: %w", err)
		}

		return blobstore.NewLocalStoreWithFS(shardDir, fsys), nil
	}

	return newShardedAllocator(ctx, domainSize, opts, makeStore)
}

// NewSharded creates a sharded allocator on in-memory backends. State
// does not survive the process; use OpenSharded for durability.
func NewSharded(ctx context.Context, domainSize uint32, optFns ...Option) (*ShardedAllocator, error) {
	opts := applyOptions(optFns)

	makeStore := func(i int) (blobstore.BlobStore, error) {
		if opts.blobStore != nil {
			return blobstore.NewPrefixStore(opts.blobStore, shardName(i)), nil
		}
		return blobstore.NewMemoryStore(), nil
	}

	return newShardedAllocator(ctx, domainSize, opts, makeStore)
}

func shardName(i int) string {
	return fmt.Sprintf("shard-%02d", i)
}

func newShardedAllocator(ctx context.Context, domainSize uint32, opts options, makeStore func(int) (blobstore.BlobStore, error)) (*ShardedAllocator, error) {
	if domainSize == 0 {
		return nil, fmt.Errorf("idgo: domain size must be positive")
	}

	n := opts.numShards
	if n < 1 {
		return nil, fmt.Errorf("idgo: shard count must be positive, got %d", n)
	}
	if uint64(n) > uint64(domainSize) {
		return nil, fmt.Errorf("idgo: %d shards exceed domain size %d", n, domainSize)
	}
	if opts.maxAttempts < 1 {
		return nil, fmt.Errorf("idgo: max attempts must be positive, got %d", opts.maxAttempts)
	}

	span := domainSize / uint32(n)

	s := &ShardedAllocator{
		domainSize:  domainSize,
		span:        span,
		maxAttempts: opts.maxAttempts,
		shards:      make([]*Allocator, n),
		rc:          opts.controller,
		rng:         opts.rng,
		metrics:     opts.metricsCollector,
		logger:      opts.logger,
	}

	for i := range s.shards {
		blobs, err := makeStore(i)
		if err != nil {
			return nil, err
		}

		// The last shard absorbs the division remainder.
		size := span
		if i == n-1 {
			size = domainSize - uint32(n-1)*span
		}

		shard, err := newAllocator(ctx, blobs, size, opts)
		if err != nil {
			return nil, fmt.Errorf("idgo: open shard %d: %w", i, err)
		}
		s.shards[i] = shard
	}

	return s, nil
}

// shardFor returns the shard owning id. Ids past the last even range
// boundary belong to the last shard.
func (s *ShardedAllocator) shardFor(id uint32) *Allocator {
	idx := int(id / s.span)
	if idx >= len(s.shards) {
		idx = len(s.shards) - 1
	}
	return s.shards[idx]
}

// Allocate returns an id that is free at this moment and marks it
// allocated. Candidates are sampled from the whole domain; only the
// commit serializes, and only on the owning shard's lock. If no free id
// is found within MaxAttempts samples the call fails with
// ErrCapacityExhausted.
func (s *ShardedAllocator) Allocate(ctx context.Context) (uint32, error) {
	start := time.Now()
	id, attempts, err := s.allocate(ctx)

	err = translateError(err)
	s.metrics.RecordAllocate(attempts, time.Since(start), err)
	s.logger.LogAllocate(ctx, id, attempts, err)
	return id, err
}

func (s *ShardedAllocator) allocate(ctx context.Context) (uint32, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, 0, ErrClosed
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		candidate := s.sample()

		claimed, err := s.shardFor(candidate).tryClaim(ctx, candidate)
		if err != nil {
			return 0, attempt, err
		}
		if claimed {
			return candidate, attempt, nil
		}
	}

	return 0, s.maxAttempts, ErrCapacityExhausted
}

// sample draws uniformly from the whole domain. A caller-supplied rng is
// shared by all allocating goroutines and needs the extra mutex; the
// default source is already safe for concurrent use.
func (s *ShardedAllocator) sample() uint32 {
	if s.rng != nil {
		s.rngMu.Lock()
		defer s.rngMu.Unlock()
		return s.rng.Uint32N(s.domainSize)
	}
	return rand.Uint32N(s.domainSize)
}

// Release returns id to the free pool via the shard owning it. Releasing
// an id that is not currently allocated fails with ErrNotAllocated.
func (s *ShardedAllocator) Release(ctx context.Context, id uint32) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	return s.shardFor(id).Release(ctx, id)
}

// Flush pushes every shard's hot tier into its archive. Shards flush in
// parallel. A shard whose flush fails keeps its hot tier intact, so a
// later retry flushes it again; shards that succeeded have already
// committed and are simply empty on the retry.
func (s *ShardedAllocator) Flush(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range s.shards {
		g.Go(func() error {
			if err := s.rc.AcquireFlush(gctx); err != nil {
				return err
			}
			defer s.rc.ReleaseFlush()

			if err := shard.Flush(gctx); err != nil {
				return fmt.Errorf("idgo: flush shard %d: %w", i, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Close flushes and shuts down every shard. A failed shard flush leaves
// that shard open and fails the close; retrying is safe, shards that
// already closed are skipped. Closing twice returns ErrClosed.
func (s *ShardedAllocator) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range s.shards {
		g.Go(func() error {
			if err := s.rc.AcquireFlush(gctx); err != nil {
				return err
			}
			defer s.rc.ReleaseFlush()

			err := shard.Close(gctx)
			if err != nil && !errors.Is(err, ErrClosed) {
				return fmt.Errorf("idgo: close shard %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.closed = true
	return nil
}

// TotalAllocated returns the number of currently allocated ids across
// all shards.
func (s *ShardedAllocator) TotalAllocated() uint64 {
	var total uint64
	for _, shard := range s.shards {
		total += shard.TotalAllocated()
	}
	return total
}

// DomainSize returns the size of the id domain.
func (s *ShardedAllocator) DomainSize() uint32 {
	return s.domainSize
}

// NumShards returns the number of shards.
func (s *ShardedAllocator) NumShards() int {
	return len(s.shards)
}

// Stats aggregates the shards' counters. Shards are read one after
// another, so under concurrent traffic the sums are a momentary
// snapshot. ColdGeneration reports the highest committed generation of
// any shard.
func (s *ShardedAllocator) Stats() Stats {
	var agg Stats
	for _, shard := range s.shards {
		st := shard.Stats()
		agg.TotalAllocated += st.TotalAllocated
		agg.HotCount += st.HotCount
		agg.ColdCount += st.ColdCount
		agg.Flushes += st.Flushes
		if st.ColdGeneration > agg.ColdGeneration {
			agg.ColdGeneration = st.ColdGeneration
		}
	}
	return agg
}

// ShardStats returns each shard's counters, indexed by shard.
func (s *ShardedAllocator) ShardStats() []Stats {
	stats := make([]Stats, len(s.shards))
	for i, shard := range s.shards {
		stats[i] = shard.Stats()
	}
	return stats
}
