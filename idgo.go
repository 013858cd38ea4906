package idgo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/hupe1980/idgo/blobstore"
	"github.com/hupe1980/idgo/coldstore"
	"github.com/hupe1980/idgo/filter"
	"github.com/hupe1980/idgo/idset"
	"github.com/hupe1980/idgo/internal/fs"
)

// Allocator hands out unique ids from [0, DomainSize) and takes them back.
//
// Allocation samples candidates uniformly and checks them against a
// counting Bloom filter fronting two exact tiers: the in-memory hot set
// and the durable cold archive. The filter has no false negatives, so a
// definitely-absent verdict makes a candidate free without touching the
// exact tiers at all.
//
// Allocator is safe for concurrent use. The whole sample-check-commit
// sequence, including an automatic flush, executes under one lock so no
// two callers can be issued the same id.
type Allocator struct {
	mu sync.Mutex

	domainSize     uint32
	flushThreshold int
	maxAttempts    int
	rng            *rand.Rand

	filter *filter.Filter
	hot    *idset.Set
	cold   *coldstore.Store

	totalAllocated uint64
	flushes        uint64
	closed         bool

	metrics MetricsCollector
	logger  *Logger
}

// Stats is a point-in-time snapshot of allocator state.
type Stats struct {
	// TotalAllocated is the number of currently allocated ids. It equals
	// HotCount + ColdCount at all times.
	TotalAllocated uint64

	// HotCount is the number of ids in the in-memory hot tier.
	HotCount int

	// ColdCount is the number of ids in the durable archive.
	ColdCount int

	// Flushes counts hot-tier flushes since the allocator was opened.
	Flushes uint64

	// ColdGeneration is the committed archive generation.
	ColdGeneration uint64
}

// Open creates or reopens a durable allocator rooted at dir. Ids flushed
// to the archive survive restarts: the current snapshot is loaded, the
// filter is rebuilt from it, and none of those ids can be handed out
// again.
//
// WithBlobStore overrides dir and places the archive on any backend (S3,
// MinIO, in-memory); dir may then be empty.
func Open(ctx context.Context, dir string, domainSize uint32, optFns ...Option) (*Allocator, error) {
	opts := applyOptions(optFns)

	blobs := opts.blobStore
	if blobs == nil {
		if dir == "" {
			return nil, fmt.Errorf("idgo: directory required (or use WithBlobStore)")
		}

		fsys := opts.fs
		if fsys == nil {
			fsys = fs.Default
		}
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("idgo: create directory: %w", err)
		}

		blobs = blobstore.NewLocalStoreWithFS(dir, fsys)
	}

	return newAllocator(ctx, blobs, domainSize, opts)
}

// New creates an allocator on an in-memory backend. State does not survive
// the process; use Open for durability.
func New(ctx context.Context, domainSize uint32, optFns ...Option) (*Allocator, error) {
	opts := applyOptions(optFns)

	blobs := opts.blobStore
	if blobs == nil {
		blobs = blobstore.NewMemoryStore()
	}

	return newAllocator(ctx, blobs, domainSize, opts)
}

func newAllocator(ctx context.Context, blobs blobstore.BlobStore, domainSize uint32, opts options) (*Allocator, error) {
	if domainSize == 0 {
		return nil, fmt.Errorf("idgo: domain size must be positive")
	}
	if opts.flushThreshold < 1 {
		return nil, fmt.Errorf("idgo: flush threshold must be positive, got %d", opts.flushThreshold)
	}
	if opts.maxAttempts < 1 {
		return nil, fmt.Errorf("idgo: max attempts must be positive, got %d", opts.maxAttempts)
	}

	f, err := filter.New(opts.filterWidth, opts.hashCount)
	if err != nil {
		return nil, err
	}

	coldOpts := []coldstore.Option{
		coldstore.WithCompression(opts.compression),
		coldstore.WithLogger(forwardLogger{l: opts.logger}),
		coldstore.WithController(opts.controller),
	}
	if opts.codec != nil {
		coldOpts = append(coldOpts, coldstore.WithCodec(opts.codec))
	}

	cold, err := coldstore.Open(ctx, blobs, coldOpts...)
	if err != nil {
		return nil, translateError(err)
	}

	a := &Allocator{
		domainSize:     domainSize,
		flushThreshold: opts.flushThreshold,
		maxAttempts:    opts.maxAttempts,
		rng:            opts.rng,
		filter:         f,
		hot:            idset.New(),
		cold:           cold,
		metrics:        opts.metricsCollector,
		logger:         opts.logger,
	}

	if n := cold.Len(); n > 0 {
		err := a.rebuildFilter()
		a.logger.LogRecovery(ctx, n, err)
		if err != nil {
			return nil, err
		}
		a.totalAllocated = uint64(n)
	}

	return a, nil
}

// rebuildFilter replays the archived ids into the fresh filter. An archive
// the configured filter cannot absorb fails the open.
func (a *Allocator) rebuildFilter() error {
	for id := range a.cold.Members().Iterator() {
		if err := a.filter.Add(id); err != nil {
			return fmt.Errorf("idgo: rebuild filter: %w", err)
		}
	}
	return nil
}

// Allocate returns an id that is free at this moment and marks it
// allocated. Up to MaxAttempts candidates are sampled; if none is free the
// call fails with ErrCapacityExhausted. 0 is a legal id - failure is
// always an explicit error, never a sentinel value.
func (a *Allocator) Allocate(ctx context.Context) (uint32, error) {
	start := time.Now()

	a.mu.Lock()
	id, attempts, err := a.allocateLocked(ctx)
	a.mu.Unlock()

	err = translateError(err)
	a.metrics.RecordAllocate(attempts, time.Since(start), err)
	a.logger.LogAllocate(ctx, id, attempts, err)
	return id, err
}

func (a *Allocator) allocateLocked(ctx context.Context) (uint32, int, error) {
	if a.closed {
		return 0, 0, ErrClosed
	}

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		candidate := a.sample()

		claimed, err := a.claimLocked(ctx, candidate)
		if err != nil {
			return 0, attempt, err
		}
		if claimed {
			return candidate, attempt, nil
		}
	}

	return 0, a.maxAttempts, ErrCapacityExhausted
}

// tryClaim makes a single check-and-commit attempt for one specific
// candidate. The sharded allocator samples the whole domain and routes
// candidates here.
func (a *Allocator) tryClaim(ctx context.Context, candidate uint32) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return false, ErrClosed
	}
	return a.claimLocked(ctx, candidate)
}

// claimLocked commits candidate if it is free right now. Caller holds mu.
func (a *Allocator) claimLocked(ctx context.Context, candidate uint32) (bool, error) {
	if a.filter.MayContain(candidate) {
		if a.hot.Contains(candidate) || a.cold.Contains(candidate) {
			return false, nil
		}
		// Maybe-present, yet neither exact tier holds it.
		a.metrics.RecordFilterFalsePositive()
	}

	// Flush before the commit when it would push the hot tier past its
	// bound: the fresh id stays hot, and a failed flush commits nothing.
	if a.hot.Len() >= a.flushThreshold {
		if err := a.flushLocked(ctx); err != nil {
			return false, err
		}
	}

	if err := a.filter.Add(candidate); err != nil {
		return false, err
	}
	a.hot.Add(candidate)
	a.totalAllocated++

	return true, nil
}

// sample draws a uniform candidate from [0, DomainSize).
func (a *Allocator) sample() uint32 {
	if a.rng != nil {
		return a.rng.Uint32N(a.domainSize)
	}
	return rand.Uint32N(a.domainSize)
}

// Release returns id to the free pool. Releasing an id that is not
// allocated fails with ErrNotAllocated and has no side effects, so the
// call is safe to repeat.
func (a *Allocator) Release(ctx context.Context, id uint32) error {
	start := time.Now()

	a.mu.Lock()
	err := a.releaseLocked(ctx, id)
	a.mu.Unlock()

	err = translateError(err)
	a.metrics.RecordRelease(time.Since(start), err)
	a.logger.LogRelease(ctx, id, err)
	return err
}

func (a *Allocator) releaseLocked(ctx context.Context, id uint32) error {
	if a.closed {
		return ErrClosed
	}

	if a.hot.Contains(id) {
		a.hot.Remove(id)
		if err := a.filter.Remove(id); err != nil {
			a.hot.Add(id)
			return err
		}
		a.totalAllocated--
		return nil
	}

	if a.filter.MayContain(id) {
		removed, err := a.cold.Remove(ctx, id)
		if err != nil {
			return err
		}
		if removed {
			if err := a.filter.Remove(id); err != nil {
				return err
			}
			a.totalAllocated--
			return nil
		}
		a.metrics.RecordFilterFalsePositive()
	}

	return ErrNotAllocated
}

// Flush drains the hot tier into the durable archive. On failure the hot
// tier is restored and nothing changes, in memory or durable.
func (a *Allocator) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	return translateError(a.flushLocked(ctx))
}

// flushLocked moves the hot ids into the archive. Caller holds mu. The
// drain is O(1); a failed merge hands the drained set back untouched.
func (a *Allocator) flushLocked(ctx context.Context) error {
	if a.hot.IsEmpty() {
		return nil
	}

	start := time.Now()
	count := a.hot.Len()
	drained := a.hot.Drain()

	err := a.cold.Merge(ctx, drained)
	if err != nil {
		a.hot.Restore(drained)
	} else {
		a.flushes++
	}

	terr := translateError(err)
	a.metrics.RecordFlush(count, time.Since(start), terr)
	a.logger.LogFlush(ctx, count, a.cold.Generation(), terr)
	return err
}

// Close flushes the hot tier for durability and shuts the allocator down.
// Every later operation, including a second Close, returns ErrClosed. A
// failed flush leaves the allocator open so the caller can retry.
func (a *Allocator) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if err := a.flushLocked(ctx); err != nil {
		return translateError(err)
	}

	a.closed = true
	return nil
}

// TotalAllocated returns the number of currently allocated ids. It always
// equals the hot count plus the cold count.
func (a *Allocator) TotalAllocated() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalAllocated
}

// DomainSize returns the exclusive upper bound for allocated ids.
func (a *Allocator) DomainSize() uint32 {
	return a.domainSize
}

// Stats returns a snapshot of allocator state.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Stats{
		TotalAllocated: a.totalAllocated,
		HotCount:       a.hot.Len(),
		ColdCount:      a.cold.Len(),
		Flushes:        a.flushes,
		ColdGeneration: a.cold.Generation(),
	}
}
