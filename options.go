package idgo

import (
	"log/slog"
	"math/rand/v2"

	"github.com/hupe1980/idgo/blobstore"
	"github.com/hupe1980/idgo/codec"
	"github.com/hupe1980/idgo/coldstore"
	"github.com/hupe1980/idgo/filter"
	"github.com/hupe1980/idgo/internal/fs"
	"github.com/hupe1980/idgo/resource"
)

// Default configuration values.
const (
	// DefaultFilterWidth is the default number of filter counters.
	DefaultFilterWidth = 1 << 16

	// DefaultHashCount is the default number of probe positions per id.
	DefaultHashCount = 4

	// DefaultFlushThreshold is the default hot-tier capacity.
	DefaultFlushThreshold = 1024

	// DefaultMaxAttempts is the default bound on Allocate's sampling loop.
	DefaultMaxAttempts = 10_000
)

type options struct {
	filterWidth      uint64
	hashCount        int
	flushThreshold   int
	maxAttempts      int
	rng              *rand.Rand
	blobStore        blobstore.BlobStore
	fs               fs.FileSystem
	codec            codec.Codec
	compression      coldstore.Compression
	logger           *Logger
	metricsCollector MetricsCollector
	controller       *resource.Controller
	numShards        int
}

// Option configures allocator constructor behavior.
//
// Options exist to avoid exploding the API surface with constructor
// variants; everything is fixed at construction time, there is no dynamic
// reconfiguration.
type Option func(*options)

// WithFilterWidth sets the number of counters in the front filter.
//
// Wider filters lower the false-positive rate and with it the number of
// exact-tier checks Allocate performs. Memory cost is two bytes per counter.
func WithFilterWidth(width uint64) Option {
	return func(o *options) {
		o.filterWidth = width
	}
}

// WithHashCount sets the number of probe positions per id.
func WithHashCount(k int) Option {
	return func(o *options) {
		o.hashCount = k
	}
}

// WithFilterParams sizes the filter for an expected number of live ids and
// a target false-positive rate, using the classic Bloom sizing formulas.
// Convenience wrapper for WithFilterWidth + WithHashCount.
//
// Example:
//
//	// ~1M live ids at a 1% false-positive rate
//	idgo.WithFilterParams(1_000_000, 0.01)
func WithFilterParams(expectedItems uint64, fpRate float64) Option {
	return func(o *options) {
		o.filterWidth, o.hashCount = filter.OptimalParams(expectedItems, fpRate)
	}
}

// WithFlushThreshold sets the hot-tier capacity. When a successful allocate
// would push the hot tier past this size, the hot ids are first flushed into
// the durable archive.
func WithFlushThreshold(threshold int) Option {
	return func(o *options) {
		o.flushThreshold = threshold
	}
}

// WithMaxAttempts bounds Allocate's sampling loop. When no free id is found
// within this many samples, Allocate returns ErrCapacityExhausted.
func WithMaxAttempts(attempts int) Option {
	return func(o *options) {
		o.maxAttempts = attempts
	}
}

// WithRand sets the random source used for candidate sampling. Pass a
// seeded source for deterministic tests:
//
//	idgo.WithRand(rand.New(rand.NewPCG(1, 2)))
//
// If nil (the default), the shared top-level math/rand/v2 source is used.
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		o.rng = r
	}
}

// WithBlobStore sets the backend for the durable archive. This overrides
// the directory argument of Open; use it to place the archive on S3, MinIO
// or any other BlobStore implementation.
func WithBlobStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.blobStore = store
	}
}

// WithFileSystem sets the file system the local backend runs on.
// Tests use this to inject fault-injecting file systems.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithCodec configures the codec for the archive's pointer document.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression sets the snapshot payload compression.
func WithCompression(c coldstore.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := idgo.NewJSONLogger(slog.LevelInfo)
//	a, _ := idgo.Open(ctx, dir, 1_000_000, idgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations.
//
// Example with BasicMetricsCollector:
//
//	metrics := &idgo.BasicMetricsCollector{}
//	a, _ := idgo.New(ctx, 1_000_000, idgo.WithMetricsCollector(metrics))
//	// ... use a ...
//	stats := metrics.GetStats()
//	fmt.Printf("Allocates: %d, Avg attempts: %.2f\n", stats.AllocateCount, stats.AllocateAvgAttempts)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithResourceController sets the controller that meters archive writes and
// bounds concurrent shard flushes.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithNumShards configures the number of shards for the sharded
// constructors (OpenSharded, NewSharded). The domain is split into
// contiguous ranges, one allocator per range, each with its own lock, so
// allocations in different ranges proceed in parallel.
//
// Non-sharded constructors ignore this option.
func WithNumShards(numShards int) Option {
	return func(o *options) {
		o.numShards = numShards
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		filterWidth:      DefaultFilterWidth,
		hashCount:        DefaultHashCount,
		flushThreshold:   DefaultFlushThreshold,
		maxAttempts:      DefaultMaxAttempts,
		compression:      coldstore.CompressionZSTD,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		numShards:        1,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	// A caller-supplied nil means "disable", which is what the noops do.
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}

	return o
}
