package idgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    allocateCounter   prometheus.Counter
//	    allocateHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordAllocate(attempts int, duration time.Duration, err error) {
//	    p.allocateCounter.Inc()
//	    // ... record error state, attempts, duration, etc.
//	}
type MetricsCollector interface {
	// RecordAllocate is called after each allocate operation.
	// attempts is the number of candidates sampled, duration is the total
	// time taken, err is nil if successful.
	RecordAllocate(attempts int, duration time.Duration, err error)

	// RecordRelease is called after each release operation.
	RecordRelease(duration time.Duration, err error)

	// RecordFlush is called after each flush of the hot tier, automatic or
	// manual. ids is the number of ids drained.
	RecordFlush(ids int, duration time.Duration, err error)

	// RecordFilterFalsePositive is called when the filter reported
	// maybe-present for an id that neither exact tier holds.
	RecordFilterFalsePositive()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAllocate(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordRelease(time.Duration, error)       {}
func (NoopMetricsCollector) RecordFlush(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordFilterFalsePositive()               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AllocateCount        atomic.Int64
	AllocateErrors       atomic.Int64
	AllocateAttempts     atomic.Int64
	AllocateTotalNanos   atomic.Int64
	ReleaseCount         atomic.Int64
	ReleaseErrors        atomic.Int64
	FlushCount           atomic.Int64
	FlushErrors          atomic.Int64
	FlushedIDs           atomic.Int64
	FilterFalsePositives atomic.Int64
}

// RecordAllocate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAllocate(attempts int, duration time.Duration, err error) {
	b.AllocateCount.Add(1)
	b.AllocateAttempts.Add(int64(attempts))
	b.AllocateTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AllocateErrors.Add(1)
	}
}

// RecordRelease implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRelease(duration time.Duration, err error) {
	b.ReleaseCount.Add(1)
	if err != nil {
		b.ReleaseErrors.Add(1)
	}
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(ids int, duration time.Duration, err error) {
	b.FlushCount.Add(1)
	b.FlushedIDs.Add(int64(ids))
	if err != nil {
		b.FlushErrors.Add(1)
	}
}

// RecordFilterFalsePositive implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFilterFalsePositive() {
	b.FilterFalsePositives.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AllocateCount:        b.AllocateCount.Load(),
		AllocateErrors:       b.AllocateErrors.Load(),
		AllocateAvgAttempts:  b.getAvgAllocateAttempts(),
		AllocateAvgNanos:     b.getAvgAllocateNanos(),
		ReleaseCount:         b.ReleaseCount.Load(),
		ReleaseErrors:        b.ReleaseErrors.Load(),
		FlushCount:           b.FlushCount.Load(),
		FlushErrors:          b.FlushErrors.Load(),
		FlushedIDs:           b.FlushedIDs.Load(),
		FilterFalsePositives: b.FilterFalsePositives.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgAllocateAttempts() float64 {
	count := b.AllocateCount.Load()
	if count == 0 {
		return 0
	}
	return float64(b.AllocateAttempts.Load()) / float64(count)
}

func (b *BasicMetricsCollector) getAvgAllocateNanos() int64 {
	count := b.AllocateCount.Load()
	if count == 0 {
		return 0
	}
	return b.AllocateTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AllocateCount        int64
	AllocateErrors       int64
	AllocateAvgAttempts  float64
	AllocateAvgNanos     int64
	ReleaseCount         int64
	ReleaseErrors        int64
	FlushCount           int64
	FlushErrors          int64
	FlushedIDs           int64
	FilterFalsePositives int64
}
