// Package resource implements admission control for the durable path.
//
// A Controller bounds two things:
//
//   - Flush concurrency: how many snapshot writes may run at once
//     (weighted semaphore). Sharded allocators share one controller so a
//     flush storm cannot fan out to every shard simultaneously.
//   - Write throughput: bytes per second against the backing store
//     (token bucket). Object stores throttle; staying under the budget
//     keeps flush latency predictable.
//
// # Flush Slots
//
//	rc := resource.NewController(resource.Config{
//	    MaxConcurrentFlush: 4,
//	})
//
//	if err := rc.AcquireFlush(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseFlush()
//
// # Write Budget
//
//	rc := resource.NewController(resource.Config{
//	    WriteRate: 100 * 1024 * 1024, // 100MB/s
//	})
//
//	// Direct wait
//	if err := rc.WaitWrite(ctx, len(data)); err != nil {
//	    return err
//	}
//
//	// Rate-limited writer wrapper
//	w := resource.NewRateLimitedWriter(ctx, blob, rc)
//
// # Thread Safety
//
// All Controller methods are safe for concurrent use.
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
// This allows optional resource limiting without nil checks everywhere.
package resource
