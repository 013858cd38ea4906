package resource

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds limits for the durable path.
type Config struct {
	// MaxConcurrentFlush is the maximum number of snapshot writes in flight
	// across allocators sharing this controller.
	// If 0, defaults to 1.
	MaxConcurrentFlush int64

	// WriteRate is the sustained backend write budget in bytes per second.
	// If 0, unlimited.
	WriteRate int64

	// WriteBurst is the burst allowance in bytes.
	// If 0, defaults to WriteRate.
	WriteBurst int
}

// Controller coordinates durable-path resources shared by allocators
// (flush concurrency, backend write throughput).
type Controller struct {
	cfg Config

	flushSem *semaphore.Weighted
	writeLim *rate.Limiter

	flushesInFlight atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentFlush <= 0 {
		cfg.MaxConcurrentFlush = 1
	}

	c := &Controller{
		cfg:      cfg,
		flushSem: semaphore.NewWeighted(cfg.MaxConcurrentFlush),
	}

	if cfg.WriteRate > 0 {
		burst := cfg.WriteBurst
		if burst <= 0 {
			burst = int(cfg.WriteRate)
		}
		c.writeLim = rate.NewLimiter(rate.Limit(cfg.WriteRate), burst)
	}

	return c
}

// AcquireFlush reserves a flush slot.
// Blocks if all slots are busy.
func (c *Controller) AcquireFlush(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.flushSem.Acquire(ctx, 1); err != nil {
		return err
	}
	c.flushesInFlight.Add(1)
	return nil
}

// TryAcquireFlush attempts to reserve a flush slot without blocking.
func (c *Controller) TryAcquireFlush() bool {
	if c == nil {
		return true
	}
	if !c.flushSem.TryAcquire(1) {
		return false
	}
	c.flushesInFlight.Add(1)
	return true
}

// ReleaseFlush releases a flush slot.
func (c *Controller) ReleaseFlush() {
	if c == nil {
		return
	}
	c.flushesInFlight.Add(-1)
	c.flushSem.Release(1)
}

// FlushesInFlight returns the number of flushes currently holding a slot.
func (c *Controller) FlushesInFlight() int64 {
	if c == nil {
		return 0
	}
	return c.flushesInFlight.Load()
}

// WaitWrite waits until the write budget allows the given number of bytes.
func (c *Controller) WaitWrite(ctx context.Context, bytes int) error {
	if c == nil || c.writeLim == nil {
		return nil
	}

	// WaitN rejects requests larger than the burst; split them.
	burst := c.writeLim.Burst()
	for bytes > 0 {
		n := bytes
		if n > burst {
			n = burst
		}
		if err := c.writeLim.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// AllowWrite reports whether the write budget currently admits the given
// number of bytes, without waiting.
func (c *Controller) AllowWrite(bytes int) bool {
	if c == nil || c.writeLim == nil {
		return true
	}
	return c.writeLim.AllowN(time.Now(), bytes)
}
