package resource

import (
	"context"
	"io"
)

// RateLimitedWriter wraps an io.Writer with the controller's write budget.
// Each Write waits for budget covering len(p) before the underlying write.
type RateLimitedWriter struct {
	ctx context.Context
	w   io.Writer
	rc  *Controller
}

// NewRateLimitedWriter creates a new RateLimitedWriter.
// A nil controller passes writes through untouched.
func NewRateLimitedWriter(ctx context.Context, w io.Writer, rc *Controller) *RateLimitedWriter {
	return &RateLimitedWriter{
		ctx: ctx,
		w:   w,
		rc:  rc,
	}
}

func (w *RateLimitedWriter) Write(p []byte) (int, error) {
	if err := w.rc.WaitWrite(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}
