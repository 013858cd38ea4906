package idgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/idgo/coldstore"
	"github.com/hupe1980/idgo/filter"
)

var (
	// ErrCapacityExhausted is returned when Allocate finds no free id within
	// MaxAttempts samples. It signals a near-full domain (or an undersized
	// filter), not a transient condition; retrying immediately will not help.
	ErrCapacityExhausted = errors.New("capacity exhausted")

	// ErrNotAllocated is returned when Release is called with an id that is
	// not currently allocated. The call has no side effects.
	ErrNotAllocated = errors.New("id not allocated")

	// ErrClosed is returned for operations on a closed allocator.
	ErrClosed = errors.New("allocator closed")

	// ErrPersistence wraps any failure of the durable store. The original
	// cause remains reachable via errors.Unwrap.
	ErrPersistence = errors.New("persistence failure")
)

// translateError normalizes errors from the storage layers into the public
// vocabulary: anything that went wrong while reading or writing durable
// state satisfies errors.Is(err, ErrPersistence). Filter defect signals
// (ErrSaturated, ErrUnderflow) and the allocator's own sentinels pass
// through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrCapacityExhausted) ||
		errors.Is(err, ErrNotAllocated) ||
		errors.Is(err, ErrClosed) ||
		errors.Is(err, ErrPersistence) {
		return err
	}

	if errors.Is(err, filter.ErrSaturated) || errors.Is(err, filter.ErrUnderflow) {
		return err
	}

	var se *coldstore.SnapshotError
	if errors.As(err, &se) {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return err
}
