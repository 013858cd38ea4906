package filter

import (
	"errors"
	"fmt"
	"math"
)

// maxCount is the per-counter bound. A counter at this value cannot absorb
// another increment.
const maxCount = math.MaxUint16

var (
	// ErrSaturated is returned when an increment would overflow a counter.
	// The filter is unchanged; the add did not happen.
	ErrSaturated = errors.New("filter counter saturated")

	// ErrUnderflow is returned when a decrement hits a counter that is
	// already zero. This signals a broken add/remove pairing on the caller's
	// side; the filter is unchanged.
	ErrUnderflow = errors.New("filter counter underflow")
)

// Filter is a counting Bloom filter over 32-bit ids.
//
// Each id maps to exactly k positions in a vector of width counters. An id
// whose counters are all positive may be present; an id with any zero counter
// is definitely absent. There are no false negatives as long as every Add is
// matched by at most one Remove.
//
// A Filter is not safe for concurrent use.
type Filter struct {
	counters []uint16
	width    uint64
	k        int
	count    uint64
}

// New creates a filter with an explicit counter-vector width and probe count.
func New(width uint64, k int) (*Filter, error) {
	if width < MinWidth {
		return nil, fmt.Errorf("width %d is below the minimum of %d", width, MinWidth)
	}

	if k < 1 || k > MaxK {
		return nil, fmt.Errorf("k %d is outside the supported range 1-%d", k, MaxK)
	}

	return &Filter{
		counters: make([]uint16, width),
		width:    width,
		k:        k,
	}, nil
}

// NewOptimal creates a filter sized for the expected number of resident items
// and the desired false positive rate.
func NewOptimal(expectedItems uint64, fpRate float64) *Filter {
	width, k := OptimalParams(expectedItems, fpRate)

	f, err := New(width, k)
	if err != nil {
		// OptimalParams only produces valid parameters.
		panic(err)
	}

	return f
}

// Add admits an id, incrementing its k counters.
//
// The operation is all-or-nothing: if any counter is at its bound the add
// fails with ErrSaturated and no counter is modified.
func (f *Filter) Add(id uint32) error {
	h1, h2 := digest(id)

	// First pass proves the add cannot overflow; only then are counters touched.
	for i := 0; i < f.k; i++ {
		if f.counters[position(h1, h2, i, f.width)] == maxCount {
			return fmt.Errorf("%w: id %d", ErrSaturated, id)
		}
	}

	for i := 0; i < f.k; i++ {
		f.counters[position(h1, h2, i, f.width)]++
	}

	f.count++

	return nil
}

// Remove retracts an id, decrementing its k counters.
//
// The operation is all-or-nothing: if any counter is already zero the remove
// fails with ErrUnderflow and no counter is modified.
func (f *Filter) Remove(id uint32) error {
	h1, h2 := digest(id)

	for i := 0; i < f.k; i++ {
		if f.counters[position(h1, h2, i, f.width)] == 0 {
			return fmt.Errorf("%w: id %d", ErrUnderflow, id)
		}
	}

	for i := 0; i < f.k; i++ {
		f.counters[position(h1, h2, i, f.width)]--
	}

	f.count--

	return nil
}

// MayContain checks if an id might have been admitted.
// A false result is definitive: the id is not present in the filter.
func (f *Filter) MayContain(id uint32) bool {
	h1, h2 := digest(id)

	for i := 0; i < f.k; i++ {
		if f.counters[position(h1, h2, i, f.width)] == 0 {
			return false
		}
	}

	return true
}

// Reset clears all counters.
func (f *Filter) Reset() {
	clear(f.counters)
	f.count = 0
}

// Len returns the number of ids currently admitted (adds minus removes).
func (f *Filter) Len() uint64 {
	return f.count
}

// Width returns the counter-vector width.
func (f *Filter) Width() uint64 {
	return f.width
}

// K returns the number of probe positions per id.
func (f *Filter) K() int {
	return f.k
}
