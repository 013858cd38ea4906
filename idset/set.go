package idset

import (
	"io"
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// Set is an exact set of 32-bit ids backed by a Roaring Bitmap.
// It wraps the official roaring implementation.
//
// A Set is not safe for concurrent use; callers that share a Set across
// goroutines must provide their own synchronization.
type Set struct {
	rb *roaring.Bitmap
}

// New creates a new empty set.
func New() *Set {
	return &Set{
		rb: roaring.New(),
	}
}

// Of creates a set containing the given ids.
func Of(ids ...uint32) *Set {
	return &Set{
		rb: roaring.BitmapOf(ids...),
	}
}

// Add adds an id to the set.
func (s *Set) Add(id uint32) {
	s.rb.Add(id)
}

// Remove removes an id from the set. It reports whether the id was present.
func (s *Set) Remove(id uint32) bool {
	return s.rb.CheckedRemove(id)
}

// Contains checks if an id is in the set.
func (s *Set) Contains(id uint32) bool {
	return s.rb.Contains(id)
}

// IsEmpty returns true if the set is empty.
func (s *Set) IsEmpty() bool {
	return s.rb.IsEmpty()
}

// Len returns the number of ids in the set.
func (s *Set) Len() int {
	return int(s.rb.GetCardinality())
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	return &Set{
		rb: s.rb.Clone(),
	}
}

// Drain returns the current contents as a new set and leaves the receiver
// empty. It is O(1); no ids are copied.
func (s *Set) Drain() *Set {
	drained := s.rb
	s.rb = roaring.New()
	return &Set{rb: drained}
}

// Restore replaces the receiver's contents with the given set.
// It is the inverse of Drain for handing contents back after a failed
// hand-off; the passed set must not be used afterwards.
func (s *Set) Restore(other *Set) {
	s.rb = other.rb
}

// Iterator returns an iterator over the set in ascending order.
func (s *Set) Iterator() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		it := s.rb.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}

// ToSlice returns the ids in ascending order.
func (s *Set) ToSlice() []uint32 {
	return s.rb.ToArray()
}

// Or computes the union of two sets.
func (s *Set) Or(other *Set) {
	s.rb.Or(other.rb)
}

// Clear removes all ids from the set.
func (s *Set) Clear() {
	s.rb.Clear()
}

// GetSizeInBytes returns the size of the set in bytes.
func (s *Set) GetSizeInBytes() uint64 {
	return s.rb.GetSizeInBytes()
}

// WriteTo writes a serialized version of the set to the given writer.
// The format is the portable roaring format.
func (s *Set) WriteTo(w io.Writer) (int64, error) {
	return s.rb.WriteTo(w)
}

// ReadFrom replaces the set's contents with a serialized set read from the
// given reader.
func (s *Set) ReadFrom(r io.Reader) (int64, error) {
	rb := roaring.New()
	n, err := rb.ReadFrom(r)
	if err != nil {
		return n, err
	}

	s.rb = rb

	return n, nil
}
