// Package filter provides a counting Bloom filter over 32-bit ids.
//
// The filter is the allocator's cheap first tier: a definitely-absent answer
// proves an id was never admitted, while a maybe-present answer defers to the
// exact tiers. Counters (rather than bits) make removal possible, so released
// ids become eligible again without rebuilding.
//
// The filter reports defects instead of corrupting itself: an increment that
// would overflow a counter fails with ErrSaturated, a decrement of a zero
// counter fails with ErrUnderflow, and in both cases no counter is modified.
package filter
