package waitz

import "sync/atomic"

// Flag is a lock-free single-slot container holding at most one marker
// value. It is the smallest building block in the package: Event's
// monotonic state and the owner cells of OwnedLock and RLock are Flags
// underneath.
//
// The zero value is a valid, empty Flag.
type Flag[T any] struct {
	v atomic.Pointer[T]
}

// Set publishes marker iff the flag is currently empty, and reports
// whether it did. It never blocks and is safe for arbitrary concurrent
// callers: exactly one concurrent Set wins any given empty-to-occupied
// transition.
func (f *Flag[T]) Set(marker T) bool {
	return f.v.CompareAndSwap(nil, &marker)
}

// Clear empties the flag, discarding whatever marker was stored.
func (f *Flag[T]) Clear() {
	f.v.Store(nil)
}

// Get observes the current marker. ok is false iff the flag is empty.
func (f *Flag[T]) Get() (marker T, ok bool) {
	p := f.v.Load()
	if p == nil {
		return marker, false
	}
	return *p, true
}

// GetOr observes the current marker, or returns fallback if the flag is
// empty.
func (f *Flag[T]) GetOr(fallback T) T {
	if marker, ok := f.Get(); ok {
		return marker
	}
	return fallback
}

// Replace unconditionally overwrites the flag's contents, returning the
// previous marker if any. Unlike Set it always succeeds, regardless of
// current state.
func (f *Flag[T]) Replace(marker T) (previous T, hadPrevious bool) {
	p := f.v.Swap(&marker)
	if p == nil {
		return previous, false
	}
	return *p, true
}
