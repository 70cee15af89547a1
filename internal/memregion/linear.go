package memregion

import "sync/atomic"

// Linear owns its pointee exclusively. It is move-only: Take transfers
// ownership out and invalidates the handle; Drop releases the pointee to
// the owning region (a no-op once Take has already fired). Go cannot
// forbid copying a struct at compile time, so "move-only" is enforced at
// run time via the taken flag, the same spirit as the source's
// non-copyable Linear<T>.
type Linear[T any] struct {
	ptr        *T
	region     *Region
	generation int
	taken      *atomic.Bool
}

// Alloc constructs a T in place inside the region's current generation and
// returns a Linear handle to it.
func Alloc[T any](r *Region, init T) Linear[T] {
	v := new(T)
	*v = init

	gen, untrack := r.track(v)

	taken := &atomic.Bool{}
	r.recordRelease(gen, func() {
		untrack()
		taken.Store(true)
	})

	return Linear[T]{ptr: v, region: r, generation: gen, taken: taken}
}

// Valid reports whether the handle's pointee is still owned by a live
// generation (i.e. neither Take'n nor reclaimed by ExitScope).
func (l Linear[T]) Valid() bool {
	if l.ptr == nil || l.taken == nil || l.taken.Load() {
		return false
	}

	return l.region.getGeneration(l.ptr) == l.generation
}

// Get dereferences the handle, failing with DanglingRef semantics if the
// owning generation has already been released.
func (l Linear[T]) Get() (*T, bool) {
	if !l.Valid() {
		return nil, false
	}

	return l.ptr, true
}

// Take moves the pointee out, marking the handle consumed so a later Drop
// is a no-op. Returns ok=false if the handle was already consumed or its
// generation already released.
func (l Linear[T]) Take() (value T, ok bool) {
	if !l.Valid() {
		var zero T
		return zero, false
	}

	l.taken.Store(true)

	return *l.ptr, true
}

// Drop releases the pointee back to the owning region ahead of scope exit.
// No-op if already taken or already released.
func (l Linear[T]) Drop() {
	if l.taken == nil || l.taken.Swap(true) {
		return
	}

	l.region.mu.Lock()
	delete(l.region.genOf, l.ptr)
	l.region.mu.Unlock()
}
