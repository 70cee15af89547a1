package memregion

import (
	"sync/atomic"

	"github.com/limitly-lang/limvm/internal/errcat"
)

// Ref is a refcounted handle carrying an expected generation, used to
// detect use-after-release. Its zero value is never valid; construct with
// MakeRef.
type Ref[T any] struct {
	ptr        *T
	region     *Region
	generation int
	count      *int32
}

// MakeRef is like Alloc but returns a Ref with an atomic reference count
// initialized to 1. The last Ref's Release deallocates the pointee.
func MakeRef[T any](r *Region, init T) Ref[T] {
	v := new(T)
	*v = init

	gen, untrack := r.track(v)
	count := new(int32)
	*count = 1

	r.recordRelease(gen, untrack)

	return Ref[T]{ptr: v, region: r, generation: gen, count: count}
}

// Clone increments the reference count and returns a new handle to the
// same pointee.
func (r Ref[T]) Clone() Ref[T] {
	atomic.AddInt32(r.count, 1)
	return r
}

// Release decrements the reference count; when it reaches zero the
// pointee is untracked from its region (eligible for collection by the
// host GC once no Go references remain).
func (r Ref[T]) Release() {
	if atomic.AddInt32(r.count, -1) > 0 {
		return
	}

	r.region.mu.Lock()
	delete(r.region.genOf, r.ptr)
	r.region.mu.Unlock()
}

// valid reports whether the Ref's pointer is non-null and the region's
// current generation for that pointer equals the expected generation.
func (r Ref[T]) valid() bool {
	if r.ptr == nil {
		return false
	}

	return r.region.getGeneration(r.ptr) == r.generation
}

// Deref dereferences the Ref, failing with DanglingRef when invalid.
func (r Ref[T]) Deref() (*T, error) {
	if !r.valid() {
		return nil, errcat.New(errcat.KindDanglingRef, "dereferenced a Ref whose generation has already been released", 0)
	}

	return r.ptr, nil
}
