package memregion

import (
	"fmt"
	"sync"
)

// FailureCode identifies a region allocation failure mode.
type FailureCode int

const (
	ErrInvalidAllocation FailureCode = iota
	ErrOutOfMemory
)

func (c FailureCode) String() string {
	switch c {
	case ErrInvalidAllocation:
		return "InvalidAllocation"
	case ErrOutOfMemory:
		return "OutOfMemory"
	default:
		return "Unknown"
	}
}

// RegionError reports an allocation failure. Deallocation of a foreign or
// unknown pointer is a silent no-op, never an error.
type RegionError struct {
	Code    FailureCode
	Message string
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Region is an arena with nested generations. It owns every value
// allocated inside it and releases an entire generation's allocations at
// once on scope exit.
type Region struct {
	mu sync.Mutex

	pools [len(sizeClasses)]*sizeClassPool

	generation int
	// byGeneration indexes, per generation, the release callbacks for the
	// raw blocks and typed allocations made while that generation was
	// current.
	byGeneration map[int][]func()
	// genOf maps a live allocation's identity (a pointer, boxed as any) to
	// the generation that owns it, the basis for GenerationOf and Ref
	// validity checks. Entries are deleted on release so a subsequent
	// lookup reports generation 0, "unknown".
	genOf map[any]int
}

// NewRegion constructs a region at generation 0.
func NewRegion() *Region {
	r := &Region{
		byGeneration: make(map[int][]func()),
		genOf:        make(map[any]int),
	}
	for i := range r.pools {
		r.pools[i] = newSizeClassPool(sizeClasses[i])
	}

	return r
}

// Generation returns the region's current generation.
func (r *Region) Generation() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.generation
}

// EnterScope increments the current generation; subsequent allocations
// belong to it.
func (r *Region) EnterScope() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.generation++

	return r.generation
}

// ExitScope releases every allocation recorded under the current
// generation and decrements it. A no-op when already at generation 0.
func (r *Region) ExitScope() {
	r.mu.Lock()
	if r.generation == 0 {
		r.mu.Unlock()
		return
	}

	gen := r.generation
	releases := r.byGeneration[gen]
	delete(r.byGeneration, gen)
	r.generation--
	r.mu.Unlock()

	// Release callbacks run outside the lock; they may themselves touch
	// pools which have their own locking.
	for _, release := range releases {
		release()
	}
}

// getGeneration returns the generation owning ptr, or 0 if unknown.
func (r *Region) getGeneration(ptr any) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.genOf[ptr]
}

// GenerationOf returns the generation that owns ptr, or 0 if the pointer
// is unknown to this region. Ref validity checks are built on this
// lookup.
func (r *Region) GenerationOf(ptr any) int { return r.getGeneration(ptr) }

// track registers a pointer identity under the current generation and
// returns its generation plus a function to untrack it.
func (r *Region) track(ptr any) (generation int, untrack func()) {
	r.mu.Lock()
	gen := r.generation
	r.genOf[ptr] = gen
	r.mu.Unlock()

	return gen, func() {
		r.mu.Lock()
		delete(r.genOf, ptr)
		r.mu.Unlock()
	}
}

func (r *Region) recordRelease(generation int, fn func()) {
	r.mu.Lock()
	r.byGeneration[generation] = append(r.byGeneration[generation], fn)
	r.mu.Unlock()
}

// RawAlloc acquires size bytes from the size-classed pool (or the system
// allocator for sizes above the largest class) and records the block under
// the current generation. Alloc and MakeRef do not go through it or the
// pools: they allocate with new(T) and share only the generation
// tracking.
func (r *Region) RawAlloc(size int) ([]byte, error) {
	if size == 0 {
		return nil, &RegionError{ErrInvalidAllocation, "zero-size allocation"}
	}

	idx := classFor(size)

	if idx < 0 {
		buf := make([]byte, size)
		gen, untrack := r.track(&buf)
		r.recordRelease(gen, untrack)

		return buf, nil
	}

	pool := r.pools[idx]
	bufPtr := pool.get()
	writeHeader(*bufPtr, blockHeader{size: size, poolIndex: idx, flags: flagZeroed})
	buf := (*bufPtr)[headerSize : headerSize+size]

	gen, untrack := r.track(bufPtr)
	r.recordRelease(gen, func() {
		untrack()
		pool.put(bufPtr)
	})

	return buf, nil
}
