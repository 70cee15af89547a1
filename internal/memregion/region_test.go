package memregion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnterExitScopeTracksGeneration(t *testing.T) {
	r := NewRegion()
	require.Equal(t, 0, r.Generation())

	g1 := r.EnterScope()
	require.Equal(t, 1, g1)

	r.ExitScope()
	require.Equal(t, 0, r.Generation())

	// exiting at generation 0 is a silent no-op
	r.ExitScope()
	require.Equal(t, 0, r.Generation())
}

func TestLinearBecomesInvalidAfterExitScope(t *testing.T) {
	r := NewRegion()
	r.EnterScope()

	handle := Alloc(r, 42)
	require.True(t, handle.Valid())

	v, ok := handle.Get()
	require.True(t, ok)
	require.Equal(t, 42, *v)

	r.ExitScope()

	require.False(t, handle.Valid())
	_, ok = handle.Get()
	require.False(t, ok)
}

func TestLinearTakeConsumesHandle(t *testing.T) {
	r := NewRegion()
	r.EnterScope()

	handle := Alloc(r, "hello")

	v, ok := handle.Take()
	require.True(t, ok)
	require.Equal(t, "hello", v)

	_, ok = handle.Take()
	require.False(t, ok, "second Take must fail: move-only")

	// Drop after Take is a no-op, not a double-free.
	handle.Drop()
}

func TestGenerationOfUnknownPointerIsZero(t *testing.T) {
	r := NewRegion()
	require.Equal(t, 0, r.GenerationOf(&struct{}{}))

	r.EnterScope()
	handle := Alloc(r, 3)
	ptr, ok := handle.Get()
	require.True(t, ok)
	require.Equal(t, 1, r.GenerationOf(ptr))

	r.ExitScope()
	require.Equal(t, 0, r.GenerationOf(ptr), "a released pointer reads as unknown")
}

func TestRefDanglingAfterGenerationRelease(t *testing.T) {
	r := NewRegion()
	r.EnterScope()

	ref := MakeRef(r, 7)

	v, err := ref.Deref()
	require.NoError(t, err)
	require.Equal(t, 7, *v)

	r.ExitScope()

	_, err = ref.Deref()
	require.Error(t, err)
}

func TestRefCloneSharesPointee(t *testing.T) {
	r := NewRegion()
	r.EnterScope()

	ref := MakeRef(r, 1)
	clone := ref.Clone()

	// Releasing one clone must not invalidate the other while the region's
	// generation is still live.
	clone.Release()

	v, err := ref.Deref()
	require.NoError(t, err)
	require.Equal(t, 1, *v)
}

func TestNestedGenerationsReleaseOnlyTheClosedOne(t *testing.T) {
	r := NewRegion()
	r.EnterScope() // gen 1
	outer := Alloc(r, "outer")

	r.EnterScope() // gen 2
	inner := Alloc(r, "inner")

	r.ExitScope() // closes gen 2 only

	require.True(t, outer.Valid())
	require.False(t, inner.Valid())
}

func TestRawAllocRejectsZeroSize(t *testing.T) {
	r := NewRegion()
	_, err := r.RawAlloc(0)
	require.Error(t, err)

	var regionErr *RegionError
	require.ErrorAs(t, err, &regionErr)
	require.Equal(t, ErrInvalidAllocation, regionErr.Code)
}

func TestRawAllocFallsThroughToSystemAllocatorAboveLargestClass(t *testing.T) {
	r := NewRegion()
	r.EnterScope()

	buf, err := r.RawAlloc(4096)
	require.NoError(t, err)
	require.Len(t, buf, 4096)
}

func TestRawAllocPooledSizeClassReturnsExactLength(t *testing.T) {
	r := NewRegion()
	r.EnterScope()

	buf, err := r.RawAlloc(10)
	require.NoError(t, err)
	require.Len(t, buf, 10)
}
