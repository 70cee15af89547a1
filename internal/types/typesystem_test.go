package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnionCanonicalizationFlattensAndDedups(t *testing.T) {
	ts := New()

	inner := ts.CreateUnion([]*Descriptor{Simple(TagInt32), Simple(TagString)})
	outer := ts.CreateUnion([]*Descriptor{inner, Simple(TagString), Simple(TagBool)})

	require.Equal(t, TagUnion, outer.Tag)
	require.Len(t, outer.UnionMembers, 3, "nested union must flatten and duplicate String must collapse")

	for _, m := range outer.UnionMembers {
		require.NotEqual(t, TagUnion, m.Tag, "no member of a canonical union is itself a union")
	}
}

func TestUnionOfOneMemberCollapses(t *testing.T) {
	ts := New()
	u := ts.CreateUnion([]*Descriptor{Simple(TagInt64)})
	require.Equal(t, TagInt64, u.Tag, "a union left with one member returns that member")
}

func TestNumericWideningLattice(t *testing.T) {
	require.True(t, StaticallySafeWiden(TagInt8, TagInt64))
	require.True(t, StaticallySafeWiden(TagUInt8, TagInt16))
	require.False(t, StaticallySafeWiden(TagUInt8, TagInt8), "unsigned->signed needs strictly greater width")
	require.False(t, StaticallySafeWiden(TagInt64, TagInt8), "narrowing is never statically safe")
}

func TestCommonTypeNumericWidensToWider(t *testing.T) {
	ts := New()
	got := ts.CommonType(Simple(TagInt32), Simple(TagFloat64))
	require.Equal(t, TagFloat64, got.Tag)
}

func TestCommonTypeAnyAbsorbs(t *testing.T) {
	ts := New()
	got := ts.CommonType(Simple(TagAny), Simple(TagString))
	require.Equal(t, TagAny, got.Tag)
}

func TestCommonTypeIncompatibleBuildsUnion(t *testing.T) {
	ts := New()
	got := ts.CommonType(UserDefinedOf("Cat"), UserDefinedOf("Engine"))
	require.Equal(t, TagUnion, got.Tag)
	require.Len(t, got.UnionMembers, 2)
}

func TestIsCompatibleListElementRecurses(t *testing.T) {
	ts := New()
	require.True(t, ts.IsCompatible(ListOf(Simple(TagInt32)), ListOf(Simple(TagInt64))))
	require.False(t, ts.IsCompatible(ListOf(Simple(TagInt64)), ListOf(Simple(TagInt32))))
}

func TestCreateErrorUnionRejectsUnknownErrorType(t *testing.T) {
	ts := New()
	_, err := ts.CreateErrorUnion(Simple(TagInt64), []string{"NotRegistered"}, false)
	require.Error(t, err)

	ts.ErrorTypes().Register("ParseFailure")
	eu, err := ts.CreateErrorUnion(Simple(TagInt64), []string{"ParseFailure"}, false)
	require.NoError(t, err)
	require.Equal(t, TagErrorUnion, eu.Tag)
}

func TestDescriptorSignatureStableAcrossEqualShapes(t *testing.T) {
	a := ListOf(DictOf(Simple(TagString), Simple(TagInt32)))
	b := ListOf(DictOf(Simple(TagString), Simple(TagInt32)))
	require.True(t, a.StructurallyEqual(b))
	require.Equal(t, a.Signature(), b.Signature())
}

func TestInternReturnsIdenticalPointerForEqualUnions(t *testing.T) {
	ts := New()
	u1 := ts.CreateUnion([]*Descriptor{Simple(TagInt32), Simple(TagString)})
	u2 := ts.CreateUnion([]*Descriptor{Simple(TagString), Simple(TagInt32)})
	require.Same(t, u1, u2, "equal member sets, any order, must intern to the same descriptor")
}
