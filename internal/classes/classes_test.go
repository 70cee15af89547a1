package classes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMethodResolutionWalksSuperclassChain(t *testing.T) {
	a := &Definition{Name: "A", Methods: []Method{
		{Name: "pub", Visibility: VisibilityPublic},
		{Name: "priv", Visibility: VisibilityPrivate},
	}}
	b := &Definition{Name: "B", Super: a, Methods: []Method{
		{Name: "priv", Visibility: VisibilityPrivate},
	}}

	m, decl := b.ResolveMethod("pub")
	require.NotNil(t, m)
	require.Same(t, a, decl)

	m, decl = b.ResolveMethod("priv")
	require.NotNil(t, m)
	require.Same(t, b, decl, "B's own priv shadows A's")

	m, _ = b.ResolveMethod("missing")
	require.Nil(t, m)
}

func TestVisibilityFromOutsideBothClasses(t *testing.T) {
	a := &Definition{Name: "A", Methods: []Method{
		{Name: "pub", Visibility: VisibilityPublic},
		{Name: "priv", Visibility: VisibilityPrivate},
	}}
	b := &Definition{Name: "B", Super: a}
	outside := &Definition{Name: "Outside"}

	require.True(t, CanAccess(outside, a, VisibilityPublic))
	require.False(t, CanAccess(outside, a, VisibilityPrivate))

	m, decl := b.ResolveMethod("priv")
	require.NotNil(t, m)
	require.Error(t, CheckAccess(outside, decl, "priv", m.Visibility))
}

func TestVisibilityFromSubclassMethod(t *testing.T) {
	a := &Definition{Name: "A", Methods: []Method{
		{Name: "pub", Visibility: VisibilityPublic},
		{Name: "priv", Visibility: VisibilityPrivate},
	}}
	b := &Definition{Name: "B", Super: a, Methods: []Method{
		{Name: "priv", Visibility: VisibilityPrivate},
	}}

	// From a method of B: A.pub succeeds, A.priv is a violation, B.priv
	// (its own) succeeds.
	require.NoError(t, CheckAccess(b, a, "pub", VisibilityPublic))
	require.Error(t, CheckAccess(b, a, "priv", VisibilityPrivate))

	m, decl := b.ResolveMethod("priv")
	require.Same(t, b, decl)
	require.NoError(t, CheckAccess(b, decl, "priv", m.Visibility))
}

func TestCreateInstanceInitializesInheritedFieldsToNil(t *testing.T) {
	a := &Definition{Name: "A", Fields: []Field{{Name: "x", Visibility: VisibilityPublic}}}
	b := &Definition{Name: "B", Super: a, Fields: []Field{{Name: "y", Visibility: VisibilityPublic}}}

	inst := b.CreateInstance()
	require.Contains(t, inst.Fields, "x")
	require.Contains(t, inst.Fields, "y")
	require.Len(t, inst.Fields, 2)
}
