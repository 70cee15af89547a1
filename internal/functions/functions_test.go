package functions

import (
	"testing"

	"github.com/limitly-lang/limvm/internal/types"
	"github.com/limitly-lang/limvm/internal/value"
	"github.com/stretchr/testify/require"
)

func TestBindArgsAppliesDefaultsForOmittedOptionals(t *testing.T) {
	sig := Signature{
		Params: []Param{
			{Name: "a", Type: types.Simple(types.TagInt64)},
			{Name: "b", Type: types.Simple(types.TagInt64), Optional: true, DefaultOffset: 42},
		},
		Return: types.Simple(types.TagInt64),
	}

	evalDefault := func(offset int) (value.Value, error) {
		require.Equal(t, 42, offset)
		return value.Int(types.TagInt64, 99), nil
	}

	bound, err := BindArgs(sig, []value.Value{value.Int(types.TagInt64, 1)}, evalDefault)
	require.NoError(t, err)
	require.Equal(t, int64(1), bound["a"].AsInt())
	require.Equal(t, int64(99), bound["b"].AsInt())
}

func TestBindArgsFailsOnMissingRequired(t *testing.T) {
	sig := Signature{Params: []Param{{Name: "a", Type: types.Simple(types.TagInt64)}}}

	_, err := BindArgs(sig, nil, func(int) (value.Value, error) { return value.Value{}, nil })
	require.Error(t, err)
}

func TestRegistryNativeAndUserLookup(t *testing.T) {
	r := New()
	r.DefineUser("f", Signature{Return: types.Simple(types.TagInt64)}, 10, 20)
	r.RegisterNative("g", Signature{}, func(args []value.Value) (value.Value, error) {
		return value.Int(types.TagInt64, 1), nil
	})

	f := r.Lookup("f")
	require.NotNil(t, f)
	require.False(t, f.IsNative)
	require.Equal(t, 10, f.StartOffset)

	g := r.Lookup("g")
	require.NotNil(t, g)
	require.True(t, g.IsNative)

	require.Nil(t, r.Lookup("missing"))
}
