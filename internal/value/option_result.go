package value

import (
	"github.com/limitly-lang/limvm/internal/errcat"
	"github.com/limitly-lang/limvm/internal/types"
)

// Option/Result construction and pattern helpers. Both share the Sum
// value representation; only their descriptors and variant names differ.

// Some constructs Option(T)'s Some(v) case.
func Some(ts *types.TypeSystem, inner Value) Value {
	d := ts.CreateOption(inner.Type)
	return Sum(d, 0, inner)
}

// None constructs Option(T)'s None case for the given inner type.
func None(ts *types.TypeSystem, innerType *types.Descriptor) Value {
	d := ts.CreateOption(innerType)
	return Sum(d, 1, Nil())
}

// IsSome reports whether an Option value is in its Some state.
func IsSome(v Value) bool { return v.Type.Tag == types.TagOption && v.sumIndex == 0 }

// IsNone reports whether an Option value is in its None state.
func IsNone(v Value) bool { return v.Type.Tag == types.TagOption && v.sumIndex == 1 }

// UnwrapSome extracts the Some payload, failing with UnwrapNone on None.
func UnwrapSome(v Value) (Value, error) {
	if !IsSome(v) {
		return Value{}, errcat.New(errcat.KindUnwrapNone, "unwrap_some called on None", 0)
	}

	return v.SumInner(), nil
}

// UnwrapSomeOr extracts the Some payload, or defaultValue on None.
func UnwrapSomeOr(v Value, defaultValue Value) Value {
	if IsSome(v) {
		return v.SumInner()
	}

	return defaultValue
}

// Ok constructs Result(T,E)'s Success(v) case.
func Ok(ts *types.TypeSystem, inner Value, errType *types.Descriptor) Value {
	d := ts.CreateResult(inner.Type, errType)
	return Sum(d, 0, inner)
}

// Err constructs Result(T,E)'s Error(e) case.
func Err(ts *types.TypeSystem, okType *types.Descriptor, errVal Value) Value {
	d := ts.CreateResult(okType, errVal.Type)
	return Sum(d, 1, errVal)
}

// IsOk reports whether a Result value is in its Success state.
func IsOk(v Value) bool { return v.Type.Tag == types.TagResult && v.sumIndex == 0 }

// IsErr reports whether a Result value is in its Error state.
func IsErr(v Value) bool { return v.Type.Tag == types.TagResult && v.sumIndex == 1 }

// UnwrapOk extracts the Success payload, failing with UnwrapNone (dual to
// Option's) on Error.
func UnwrapOk(v Value) (Value, error) {
	if !IsOk(v) {
		return Value{}, errcat.New(errcat.KindUnwrapNone, "unwrap_ok called on an Error result", 0)
	}

	return v.SumInner(), nil
}

// IsPropagating reports whether v is an error-bearing Value that a
// propagating opcode must forward to the caller unchanged:
// an ErrorUnion in its error state, a Result in its Error state, or an
// Option in its None state.
func IsPropagating(v Value) bool {
	if v.Type.Tag == types.TagErrorUnion {
		return v.IsError()
	}

	return IsErr(v) || IsNone(v)
}

// Unwrap extracts the success payload of a fallible Value for a
// propagating opcode that did not observe an error (the "otherwise
// unwrap its success payload" half of the `?` contract).
func Unwrap(v Value) Value {
	if v.Type.Tag == types.TagErrorUnion {
		return v
	}

	if v.Type.Tag == types.TagResult || v.Type.Tag == types.TagOption {
		return v.SumInner()
	}

	return v
}
