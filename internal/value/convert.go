package value

import (
	"fmt"
	"math"
	"strconv"

	"github.com/limitly-lang/limvm/internal/errcat"
	"github.com/limitly-lang/limvm/internal/types"
)

// Default constructs the canonical default value for a descriptor: 0 for
// numerics, false for Bool, "" for String, empty collection for
// List/Dict, the first variant for Enum, Nil for Any.
func Default(d *types.Descriptor) Value {
	switch d.Tag {
	case types.TagBool:
		return Bool(false)
	case types.TagString:
		return Str("")
	case types.TagList:
		return List(d.Element)
	case types.TagDict:
		return Dict(d.Key, d.Value)
	case types.TagEnum:
		if len(d.Variants) == 0 {
			return Nil()
		}

		return Enum(d, d.Variants[0].Name, nil)
	case types.TagFloat32, types.TagFloat64:
		return Float(d.Tag, 0)
	default:
		if isUnsignedTag(d.Tag) {
			return UInt(d.Tag, 0)
		}

		if types.IsNumeric(d.Tag) {
			return Int(d.Tag, 0)
		}

		return Nil()
	}
}

// Convert performs a safe cast of v to descriptor `to`.
// Fails with OverflowError when a narrowing cast changes the value, with
// ParseError when String->numeric fails, with TypeError when no
// conversion rule exists.
func Convert(v Value, to *types.Descriptor) (Value, error) {
	if v.Type.StructurallyEqual(to) {
		return v, nil
	}

	if to.Tag == types.TagAny {
		return Value{Type: to, boolData: v.boolData, intData: v.intData, uintData: v.uintData,
			floatData: v.floatData, strData: v.strData, listData: v.listData, dictData: v.dictData,
			sumIndex: v.sumIndex, sumInner: v.sumInner, enumName: v.enumName, enumAssoc: v.enumAssoc,
			instance: v.instance, errValue: v.errValue, iter: v.iter}, nil
	}

	if types.IsNumeric(v.Type.Tag) && types.IsNumeric(to.Tag) {
		return convertNumeric(v, to.Tag)
	}

	if v.Type.Tag == types.TagString && types.IsNumeric(to.Tag) {
		return parseNumeric(v.AsString(), to.Tag)
	}

	if types.IsNumeric(v.Type.Tag) && to.Tag == types.TagString {
		return Str(v.String()), nil
	}

	return Value{}, errcat.New(errcat.KindTypeError,
		fmt.Sprintf("no conversion rule from %s to %s", v.Type.Tag, to.Tag), 0)
}

func convertNumeric(v Value, to types.Tag) (Value, error) {
	if StaticallySafeWidenChecked(v.Type.Tag, to) {
		return widenNumeric(v, to), nil
	}

	// Runtime-checked narrowing/cross-signedness cast: fails if the value
	// changes under the cast.
	widened := widenNumeric(v, to)

	back, err := roundTrip(widened, v.Type.Tag)
	if err != nil {
		return Value{}, err
	}

	if !valuesEqual(back, v) {
		return Value{}, errcat.New(errcat.KindOverflowError,
			fmt.Sprintf("narrowing %s to %s changes the value", v.Type.Tag, to), 0)
	}

	return widened, nil
}

// StaticallySafeWidenChecked re-exports the lattice check used by the
// arithmetic opcodes and by Convert, under the name the conversion logic
// reads more naturally with.
func StaticallySafeWidenChecked(from, to types.Tag) bool {
	return types.StaticallySafeWiden(from, to)
}

func widenNumeric(v Value, to types.Tag) Value {
	if to == types.TagFloat32 || to == types.TagFloat64 {
		return Float(to, v.AsFloat64())
	}

	if isUnsignedTag(to) {
		var u uint64
		if isUnsignedTag(v.Type.Tag) {
			u = v.uintData
		} else if types.IsNumeric(v.Type.Tag) && !floatTag(v.Type.Tag) {
			u = uint64(v.intData)
		} else {
			u = uint64(v.floatData)
		}

		return maskUnsigned(to, u)
	}

	var i int64
	switch {
	case isUnsignedTag(v.Type.Tag):
		i = int64(v.uintData)
	case floatTag(v.Type.Tag):
		i = int64(v.floatData)
	default:
		i = v.intData
	}

	return maskSigned(to, i)
}

func floatTag(t types.Tag) bool { return t == types.TagFloat32 || t == types.TagFloat64 }

func maskUnsigned(to types.Tag, u uint64) Value {
	switch to {
	case types.TagUInt8:
		return UInt(to, uint64(uint8(u)))
	case types.TagUInt16:
		return UInt(to, uint64(uint16(u)))
	case types.TagUInt32:
		return UInt(to, uint64(uint32(u)))
	default:
		return UInt(to, u)
	}
}

func maskSigned(to types.Tag, i int64) Value {
	switch to {
	case types.TagInt8:
		return Int(to, int64(int8(i)))
	case types.TagInt16:
		return Int(to, int64(int16(i)))
	case types.TagInt32:
		return Int(to, int64(int32(i)))
	default:
		return Int(to, i)
	}
}

func roundTrip(v Value, to types.Tag) (Value, error) {
	if to == types.TagFloat32 || to == types.TagFloat64 {
		return Float(to, v.AsFloat64()), nil
	}

	if isUnsignedTag(to) {
		return maskUnsigned(to, uint64(v.AsFloat64())), nil
	}

	return maskSigned(to, int64(v.AsFloat64())), nil
}

func parseNumeric(s string, to types.Tag) (Value, error) {
	if floatTag(to) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, errcat.New(errcat.KindParseError, fmt.Sprintf("cannot parse %q as %s", s, to), 0)
		}

		if to == types.TagFloat32 && (math.IsInf(float64(float32(f)), 0) && !math.IsInf(f, 0)) {
			return Value{}, errcat.New(errcat.KindOverflowError, fmt.Sprintf("%q overflows %s", s, to), 0)
		}

		return Float(to, f), nil
	}

	if isUnsignedTag(to) {
		u, err := strconv.ParseUint(s, 10, widthFor(to))
		if err != nil {
			return Value{}, errcat.New(errcat.KindParseError, fmt.Sprintf("cannot parse %q as %s", s, to), 0)
		}

		return UInt(to, u), nil
	}

	i, err := strconv.ParseInt(s, 10, widthFor(to))
	if err != nil {
		return Value{}, errcat.New(errcat.KindParseError, fmt.Sprintf("cannot parse %q as %s", s, to), 0)
	}

	return Int(to, i), nil
}

func widthFor(t types.Tag) int {
	switch t {
	case types.TagInt8, types.TagUInt8:
		return 8
	case types.TagInt16, types.TagUInt16:
		return 16
	case types.TagInt32, types.TagUInt32:
		return 32
	default:
		return 64
	}
}
