package vm

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/limitly-lang/limvm/internal/errcat"
	"github.com/limitly-lang/limvm/internal/opcode"
	"github.com/limitly-lang/limvm/internal/types"
	"github.com/limitly-lang/limvm/internal/value"
)

// arith implements the arithmetic opcodes: promote both operands to
// common_type(a, b), perform the operation, push the result at the common
// type. Division/modulo by zero raise the cataloged Kind; the promotion
// itself (via value.Convert) raises OverflowError on a lossy cast.
func (vm *VirtualMachine) arith(ctx *VMContext, instr opcode.Instruction) error {
	b, a := ctx.pop(), ctx.pop()

	common := vm.Types.CommonType(a.Type, b.Type)

	wa, err := value.Convert(a, common)
	if err != nil {
		return vm.fail(ctx, errcat.KindOverflowError, err.Error(), instr.Line)
	}

	wb, err := value.Convert(b, common)
	if err != nil {
		return vm.fail(ctx, errcat.KindOverflowError, err.Error(), instr.Line)
	}

	if !types.IsNumeric(common.Tag) {
		if instr.Op == opcode.Add && common.Tag == types.TagString {
			ctx.push(value.Str(wa.AsString() + wb.AsString()))
			return nil
		}

		return vm.fail(ctx, errcat.KindTypeError,
			fmt.Sprintf("arithmetic not defined for %s", common.Tag), instr.Line)
	}

	switch instr.Op {
	case opcode.Div:
		if isZero(wb) {
			return vm.fail(ctx, errcat.KindDivisionByZero, "Division by zero", instr.Line)
		}
	case opcode.Mod:
		if isZero(wb) {
			return vm.fail(ctx, errcat.KindModuloByZero, "Modulo by zero", instr.Line)
		}
	}

	result, err := applyNumeric(instr.Op, wa, wb, common)
	if err != nil {
		return vm.fail(ctx, errcat.KindOverflowError, err.Error(), instr.Line)
	}

	ctx.push(result)

	return nil
}

func isZero(v value.Value) bool {
	if v.Type.Tag == types.TagFloat32 || v.Type.Tag == types.TagFloat64 {
		return v.AsFloat() == 0
	}

	if isUnsignedNumeric(v) {
		return v.AsUInt() == 0
	}

	return v.AsInt() == 0
}

func isUnsignedNumeric(v value.Value) bool {
	switch v.Type.Tag {
	case types.TagUInt8, types.TagUInt16, types.TagUInt32, types.TagUInt64:
		return true
	default:
		return false
	}
}

// applyNumeric performs the operation at float64 precision for float
// operands, or native integer arithmetic otherwise. Sub-64-bit results
// re-wrap at the target tag via value.Convert, which rejects a
// value-changing narrowing; the 64-bit types have no wider lane to check
// against, so their overflow is detected at the operation itself
// (carry/borrow/high-word for unsigned, sign discipline for signed) and
// raised as OverflowError instead of wrapping silently.
func applyNumeric(op opcode.Opcode, a, b value.Value, target *types.Descriptor) (value.Value, error) {
	if target.Tag == types.TagFloat32 || target.Tag == types.TagFloat64 {
		x, y := a.AsFloat(), b.AsFloat()

		var r float64

		switch op {
		case opcode.Add:
			r = x + y
		case opcode.Sub:
			r = x - y
		case opcode.Mul:
			r = x * y
		case opcode.Div:
			r = x / y
		case opcode.Mod:
			r = math.Mod(x, y)
		case opcode.Pow:
			r = pow(x, y)
		}

		return value.Float(target.Tag, r), nil
	}

	if isUnsignedNumeric(a) {
		r, err := applyUnsigned(op, a.AsUInt(), b.AsUInt())
		if err != nil {
			return value.Value{}, err
		}

		return value.Convert(value.UInt(types.TagUInt64, r), target)
	}

	r, err := applySigned(op, a.AsInt(), b.AsInt())
	if err != nil {
		return value.Value{}, err
	}

	return value.Convert(value.Int(types.TagInt64, r), target)
}

func applyUnsigned(op opcode.Opcode, x, y uint64) (uint64, error) {
	switch op {
	case opcode.Add:
		r, carry := bits.Add64(x, y, 0)
		if carry != 0 {
			return 0, overflowErr("%d + %d overflows UInt64", x, y)
		}

		return r, nil
	case opcode.Sub:
		r, borrow := bits.Sub64(x, y, 0)
		if borrow != 0 {
			return 0, overflowErr("%d - %d underflows UInt64", x, y)
		}

		return r, nil
	case opcode.Mul:
		hi, lo := bits.Mul64(x, y)
		if hi != 0 {
			return 0, overflowErr("%d * %d overflows UInt64", x, y)
		}

		return lo, nil
	case opcode.Div:
		return x / y, nil
	case opcode.Mod:
		return x % y, nil
	default: // Pow
		f := pow(float64(x), float64(y))
		if f >= math.MaxUint64 || f < 0 {
			return 0, overflowErr("%d ** %d overflows UInt64", x, y)
		}

		return uint64(f), nil
	}
}

func applySigned(op opcode.Opcode, x, y int64) (int64, error) {
	switch op {
	case opcode.Add:
		r := x + y
		if (x > 0 && y > 0 && r < 0) || (x < 0 && y < 0 && r >= 0) {
			return 0, overflowErr("%d + %d overflows Int64", x, y)
		}

		return r, nil
	case opcode.Sub:
		r := x - y
		if (x >= 0 && y < 0 && r < 0) || (x < 0 && y > 0 && r >= 0) {
			return 0, overflowErr("%d - %d overflows Int64", x, y)
		}

		return r, nil
	case opcode.Mul:
		r := x * y
		if x != 0 && (r/x != y || (x == -1 && y == math.MinInt64)) {
			return 0, overflowErr("%d * %d overflows Int64", x, y)
		}

		return r, nil
	case opcode.Div:
		if x == math.MinInt64 && y == -1 {
			return 0, overflowErr("%d / %d overflows Int64", x, y)
		}

		return x / y, nil
	case opcode.Mod:
		return x % y, nil
	default: // Pow
		f := pow(float64(x), float64(y))
		if f >= math.MaxInt64 || f < math.MinInt64 {
			return 0, overflowErr("%d ** %d overflows Int64", x, y)
		}

		return int64(f), nil
	}
}

func overflowErr(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

func pow(x, y float64) float64 {
	if y == 0 {
		return 1
	}

	r := 1.0
	neg := y < 0

	n := int(y)
	if neg {
		n = -n
	}

	for i := 0; i < n; i++ {
		r *= x
	}

	if neg {
		return 1 / r
	}

	return r
}

func negate(v value.Value) value.Value {
	switch v.Type.Tag {
	case types.TagFloat32, types.TagFloat64:
		return value.Float(v.Type.Tag, -v.AsFloat())
	default:
		if isUnsignedNumeric(v) {
			return value.Int(types.TagInt64, -int64(v.AsUInt()))
		}

		return value.Int(v.Type.Tag, -v.AsInt())
	}
}

// compare implements the comparison opcodes: ordered comparison requires
// numeric or string operands of compatible types; equality is always
// structural.
func (vm *VirtualMachine) compare(ctx *VMContext, instr opcode.Instruction) error {
	b, a := ctx.pop(), ctx.pop()

	if instr.Op == opcode.Eq {
		ctx.push(value.Bool(value.Equal(a, b)))
		return nil
	}

	if instr.Op == opcode.Ne {
		ctx.push(value.Bool(!value.Equal(a, b)))
		return nil
	}

	ordered, ok := orderedCompare(a, b)
	if !ok {
		return vm.fail(ctx, errcat.KindTypeError,
			fmt.Sprintf("cannot order-compare %s and %s", a.Type.Tag, b.Type.Tag), instr.Line)
	}

	var result bool

	switch instr.Op {
	case opcode.Lt:
		result = ordered < 0
	case opcode.Le:
		result = ordered <= 0
	case opcode.Gt:
		result = ordered > 0
	case opcode.Ge:
		result = ordered >= 0
	}

	ctx.push(value.Bool(result))

	return nil
}

// orderedCompare returns -1/0/1 for a pairwise ordering, or ok=false if
// the pair isn't numeric-numeric or string-string.
func orderedCompare(a, b value.Value) (int, bool) {
	if a.IsNumeric() && b.IsNumeric() {
		fa, fb := a.AsFloat64(), b.AsFloat64()

		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}

	if a.Type.Tag == types.TagString && b.Type.Tag == types.TagString {
		switch {
		case a.AsString() < b.AsString():
			return -1, true
		case a.AsString() > b.AsString():
			return 1, true
		default:
			return 0, true
		}
	}

	return 0, false
}
