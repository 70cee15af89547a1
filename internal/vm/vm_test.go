package vm

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/limitly-lang/limvm/internal/classes"
	"github.com/limitly-lang/limvm/internal/errcat"
	"github.com/limitly-lang/limvm/internal/functions"
	"github.com/limitly-lang/limvm/internal/opcode"
	"github.com/limitly-lang/limvm/internal/types"
	"github.com/limitly-lang/limvm/internal/value"
)

func ins(op opcode.Opcode) opcode.Instruction { return opcode.Instruction{Op: op} }

func insInt(op opcode.Opcode, n int) opcode.Instruction {
	return opcode.Instruction{Op: op, IntOp: n}
}

func insStr(op opcode.Opcode, s string) opcode.Instruction {
	return opcode.Instruction{Op: op, StrOp: s}
}

// PushInt 3; PushFloat 2.5; Add; Return must leave a single f64 5.5 on
// the stack.
func TestArithmeticWidening(t *testing.T) {
	// PushFloat's 4-tuple carries an *int* operand; a literal like 2.5
	// enters through the constant pool instead, the same convention
	// LoadConst/StoreConst use for any Value a hand-assembled program
	// can't fit into IntOp/StrOp.
	program := []opcode.Instruction{
		insInt(opcode.PushInt, 3),
		insInt(opcode.LoadConst, 0),
		ins(opcode.Add),
		ins(opcode.Return),
	}

	machine := New(program)
	machine.Constants = []value.Value{value.Float(types.TagFloat64, 2.5)}
	ctx := machine.NewContext(0)

	result, err := machine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, types.TagFloat64, result.Type.Tag)
	require.InDelta(t, 5.5, result.AsFloat(), 1e-9)
}

// Option propagation. f returns Option<i64>, either Some(7) or None.
// The caller's Call is immediately followed by a MatchPattern over the
// two Option arms ("Some"/"None"), the lowering a compiler targeting
// this VM gives `?`, since the closed opcode set has no dedicated
// unwrap-or-propagate opcode. With f producing Some(7) the caller
// returns 7; with f producing None the caller returns None unchanged.
func TestOptionPropagation(t *testing.T) {
	buildCaller := func(fReturnsSome bool) *VirtualMachine {
		program := []opcode.Instruction{
			/*0*/ insStr(opcode.Call, "f"),
			/*1*/ {Op: opcode.MatchPattern, StrOp: "Some", IntOp: 1}, // miss -> None arm at index 3
			/*2*/ ins(opcode.Return), // Some arm: inner already unwrapped onto the stack
			/*3*/ ins(opcode.Return), // None arm: the None value is still on the stack, untouched
		}

		machine := New(program)
		ts := machine.Types

		machine.Functions.RegisterNative("f", functions.Signature{Return: types.Simple(types.TagOption)},
			func(args []value.Value) (value.Value, error) {
				if fReturnsSome {
					return value.Some(ts, value.Int(types.TagInt64, 7)), nil
				}

				return value.None(ts, types.Simple(types.TagInt64)), nil
			})

		return machine
	}

	t.Run("some unwraps to inner value", func(t *testing.T) {
		machine := buildCaller(true)
		ctx := machine.NewContext(0)
		result, err := machine.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(7), result.AsInt())
	})

	t.Run("none propagates unchanged", func(t *testing.T) {
		machine := buildCaller(false)
		ctx := machine.NewContext(0)
		result, err := machine.Run(ctx)
		require.NoError(t, err)
		require.True(t, value.IsNone(result))
	})
}

// The widest integer types have no lane left to widen into, so their
// arithmetic must raise OverflowError instead of wrapping silently.
func TestInt64ArithmeticOverflowRaises(t *testing.T) {
	cases := []struct {
		name string
		lhs  value.Value
		rhs  value.Value
		op   opcode.Opcode
	}{
		{"i64 add", value.Int(types.TagInt64, math.MaxInt64), value.Int(types.TagInt64, 1), opcode.Add},
		{"i64 sub", value.Int(types.TagInt64, math.MinInt64), value.Int(types.TagInt64, 1), opcode.Sub},
		{"i64 mul", value.Int(types.TagInt64, math.MaxInt64), value.Int(types.TagInt64, 2), opcode.Mul},
		{"i64 div min by -1", value.Int(types.TagInt64, math.MinInt64), value.Int(types.TagInt64, -1), opcode.Div},
		{"u64 add", value.UInt(types.TagUInt64, math.MaxUint64), value.UInt(types.TagUInt64, 1), opcode.Add},
		{"u64 sub underflow", value.UInt(types.TagUInt64, 0), value.UInt(types.TagUInt64, 1), opcode.Sub},
		{"u64 mul", value.UInt(types.TagUInt64, math.MaxUint64), value.UInt(types.TagUInt64, 2), opcode.Mul},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			machine := New([]opcode.Instruction{
				insInt(opcode.LoadConst, 0),
				insInt(opcode.LoadConst, 1),
				ins(c.op),
				ins(opcode.Return),
			})
			machine.Constants = []value.Value{c.lhs, c.rhs}

			_, err := machine.Run(machine.NewContext(0))
			require.Error(t, err)

			rt, ok := err.(*errcat.RuntimeError)
			require.True(t, ok)
			require.Equal(t, errcat.KindOverflowError, rt.Kind)
		})
	}
}

// Division by zero raises DivisionByZero in the E400-E499 range with the
// literal message fragment.
func TestDivisionByZero(t *testing.T) {
	program := []opcode.Instruction{
		insInt(opcode.PushInt, 10),
		insInt(opcode.PushInt, 0),
		ins(opcode.Div),
		ins(opcode.Return),
	}

	machine := New(program)
	ctx := machine.NewContext(0)

	_, err := machine.Run(ctx)
	require.Error(t, err)

	rt, ok := err.(*errcat.RuntimeError)
	require.True(t, ok)
	require.Equal(t, errcat.KindDivisionByZero, rt.Kind)
	require.True(t, errcat.StageRuntime.InRange(rt.Code))
	require.Contains(t, rt.Description, "Division by zero")
}

// Try/catch unwinding preserves stack depth. After the
// handler runs, the operand stack depth equals its pre-BeginTry value (0)
// plus the one value StoreException/LoadVar leaves for the final Return,
// and the thrown exception Value is what's on top at the handler entry.
func TestTryCatchUnwindingPreservesStackDepth(t *testing.T) {
	program := []opcode.Instruction{
		/*0*/ insInt(opcode.BeginTry, 5), // handler at IP 1+5=6
		/*1*/ insInt(opcode.PushInt, 1),
		/*2*/ insInt(opcode.PushInt, 2),
		/*3*/ insStr(opcode.Throw, "Boom"),
		/*4*/ ins(opcode.Jump), // unreachable (Throw unwinds past this)
		/*5*/ ins(opcode.Pop),  // unreachable
		/*6*/ insStr(opcode.StoreException, "e"),
		/*7*/ insStr(opcode.LoadVar, "e"),
		/*8*/ ins(opcode.Return),
	}

	machine := New(program)
	ctx := machine.NewContext(0)

	result, err := machine.Run(ctx)
	require.NoError(t, err)
	require.True(t, result.IsError())
	require.Equal(t, "Boom", result.ErrorValue().TypeName)
	require.Equal(t, 0, len(ctx.Stack), "operand stack is empty again after the final Return pops its value")
}

// Unbounded recursion trips the call-depth bound and raises StackOverflow
// instead of exhausting the host stack.
func TestUnboundedRecursionRaisesStackOverflow(t *testing.T) {
	program := []opcode.Instruction{
		/*0*/ insStr(opcode.Call, "loop"),
		/*1*/ ins(opcode.Return),
		/*2*/ insStr(opcode.Call, "loop"), // function body: call itself forever
		/*3*/ ins(opcode.Return),
	}

	machine := New(program)
	machine.Functions.DefineUser("loop", functions.Signature{}, 2, 3)

	_, err := machine.Run(machine.NewContext(0))
	require.Error(t, err)

	rt, ok := err.(*errcat.RuntimeError)
	require.True(t, ok)
	require.Equal(t, errcat.KindStackOverflow, rt.Kind)
	require.True(t, errcat.StageRuntime.InRange(rt.Code))
}

// Class method resolution with visibility. B extends A; A
// declares public pub() and private priv(). Outside both classes, pub()
// succeeds and priv() raises VisibilityViolation; from a method of B,
// A.pub/B.priv succeed and A.priv is still a violation.
func TestClassMethodVisibility(t *testing.T) {
	classA := &classes.Definition{
		Name: "A",
		Methods: []classes.Method{
			{Name: "pub", Visibility: classes.VisibilityPublic, Impl: classes.MethodImpl{StartOffset: -1, EndOffset: -1, Native: func(args []value.Value) (value.Value, error) {
				return value.Str("A.pub"), nil
			}}},
			{Name: "priv", Visibility: classes.VisibilityPrivate, Impl: classes.MethodImpl{StartOffset: -1, EndOffset: -1, Native: func(args []value.Value) (value.Value, error) {
				return value.Str("A.priv"), nil
			}}},
		},
	}
	classB := &classes.Definition{
		Name:  "B",
		Super: classA,
		Methods: []classes.Method{
			{Name: "priv", Visibility: classes.VisibilityPrivate, Impl: classes.MethodImpl{StartOffset: -1, EndOffset: -1, Native: func(args []value.Value) (value.Value, error) {
				return value.Str("B.priv"), nil
			}}},
		},
	}

	newMachine := func() *VirtualMachine {
		machine := New(nil)
		machine.Classes.Define(classA)
		machine.Classes.Define(classB)
		return machine
	}

	inst := func(m *VirtualMachine) value.Value {
		return value.UserDefined(types.Simple(types.TagUserDefined), classB.CreateInstance())
	}

	t.Run("outside any class: pub succeeds, priv is a violation", func(t *testing.T) {
		machine := newMachine()
		program := []opcode.Instruction{
			insStr(opcode.Call, "B.pub"),
			ins(opcode.Return),
		}
		machine.Bytecode = program
		ctx := machine.NewContext(0)
		ctx.push(inst(machine))

		result, err := machine.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, "A.pub", result.AsString())

		machine2 := newMachine()
		machine2.Bytecode = []opcode.Instruction{
			insStr(opcode.Call, "B.priv"),
			ins(opcode.Return),
		}
		ctx2 := machine2.NewContext(0)
		ctx2.push(inst(machine2))

		_, err = machine2.Run(ctx2)
		require.Error(t, err)
		rt, ok := err.(*errcat.RuntimeError)
		require.True(t, ok)
		require.Equal(t, errcat.KindVisibilityViolation, rt.Kind)
	})

	t.Run("from within B: A.pub and B.priv succeed, A.priv is a violation", func(t *testing.T) {
		machine := newMachine()
		ctx := machine.NewContext(0)
		ctx.Calls = append(ctx.Calls, CallFrame{DeclaringClass: classB})

		require.NoError(t, classes.CheckAccess(ctx.CurrentClass(), classA, "pub", classes.VisibilityPublic))
		require.NoError(t, classes.CheckAccess(ctx.CurrentClass(), classB, "priv", classes.VisibilityPrivate))
		require.Error(t, classes.CheckAccess(ctx.CurrentClass(), classA, "priv", classes.VisibilityPrivate))
	})
}

// Parallel fork-join determinism. BeginParallel k spawns k
// children that each record their fork index via a mutex-guarded native
// function; after EndParallel's join, the shared list contains exactly
// the multiset {0,...,k-1} (ordering unspecified).
func TestParallelForkJoinDeterminism(t *testing.T) {
	const k = 4

	program := []opcode.Instruction{
		/*0*/ insInt(opcode.BeginParallel, k),
		/*1*/ insStr(opcode.LoadTemp, "__context_id"),
		/*2*/ insInt(opcode.Call, 1), // StrOp set below; IntOp = 1 arg
		/*3*/ ins(opcode.Pop),
		/*4*/ ins(opcode.EndParallel),
		/*5*/ ins(opcode.Return),
	}
	program[2].StrOp = "record"

	machine := New(program)

	var mu sync.Mutex
	var recorded []int64

	machine.Functions.RegisterNative("record", functions.Signature{}, func(args []value.Value) (value.Value, error) {
		mu.Lock()
		recorded = append(recorded, args[0].AsInt())
		mu.Unlock()

		return value.Nil(), nil
	})

	ctx := machine.NewContext(0)
	_, err := machine.Run(ctx)
	require.NoError(t, err)

	require.Len(t, recorded, k)

	seen := make(map[int64]bool, k)
	for _, v := range recorded {
		seen[v] = true
	}

	for i := int64(0); i < k; i++ {
		require.True(t, seen[i], "context id %d must appear exactly once", i)
	}
}
