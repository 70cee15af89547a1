package vm

import (
	"fmt"

	"github.com/limitly-lang/limvm/internal/errcat"
	"github.com/limitly-lang/limvm/internal/opcode"
	"github.com/limitly-lang/limvm/internal/types"
	"github.com/limitly-lang/limvm/internal/value"
)

// haltSignal is step()'s sentinel for "Return executed with an empty call
// stack": the context is done and result is its final Value.
type haltSignal struct{ result value.Value }

func (haltSignal) Error() string { return "vm: context halted" }

// Run drives the fetch-decode-dispatch loop to completion: it
// fetches one instruction, advances the instruction pointer, and
// dispatches, until either a Return executes with no enclosing call frame
// (normal completion) or a runtime error escapes every try-stack entry in
// this context, which is fatal for the context.
func (vm *VirtualMachine) Run(ctx *VMContext) (value.Value, error) {
	for {
		if ctx.IP < 0 || ctx.IP >= len(vm.Bytecode) {
			return value.Nil(), nil
		}

		instr := vm.Bytecode[ctx.IP]
		ctx.IP++

		if err := vm.step(ctx, instr); err != nil {
			if h, ok := err.(haltSignal); ok {
				return h.result, nil
			}

			return value.Nil(), err
		}
	}
}

// runRange is Run bounded to [start, end): the body a BeginParallel or
// BeginConcurrent child context executes.
func (vm *VirtualMachine) runRange(ctx *VMContext, end int) (value.Value, error) {
	for ctx.IP < end {
		instr := vm.Bytecode[ctx.IP]
		ctx.IP++

		if err := vm.step(ctx, instr); err != nil {
			if h, ok := err.(haltSignal); ok {
				return h.result, nil
			}

			return value.Nil(), err
		}
	}

	if len(ctx.Stack) == 0 {
		return value.Nil(), nil
	}

	return ctx.peek(), nil
}

// step executes a single instruction against ctx. It returns haltSignal
// on a top-level Return, a *errcat.RuntimeError when a raised exception
// finds no handler anywhere in ctx, or nil on ordinary progress (including
// a handled exception, which leaves ctx in StateHandling and IP already
// pointed at the handler).
func (vm *VirtualMachine) step(ctx *VMContext, instr opcode.Instruction) error {
	switch instr.Op {
	case opcode.PushInt:
		ctx.push(value.Int(types.TagInt64, int64(instr.IntOp)))
	case opcode.PushFloat:
		ctx.push(value.Float(types.TagFloat64, float64(instr.IntOp)))
	case opcode.PushString:
		ctx.push(value.Str(instr.StrOp))
	case opcode.PushBool:
		ctx.push(value.Bool(instr.IntOp != 0))
	case opcode.PushNull:
		ctx.push(value.Nil())
	case opcode.Pop:
		ctx.pop()
	case opcode.Dup:
		ctx.push(ctx.peek())
	case opcode.Swap:
		n := len(ctx.Stack)
		ctx.Stack[n-1], ctx.Stack[n-2] = ctx.Stack[n-2], ctx.Stack[n-1]

	case opcode.StoreVar:
		v := ctx.pop()
		if !ctx.Env.Set(instr.StrOp, v) {
			if len(ctx.Calls) == 0 {
				vm.setGlobal(instr.StrOp, v)
			} else {
				ctx.Env.Define(instr.StrOp, v)
			}
		}
	case opcode.LoadVar:
		if v, ok := ctx.Env.Get(instr.StrOp); ok {
			ctx.push(v)
		} else if v, ok := vm.getGlobal(instr.StrOp); ok {
			ctx.push(v)
		} else {
			return vm.fail(ctx, errcat.KindNullReference, "undefined variable "+instr.StrOp, instr.Line)
		}
	case opcode.StoreTemp:
		ctx.Temps[instr.StrOp] = ctx.pop()
	case opcode.LoadTemp:
		ctx.push(ctx.Temps[instr.StrOp])
	case opcode.ClearTemp:
		delete(ctx.Temps, instr.StrOp)
	case opcode.LoadThis:
		if len(ctx.Calls) == 0 || ctx.Calls[len(ctx.Calls)-1].Receiver == nil {
			return vm.fail(ctx, errcat.KindNullReference, "this used outside an instance method", instr.Line)
		}

		ctx.push(*ctx.Calls[len(ctx.Calls)-1].Receiver)

	case opcode.Add, opcode.Sub, opcode.Mul, opcode.Div, opcode.Mod, opcode.Pow:
		if err := vm.arith(ctx, instr); err != nil {
			return err
		}
	case opcode.Negate:
		v := ctx.pop()
		ctx.push(negate(v))

	case opcode.Eq, opcode.Ne, opcode.Lt, opcode.Le, opcode.Gt, opcode.Ge:
		if err := vm.compare(ctx, instr); err != nil {
			return err
		}

	case opcode.And:
		b, a := ctx.pop(), ctx.pop()
		ctx.push(value.Bool(a.AsBool() && b.AsBool()))
	case opcode.Or:
		b, a := ctx.pop(), ctx.pop()
		ctx.push(value.Bool(a.AsBool() || b.AsBool()))
	case opcode.Not:
		a := ctx.pop()
		ctx.push(value.Bool(!a.AsBool()))

	case opcode.InterpolateString:
		parts := ctx.popN(instr.IntOp)
		ctx.push(value.Interpolate(parts...))
	case opcode.Concat:
		b, a := ctx.pop(), ctx.pop()
		ctx.push(value.Str(a.String() + b.String()))

	case opcode.Jump:
		ctx.IP += instr.IntOp
	case opcode.JumpIfTrue:
		if ctx.pop().AsBool() {
			ctx.IP += instr.IntOp
		}
	case opcode.JumpIfFalse:
		if !ctx.pop().AsBool() {
			ctx.IP += instr.IntOp
		}

	case opcode.Call:
		if err := vm.call(ctx, instr); err != nil {
			return err
		}
	case opcode.Return:
		return vm.doReturn(ctx)

	case opcode.BeginFunction, opcode.BeginClass:
		// Bodies are registered directly against Functions/Classes by the
		// host rather than interpreted from DefineParam/BeginClass-family
		// opcodes (no front-end compiler exists in this repo to emit
		// them); reaching one linearly means the body is laid out inline
		// in the shared bytecode vector and must be skipped, mirroring
		// Jump's signed-relative-offset convention.
		ctx.IP += instr.IntOp
	case opcode.EndFunction, opcode.EndClass, opcode.DefineParam, opcode.DefineOptionalParam, opcode.SetDefaultValue:
		// Markers only meaningful when interpreted by evalDefault's bounded
		// sub-loop or by a future compiler; a no-op during normal dispatch.

	case opcode.GetProperty:
		if err := vm.getProperty(ctx, instr); err != nil {
			return err
		}
	case opcode.SetProperty:
		if err := vm.setProperty(ctx, instr); err != nil {
			return err
		}

	case opcode.CreateList:
		items := ctx.popN(instr.IntOp)
		element := types.Simple(types.TagAny)

		if len(items) > 0 {
			element = items[0].Type
			for _, it := range items[1:] {
				element = vm.Types.CommonType(element, it.Type)
			}
		}

		ctx.push(value.List(element, items...))
	case opcode.ListAppend:
		v := ctx.pop()
		list := ctx.pop()
		ctx.push(value.List(vm.Types.CommonType(list.Type.Element, v.Type), append(append([]value.Value{}, list.AsList()...), v)...))
	case opcode.CreateDict:
		d := value.Dict(types.Simple(types.TagAny), types.Simple(types.TagAny))

		for i := 0; i < instr.IntOp; i++ {
			v, k := ctx.pop(), ctx.pop()
			if !k.Hashable() {
				return vm.fail(ctx, errcat.KindTypeError, "unhashable Dict key type "+k.Type.Tag.String(), instr.Line)
			}

			d.AsDict().Set(k, v)
		}

		ctx.push(d)
	case opcode.DictSet:
		v, k, d := ctx.pop(), ctx.pop(), ctx.pop()
		if !k.Hashable() {
			return vm.fail(ctx, errcat.KindTypeError, "unhashable Dict key type "+k.Type.Tag.String(), instr.Line)
		}

		d.AsDict().Set(k, v)
		ctx.push(d)
	case opcode.CreateRange:
		step, end, start := ctx.pop(), ctx.pop(), ctx.pop()
		ctx.push(value.RangeVal(start.AsInt(), end.AsInt(), step.AsInt(), instr.IntOp != 0))
	case opcode.SetRangeStep:
		step := ctx.pop()
		r := ctx.pop()
		start, end, _, incl := r.Range()
		ctx.push(value.RangeVal(start, end, step.AsInt(), incl))
	case opcode.GetIndex:
		if err := vm.getIndex(ctx, instr); err != nil {
			return err
		}
	case opcode.SetIndex:
		if err := vm.setIndex(ctx, instr); err != nil {
			return err
		}

	case opcode.GetIterator:
		ctx.push(value.IteratorValue(newIterator(ctx.pop())))
	case opcode.IteratorHasNext:
		it := ctx.pop()
		ctx.push(it)
		ctx.push(value.Bool(it.Iterator().HasNext()))
	case opcode.IteratorNext:
		it := ctx.pop()
		ctx.push(it)
		v, _ := it.Iterator().Next()
		ctx.push(v)
	case opcode.IteratorNextKeyValue:
		it := ctx.pop()
		ctx.push(it)
		k, v, _ := it.Iterator().NextKeyValue()
		ctx.push(k)
		ctx.push(v)

	case opcode.BeginScope:
		ctx.Env = NewEnvironment(ctx.Env)
		ctx.Region.EnterScope()
	case opcode.EndScope:
		ctx.Region.ExitScope()
		if ctx.Env.parent != nil {
			ctx.Env = ctx.Env.parent
		}

	case opcode.BeginTry:
		ctx.beginTry(ctx.IP + instr.IntOp)
	case opcode.EndTry:
		ctx.State = StateRunning
	case opcode.BeginHandler:
		ctx.State = StateHandling
	case opcode.EndHandler:
		ctx.endHandler()
	case opcode.Throw:
		return vm.doThrow(ctx, instr)
	case opcode.StoreException:
		if ctx.LastError == nil {
			return vm.fail(ctx, errcat.KindNullReference, "StoreException with no active exception", instr.Line)
		}

		ctx.Env.Define(instr.StrOp, ctx.pop())

	case opcode.BeginParallel:
		if err := vm.beginParallel(ctx, instr); err != nil {
			return err
		}
	case opcode.EndParallel:
		// Reached only if control falls through to it directly (it is
		// normally skipped over by beginParallel's join); treated as a
		// no-op landing pad.
	case opcode.BeginConcurrent:
		vm.beginConcurrent(ctx, instr)
	case opcode.EndConcurrent:
	case opcode.Await:
		if err := vm.await(ctx, instr); err != nil {
			return err
		}

	case opcode.MatchPattern:
		if err := vm.matchPattern(ctx, instr); err != nil {
			return err
		}

	case opcode.Import:
		// No module system in this repo; a
		// no-op landing pad so hand-assembled programs may still carry
		// the opcode without failing.

	case opcode.BeginEnum, opcode.EndEnum, opcode.DefineEnumVariant, opcode.DefineEnumVariantWithType:
		// Enum descriptors are constructed directly via types.EnumOf by
		// the host; these opcodes are markers for a future compiler.

	case opcode.Print:
		fmt.Print(ctx.pop().String())
	case opcode.DebugPrint:
		fmt.Fprintln(vm.debug, ctx.peek().String())

	case opcode.LoadConst:
		ctx.push(vm.Constants[instr.IntOp])
	case opcode.StoreConst:
		v := ctx.pop()
		vm.mu.Lock()
		for len(vm.Constants) <= instr.IntOp {
			vm.Constants = append(vm.Constants, value.Nil())
		}
		vm.Constants[instr.IntOp] = v
		vm.mu.Unlock()
	case opcode.LoadMember:
		obj := ctx.pop()
		v, _ := obj.AsDict().Get(value.Str(instr.StrOp))
		ctx.push(v)
	case opcode.StoreMember:
		v := ctx.pop()
		obj := ctx.pop()
		obj.AsDict().Set(value.Str(instr.StrOp), v)
		ctx.push(obj)

	default:
		return vm.fail(ctx, errcat.KindHostError, fmt.Sprintf("unimplemented opcode %s", instr.Op), instr.Line)
	}

	return nil
}

// fail is raiseRuntime's call-site convenience: raise, and if nothing in
// ctx handled it, surface the catalog error so Run/runRange can return it.
func (vm *VirtualMachine) fail(ctx *VMContext, kind errcat.Kind, message string, line int) error {
	handled, rt := ctx.raiseRuntime(kind, message, line)
	if handled {
		return nil
	}

	return rt
}

func (ctx *VMContext) popN(n int) []value.Value {
	if n == 0 {
		return nil
	}

	start := len(ctx.Stack) - n
	out := append([]value.Value(nil), ctx.Stack[start:]...)
	ctx.Stack = ctx.Stack[:start]

	return out
}

func (vm *VirtualMachine) getGlobal(name string) (value.Value, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.globals == nil {
		return value.Value{}, false
	}

	v, ok := vm.globals[name]

	return v, ok
}

func (vm *VirtualMachine) setGlobal(name string, v value.Value) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.globals == nil {
		vm.globals = make(map[string]value.Value)
	}

	vm.globals[name] = v
}
