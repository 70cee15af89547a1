package vm

import (
	"strings"

	"github.com/limitly-lang/limvm/internal/classes"
	"github.com/limitly-lang/limvm/internal/errcat"
	"github.com/limitly-lang/limvm/internal/functions"
	"github.com/limitly-lang/limvm/internal/opcode"
	"github.com/limitly-lang/limvm/internal/types"
	"github.com/limitly-lang/limvm/internal/value"
)

// call implements the call protocol for both free functions (StrOp is
// a bare name) and methods (StrOp is "Class.method", with the receiver
// instance pushed immediately below the IntOp arguments). IntOp is the
// number of positional arguments the caller pushed.
func (vm *VirtualMachine) call(ctx *VMContext, instr opcode.Instruction) error {
	args := ctx.popN(instr.IntOp)

	if className, methodName, isMethod := splitMethodName(instr.StrOp); isMethod {
		return vm.callMethod(ctx, instr, className, methodName, args)
	}

	entry := vm.Functions.Lookup(instr.StrOp)
	if entry == nil {
		return vm.fail(ctx, errcat.KindHostError, "call to undefined function "+instr.StrOp, instr.Line)
	}

	if entry.IsNative {
		return vm.callNative(ctx, instr, entry, args)
	}

	return vm.callUser(ctx, instr, entry, args, nil, nil)
}

func splitMethodName(name string) (class, method string, ok bool) {
	i := strings.IndexByte(name, '.')
	if i < 0 {
		return "", "", false
	}

	return name[:i], name[i+1:], true
}

func (vm *VirtualMachine) callMethod(ctx *VMContext, instr opcode.Instruction, className, methodName string, args []value.Value) error {
	classDef := vm.Classes.Lookup(className)
	if classDef == nil {
		return vm.fail(ctx, errcat.KindHostError, "call to undefined class "+className, instr.Line)
	}

	receiver := ctx.pop()

	method, declaring := classDef.ResolveMethod(methodName)
	if method == nil {
		return vm.fail(ctx, errcat.KindHostError, "undefined method "+className+"."+methodName, instr.Line)
	}

	if err := classes.CheckAccess(ctx.CurrentClass(), declaring, methodName, method.Visibility); err != nil {
		return vm.fail(ctx, errcat.KindVisibilityViolation, err.Error(), instr.Line)
	}

	if method.Impl.IsNative() {
		result, hostErr := invokeNativeSafely(method.Impl.Native, append([]value.Value{receiver}, args...))
		if hostErr != nil {
			exc := value.Error(types.Simple(types.TagErrorUnion), hostErr)
			if ctx.raise(exc) {
				return nil
			}

			return errcat.New(errcat.KindHostError, hostErr.Message, instr.Line)
		}

		ctx.push(result)

		return nil
	}

	entry := &functions.Entry{
		Name:        methodName,
		StartOffset: method.Impl.StartOffset,
		EndOffset:   method.Impl.EndOffset,
	}

	return vm.callUser(ctx, instr, entry, args, declaring, &receiver)
}

func (vm *VirtualMachine) callNative(ctx *VMContext, instr opcode.Instruction, entry *functions.Entry, args []value.Value) error {
	result, hostErr := invokeNativeSafely(entry.Callback, args)
	if hostErr != nil {
		exc := value.Error(types.Simple(types.TagErrorUnion), hostErr)
		if ctx.raise(exc) {
			return nil
		}

		return errcat.New(errcat.KindHostError, hostErr.Message, instr.Line)
	}

	ctx.push(result)

	return nil
}

// invokeNativeSafely calls a native callback and recovers a Go panic into
// a HostError ErrorValue, unifying host-language and bytecode-level
// exceptions at the native-call boundary. A callback-returned error is
// translated the same way.
func invokeNativeSafely(fn functions.Native, args []value.Value) (result value.Value, hostErr *value.ErrorValue) {
	defer func() {
		if r := recover(); r != nil {
			hostErr = hostErrorFromPanic(r)
		}
	}()

	v, err := fn(args)
	if err != nil {
		return value.Value{}, &value.ErrorValue{TypeName: string(errcat.KindHostError), Message: err.Error()}
	}

	return v, nil
}

// maxCallDepth bounds the call stack; crossing it raises StackOverflow
// instead of letting runaway recursion exhaust the host stack.
const maxCallDepth = 4096

func (vm *VirtualMachine) callUser(ctx *VMContext, instr opcode.Instruction, entry *functions.Entry, args []value.Value, declaring *classes.Definition, receiver *value.Value) error {
	if len(ctx.Calls) >= maxCallDepth {
		return vm.fail(ctx, errcat.KindStackOverflow, "call stack depth exceeded calling "+entry.Name, instr.Line)
	}

	callEnv := NewEnvironment(nil)

	evalDefault := func(offset int) (value.Value, error) {
		callerEnv := ctx.Env
		ctx.Env = callEnv

		defer func() { ctx.Env = callerEnv }()

		return vm.evalDefault(ctx, offset)
	}

	bound, err := functions.BindArgs(entry.Signature, args, evalDefault)
	if err != nil {
		return vm.fail(ctx, errcat.KindHostError, err.Error(), instr.Line)
	}

	for name, v := range bound {
		callEnv.Define(name, v)
	}

	ctx.Calls = append(ctx.Calls, CallFrame{
		ReturnIP:       ctx.IP,
		Env:            ctx.Env,
		DeclaringClass: declaring,
		Receiver:       receiver,
		FunctionName:   entry.Name,
	})

	ctx.Env = callEnv
	ctx.IP = entry.StartOffset

	return nil
}

// evalDefault runs the bounded sub-loop that evaluates an optional
// parameter's default expression in the callee's environment:
// the bytecode at offset is executed against ctx's own operand stack until
// it reaches SetDefaultValue, whose job is purely to mark "the value now
// on top of stack is the resolved default".
func (vm *VirtualMachine) evalDefault(ctx *VMContext, offset int) (value.Value, error) {
	savedIP := ctx.IP
	ctx.IP = offset

	for {
		instr := vm.Bytecode[ctx.IP]
		if instr.Op == opcode.SetDefaultValue {
			ctx.IP = savedIP
			return ctx.pop(), nil
		}

		ctx.IP++

		if err := vm.step(ctx, instr); err != nil {
			ctx.IP = savedIP
			return value.Value{}, err
		}
	}
}

// doReturn implements Return: at the top level (no call frames) it halts
// the context with its result; otherwise it pops the call frame, restores
// the caller's environment and instruction pointer, and pushes the
// returned value.
func (vm *VirtualMachine) doReturn(ctx *VMContext) error {
	result := value.Nil()
	if len(ctx.Stack) > 0 {
		result = ctx.pop()
	}

	if len(ctx.Calls) == 0 {
		return haltSignal{result}
	}

	frame := ctx.Calls[len(ctx.Calls)-1]
	ctx.Calls = ctx.Calls[:len(ctx.Calls)-1]
	ctx.Env = frame.Env
	ctx.IP = frame.ReturnIP
	ctx.push(result)

	return nil
}

// doThrow implements Throw: pop the top-of-stack as (or into) the
// exception Value and begin unwinding. StrOp, when non-empty,
// names the error type to wrap the popped value's rendering into; an
// empty StrOp uses the popped value directly as the exception, so a
// program may throw any Value it likes.
func (vm *VirtualMachine) doThrow(ctx *VMContext, instr opcode.Instruction) error {
	popped := ctx.pop()

	exc := popped
	if instr.StrOp != "" {
		exc = value.Error(types.Simple(types.TagErrorUnion), &value.ErrorValue{
			TypeName: instr.StrOp,
			Message:  popped.String(),
			Location: value.SourceLocation{Line: instr.Line},
		})
	}

	if ctx.raise(exc) {
		return nil
	}

	return errcat.New(errcat.KindHostError, "unhandled exception: "+exc.String(), instr.Line)
}
