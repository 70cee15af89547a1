package vm

import (
	"fmt"

	"github.com/limitly-lang/limvm/internal/errcat"
	"github.com/limitly-lang/limvm/internal/types"
	"github.com/limitly-lang/limvm/internal/value"
)

// beginTry pushes a try-stack entry recording where to unwind back to and
// enters InTry.
func (ctx *VMContext) beginTry(handlerIP int) {
	ctx.TryStack = append(ctx.TryStack, TryFrame{
		CallDepth:    len(ctx.Calls),
		OperandDepth: len(ctx.Stack),
		HandlerIP:    handlerIP,
	})
	ctx.State = StateInTry
}

// endHandler pops the try-stack entry the active handler was running
// under and returns to Running.
func (ctx *VMContext) endHandler() {
	if n := len(ctx.TryStack); n > 0 {
		ctx.TryStack = ctx.TryStack[:n-1]
	}

	ctx.State = StateRunning
}

// raise drives the Unwinding transition of the exception state machine:
// pop call
// frames down to the enclosing try-stack entry's recorded depth, restore
// the operand-stack depth, push the exception Value, jump to the handler
// IP, and enter Handling. Returns false if no try-stack entry is active in
// this context, meaning the exception must propagate to the parent
// context (if any) or terminate the context.
//
// The try-stack entry is deliberately left on the stack here rather than
// popped (that is EndHandler's job) so a handler that re-raises
// before reaching its EndHandler targets the same frame again. A handler
// wanting to propagate past its own try should nest a fresh BeginTry (or
// have none) before rethrowing.
func (ctx *VMContext) raise(exc value.Value) bool {
	ctx.State = StateUnwinding
	ctx.LastError = &exc

	if len(ctx.TryStack) == 0 {
		return false
	}

	frame := ctx.TryStack[len(ctx.TryStack)-1]

	if frame.CallDepth < len(ctx.Calls) {
		ctx.Calls = ctx.Calls[:frame.CallDepth]
	}

	if frame.OperandDepth < len(ctx.Stack) {
		ctx.Stack = ctx.Stack[:frame.OperandDepth]
	}

	ctx.push(exc)
	ctx.IP = frame.HandlerIP
	ctx.State = StateHandling

	return true
}

// raiseRuntime builds a catalog RuntimeError's Value rendering and raises
// it, the path every arithmetic/comparison/collection handler in
// dispatch.go uses to report a cataloged failure.
func (ctx *VMContext) raiseRuntime(kind errcat.Kind, message string, line int) (bool, *errcat.RuntimeError) {
	rt := errcat.New(kind, message, line)
	exc := value.Error(types.Simple(types.TagErrorUnion), &value.ErrorValue{
		TypeName: string(kind),
		Message:  message,
		Location: value.SourceLocation{Line: line},
	})

	return ctx.raise(exc), rt
}

// hostErrorFromPanic translates a native-callback panic into a HostError
// language exception entering the normal unwinding path, unifying host
// and bytecode-level exceptions at one boundary.
func hostErrorFromPanic(r any) *value.ErrorValue {
	return &value.ErrorValue{
		TypeName: string(errcat.KindHostError),
		Message:  "native callback panicked: " + formatRecovered(r),
	}
}

func formatRecovered(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}

	return fmt.Sprint(r)
}
