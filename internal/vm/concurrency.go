// This file implements the concurrency opcodes: BeginParallel/
// EndParallel fork-join, BeginConcurrent/EndConcurrent detached spawns,
// and Await's cooperative suspension, all multiplexing shared state
// through the VirtualMachine mutex while giving each spawned VMContext
// its own operand/call stacks. Await is the one cooperative suspension
// point, so a single-threaded cooperative scheduler remains possible.
package vm

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/limitly-lang/limvm/internal/errcat"
	"github.com/limitly-lang/limvm/internal/opcode"
	"github.com/limitly-lang/limvm/internal/types"
	"github.com/limitly-lang/limvm/internal/value"
)

// findMatchingEnd scans forward from start (already past the opening
// marker) for the balanced closing opcode, accounting for nesting.
func (vm *VirtualMachine) findMatchingEnd(start int, begin, end opcode.Opcode) int {
	depth := 1

	for i := start; i < len(vm.Bytecode); i++ {
		switch vm.Bytecode[i].Op {
		case begin:
			depth++
		case end:
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return len(vm.Bytecode)
}

// beginParallel spawns IntOp child contexts over the instruction range up
// to the matching EndParallel and blocks until all join. Each child's
// temp slot "__context_id" is seeded with its fork index 0..k-1, which
// bytecode wanting to know "which fork am I" reads via LoadTemp; no new
// opcode is needed since StoreTemp/LoadTemp already generalize to this.
func (vm *VirtualMachine) beginParallel(ctx *VMContext, instr opcode.Instruction) error {
	bodyStart := ctx.IP
	bodyEnd := vm.findMatchingEnd(bodyStart, opcode.BeginParallel, opcode.EndParallel)
	k := instr.IntOp

	var g errgroup.Group

	for i := 0; i < k; i++ {
		i := i

		g.Go(func() error {
			child := vm.childContext(ctx, i, bodyStart)
			child.Temps["__context_id"] = value.Int(types.TagInt64, int64(i))

			_, err := vm.runRange(child, bodyEnd)

			return err
		})
	}

	if err := g.Wait(); err != nil {
		if rt, ok := err.(*errcat.RuntimeError); ok {
			return vm.fail(ctx, rt.Kind, rt.Description, instr.Line)
		}

		return vm.fail(ctx, errcat.KindHostError, err.Error(), instr.Line)
	}

	ctx.IP = bodyEnd + 1

	return nil
}

// futureIterator boxes a detached context's eventual result behind the
// existing value.Iterator shape rather than introducing a parallel
// "future" Value kind: Await treats it as a single-shot channel receive.
type futureIterator struct {
	ch chan value.Value
}

func (f *futureIterator) HasNext() bool { return true }
func (f *futureIterator) Next() (value.Value, bool) {
	v, ok := <-f.ch
	return v, ok
}
func (f *futureIterator) NextKeyValue() (value.Value, value.Value, bool) {
	return value.Nil(), value.Nil(), false
}

// beginConcurrent spawns a detached context over the range up to the
// matching EndConcurrent and immediately continues past it, pushing a
// future Value the caller may later pass to Await. Detached contexts are
// never joined implicitly.
func (vm *VirtualMachine) beginConcurrent(ctx *VMContext, instr opcode.Instruction) {
	bodyStart := ctx.IP
	bodyEnd := vm.findMatchingEnd(bodyStart, opcode.BeginConcurrent, opcode.EndConcurrent)

	ch := make(chan value.Value, 1)
	child := vm.childContext(ctx, 0, bodyStart)

	go func() {
		result, err := vm.runRange(child, bodyEnd)
		if err != nil {
			result = value.Error(types.Simple(types.TagErrorUnion), &value.ErrorValue{
				TypeName: string(errcat.KindHostError),
				Message:  err.Error(),
			})
		}

		ch <- result
	}()

	ctx.push(value.IteratorValue(&futureIterator{ch: ch}))
	ctx.IP = bodyEnd + 1
}

// await implements Await: suspend the current context on a future-valued
// Value until resolved, checking the cancellation flag and deadline at
// each poll. The short sleep between polls
// is the cost of making cancellation cooperative without plumbing a
// cancel channel through every spawn path; Await is the only opcode that
// pays it.
func (vm *VirtualMachine) await(ctx *VMContext, instr opcode.Instruction) error {
	popped := ctx.pop()

	fut, ok := popped.Iterator().(*futureIterator)
	if !ok {
		ctx.push(popped)
		return nil
	}

	for {
		select {
		case v := <-fut.ch:
			ctx.push(v)
			return nil
		default:
		}

		if ctx.cancelled.Load() {
			return vm.fail(ctx, errcat.KindCancelled, "context cancelled while awaiting", instr.Line)
		}

		if ctx.deadline != nil && time.Now().After(*ctx.deadline) {
			return vm.fail(ctx, errcat.KindTimedOut, "deadline exceeded while awaiting", instr.Line)
		}

		time.Sleep(time.Millisecond)
	}
}
