package vm

import (
	"github.com/limitly-lang/limvm/internal/errcat"
	"github.com/limitly-lang/limvm/internal/opcode"
	"github.com/limitly-lang/limvm/internal/types"
	"github.com/limitly-lang/limvm/internal/value"
)

// matchPattern implements MatchPattern: test the scrutinee on top of the
// operand stack against one arm, named by StrOp, without popping it on a
// miss so the next MatchPattern in the chain can test the same value
// A miss jumps IntOp instructions forward, past the arm
// body, to the next MatchPattern. A hit pops the scrutinee, pushes its
// associated payload if the arm is an Enum variant carrying one, and
// falls through into the arm body.
//
// An empty StrOp is the convention a compiler emits for the terminal,
// no-arm-left position of a match: reaching it always raises
// NonExhaustiveMatch, since
// control only falls through to it after every preceding arm missed.
func (vm *VirtualMachine) matchPattern(ctx *VMContext, instr opcode.Instruction) error {
	if instr.StrOp == "" {
		return vm.fail(ctx, errcat.KindNonExhaustiveMatch, "no arm matched the value", instr.Line)
	}

	scrutinee := ctx.peek()

	if !matchesPattern(scrutinee, instr.StrOp) {
		ctx.IP += instr.IntOp
		return nil
	}

	ctx.pop()

	if assoc, ok := scrutinee.EnumAssoc(); ok {
		ctx.push(assoc)
	} else if isSumLike(scrutinee.Type.Tag) {
		// Option/Result/Sum arms bind their inner payload, same as an
		// Enum variant's associated value. Option/Result are Sum
		// specializations here, not a separate pattern kind.
		ctx.push(scrutinee.SumInner())
	}

	return nil
}

func isSumLike(tag types.Tag) bool {
	return tag == types.TagSum || tag == types.TagOption || tag == types.TagResult
}

// sumVariantNames are the fixed, positional variant names of Option
// (Some/None) and Result (Ok/Err), used when a scrutinee has no Enum
// variant name of its own to match against.
var sumVariantNames = map[types.Tag][2]string{
	types.TagOption: {"Some", "None"},
	types.TagResult: {"Ok", "Err"},
}

// matchesPattern recognizes an Enum variant name, an Option/Result arm
// name ("Some"/"None"/"Ok"/"Err"), or a bare TypeDescriptor tag name
// (e.g. "Int64", "String") as a pattern.
func matchesPattern(v value.Value, pattern string) bool {
	if v.Type.Tag == types.TagEnum && v.EnumVariant() == pattern {
		return true
	}

	if names, ok := sumVariantNames[v.Type.Tag]; ok {
		return names[v.SumIndex()] == pattern
	}

	return v.Type.Tag.String() == pattern
}
