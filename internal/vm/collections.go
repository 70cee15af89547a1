package vm

import (
	"github.com/limitly-lang/limvm/internal/errcat"
	"github.com/limitly-lang/limvm/internal/opcode"
	"github.com/limitly-lang/limvm/internal/types"
	"github.com/limitly-lang/limvm/internal/value"
)

// getIndex implements GetIndex for List (integer index) and Dict
// (arbitrary key) receivers.
func (vm *VirtualMachine) getIndex(ctx *VMContext, instr opcode.Instruction) error {
	idx := ctx.pop()
	coll := ctx.pop()

	switch coll.Type.Tag {
	case types.TagList:
		list := coll.AsList()
		i := int(idx.AsInt())

		if i < 0 || i >= len(list) {
			return vm.fail(ctx, errcat.KindNullReference, "list index out of range", instr.Line)
		}

		ctx.push(list[i])
	case types.TagDict:
		v, ok := coll.AsDict().Get(idx)
		if !ok {
			return vm.fail(ctx, errcat.KindNullReference, "dict key not found", instr.Line)
		}

		ctx.push(v)
	default:
		return vm.fail(ctx, errcat.KindTypeError, "GetIndex requires a List or Dict", instr.Line)
	}

	return nil
}

// setIndex implements SetIndex, pushing the mutated collection back so a
// chained assignment can keep threading it.
func (vm *VirtualMachine) setIndex(ctx *VMContext, instr opcode.Instruction) error {
	v := ctx.pop()
	idx := ctx.pop()
	coll := ctx.pop()

	switch coll.Type.Tag {
	case types.TagList:
		list := coll.AsList()
		i := int(idx.AsInt())

		if i < 0 || i >= len(list) {
			return vm.fail(ctx, errcat.KindNullReference, "list index out of range", instr.Line)
		}

		list[i] = v
		ctx.push(coll)
	case types.TagDict:
		if !idx.Hashable() {
			return vm.fail(ctx, errcat.KindTypeError, "unhashable Dict key type "+idx.Type.Tag.String(), instr.Line)
		}

		coll.AsDict().Set(idx, v)
		ctx.push(coll)
	default:
		return vm.fail(ctx, errcat.KindTypeError, "SetIndex requires a List or Dict", instr.Line)
	}

	return nil
}

// listIterator/rangeIterator/dictIterator implement value.Iterator over
// the three collection shapes GetIterator boxes; ranges are materialized
// lazily, one step at a time, rather than expanded into a List up front.
type listIterator struct {
	items []value.Value
	pos   int
}

func (it *listIterator) HasNext() bool { return it.pos < len(it.items) }
func (it *listIterator) Next() (value.Value, bool) {
	if !it.HasNext() {
		return value.Nil(), false
	}

	v := it.items[it.pos]
	it.pos++

	return v, true
}
func (it *listIterator) NextKeyValue() (value.Value, value.Value, bool) { return value.Nil(), value.Nil(), false }

type rangeIterator struct {
	cur, end, step int64
	inclusive      bool
}

func (it *rangeIterator) HasNext() bool {
	if it.step == 0 {
		return false
	}

	if it.step > 0 {
		if it.inclusive {
			return it.cur <= it.end
		}

		return it.cur < it.end
	}

	if it.inclusive {
		return it.cur >= it.end
	}

	return it.cur > it.end
}

func (it *rangeIterator) Next() (value.Value, bool) {
	if !it.HasNext() {
		return value.Nil(), false
	}

	v := value.Int(types.TagInt64, it.cur)
	it.cur += it.step

	return v, true
}
func (it *rangeIterator) NextKeyValue() (value.Value, value.Value, bool) { return value.Nil(), value.Nil(), false }

type dictIterator struct {
	pairs []struct{ Key, Value value.Value }
	pos   int
}

func (it *dictIterator) HasNext() bool { return it.pos < len(it.pairs) }
func (it *dictIterator) Next() (value.Value, bool) {
	if !it.HasNext() {
		return value.Nil(), false
	}

	v := it.pairs[it.pos].Value
	it.pos++

	return v, true
}
func (it *dictIterator) NextKeyValue() (value.Value, value.Value, bool) {
	if !it.HasNext() {
		return value.Nil(), value.Nil(), false
	}

	p := it.pairs[it.pos]
	it.pos++

	return p.Key, p.Value, true
}

// newIterator boxes v into the Iterator shape GetIterator needs.
func newIterator(v value.Value) value.Iterator {
	switch v.Type.Tag {
	case types.TagList:
		return &listIterator{items: v.AsList()}
	case types.TagRange:
		start, end, step, incl := v.Range()
		return &rangeIterator{cur: start, end: end, step: step, inclusive: incl}
	case types.TagDict:
		return &dictIterator{pairs: v.AsDict().Pairs()}
	default:
		if v.Iterator() != nil {
			return v.Iterator()
		}

		return &listIterator{}
	}
}
