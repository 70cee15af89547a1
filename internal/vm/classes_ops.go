package vm

import (
	"github.com/limitly-lang/limvm/internal/classes"
	"github.com/limitly-lang/limvm/internal/errcat"
	"github.com/limitly-lang/limvm/internal/opcode"
)

// getProperty implements GetProperty: pop the receiving instance, resolve
// the named field up its class's superclass chain, check visibility
// against the currently executing method's declaring class (const fields
// read as public), and push the field's value.
func (vm *VirtualMachine) getProperty(ctx *VMContext, instr opcode.Instruction) error {
	obj := ctx.pop()

	inst := obj.Instance()
	if inst == nil {
		return vm.fail(ctx, errcat.KindNullReference, "GetProperty on a non-instance value", instr.Line)
	}

	classDef := vm.Classes.Lookup(inst.ClassName)
	if classDef == nil {
		return vm.fail(ctx, errcat.KindHostError, "undefined class "+inst.ClassName, instr.Line)
	}

	field, declaring := classDef.ResolveField(instr.StrOp)
	if field == nil {
		return vm.fail(ctx, errcat.KindNullReference, "undefined field "+instr.StrOp, instr.Line)
	}

	if !field.IsConst {
		if err := classes.CheckAccess(ctx.CurrentClass(), declaring, instr.StrOp, field.Visibility); err != nil {
			return vm.fail(ctx, errcat.KindVisibilityViolation, err.Error(), instr.Line)
		}
	}

	ctx.push(inst.Fields[instr.StrOp])

	return nil
}

// setProperty implements SetProperty: pop the new value and the receiving
// instance, check visibility and const-ness, mutate the field, and push
// the instance back (so a chained assignment can keep threading it, the
// same convention DictSet/StoreMember use).
func (vm *VirtualMachine) setProperty(ctx *VMContext, instr opcode.Instruction) error {
	v := ctx.pop()
	obj := ctx.pop()

	inst := obj.Instance()
	if inst == nil {
		return vm.fail(ctx, errcat.KindNullReference, "SetProperty on a non-instance value", instr.Line)
	}

	classDef := vm.Classes.Lookup(inst.ClassName)
	if classDef == nil {
		return vm.fail(ctx, errcat.KindHostError, "undefined class "+inst.ClassName, instr.Line)
	}

	field, declaring := classDef.ResolveField(instr.StrOp)
	if field == nil {
		return vm.fail(ctx, errcat.KindNullReference, "undefined field "+instr.StrOp, instr.Line)
	}

	if err := classes.CheckAccess(ctx.CurrentClass(), declaring, instr.StrOp, field.Visibility); err != nil {
		return vm.fail(ctx, errcat.KindVisibilityViolation, err.Error(), instr.Line)
	}

	if field.IsConst {
		return vm.fail(ctx, errcat.KindVisibilityViolation, "field "+instr.StrOp+" is const", instr.Line)
	}

	inst.Fields[instr.StrOp] = v
	ctx.push(obj)

	return nil
}
