// Package value implements Value: the tagged union pairing a type
// descriptor with exactly one data payload, the sole runtime datum of the
// Limitly core.
package value

import (
	"fmt"
	"hash/fnv"

	"github.com/limitly-lang/limvm/internal/types"
)

// SourceLocation records where an ErrorValue was raised.
type SourceLocation struct {
	Line int
}

// ErrorValue is the payload of an error-bearing Value.
type ErrorValue struct {
	TypeName string
	Message  string
	Args     []Value
	Location SourceLocation
}

// Instance is a user-defined object: a class reference plus its field
// map. Field completeness (every declared and inherited field present) is
// enforced by classes.Definition.CreateInstance, not here.
type Instance struct {
	ClassName string
	Fields    map[string]Value
}

// Iterator is the boxed handle GetIterator produces.
type Iterator interface {
	HasNext() bool
	Next() (Value, bool)
	// NextKeyValue is used when iterating a Dict; ok is false for
	// non-keyed iterators.
	NextKeyValue() (key, val Value, ok bool)
}

// Value is the pair (type, data) every operand-stack slot, variable
// binding, and field holds.
type Value struct {
	Type *types.Descriptor

	boolData   bool
	intData    int64
	uintData   uint64
	floatData  float64
	strData    string
	listData   []Value
	dictData   *OrderedDict
	sumIndex   int
	sumInner   *Value
	enumName   string
	enumAssoc  *Value
	instance   *Instance
	errValue   *ErrorValue
	iter       Iterator
	rangeStart int64
	rangeEnd   int64
	rangeStep  int64
	rangeIncl  bool
}

// Nil is the canonical Nil value.
func Nil() Value { return Value{Type: types.Simple(types.TagNil)} }

// Bool constructs a Bool value.
func Bool(b bool) Value { return Value{Type: types.Simple(types.TagBool), boolData: b} }

// Int constructs an integer value of the given width tag (one of
// TagInt8..TagInt64).
func Int(tag types.Tag, v int64) Value { return Value{Type: types.Simple(tag), intData: v} }

// UInt constructs an unsigned integer value of the given width tag.
func UInt(tag types.Tag, v uint64) Value { return Value{Type: types.Simple(tag), uintData: v} }

// Float constructs a float value of the given width tag (TagFloat32 or
// TagFloat64).
func Float(tag types.Tag, v float64) Value { return Value{Type: types.Simple(tag), floatData: v} }

// Str constructs a String value.
func Str(s string) Value { return Value{Type: types.Simple(types.TagString), strData: s} }

// List constructs a List value of the given element type.
func List(element *types.Descriptor, items ...Value) Value {
	return Value{Type: types.ListOf(element), listData: items}
}

// Dict constructs an empty Dict value of the given key/value types.
func Dict(key, val *types.Descriptor) Value {
	return Value{Type: types.DictOf(key, val), dictData: newOrderedDict()}
}

// RangeVal constructs a Range value.
func RangeVal(start, end, step int64, inclusive bool) Value {
	return Value{Type: types.Simple(types.TagRange), rangeStart: start, rangeEnd: end, rangeStep: step, rangeIncl: inclusive}
}

// Enum constructs an Enum value; assoc may be nil.
func Enum(descriptor *types.Descriptor, variant string, assoc *Value) Value {
	return Value{Type: descriptor, enumName: variant, enumAssoc: assoc}
}

// Sum constructs a Sum value at the given variant index.
func Sum(descriptor *types.Descriptor, index int, inner Value) Value {
	return Value{Type: descriptor, sumIndex: index, sumInner: &inner}
}

// UserDefined constructs a user-defined instance value.
func UserDefined(descriptor *types.Descriptor, inst *Instance) Value {
	return Value{Type: descriptor, instance: inst}
}

// Error constructs an ErrorUnion-error value.
func Error(descriptor *types.Descriptor, ev *ErrorValue) Value {
	return Value{Type: descriptor, errValue: ev}
}

// IteratorValue boxes an Iterator as a Value.
func IteratorValue(it Iterator) Value {
	return Value{Type: types.Simple(types.TagAny), iter: it}
}

// Accessors. Callers (the VM's opcode handlers) are expected to have
// already checked Type.Tag; reading the wrong payload yields that
// payload's zero value.

func (v Value) AsBool() bool       { return v.boolData }
func (v Value) AsInt() int64       { return v.intData }
func (v Value) AsUInt() uint64     { return v.uintData }
func (v Value) AsFloat() float64   { return v.floatData }
func (v Value) AsString() string   { return v.strData }
func (v Value) AsList() []Value    { return v.listData }
func (v Value) AsDict() *OrderedDict { return v.dictData }
func (v Value) SumIndex() int      { return v.sumIndex }
func (v Value) SumInner() Value {
	if v.sumInner == nil {
		return Value{}
	}

	return *v.sumInner
}
func (v Value) EnumVariant() string { return v.enumName }

func (v Value) EnumAssoc() (Value, bool) {
	if v.enumAssoc == nil {
		return Value{}, false
	}

	return *v.enumAssoc, true
}

func (v Value) Instance() *Instance  { return v.instance }
func (v Value) ErrorValue() *ErrorValue { return v.errValue }
func (v Value) Iterator() Iterator   { return v.iter }
func (v Value) Range() (start, end, step int64, inclusive bool) {
	return v.rangeStart, v.rangeEnd, v.rangeStep, v.rangeIncl
}

// IsError reports whether v is an ErrorUnion in its error state.
func (v Value) IsError() bool { return v.errValue != nil }

// IsNumeric reports whether v carries a numeric payload.
func (v Value) IsNumeric() bool { return types.IsNumeric(v.Type.Tag) }

// AsFloat64 widens any numeric payload to float64 for mixed arithmetic.
func (v Value) AsFloat64() float64 {
	switch {
	case v.Type.Tag == types.TagFloat32 || v.Type.Tag == types.TagFloat64:
		return v.floatData
	case isUnsignedTag(v.Type.Tag):
		return float64(v.uintData)
	default:
		return float64(v.intData)
	}
}

func isUnsignedTag(t types.Tag) bool {
	switch t {
	case types.TagUInt8, types.TagUInt16, types.TagUInt32, types.TagUInt64:
		return true
	default:
		return false
	}
}

// String renders a Print-friendly representation; it is also the
// coercion InterpolateString applies to each part.
func (v Value) String() string {
	switch v.Type.Tag {
	case types.TagNil:
		return "nil"
	case types.TagBool:
		return fmt.Sprintf("%t", v.boolData)
	case types.TagString:
		return v.strData
	case types.TagFloat32, types.TagFloat64:
		return fmt.Sprintf("%g", v.floatData)
	case types.TagList:
		return fmt.Sprintf("%v", v.listData)
	case types.TagEnum:
		return v.enumName
	default:
		if isUnsignedTag(v.Type.Tag) {
			return fmt.Sprintf("%d", v.uintData)
		}

		if types.IsNumeric(v.Type.Tag) {
			return fmt.Sprintf("%d", v.intData)
		}

		return fmt.Sprintf("<%s>", v.Type.Tag)
	}
}

// Hashable reports whether v may be used as a Dict key. List, Dict,
// UserDefined, and Function values are not hashable; DictSet and SetIndex
// reject them with TypeError.
func (v Value) Hashable() bool {
	switch v.Type.Tag {
	case types.TagList, types.TagDict, types.TagUserDefined, types.TagFunction:
		return false
	default:
		return true
	}
}

// hashKey returns a stable FNV-1a hash for use as a Dict bucket key,
// defined over every hashable Value kind.
func (v Value) hashKey() uint64 {
	h := fnv.New64a()

	fmt.Fprintf(h, "%d:%s", v.Type.Tag, v.String())

	return h.Sum64()
}
