// Package types implements the TypeDescriptor and TypeSystem of the
// Limitly core: naming every runtime type, caching and canonicalizing
// descriptors, and checking/widening/casting between them.
package types

import (
	"fmt"
	"sort"
	"strings"
)

// Tag names a runtime type's shape.
type Tag int

const (
	TagNil Tag = iota
	TagBool
	TagInt8
	TagInt16
	TagInt32
	TagInt64
	TagUInt8
	TagUInt16
	TagUInt32
	TagUInt64
	TagFloat32
	TagFloat64
	TagString
	TagList
	TagDict
	TagRange
	TagEnum
	TagFunction
	TagSum
	TagUnion
	TagErrorUnion
	TagOption
	TagResult
	TagUserDefined
	TagObject
	TagAny
)

var tagNames = map[Tag]string{
	TagNil: "Nil", TagBool: "Bool", TagInt8: "Int8", TagInt16: "Int16",
	TagInt32: "Int32", TagInt64: "Int64", TagUInt8: "UInt8", TagUInt16: "UInt16",
	TagUInt32: "UInt32", TagUInt64: "UInt64", TagFloat32: "Float32", TagFloat64: "Float64",
	TagString: "String", TagList: "List", TagDict: "Dict", TagRange: "Range",
	TagEnum: "Enum", TagFunction: "Function", TagSum: "Sum", TagUnion: "Union",
	TagErrorUnion: "ErrorUnion", TagOption: "Option", TagResult: "Result",
	TagUserDefined: "UserDefined", TagObject: "Object", TagAny: "Any",
}

func (t Tag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}

	return fmt.Sprintf("Tag(%d)", int(t))
}

// EnumVariant is one case of an Enum descriptor; its position in the
// owning Descriptor's Variants slice is its stable identity.
type EnumVariant struct {
	Name  string
	Assoc *Descriptor // nil if the variant carries no payload
}

// Descriptor is a TypeDescriptor: a tag plus a tag-dependent extra payload.
type Descriptor struct {
	Tag Tag

	// List
	Element *Descriptor
	// Dict
	Key, Value *Descriptor
	// Enum
	Variants []EnumVariant
	// Function
	Params []*Descriptor
	Return *Descriptor
	// Sum: ordered, index-addressed.
	SumVariants []*Descriptor
	// Union: canonicalized (flattened, de-duplicated).
	UnionMembers []*Descriptor
	// ErrorUnion
	ErrorUnionSuccess *Descriptor
	ErrorUnionGeneric bool
	ErrorUnionErrors  []string
	// UserDefined
	ClassName string
}

// Simple returns a descriptor for a tag with no extra payload (Nil, Bool,
// every numeric width, String, Range, Any, Object).
func Simple(tag Tag) *Descriptor { return &Descriptor{Tag: tag} }

// ListOf builds a List descriptor.
func ListOf(element *Descriptor) *Descriptor {
	return &Descriptor{Tag: TagList, Element: element}
}

// DictOf builds a Dict descriptor.
func DictOf(key, value *Descriptor) *Descriptor {
	return &Descriptor{Tag: TagDict, Key: key, Value: value}
}

// FunctionOf builds a Function descriptor.
func FunctionOf(params []*Descriptor, ret *Descriptor) *Descriptor {
	return &Descriptor{Tag: TagFunction, Params: params, Return: ret}
}

// EnumOf builds an Enum descriptor; variant order is preserved as given.
func EnumOf(variants ...EnumVariant) *Descriptor {
	return &Descriptor{Tag: TagEnum, Variants: variants}
}

// SumOf builds a Sum descriptor; variant order is preserved as given.
func SumOf(variants ...*Descriptor) *Descriptor {
	return &Descriptor{Tag: TagSum, SumVariants: variants}
}

// UserDefinedOf builds a descriptor referencing a class by name, resolved
// through the class registry at use sites.
func UserDefinedOf(className string) *Descriptor {
	return &Descriptor{Tag: TagUserDefined, ClassName: className}
}

// Signature returns a structural fingerprint suitable for cache keys and
// equality short-circuiting. Two descriptors with equal signatures are
// always StructurallyEqual, and vice versa.
func (d *Descriptor) Signature() string {
	if d == nil {
		return "<nil>"
	}

	var b strings.Builder
	d.writeSignature(&b)

	return b.String()
}

func (d *Descriptor) writeSignature(b *strings.Builder) {
	b.WriteString(d.Tag.String())

	switch d.Tag {
	case TagList:
		b.WriteByte('[')
		d.Element.writeSignature(b)
		b.WriteByte(']')
	case TagDict:
		b.WriteByte('[')
		d.Key.writeSignature(b)
		b.WriteByte(':')
		d.Value.writeSignature(b)
		b.WriteByte(']')
	case TagEnum:
		b.WriteByte('{')

		for i, v := range d.Variants {
			if i > 0 {
				b.WriteByte(',')
			}

			b.WriteString(v.Name)

			if v.Assoc != nil {
				b.WriteByte('(')
				v.Assoc.writeSignature(b)
				b.WriteByte(')')
			}
		}

		b.WriteByte('}')
	case TagFunction:
		b.WriteByte('(')

		for i, p := range d.Params {
			if i > 0 {
				b.WriteByte(',')
			}

			p.writeSignature(b)
		}

		b.WriteString(")->")
		d.Return.writeSignature(b)
	case TagSum:
		b.WriteByte('<')

		for i, v := range d.SumVariants {
			if i > 0 {
				b.WriteByte('|')
			}

			v.writeSignature(b)
		}

		b.WriteByte('>')
	case TagUnion:
		sigs := make([]string, len(d.UnionMembers))
		for i, m := range d.UnionMembers {
			sigs[i] = m.Signature()
		}

		sort.Strings(sigs)
		b.WriteByte('(')
		b.WriteString(strings.Join(sigs, "|"))
		b.WriteByte(')')
	case TagOption, TagResult:
		b.WriteByte('(')

		for i, m := range d.UnionMembers {
			if i > 0 {
				b.WriteByte('|')
			}

			m.writeSignature(b)
		}

		b.WriteByte(')')
	case TagErrorUnion:
		b.WriteByte('!')
		d.ErrorUnionSuccess.writeSignature(b)

		if d.ErrorUnionGeneric {
			b.WriteString("<generic>")
		} else {
			errs := append([]string(nil), d.ErrorUnionErrors...)
			sort.Strings(errs)
			b.WriteByte('[')
			b.WriteString(strings.Join(errs, ","))
			b.WriteByte(']')
		}
	case TagUserDefined:
		b.WriteByte(':')
		b.WriteString(d.ClassName)
	}
}

// StructurallyEqual reports whether two descriptors have equal tags and
// recursively equal extras. Union canonicalization, CommonType, and Value
// equality all share this one definition.
func (d *Descriptor) StructurallyEqual(other *Descriptor) bool {
	if d == nil || other == nil {
		return d == other
	}

	return d.Signature() == other.Signature()
}
