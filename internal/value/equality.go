package value

import "github.com/limitly-lang/limvm/internal/types"

// valuesEqual defines equality across all value kinds structurally.
// Shared by Dict key lookup and the Eq/Ne opcodes.
func valuesEqual(a, b Value) bool {
	if !a.Type.StructurallyEqual(b.Type) {
		if types.IsNumeric(a.Type.Tag) && types.IsNumeric(b.Type.Tag) {
			return a.AsFloat64() == b.AsFloat64()
		}

		return false
	}

	switch a.Type.Tag {
	case types.TagNil:
		return true
	case types.TagBool:
		return a.boolData == b.boolData
	case types.TagString:
		return a.strData == b.strData
	case types.TagFloat32, types.TagFloat64:
		return a.floatData == b.floatData
	case types.TagList:
		if len(a.listData) != len(b.listData) {
			return false
		}

		for i := range a.listData {
			if !valuesEqual(a.listData[i], b.listData[i]) {
				return false
			}
		}

		return true
	case types.TagDict:
		if a.dictData.Len() != b.dictData.Len() {
			return false
		}

		for _, pair := range a.dictData.Pairs() {
			bv, ok := b.dictData.Get(pair.Key)
			if !ok || !valuesEqual(pair.Value, bv) {
				return false
			}
		}

		return true
	case types.TagEnum:
		if a.enumName != b.enumName {
			return false
		}

		if (a.enumAssoc == nil) != (b.enumAssoc == nil) {
			return false
		}

		if a.enumAssoc == nil {
			return true
		}

		return valuesEqual(*a.enumAssoc, *b.enumAssoc)
	case types.TagSum, types.TagOption, types.TagResult:
		if a.sumIndex != b.sumIndex {
			return false
		}

		if (a.sumInner == nil) != (b.sumInner == nil) {
			return false
		}

		if a.sumInner == nil {
			return true
		}

		return valuesEqual(*a.sumInner, *b.sumInner)
	case types.TagUserDefined:
		if a.instance == nil || b.instance == nil {
			return a.instance == b.instance
		}

		if a.instance.ClassName != b.instance.ClassName {
			return false
		}

		if len(a.instance.Fields) != len(b.instance.Fields) {
			return false
		}

		for name, av := range a.instance.Fields {
			bv, ok := b.instance.Fields[name]
			if !ok || !valuesEqual(av, bv) {
				return false
			}
		}

		return true
	default:
		if isUnsignedTag(a.Type.Tag) {
			return a.uintData == b.uintData
		}

		if types.IsNumeric(a.Type.Tag) {
			return a.intData == b.intData
		}

		return false
	}
}

// Equal is the exported form of valuesEqual for use outside the package.
func Equal(a, b Value) bool { return valuesEqual(a, b) }
