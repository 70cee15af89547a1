package types

// numericRank orders the numeric lattice: i8 < u8 < i16 < u16 < i32 < u32 <
// i64 < u64 < f32 < f64.
var numericRank = map[Tag]int{
	TagInt8: 0, TagUInt8: 1, TagInt16: 2, TagUInt16: 3,
	TagInt32: 4, TagUInt32: 5, TagInt64: 6, TagUInt64: 7,
	TagFloat32: 8, TagFloat64: 9,
}

var unsignedTags = map[Tag]bool{
	TagUInt8: true, TagUInt16: true, TagUInt32: true, TagUInt64: true,
}

var signedTags = map[Tag]bool{
	TagInt8: true, TagInt16: true, TagInt32: true, TagInt64: true,
}

var floatTags = map[Tag]bool{TagFloat32: true, TagFloat64: true}

// IsNumeric reports whether tag participates in the numeric lattice.
func IsNumeric(tag Tag) bool {
	_, ok := numericRank[tag]
	return ok
}

func widthOf(tag Tag) int {
	switch tag {
	case TagInt8, TagUInt8:
		return 8
	case TagInt16, TagUInt16:
		return 16
	case TagInt32, TagUInt32, TagFloat32:
		return 32
	case TagInt64, TagUInt64, TagFloat64:
		return 64
	default:
		return 0
	}
}

// StaticallySafeWiden reports whether a `from -> to` numeric cast is
// statically safe: to appears at or after from in the lattice, and
// unsigned->signed requires the target width strictly greater.
func StaticallySafeWiden(from, to Tag) bool {
	fr, ok1 := numericRank[from]
	tr, ok2 := numericRank[to]

	if !ok1 || !ok2 || tr < fr {
		return false
	}

	if unsignedTags[from] && signedTags[to] {
		return widthOf(to) > widthOf(from)
	}

	return true
}

// WiderOf returns whichever of a, b is later in the numeric lattice. Both
// must be numeric tags.
func WiderOf(a, b Tag) Tag {
	if numericRank[a] >= numericRank[b] {
		return a
	}

	return b
}
