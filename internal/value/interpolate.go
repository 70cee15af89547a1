package value

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Interpolate concatenates the string-coerced parts in order and
// canonicalizes the result to NFC, so interpolation output is always
// normalized UTF-8 regardless of how the parts were composed.
func Interpolate(parts ...Value) Value {
	var b strings.Builder

	for _, p := range parts {
		b.WriteString(p.String())
	}

	return Str(norm.NFC.String(b.String()))
}
