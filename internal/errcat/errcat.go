// Package errcat provides the stage-prefixed error catalog shared by every
// stage of the Limitly pipeline. The virtual machine only ever raises
// Runtime-stage errors, but the Stage range table is kept complete so a
// front-end (scanner, parser, semantic checker, bytecode emitter) can plug
// into the same catalog without renumbering.
package errcat

import (
	"fmt"
	"strings"
)

// Stage identifies which pipeline stage raised an error.
type Stage int

const (
	StageScanning Stage = iota
	StageParsing
	StageSemantic
	StageBytecode
	StageRuntime
	StageCompile
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "scanning"
	case StageParsing:
		return "parsing"
	case StageSemantic:
		return "semantic"
	case StageBytecode:
		return "bytecode"
	case StageRuntime:
		return "runtime"
	case StageCompile:
		return "compile"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// codeRange is the reserved numeric range for a stage's error codes.
type codeRange struct {
	low, high int
}

var stageRanges = map[Stage]codeRange{
	StageScanning: {1, 99},
	StageParsing:  {100, 199},
	StageSemantic: {200, 299},
	StageBytecode: {300, 399},
	StageRuntime:  {400, 499},
	StageCompile:  {600, 699},
}

// InRange reports whether code falls inside the stage's reserved range.
func (s Stage) InRange(code int) bool {
	r, ok := stageRanges[s]
	return ok && code >= r.low && code <= r.high
}

// Kind is a stable error identity, e.g. "DivisionByZero" or "DanglingRef".
type Kind string

// Runtime kinds.
const (
	KindDivisionByZero     Kind = "DivisionByZero"
	KindModuloByZero       Kind = "ModuloByZero"
	KindStackOverflow      Kind = "StackOverflow"
	KindStackUnderflow     Kind = "StackUnderflow"
	KindNullReference      Kind = "NullReference"
	KindOverflowError      Kind = "OverflowError"
	KindNonExhaustiveMatch Kind = "NonExhaustiveMatch"
	KindDanglingRef        Kind = "DanglingRef"
	KindCancelled          Kind = "Cancelled"
	KindTimedOut           Kind = "TimedOut"
	KindHostError          Kind = "HostError"
	KindTypeError          Kind = "TypeError"
	KindUnwrapNone         Kind = "UnwrapNone"
	KindUnknownErrorType   Kind = "UnknownErrorType"
	KindVisibilityViolation Kind = "VisibilityViolation"
	KindInvalidAllocation  Kind = "InvalidAllocation"
	KindOutOfMemory        Kind = "OutOfMemory"
	KindParseError         Kind = "ParseError"
)

// kindCodes assigns the deterministic numeric code within StageRuntime
// for every cataloged runtime Kind. The mapping is stable across releases
// and every code falls inside the stage's reserved range.
var kindCodes = map[Kind]int{
	KindDivisionByZero:      400,
	KindModuloByZero:        401,
	KindStackOverflow:       402,
	KindStackUnderflow:      403,
	KindNullReference:       404,
	KindOverflowError:       405,
	KindNonExhaustiveMatch:  406,
	KindDanglingRef:         407,
	KindCancelled:           408,
	KindTimedOut:            409,
	KindHostError:           410,
	KindTypeError:           411,
	KindUnwrapNone:          412,
	KindUnknownErrorType:    413,
	KindVisibilityViolation: 414,
	KindInvalidAllocation:   415,
	KindOutOfMemory:         416,
	KindParseError:          417,
}

// RuntimeError is the structured record produced when a VM error escapes
// the outermost context.
type RuntimeError struct {
	Code        int
	Stage       Stage
	Kind        Kind
	Description string
	File        string
	Line        int
	Column      int
	Token       string
	Hint        string
	Suggestion  string
	CausedBy    *RuntimeError
	ContextLines []string
	Context     map[string]any
}

// New constructs a RuntimeError for the given Kind, looking up its
// deterministic code and attaching the catalog's hint/suggestion.
func New(kind Kind, description string, line int) *RuntimeError {
	code, ok := kindCodes[kind]
	if !ok {
		code = kindCodes[KindHostError]
	}

	e := &RuntimeError{
		Code:        code,
		Stage:       StageRuntime,
		Kind:        kind,
		Description: description,
		Line:        line,
	}
	e.Hint, e.Suggestion = lookupHint(kind, description)

	return e
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "E%03d [%s] %s: %s", e.Code, e.Stage, e.Kind, e.Description)

	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}

	if e.CausedBy != nil {
		fmt.Fprintf(&b, "\ncaused by: %s", e.CausedBy.Error())
	}

	return b.String()
}

// Unwrap exposes CausedBy to errors.Is/errors.As.
func (e *RuntimeError) Unwrap() error {
	if e.CausedBy == nil {
		return nil
	}

	return e.CausedBy
}

// WithCause attaches an inner error and returns the receiver for chaining.
func (e *RuntimeError) WithCause(cause *RuntimeError) *RuntimeError {
	e.CausedBy = cause
	return e
}

// WithContext attaches arbitrary diagnostic context and returns the receiver.
func (e *RuntimeError) WithContext(key string, value any) *RuntimeError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}

	e.Context[key] = value

	return e
}

// hintEntry is one row of the seeded contextual-hint catalog. Hints are
// matched against (kind, message) and are never part of an error's
// identity.
type hintEntry struct {
	kind       Kind
	contains   string
	hint       string
	suggestion string
}

var hintCatalog = []hintEntry{
	{KindDivisionByZero, "", "Division by zero", "guard the divisor with a zero check before dividing"},
	{KindModuloByZero, "", "Modulo by zero", "guard the divisor with a zero check before taking a remainder"},
	{KindDanglingRef, "", "the referenced value's generation has already been released", "keep the Ref inside the scope that allocated it, or copy the value out before exiting that scope"},
	{KindNonExhaustiveMatch, "", "no arm matched the value", "add an arm for every variant of the matched type, or a wildcard arm"},
	{KindUnwrapNone, "", "unwrap called on an empty Option", "check is_some before unwrap_some, or use unwrap_or"},
	{KindVisibilityViolation, "", "member is not visible from this call site", "call through a public method, or move the call into the declaring class"},
	{KindOverflowError, "", "value does not fit in the target type", "widen the target type or validate the range before converting"},
	{KindStackOverflow, "", "call stack depth exceeded", "check for unbounded recursion"},
}

func lookupHint(kind Kind, description string) (hint, suggestion string) {
	for _, entry := range hintCatalog {
		if entry.kind != kind {
			continue
		}

		if entry.contains != "" && !strings.Contains(description, entry.contains) {
			continue
		}

		return entry.hint, entry.suggestion
	}

	return "", ""
}
