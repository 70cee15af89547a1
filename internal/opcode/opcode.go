// Package opcode defines the bytecode instruction set the VirtualMachine
// executes: a dense numeric Opcode encoding and the 4-tuple Instruction
// format.
package opcode

// Opcode is a dense numeric instruction code. The set is closed.
type Opcode int

const (
	// Stack
	PushInt Opcode = iota
	PushFloat
	PushString
	PushBool
	PushNull
	Pop
	Dup
	Swap

	// Variables
	StoreVar
	LoadVar
	StoreTemp
	LoadTemp
	ClearTemp
	LoadThis

	// Arithmetic
	Add
	Sub
	Mul
	Div
	Mod
	Pow
	Negate

	// Comparison
	Eq
	Ne
	Lt
	Le
	Gt
	Ge

	// Logic
	And
	Or
	Not

	// String
	InterpolateString
	Concat

	// Control
	Jump
	JumpIfTrue
	JumpIfFalse
	Call
	Return

	// Functions
	BeginFunction
	EndFunction
	DefineParam
	DefineOptionalParam
	SetDefaultValue

	// Classes
	BeginClass
	EndClass
	GetProperty
	SetProperty

	// Collections
	CreateList
	ListAppend
	CreateDict
	DictSet
	CreateRange
	SetRangeStep
	GetIndex
	SetIndex

	// Iteration
	GetIterator
	IteratorHasNext
	IteratorNext
	IteratorNextKeyValue

	// Scope
	BeginScope
	EndScope

	// Exceptions
	BeginTry
	EndTry
	BeginHandler
	EndHandler
	Throw
	StoreException

	// Concurrency
	BeginParallel
	EndParallel
	BeginConcurrent
	EndConcurrent
	Await

	// Match
	MatchPattern

	// Modules
	Import

	// Enums
	BeginEnum
	EndEnum
	DefineEnumVariant
	DefineEnumVariantWithType

	// I/O & Debug
	Print
	DebugPrint

	// Memory
	LoadConst
	StoreConst
	LoadMember
	StoreMember
)

var names = [...]string{
	"PushInt", "PushFloat", "PushString", "PushBool", "PushNull", "Pop", "Dup", "Swap",
	"StoreVar", "LoadVar", "StoreTemp", "LoadTemp", "ClearTemp", "LoadThis",
	"Add", "Sub", "Mul", "Div", "Mod", "Pow", "Negate",
	"Eq", "Ne", "Lt", "Le", "Gt", "Ge",
	"And", "Or", "Not",
	"InterpolateString", "Concat",
	"Jump", "JumpIfTrue", "JumpIfFalse", "Call", "Return",
	"BeginFunction", "EndFunction", "DefineParam", "DefineOptionalParam", "SetDefaultValue",
	"BeginClass", "EndClass", "GetProperty", "SetProperty",
	"CreateList", "ListAppend", "CreateDict", "DictSet", "CreateRange", "SetRangeStep", "GetIndex", "SetIndex",
	"GetIterator", "IteratorHasNext", "IteratorNext", "IteratorNextKeyValue",
	"BeginScope", "EndScope",
	"BeginTry", "EndTry", "BeginHandler", "EndHandler", "Throw", "StoreException",
	"BeginParallel", "EndParallel", "BeginConcurrent", "EndConcurrent", "Await",
	"MatchPattern",
	"Import",
	"BeginEnum", "EndEnum", "DefineEnumVariant", "DefineEnumVariantWithType",
	"Print", "DebugPrint",
	"LoadConst", "StoreConst", "LoadMember", "StoreMember",
}

func (op Opcode) String() string {
	if int(op) >= 0 && int(op) < len(names) {
		return names[op]
	}

	return "Unknown"
}

// Instruction is the 4-tuple (opcode, source-line, int-operand,
// string-operand) every bytecode slot carries.
type Instruction struct {
	Op    Opcode
	Line  int
	IntOp int
	StrOp string
}

// propagating is the set of opcodes the `?` propagation contract applies
// to: a dedicated set rather than a convention baked into the VM dispatch
// switch, so the contract's membership is inspectable and testable on its
// own.
var propagating = map[Opcode]bool{
	Call: true,
}

// IsPropagating reports whether op is tagged "propagating": given an
// error-bearing fallible Value, it returns that value to the caller
// unchanged.
func IsPropagating(op Opcode) bool { return propagating[op] }
