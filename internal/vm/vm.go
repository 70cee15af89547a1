// Package vm implements the VirtualMachine: global VM state, per-context
// execution state, and the fetch-decode-dispatch loop driving every
// opcode family: arithmetic, comparison, string interpolation, iteration,
// exception unwinding, and the cooperative concurrency model.
//
// Execution is fully per-context: every mutable piece of state a dispatch
// handler touches lives on *VMContext, not on *VirtualMachine, except the
// registries (each guarded by its own mutex), the global environment and
// the constant pool (written under the VM mutex), and the bytecode vector,
// all shared across contexts.
package vm

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/limitly-lang/limvm/internal/classes"
	"github.com/limitly-lang/limvm/internal/functions"
	"github.com/limitly-lang/limvm/internal/memregion"
	"github.com/limitly-lang/limvm/internal/opcode"
	"github.com/limitly-lang/limvm/internal/types"
	"github.com/limitly-lang/limvm/internal/value"
)

// VirtualMachine is the state shared by every context: the bytecode
// vector, the three registries plus the ErrorTypeRegistry reachable
// through Types, the root memory region, and the mutex guarding registry
// mutation.
type VirtualMachine struct {
	mu sync.Mutex

	Bytecode  []opcode.Instruction
	Types     *types.TypeSystem
	Classes   *classes.Registry
	Functions *functions.Registry
	Root      *memregion.Region

	// Constants is the host-populated constant pool LoadConst/StoreConst
	// address by index.
	Constants []value.Value

	// globals is the mutex-guarded global environment: the scope
	// StoreVar/LoadVar fall back to outside any call frame.
	globals map[string]value.Value

	// debug is the sink DebugPrint writes to: an injectable io.Writer
	// rather than a bespoke logger type.
	debug io.Writer
}

// New constructs a VirtualMachine over a fixed bytecode vector with fresh
// registries and a fresh root region.
func New(bytecode []opcode.Instruction) *VirtualMachine {
	return &VirtualMachine{
		Bytecode:  bytecode,
		Types:     types.New(),
		Classes:   classes.New(),
		Functions: functions.New(),
		Root:      memregion.NewRegion(),
		debug:     io.Discard,
	}
}

// SetDebugOutput redirects DebugPrint output (default: discarded).
func (vm *VirtualMachine) SetDebugOutput(w io.Writer) { vm.debug = w }

// Lock/Unlock guard registry mutation and native-function registration;
// callers that mutate vm.Classes/vm.Functions/vm.Types outside of VM
// construction should hold this lock.
func (vm *VirtualMachine) Lock()   { vm.mu.Lock() }
func (vm *VirtualMachine) Unlock() { vm.mu.Unlock() }

// State names the exception state machine's four states.
type State int

const (
	StateRunning State = iota
	StateInTry
	StateUnwinding
	StateHandling
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateInTry:
		return "InTry"
	case StateUnwinding:
		return "Unwinding"
	case StateHandling:
		return "Handling"
	default:
		return "Unknown"
	}
}

// TryFrame records a BeginTry site: the call/operand stack depths to
// unwind back to and the handler's instruction offset.
type TryFrame struct {
	CallDepth    int
	OperandDepth int
	HandlerIP    int
}

// LoopFrame is one loop-control stack entry. No opcode in the closed set
// manipulates it directly; a front-end compiler would push/pop it around
// loop constructs to resolve break/continue targets, so it is exposed
// for a future compiler or hand-assembled program rather than wired into
// the dispatch loop itself.
type LoopFrame struct {
	ContinueIP int
	BreakIP    int
}

// CallFrame is one call-stack entry. DeclaringClass is the class whose
// method body owns the currently executing code, nil for free functions
// and for code outside any class, and is what visibility checks on
// nested property/method access use as the accessing class.
type CallFrame struct {
	ReturnIP       int
	Env            *Environment
	DeclaringClass *classes.Definition
	Receiver       *value.Value
	FunctionName   string
}

// Environment is a lexically-scoped variable binding chain; inner
// environments hold a reference to their enclosing scope.
type Environment struct {
	parent *Environment
	vars   map[string]value.Value
}

// NewEnvironment constructs a child environment of parent (nil for the
// root).
func NewEnvironment(parent *Environment) *Environment {
	return &Environment{parent: parent, vars: make(map[string]value.Value)}
}

// Get resolves name by walking outward from this environment.
func (e *Environment) Get(name string) (value.Value, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}

	return value.Value{}, false
}

// Define binds name in this environment, shadowing any outer binding.
func (e *Environment) Define(name string, v value.Value) { e.vars[name] = v }

// Set mutates the nearest existing binding for name, returning false if
// none exists in the chain.
func (e *Environment) Set(name string, v value.Value) bool {
	for cur := e; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			cur.vars[name] = v
			return true
		}
	}

	return false
}

// VMContext is one thread-context's execution state: its own operand
// stack, call stack, environment chain, instruction pointer,
// last-exception slot, and loop-control stack, plus the exception state
// machine and the cooperative-cancellation fields.
type VMContext struct {
	ID uuid.UUID

	// Index is the fork position (0..k-1) a BeginParallel/BeginConcurrent
	// child was spawned at; 0 and meaningless for the root context.
	Index int

	Stack     []value.Value
	Calls     []CallFrame
	Env       *Environment
	IP        int
	LastError *value.Value
	Temps     map[string]value.Value
	LoopStack []LoopFrame
	TryStack  []TryFrame
	State     State

	Region *memregion.Region

	cancelled atomic.Bool
	deadline  *time.Time
}

// Cancel sets the context's cancellation flag; the next suspending opcode
// the context reaches raises Cancelled.
func (ctx *VMContext) Cancel() { ctx.cancelled.Store(true) }

// SetDeadline arms a wall-clock deadline checked at suspension points;
// the next suspending opcode reached after it elapses raises TimedOut.
func (ctx *VMContext) SetDeadline(t time.Time) { ctx.deadline = &t }

// NewContext constructs a root VMContext starting execution at ip.
func (vm *VirtualMachine) NewContext(ip int) *VMContext {
	return &VMContext{
		ID:     uuid.New(),
		Env:    NewEnvironment(nil),
		IP:     ip,
		Temps:  make(map[string]value.Value),
		Region: vm.Root,
	}
}

// childContext constructs a VMContext for a BeginParallel/BeginConcurrent
// fork: its own operand/call stacks (never shared between contexts), the
// parent's region, and the parent's environment as its lexical outer
// scope.
func (vm *VirtualMachine) childContext(parent *VMContext, index, ip int) *VMContext {
	return &VMContext{
		ID:     uuid.New(),
		Index:  index,
		Env:    NewEnvironment(parent.Env),
		IP:     ip,
		Temps:  make(map[string]value.Value),
		Region: parent.Region,
	}
}

// push/pop are the operand-stack primitives every arithmetic/stack
// handler composes.
func (ctx *VMContext) push(v value.Value) { ctx.Stack = append(ctx.Stack, v) }

func (ctx *VMContext) pop() value.Value {
	n := len(ctx.Stack)
	v := ctx.Stack[n-1]
	ctx.Stack = ctx.Stack[:n-1]

	return v
}

func (ctx *VMContext) peek() value.Value { return ctx.Stack[len(ctx.Stack)-1] }

// CurrentClass returns the DeclaringClass of the innermost active call
// frame, or nil if no method is currently executing.
func (ctx *VMContext) CurrentClass() *classes.Definition {
	if len(ctx.Calls) == 0 {
		return nil
	}

	return ctx.Calls[len(ctx.Calls)-1].DeclaringClass
}
