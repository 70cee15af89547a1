// Package functions implements the function registry: per-name
// signatures, user-function bytecode ranges, native callbacks, and the
// parameter-binding half of the call protocol.
package functions

import (
	"fmt"
	"sync"

	"github.com/limitly-lang/limvm/internal/types"
	"github.com/limitly-lang/limvm/internal/value"
)

// Param is one formal parameter: a name, a type, and, for optional
// parameters, the bytecode offset of its default-value expression.
type Param struct {
	Name          string
	Type          *types.Descriptor
	Optional      bool
	DefaultOffset int // meaningful iff Optional
}

// Signature is a function's parameter list and return type.
type Signature struct {
	Params []Param
	Return *types.Descriptor
}

// Native is a host callback: an ordered sequence of Values in, one Value
// out.
type Native func(args []value.Value) (value.Value, error)

// Entry is one FunctionRegistry row: either a user function with bytecode
// start/end offsets, or a native callback.
type Entry struct {
	Name      string
	Signature Signature

	// User functions.
	IsNative    bool
	StartOffset int
	EndOffset   int

	// Native functions.
	Callback Native
}

// Registry stores user and native function entries by name. Registration
// and lookup are mutex-guarded so parallel contexts can resolve calls
// while the host registers natives.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// DefineUser registers a user function's signature and bytecode range.
func (r *Registry) DefineUser(name string, sig Signature, start, end int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[name] = &Entry{Name: name, Signature: sig, StartOffset: start, EndOffset: end}
}

// RegisterNative registers a host callback under name.
func (r *Registry) RegisterNative(name string, sig Signature, fn Native) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[name] = &Entry{Name: name, Signature: sig, IsNative: true, Callback: fn}
}

// Lookup returns the named entry, or nil if undefined.
func (r *Registry) Lookup(name string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.entries[name]
}

// BindArgs applies the call protocol's parameter-binding step: positional
// args are matched left-to-right against the signature, optional
// parameters omitted from args are resolved via evalDefault (expected to
// run the default-expr bytecode in the callee's environment, which only
// the VM can do), and the result is a name->Value map ready to install as
// local bindings.
func BindArgs(sig Signature, args []value.Value, evalDefault func(offset int) (value.Value, error)) (map[string]value.Value, error) {
	bound := make(map[string]value.Value, len(sig.Params))

	for i, p := range sig.Params {
		switch {
		case i < len(args):
			bound[p.Name] = args[i]
		case p.Optional:
			v, err := evalDefault(p.DefaultOffset)
			if err != nil {
				return nil, err
			}

			bound[p.Name] = v
		default:
			return nil, fmt.Errorf("functions: missing required argument %q", p.Name)
		}
	}

	return bound, nil
}
