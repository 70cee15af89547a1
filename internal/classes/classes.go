// Package classes implements the class registry: class definitions with
// field/method visibility and inheritance, instance creation, and
// method/field resolution up the superclass chain. Visibility is checked
// at the access site, not at resolution time, so a resolved member can
// still be refused to the caller.
package classes

import (
	"sync"

	"github.com/limitly-lang/limvm/internal/errcat"
	"github.com/limitly-lang/limvm/internal/types"
	"github.com/limitly-lang/limvm/internal/value"
)

// Visibility is a member's access level.
type Visibility int

const (
	VisibilityPrivate Visibility = iota
	VisibilityPublic
	VisibilityProtected
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPrivate:
		return "private"
	case VisibilityPublic:
		return "public"
	case VisibilityProtected:
		return "protected"
	default:
		return "unknown"
	}
}

// Field is one declared field of a class definition.
type Field struct {
	Name         string
	Type         *types.Descriptor
	DefaultStart int // bytecode offset of the default-expr, -1 if none
	Visibility   Visibility
	IsConst      bool
	IsStatic     bool
}

// MethodImpl is either a user bytecode range or a native callback, the
// same native/user split the function registry uses.
type MethodImpl struct {
	StartOffset int
	EndOffset   int
	Native      func(args []value.Value) (value.Value, error)
}

// IsNative reports whether the method is backed by a host callback rather
// than bytecode.
func (m MethodImpl) IsNative() bool { return m.Native != nil }

// Method is one declared method of a class definition.
type Method struct {
	Name       string
	Impl       MethodImpl
	Visibility Visibility
	IsStatic   bool
	IsAbstract bool
	IsFinal    bool
}

// Definition carries a class's name, fields, methods, superclass, and
// interfaces.
type Definition struct {
	Name       string
	Fields     []Field
	Methods    []Method
	Super      *Definition
	Interfaces []string
}

// Registry stores class definitions keyed by name.
type Registry struct {
	mu      sync.Mutex
	classes map[string]*Definition
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{classes: make(map[string]*Definition)}
}

// Define registers a class definition, keyed by name.
func (r *Registry) Define(def *Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.classes[def.Name] = def
}

// Lookup returns the named class definition, or nil if undeclared.
func (r *Registry) Lookup(name string) *Definition {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.classes[name]
}

// ResolveMethod checks the own method table first, then recurses into the
// superclass, returning nil if not found.
func (d *Definition) ResolveMethod(name string) (*Method, *Definition) {
	for i := range d.Methods {
		if d.Methods[i].Name == name {
			return &d.Methods[i], d
		}
	}

	if d.Super != nil {
		return d.Super.ResolveMethod(name)
	}

	return nil, nil
}

// ResolveField applies the same discipline as ResolveMethod.
func (d *Definition) ResolveField(name string) (*Field, *Definition) {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i], d
		}
	}

	if d.Super != nil {
		return d.Super.ResolveField(name)
	}

	return nil, nil
}

// isRelatedTo reports whether `other` is `d` itself or anywhere on its
// superclass chain in either direction, the relation protected access
// requires.
func (d *Definition) isRelatedTo(other *Definition) bool {
	if d == nil || other == nil {
		return false
	}

	for c := d; c != nil; c = c.Super {
		if c == other {
			return true
		}
	}

	for c := other; c != nil; c = c.Super {
		if c == d {
			return true
		}
	}

	return false
}

// CanAccess implements the visibility rules: public always allowed;
// protected allowed iff the accessing class equals the declaring class or
// is a sub-/super-class of it; private allowed iff the accessing class
// equals the declaring class. Const-ness is not an input here: the VM's
// GetProperty skips this check for const fields, so they read as public.
func CanAccess(accessing, declaring *Definition, vis Visibility) bool {
	switch vis {
	case VisibilityPublic:
		return true
	case VisibilityProtected:
		return accessing == declaring || accessing.isRelatedTo(declaring)
	case VisibilityPrivate:
		return accessing == declaring
	default:
		return false
	}
}

// CheckAccess is CanAccess wrapped in the catalog's VisibilityViolation
// error, for call sites that want an error return instead of a bool.
func CheckAccess(accessing, declaring *Definition, memberName string, vis Visibility) error {
	if CanAccess(accessing, declaring, vis) {
		return nil
	}

	return errcat.New(errcat.KindVisibilityViolation,
		"member "+memberName+" is "+vis.String()+" to "+declaring.Name, 0)
}

// CreateInstance allocates a fresh instance with every declared and
// inherited field initialized to Nil; default expressions are evaluated
// lazily by the VM on construction, not here.
func (d *Definition) CreateInstance() *value.Instance {
	fields := make(map[string]value.Value)

	for c := d; c != nil; c = c.Super {
		for _, f := range c.Fields {
			if _, exists := fields[f.Name]; !exists {
				fields[f.Name] = value.Nil()
			}
		}
	}

	return &value.Instance{ClassName: d.Name, Fields: fields}
}
