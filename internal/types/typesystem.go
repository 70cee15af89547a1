package types

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// descriptorCacheSize bounds the canonicalized-descriptor LRU.
const descriptorCacheSize = 4096

// TypeSystem creates and caches descriptors, checks compatibility, widens
// numerics, constructs Option/Result/ErrorUnion, and performs safe casts.
// Not a singleton: every VirtualMachine carries its own.
type TypeSystem struct {
	mu         sync.Mutex
	cache      *lru.Cache[string, *Descriptor]
	errorTypes *ErrorTypeRegistry
}

// New constructs a fresh TypeSystem with its own descriptor cache and
// error-type registry.
func New() *TypeSystem {
	cache, err := lru.New[string, *Descriptor](descriptorCacheSize)
	if err != nil {
		// descriptorCacheSize is a positive literal; lru.New only errors on
		// a non-positive size.
		panic(fmt.Sprintf("types: failed to build descriptor cache: %v", err))
	}

	return &TypeSystem{
		cache:      cache,
		errorTypes: newErrorTypeRegistry(),
	}
}

// ErrorTypes returns the registry backing create_error_union's "errs must
// be registered" invariant.
func (ts *TypeSystem) ErrorTypes() *ErrorTypeRegistry { return ts.errorTypes }

// intern returns the canonical *Descriptor for d's structural signature,
// caching it so repeated construction of the same shape returns an
// identical pointer. Purely an identity convenience: two descriptors with
// equal signatures are structurally equal either way.
func (ts *TypeSystem) intern(d *Descriptor) *Descriptor {
	sig := d.Signature()

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if cached, ok := ts.cache.Get(sig); ok {
		return cached
	}

	ts.cache.Add(sig, d)

	return d
}

// IsCompatible reports whether a Value of type `from` may be used where
// `to` is expected.
func (ts *TypeSystem) IsCompatible(from, to *Descriptor) bool {
	if from == nil || to == nil {
		return from == to
	}

	if from.StructurallyEqual(to) {
		return true
	}

	if to.Tag == TagAny {
		return true
	}

	if from.Tag == TagNil {
		return true
	}

	if IsNumeric(from.Tag) && IsNumeric(to.Tag) {
		return StaticallySafeWiden(from.Tag, to.Tag)
	}

	if from.Tag == TagList && to.Tag == TagList {
		return ts.IsCompatible(from.Element, to.Element)
	}

	if from.Tag == TagDict && to.Tag == TagDict {
		return ts.IsCompatible(from.Key, to.Key) && ts.IsCompatible(from.Value, to.Value)
	}

	if to.Tag == TagUnion {
		for _, member := range to.UnionMembers {
			if ts.IsCompatible(from, member) {
				return true
			}
		}
	}

	return false
}

// CommonType computes the widest type two values may be promoted to.
// Any absorbs, Nil takes on the other operand's identity, numerics
// widen per the lattice, otherwise a canonicalized Union is constructed.
func (ts *TypeSystem) CommonType(a, b *Descriptor) *Descriptor {
	if a.StructurallyEqual(b) {
		return a
	}

	if a.Tag == TagAny || b.Tag == TagAny {
		return Simple(TagAny)
	}

	if a.Tag == TagNil {
		return b
	}

	if b.Tag == TagNil {
		return a
	}

	if IsNumeric(a.Tag) && IsNumeric(b.Tag) {
		return Simple(WiderOf(a.Tag, b.Tag))
	}

	if ts.IsCompatible(a, b) {
		return b
	}

	if ts.IsCompatible(b, a) {
		return a
	}

	return ts.CreateUnion([]*Descriptor{a, b})
}

// CreateUnion canonicalizes a member set: recursively expand any Union
// member, de-duplicate by structural equality, collapse a singleton back
// to its sole member, otherwise return a fresh canonicalized Union.
func (ts *TypeSystem) CreateUnion(members []*Descriptor) *Descriptor {
	flat := make([]*Descriptor, 0, len(members))

	var flatten func(d *Descriptor)
	flatten = func(d *Descriptor) {
		if d.Tag == TagUnion {
			for _, m := range d.UnionMembers {
				flatten(m)
			}

			return
		}

		flat = append(flat, d)
	}

	for _, m := range members {
		flatten(m)
	}

	deduped := make([]*Descriptor, 0, len(flat))

	for _, candidate := range flat {
		duplicate := false

		for _, existing := range deduped {
			if existing.StructurallyEqual(candidate) {
				duplicate = true
				break
			}
		}

		if !duplicate {
			deduped = append(deduped, candidate)
		}
	}

	if len(deduped) == 1 {
		return deduped[0]
	}

	return ts.intern(&Descriptor{Tag: TagUnion, UnionMembers: deduped})
}

// CreateErrorUnion builds an ErrorUnion(success, errs) descriptor. When
// generic is false, every name in errs must already be registered in the
// ErrorTypeRegistry, so no error-type name is ever silently invented.
func (ts *TypeSystem) CreateErrorUnion(success *Descriptor, errs []string, generic bool) (*Descriptor, error) {
	if !generic {
		for _, name := range errs {
			if !ts.errorTypes.IsRegistered(name) {
				return nil, fmt.Errorf("types: unknown error type %q", name)
			}
		}
	}

	return ts.intern(&Descriptor{
		Tag:               TagErrorUnion,
		ErrorUnionSuccess: success,
		ErrorUnionGeneric: generic,
		ErrorUnionErrors:  append([]string(nil), errs...),
	}), nil
}

// OptionSomeVariant/NoneVariant name the two Union members Option(T) expands to.
const (
	OptionSomeVariant = "Some"
	OptionNoneVariant = "None"
)

// ResultOkVariant/ErrVariant name Result(T,E)'s two Union members.
const (
	ResultOkVariant  = "Success"
	ResultErrVariant = "Error"
)

// CreateOption builds Option(T), equivalent to Union{Some(T), None}.
func (ts *TypeSystem) CreateOption(inner *Descriptor) *Descriptor {
	return ts.intern(&Descriptor{
		Tag: TagOption,
		UnionMembers: []*Descriptor{
			{Tag: TagSum, ClassName: OptionSomeVariant, SumVariants: []*Descriptor{inner}},
			{Tag: TagSum, ClassName: OptionNoneVariant},
		},
	})
}

// CreateResult builds Result(T,E), equivalent to Union{Success(T), Error(E)}.
func (ts *TypeSystem) CreateResult(ok, errType *Descriptor) *Descriptor {
	return ts.intern(&Descriptor{
		Tag: TagResult,
		UnionMembers: []*Descriptor{
			{Tag: TagSum, ClassName: ResultOkVariant, SumVariants: []*Descriptor{ok}},
			{Tag: TagSum, ClassName: ResultErrVariant, SumVariants: []*Descriptor{errType}},
		},
	})
}
