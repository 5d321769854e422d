package rules

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Params is an insertion-ordered mapping from type to value, with at most
// one value per type — the bundle threaded through rule resolution and
// execution (subjects, caller-supplied params, and earlier rules'
// outputs all travel as Params).
type Params struct {
	order  []reflect.Type
	values map[reflect.Type]any
}

// NewParams builds an empty Params bundle.
func NewParams() Params {
	return Params{values: make(map[reflect.Type]any)}
}

// Put inserts or replaces the value for value's dynamic type, returning
// the updated bundle. Params is used as an immutable value type: Put,
// Merge and Filter all return a new Params rather than mutating the
// receiver in place, mirroring the "pure function" framing of rules.
func (p Params) Put(value any) Params {
	t := reflect.TypeOf(value)
	out := p.clone()
	if _, exists := out.values[t]; !exists {
		out.order = append(out.order, t)
	}
	out.values[t] = value
	return out
}

// Get returns the value registered for t, if any.
func (p Params) Get(t reflect.Type) (any, bool) {
	v, ok := p.values[t]
	return v, ok
}

// Has reports whether t has a value in p.
func (p Params) Has(t reflect.Type) bool {
	_, ok := p.values[t]
	return ok
}

// Types returns the bundle's types in insertion order.
func (p Params) Types() []reflect.Type {
	out := make([]reflect.Type, len(p.order))
	copy(out, p.order)
	return out
}

// Len returns the number of distinct types held.
func (p Params) Len() int { return len(p.order) }

// Merge combines p and other with right-hand precedence: values in other
// override values in p for shared types; types unique to other are
// appended after p's own types, preserving each side's relative order.
func (p Params) Merge(other Params) Params {
	out := p.clone()
	for _, t := range other.order {
		if _, exists := out.values[t]; !exists {
			out.order = append(out.order, t)
		}
		out.values[t] = other.values[t]
	}
	return out
}

// Filter projects p down to exactly the given types, in p's insertion
// order. Types absent from p are silently skipped.
func (p Params) Filter(types []reflect.Type) Params {
	out := NewParams()
	want := make(map[reflect.Type]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	for _, t := range p.order {
		if want[t] {
			out.order = append(out.order, t)
			out.values[t] = p.values[t]
		}
	}
	return out
}

func (p Params) clone() Params {
	out := Params{
		order:  make([]reflect.Type, len(p.order)),
		values: make(map[reflect.Type]any, len(p.values)),
	}
	copy(out.order, p.order)
	for k, v := range p.values {
		out.values[k] = v
	}
	return out
}

// hasherRegistry maps a type to a custom content hash function, letting
// callers hash a value by identity rather than full structural equality
// (e.g. a Resource by its URI rather than its entire spec tree).
var hasherRegistry = struct {
	mu      sync.RWMutex
	hashers map[reflect.Type]func(any) uint64
}{hashers: make(map[reflect.Type]func(any) uint64)}

// RegisterHasher installs a custom hash function for t, used by
// Params.Hash instead of the default structural hash.
func RegisterHasher(t reflect.Type, hash func(any) uint64) {
	hasherRegistry.mu.Lock()
	defer hasherRegistry.mu.Unlock()
	hasherRegistry.hashers[t] = hash
}

func lookupHasher(t reflect.Type) (func(any) uint64, bool) {
	hasherRegistry.mu.RLock()
	defer hasherRegistry.mu.RUnlock()
	h, ok := hasherRegistry.hashers[t]
	return h, ok
}

// Hash returns an order-independent content hash of p, used as half of
// the cache key (rule.id, hash(params)). Per-type values are hashed
// individually — via a registered hasher if one exists for that type,
// else via the value's %#v representation — and combined with XOR so the
// combined result does not depend on insertion order.
func (p Params) Hash() uint64 {
	var combined uint64
	for t, v := range p.values {
		var h uint64
		if custom, ok := lookupHasher(t); ok {
			h = custom(v)
		} else {
			h = xxhash.Sum64String(fmt.Sprintf("%s:%#v", t.String(), v))
		}
		combined ^= h
	}
	return combined
}
