package resource

import "fmt"

// SpecType is the contract every registered (apiVersion, kind) pair
// implements. Namespaced is a compile-time flag: it is a method rather
// than a struct field because implementations are typically stateless
// singletons registered once per Type, mirroring how the teacher's
// *_types.go files attach behavior to otherwise-data structs.
type SpecType interface {
	// Namespaced reports whether resources of this type require a
	// namespace.
	Namespaced() bool
}

// Validatable is implemented by spec types that want admission-time
// validation. Not every SpecType needs one (Namespace itself doesn't).
type Validatable interface {
	Validate() error
}

// Spec is the sum type `Typed(T) | Generic(map)` from the design notes:
// a resource carries either a structurally typed spec (known registered
// kind) or a generic key/value tree (manifest-loaded, pre-admission). The
// store persists the generic form only.
type Spec struct {
	typed   any
	generic map[string]any
}

// NewGenericSpec wraps a generic key/value tree.
func NewGenericSpec(tree map[string]any) Spec {
	if tree == nil {
		tree = map[string]any{}
	}
	return Spec{generic: tree}
}

// NewTypedSpec wraps a strongly typed spec value.
func NewTypedSpec(value any) Spec {
	return Spec{typed: value}
}

// IsTyped reports whether this spec currently holds a strongly typed
// value rather than a generic tree.
func (s Spec) IsTyped() bool {
	return s.typed != nil
}

// Generic returns the generic tree form. Callers must check IsTyped first
// — calling Generic on a typed spec panics, since the store never holds a
// mixed spec and callers that need the tree form should go through
// IntoGeneric.
func (s Spec) Generic() map[string]any {
	if s.typed != nil {
		panic("resource: Generic() called on a typed spec; call IntoGeneric instead")
	}
	return s.generic
}

// Typed returns the strongly typed value. Panics if the spec is generic.
func (s Spec) Typed() any {
	if s.typed == nil {
		panic("resource: Typed() called on a generic spec; call IntoTyped instead")
	}
	return s.typed
}

// IntoTyped converts a generic spec into its strongly typed form using the
// decode function supplied by the spec type's registration (typically a
// JSON round-trip: marshal the generic tree, unmarshal into a pointer to
// the concrete Go type). Already-typed specs pass through unchanged.
func (s Spec) IntoTyped(decode func(map[string]any) (any, error)) (Spec, error) {
	if s.typed != nil {
		return s, nil
	}
	typed, err := decode(s.generic)
	if err != nil {
		return Spec{}, fmt.Errorf("decode spec: %w", err)
	}
	return NewTypedSpec(typed), nil
}

// IntoGeneric converts a typed spec back into its generic tree form using
// the encode function supplied by the spec type's registration (typically
// a JSON round-trip: marshal the concrete Go type, unmarshal into
// map[string]any). Already-generic specs pass through unchanged.
func (s Spec) IntoGeneric(encode func(any) (map[string]any, error)) (Spec, error) {
	if s.typed == nil {
		return s, nil
	}
	tree, err := encode(s.typed)
	if err != nil {
		return Spec{}, fmt.Errorf("encode spec: %w", err)
	}
	return NewGenericSpec(tree), nil
}
