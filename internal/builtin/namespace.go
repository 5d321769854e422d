// Package builtin provides the Namespace resource kind: a built-in,
// cluster-scoped kind whose existence is the precondition for writing any
// namespaced resource into that namespace.
package builtin

import "github.com/NiklasRosenstein/equilibrium/internal/resource"

// NamespaceType is the registration unit for the built-in Namespace kind.
var NamespaceType = resource.Type{APIVersion: "v1", Kind: "Namespace"}

// NamespaceSpec is the (empty) spec payload of a Namespace resource.
type NamespaceSpec struct{}

// Namespaced always returns false: Namespace itself is cluster-scoped.
func (NamespaceSpec) Namespaced() bool { return false }

// DecodeNamespaceSpec ignores its input; NamespaceSpec carries no fields.
func DecodeNamespaceSpec(map[string]any) (any, error) {
	return NamespaceSpec{}, nil
}

// EncodeNamespaceSpec returns an empty tree; NamespaceSpec carries no
// fields.
func EncodeNamespaceSpec(any) (map[string]any, error) {
	return map[string]any{}, nil
}
