// Package admission implements the chained pre-write validator/mutator
// pipeline described in §4.3: each controller may mutate labels,
// annotations or spec contents, but must preserve the resource's URI and
// the runtime type of its spec. Grounded on the teacher's
// internal/webhook/*_validator.go ValidateCreate/ValidateUpdate split,
// generalized from two fixed hooks into an ordered chain.
package admission

import (
	"fmt"
	"reflect"

	"github.com/NiklasRosenstein/equilibrium/internal/resource"
)

// Controller is a pure-ish transformer: admit(resource) -> resource.
// Returning an error denies admission.
type Controller interface {
	Admit(r resource.Resource) (resource.Resource, error)
}

// ControllerFunc adapts a plain function to a Controller.
type ControllerFunc func(r resource.Resource) (resource.Resource, error)

func (f ControllerFunc) Admit(r resource.Resource) (resource.Resource, error) {
	return f(r)
}

// Chain runs a sequence of Controllers in registration order, aborting on
// the first error.
type Chain struct {
	controllers []Controller
}

// NewChain builds a Chain over the given controllers, in the order they
// should run.
func NewChain(controllers ...Controller) *Chain {
	return &Chain{controllers: append([]Controller(nil), controllers...)}
}

// Append adds a controller to the end of the chain.
func (c *Chain) Append(ctrl Controller) {
	c.controllers = append(c.controllers, ctrl)
}

// Run admits r through every controller in order. On success it returns
// the (possibly mutated) resource; on failure it returns
// *resource.AdmissionFailedError wrapping the controller's error.
func (c *Chain) Run(r resource.Resource) (resource.Resource, error) {
	uri := r.URI()
	specType := specRuntimeType(r)

	for _, ctrl := range c.controllers {
		out, err := ctrl.Admit(r)
		if err != nil {
			return resource.Resource{}, &resource.AdmissionFailedError{URI: uri, Cause: err}
		}
		if out.URI() != uri {
			return resource.Resource{}, &resource.AdmissionFailedError{
				URI:   uri,
				Cause: fmt.Errorf("admission controller changed the resource URI from %s to %s", uri, out.URI()),
			}
		}
		if got := specRuntimeType(out); got != specType {
			return resource.Resource{}, &resource.AdmissionFailedError{
				URI:   uri,
				Cause: fmt.Errorf("admission controller changed the spec runtime type from %s to %s", specType, got),
			}
		}
		r = out
	}
	return r, nil
}

func specRuntimeType(r resource.Resource) reflect.Type {
	if r.Spec.IsTyped() {
		return reflect.TypeOf(r.Spec.Typed())
	}
	return reflect.TypeOf(map[string]any{})
}
