package control

import (
	"github.com/NiklasRosenstein/equilibrium/internal/admission"
)

// ResourceController is a single reconciler bound to one resource Type. It
// is defined here, rather than in internal/controller, so that
// ControllerRegistry can hold a slice of them without importing the
// package that implements them — internal/controller.CRUDController
// satisfies this interface.
type ResourceController interface {
	// Reconcile runs one sweep of this controller's resource Type against
	// the given ResourceRegistry.
	Reconcile(reg *ResourceRegistry) error
}

// ControllerRegistry holds the ordered set of resource controllers that
// make up a reconcile sweep, plus the admission chain every write passes
// through before being persisted.
type ControllerRegistry struct {
	controllers []ResourceController
	admission   *admission.Chain
}

// NewControllerRegistry creates an empty registry with an empty admission
// chain.
func NewControllerRegistry() *ControllerRegistry {
	return &ControllerRegistry{admission: admission.NewChain()}
}

// RegisterResourceController appends ctrl to the end of the sweep order.
func (c *ControllerRegistry) RegisterResourceController(ctrl ResourceController) {
	c.controllers = append(c.controllers, ctrl)
}

// RegisterAdmissionController appends ctrl to the end of the admission
// chain.
func (c *ControllerRegistry) RegisterAdmissionController(ctrl admission.Controller) {
	c.admission.Append(ctrl)
}

// ResourceControllers returns the registered controllers in sweep order.
func (c *ControllerRegistry) ResourceControllers() []ResourceController {
	out := make([]ResourceController, len(c.controllers))
	copy(out, c.controllers)
	return out
}

// AdmissionChain returns the registry's admission chain.
func (c *ControllerRegistry) AdmissionChain() *admission.Chain {
	return c.admission
}
