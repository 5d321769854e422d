package control

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/NiklasRosenstein/equilibrium/internal/builtin"
	"github.com/NiklasRosenstein/equilibrium/internal/obsv"
	"github.com/NiklasRosenstein/equilibrium/internal/resource"
	"github.com/NiklasRosenstein/equilibrium/internal/store"
)

// Context wires a ResourceStore into the four registries — resource
// types, services, controllers and, through ResourceRegistry, admission —
// and drives reconcile sweeps across every registered controller. It is
// the equivalent of the teacher's manager.Manager: one process-wide root
// object that every controller is bound to at startup.
type Context struct {
	Types       *ResourceTypeRegistry
	Services    *ServiceRegistry
	Controllers *ControllerRegistry
	Resources   *ResourceRegistry

	log     logr.Logger
	metrics *obsv.Metrics
}

// Option configures a Context at construction.
type Option func(*Context)

// WithLogger sets the logger used for sweep-level diagnostics.
func WithLogger(log logr.Logger) Option {
	return func(c *Context) { c.log = log }
}

// WithMetrics attaches a Metrics instance; every Reconcile sweep then
// records its duration and outcome against it.
func WithMetrics(m *obsv.Metrics) Option {
	return func(c *Context) { c.metrics = m }
}

// NewContext builds a Context over backing, registering the built-in
// Namespace kind so every store implementation can rely on it being
// resolvable without each caller registering it by hand.
func NewContext(backing store.ResourceStore, opts ...Option) (*Context, error) {
	types := NewResourceTypeRegistry()
	if err := types.Register(builtin.NamespaceType, SpecCodec{
		SpecType: builtin.NamespaceSpec{},
		Decode:   builtin.DecodeNamespaceSpec,
		Encode:   builtin.EncodeNamespaceSpec,
	}); err != nil {
		return nil, fmt.Errorf("register builtin namespace type: %w", err)
	}

	c := &Context{
		Types:       types,
		Services:    NewServiceRegistry(),
		Controllers: NewControllerRegistry(),
		Resources:   NewResourceRegistry(backing, types),
		log:         logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Reconcile runs one sweep: every registered ResourceController, in
// registration order. A controller failure aborts the sweep and is
// returned to the caller; controllers already run in this sweep keep
// their effects (a sweep is not transactional across controllers).
func (c *Context) Reconcile() error {
	start := time.Now()
	err := c.reconcile()
	if c.metrics != nil {
		c.metrics.RecordSweep(context.Background(), err, time.Since(start).Seconds())
	}
	return err
}

func (c *Context) reconcile() error {
	for _, ctrl := range c.Controllers.ResourceControllers() {
		if err := ctrl.Reconcile(c.Resources); err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
	}
	return nil
}

// Put runs the admission-and-write sequence for r under a freshly acquired
// lock scoped to r's URI — the convenience entry point for callers (tests,
// manifest loaders, example consumers) that don't need to hold the lock
// across additional reads.
func (c *Context) Put(r resource.Resource) (resource.Resource, error) {
	uri := r.URI()
	var out resource.Resource
	err := c.Resources.WithLock(store.LockRequest{
		APIVersion: uri.APIVersion,
		Kind:       uri.Kind,
		Namespace:  uri.Namespace,
		Name:       uri.Name,
		Block:      true,
	}, func(lock store.LockID) error {
		var err error
		out, err = c.Resources.Put(lock, c.Controllers.AdmissionChain(), r)
		return err
	})
	return out, err
}

// Delete runs Delete for uri under a freshly acquired lock.
func (c *Context) Delete(uri resource.URI, doRaise bool, force bool) error {
	return c.Resources.WithLock(store.LockRequest{
		APIVersion: uri.APIVersion,
		Kind:       uri.Kind,
		Namespace:  uri.Namespace,
		Name:       uri.Name,
		Block:      true,
	}, func(lock store.LockID) error {
		return c.Resources.Delete(lock, uri, doRaise, force)
	})
}

// Search runs req under a freshly acquired lock scoped to req's
// apiVersion/kind, the read counterpart to Put/Delete for callers (the
// CLI, tests) that don't need to hold the lock across further reads.
func (c *Context) Search(req store.SearchRequest) ([]resource.URI, error) {
	var out []resource.URI
	err := c.Resources.WithLock(store.LockRequest{
		APIVersion: req.APIVersion,
		Kind:       req.Kind,
		Block:      true,
	}, func(lock store.LockID) error {
		var err error
		out, err = c.Resources.Search(lock, req)
		return err
	})
	return out, err
}

// Get reads uri under a freshly acquired lock.
func (c *Context) Get(uri resource.URI) (resource.Resource, bool, error) {
	var out resource.Resource
	var ok bool
	err := c.Resources.WithLock(store.LockRequest{
		APIVersion: uri.APIVersion,
		Kind:       uri.Kind,
		Namespace:  uri.Namespace,
		Name:       uri.Name,
		Block:      true,
	}, func(lock store.LockID) error {
		var err error
		out, ok, err = c.Resources.Get(lock, uri)
		return err
	})
	return out, ok, err
}
