// Package controller implements the reusable CRUD resource controller
// described in §4.4: a per-kind reconciler that observes an external
// world and keeps one resource kind's controller-owned state in sync with
// it, translated from the teacher's GitDestinationReconciler finalizer
// dance (DeletionTimestamp.IsZero / AddFinalizer / handleDeletion) into
// Equilibrium's synchronous, controller-runtime-free sweep idiom.
package controller

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/NiklasRosenstein/equilibrium/internal/control"
	"github.com/NiklasRosenstein/equilibrium/internal/resource"
	"github.com/NiklasRosenstein/equilibrium/internal/store"
)

// deletedState is returned by Handler.Read and Handler.Delete to signal
// that the external resource the controller manages has vanished on its
// own — the "Status" sentinel from the reconcile table.
type deletedState struct{}

// Deleted is the sentinel State value meaning "no longer exists
// externally". Handler implementations compare their return value's
// concrete type against this, or a caller-supplied equivalent, using
// IsDeleted.
var Deleted = deletedState{}

// IsDeleted reports whether s is the Deleted sentinel.
func IsDeleted(s any) bool {
	_, ok := s.(deletedState)
	return ok
}

// Handler implements the external-world side of one resource kind: how to
// create, refresh, update and tear down whatever the resource's spec
// describes. Spec and State travel as `any` (Go interface methods can't
// be generic); concrete Handlers type-assert spec/state to the types they
// registered for their kind's codec, e.g. examples/localfile's fileSpec.
type Handler interface {
	// Create provisions the external resource described by spec and
	// returns its initial observed state.
	Create(spec any) (any, error)

	// Read refreshes state from the external world, or returns Deleted if
	// the external resource no longer exists.
	Read(state any) (any, error)

	// Update reconciles a drifted external resource back towards spec and
	// returns the refreshed state.
	Update(spec any, state any) (any, error)

	// Delete tears down the external resource. Returns Deleted once
	// teardown is complete.
	Delete(state any) (any, error)
}

// CRUDController drives Handler through the exact state machine of §4.4
// for every resource of one registered Type, one reconcile sweep at a
// time. It satisfies control.ResourceController.
type CRUDController struct {
	Type    resource.Type
	Handler Handler
	Types   *control.ResourceTypeRegistry
	log     logr.Logger
}

// NewCRUDController binds handler to the given resource Type. types is
// used to decode each resource's stored generic spec back into its
// registered typed form before handing it to handler — the store always
// persists specs generically, per §3.
func NewCRUDController(t resource.Type, handler Handler, types *control.ResourceTypeRegistry, log logr.Logger) *CRUDController {
	return &CRUDController{Type: t, Handler: handler, Types: types, log: log.WithName("CRUDController").WithValues("type", t.String())}
}

// Reconcile runs one sweep: every resource of c.Type, in deterministic
// URI order, each under its own per-resource lock so a slow external call
// for one resource cannot starve others.
func (c *CRUDController) Reconcile(reg *control.ResourceRegistry) error {
	var uris []resource.URI
	err := reg.WithLock(store.LockRequest{APIVersion: c.Type.APIVersion, Kind: c.Type.Kind, Block: true}, func(lock store.LockID) error {
		found, err := reg.Search(lock, store.SearchRequest{APIVersion: c.Type.APIVersion, Kind: c.Type.Kind})
		uris = found
		return err
	})
	if err != nil {
		return fmt.Errorf("list %s: %w", c.Type, err)
	}

	for _, uri := range resource.SortedURIs(uris) {
		if err := c.reconcileOne(reg, uri); err != nil {
			c.log.Error(err, "reconcile failed, leaving resource as-is", "uri", uri.String())
		}
	}
	return nil
}

// reconcileOne runs the §4.4 transition table for a single URI under one
// held lock, so its read-modify-write is atomic relative to other
// writers.
func (c *CRUDController) reconcileOne(reg *control.ResourceRegistry, uri resource.URI) error {
	req := store.LockRequest{APIVersion: uri.APIVersion, Kind: uri.Kind, Namespace: uri.Namespace, Name: uri.Name, Block: true}

	return reg.WithLock(req, func(lock store.LockID) error {
		r, ok, err := reg.Get(lock, uri)
		if err != nil {
			return err
		}
		if !ok {
			return nil // removed concurrently between list and lock; next sweep is consistent
		}

		codec, err := c.Types.Lookup(r.Type())
		if err != nil {
			return err
		}
		typedSpec, err := r.Spec.IntoTyped(codec.Decode)
		if err != nil {
			return fmt.Errorf("decode spec for %s: %w", uri, err)
		}
		r.Spec = typedSpec

		hasState := len(r.State) != 0
		deleting := r.Deleted()

		switch {
		case !hasState && !deleting:
			return c.create(reg, lock, r)
		case hasState && !deleting:
			return c.update(reg, lock, r)
		case hasState && deleting:
			return c.delete(reg, lock, r)
		default: // !hasState && deleting
			return reg.Delete(lock, uri, false, true)
		}
	})
}

func (c *CRUDController) create(reg *control.ResourceRegistry, lock store.LockID, r resource.Resource) error {
	state, err := c.Handler.Create(r.Spec.Typed())
	if err != nil {
		return fmt.Errorf("create %s: %w", r.URI(), err)
	}
	return c.persistState(reg, lock, r, state)
}

func (c *CRUDController) update(reg *control.ResourceRegistry, lock store.LockID, r resource.Resource) error {
	observed, err := c.Handler.Read(r.State)
	if err != nil {
		return fmt.Errorf("read %s: %w", r.URI(), err)
	}
	if IsDeleted(observed) {
		return c.persistState(reg, lock, r, nil)
	}

	state, err := c.Handler.Update(r.Spec.Typed(), observed)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.URI(), err)
	}
	return c.persistState(reg, lock, r, state)
}

func (c *CRUDController) delete(reg *control.ResourceRegistry, lock store.LockID, r resource.Resource) error {
	state, err := c.Handler.Delete(r.State)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.URI(), err)
	}
	if IsDeleted(state) {
		return reg.Delete(lock, r.URI(), false, true)
	}
	return c.persistState(reg, lock, r, state)
}

// persistState writes r back with state as its new controller-owned
// state, bypassing admission — state is not part of the admitted spec
// surface and is written directly through the store, not through
// ResourceRegistry.Put (which rejects any incoming state on the manifest
// path).
func (c *CRUDController) persistState(reg *control.ResourceRegistry, lock store.LockID, r resource.Resource, state any) error {
	if state == nil {
		r.State = nil
	} else if m, ok := state.(map[string]any); ok {
		r.State = m
	} else {
		return fmt.Errorf("persist state for %s: handler state must be map[string]any, got %T", r.URI(), state)
	}
	return reg.PersistState(lock, r)
}
