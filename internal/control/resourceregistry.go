package control

import (
	"fmt"
	"time"

	"github.com/NiklasRosenstein/equilibrium/internal/resource"
	"github.com/NiklasRosenstein/equilibrium/internal/store"
)

// defaultNamespace is filled in for a namespaced resource whose manifest
// omits metadata.namespace, mirroring kubectl's apply-time default.
const defaultNamespace = "default"

// ResourceRegistry is the write path for every resource: it runs the
// eight-step put sequence (type resolution, typed decode, validation,
// namespace defaulting, the URI/namespaced invariant, admission, and the
// locked read-modify-write that inherits prior state) ahead of every
// persisted write, and the matching checked delete. CRUD controllers read
// and write exclusively through a ResourceRegistry, never through the
// ResourceStore directly.
type ResourceRegistry struct {
	store store.ResourceStore
	types *ResourceTypeRegistry
}

// NewResourceRegistry binds a backing store and the type registry used to
// resolve and validate incoming specs.
func NewResourceRegistry(backing store.ResourceStore, types *ResourceTypeRegistry) *ResourceRegistry {
	return &ResourceRegistry{store: backing, types: types}
}

// WithLock runs fn with a held lock scoped to req, releasing it on return.
// Controllers use this to make a read-then-write sequence atomic relative
// to other writers, per the per-resource-locking requirement in §4.4.
func (r *ResourceRegistry) WithLock(req store.LockRequest, fn func(lock store.LockID) error) error {
	lock, release, err := r.store.Enter(req, "")
	if err != nil {
		return err
	}
	defer release()
	return fn(lock)
}

// Get reads the resource at uri under lock.
func (r *ResourceRegistry) Get(lock store.LockID, uri resource.URI) (resource.Resource, bool, error) {
	return r.store.Get(lock, uri)
}

// Search runs req under lock.
func (r *ResourceRegistry) Search(lock store.LockID, req store.SearchRequest) ([]resource.URI, error) {
	return r.store.Search(lock, req)
}

// Put runs the full admission-and-write sequence for r under an
// already-held lock:
//
//  1. reject if r.State is already set — state is controller-owned and
//     never directly writable;
//  2. resolve r's Type, failing with *resource.UnknownResourceTypeError;
//  3. decode the generic spec into its registered typed form;
//  4. call Validate() if the typed spec implements Validatable;
//  5. default metadata.namespace to "default" if the type is namespaced
//     and the manifest omitted one;
//  6. assert the URI/namespaced invariant (namespaced types carry a
//     namespace, cluster-scoped types don't);
//  7. run the chain's controllers had from ControllerRegistry.AdmissionChain;
//  8. re-encode to the generic form, inherit any prior resource's state
//     and (once set) deletionMarker — admission can never clear a marker
//     already on the stored resource — and write through to the backing
//     store (which itself enforces namespace referential integrity).
func (r *ResourceRegistry) Put(lock store.LockID, chain admissionChain, in resource.Resource) (resource.Resource, error) {
	uri := in.URI()

	if len(in.State) != 0 {
		return resource.Resource{}, fmt.Errorf("resource %s: state is controller-owned and cannot be set on put", uri)
	}

	codec, err := r.types.Lookup(in.Type())
	if err != nil {
		return resource.Resource{}, err
	}

	typedSpec, err := in.Spec.IntoTyped(codec.Decode)
	if err != nil {
		return resource.Resource{}, &resource.ValidationFailedError{URI: uri, Cause: err}
	}
	in.Spec = typedSpec

	if v, ok := in.Spec.Typed().(resource.Validatable); ok {
		if err := v.Validate(); err != nil {
			return resource.Resource{}, &resource.ValidationFailedError{URI: uri, Cause: err}
		}
	}

	namespaced := codec.SpecType.Namespaced()
	if namespaced && in.Metadata.Namespace == "" {
		in.Metadata.Namespace = defaultNamespace
	}
	uri = in.URI()

	if namespaced && uri.Namespace == "" {
		return resource.Resource{}, &resource.InvalidURIError{Component: "namespace", Value: ""}
	}
	if !namespaced && uri.Namespace != "" {
		return resource.Resource{}, &resource.InvalidURIError{Component: "namespace", Value: uri.Namespace}
	}

	admitted, err := chain.Run(in)
	if err != nil {
		return resource.Resource{}, err
	}

	generic, err := admitted.Spec.IntoGeneric(codec.Encode)
	if err != nil {
		return resource.Resource{}, &resource.ValidationFailedError{URI: uri, Cause: err}
	}
	admitted.Spec = generic

	if prior, ok, err := r.store.Get(lock, uri); err == nil && ok {
		admitted.State = prior.State
		if prior.DeletionMarker != nil {
			admitted.DeletionMarker = prior.DeletionMarker
		}
	}

	if err := r.store.Put(lock, admitted); err != nil {
		return resource.Resource{}, err
	}
	return admitted, nil
}

// Delete marks or removes the resource at uri. If doRaise is true and the
// resource does not exist, it returns *resource.NotFoundError. If force is
// true, it is physically removed immediately through the store, which
// itself refuses to remove a Namespace that still has resources in it
// (*resource.NamespaceNotEmptyError). If force is false, deleting a
// non-empty Namespace fails with *resource.NamespaceNotEmptyError; otherwise the resource is
// left in place with its deletionMarker set to now (idempotent if already
// set), for a CRUD controller to finalize and physically remove later.
func (r *ResourceRegistry) Delete(lock store.LockID, uri resource.URI, doRaise bool, force bool) error {
	if !force && store.IsNamespaceType(uri) {
		members, err := r.store.Search(lock, store.SearchRequest{Namespace: uri.Name})
		if err != nil {
			return err
		}
		if len(members) > 0 {
			return &resource.NamespaceNotEmptyError{Namespace: uri.Name}
		}
	}

	if !force {
		existing, ok, err := r.store.Get(lock, uri)
		if err != nil {
			return err
		}
		if !ok {
			if doRaise {
				return &resource.NotFoundError{URI: uri}
			}
			return nil
		}
		if existing.DeletionMarker == nil {
			now := time.Now()
			existing.DeletionMarker = &now
			if err := r.store.Put(lock, existing); err != nil {
				return err
			}
		}
		return nil
	}

	existed, err := r.store.Delete(lock, uri)
	if err != nil {
		return err
	}
	if !existed && doRaise {
		return &resource.NotFoundError{URI: uri}
	}
	return nil
}

// PersistState writes r's controller-owned state back to the store
// without running admission — used by CRUD controllers after a
// create/update/delete transition, where the write is a state refresh of
// an already-admitted resource rather than a new manifest application.
// r's spec is re-encoded to its generic form first, since the store
// persists specs generically.
func (r *ResourceRegistry) PersistState(lock store.LockID, in resource.Resource) error {
	if in.Spec.IsTyped() {
		codec, err := r.types.Lookup(in.Type())
		if err != nil {
			return err
		}
		generic, err := in.Spec.IntoGeneric(codec.Encode)
		if err != nil {
			return fmt.Errorf("encode spec for %s: %w", in.URI(), err)
		}
		in.Spec = generic
	}
	return r.store.Put(lock, in)
}

// admissionChain is the minimal surface ResourceRegistry needs from
// *admission.Chain, kept as an interface so this file doesn't import
// internal/admission directly and controllers can supply a stub chain in
// tests.
type admissionChain interface {
	Run(r resource.Resource) (resource.Resource, error)
}
