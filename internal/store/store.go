package store

import (
	"github.com/NiklasRosenstein/equilibrium/internal/resource"
)

// ResourceStore is the pluggable, process-local backing store described in
// §4.1. Every operation accepts a held LockID; implementations must treat
// a LockID not currently valid for their Lock (see Lock.CheckLock) as a
// programming error and panic, the same way holding a stale mutex token
// would be a bug rather than a recoverable condition.
type ResourceStore interface {
	// Enter acquires the store's single exclusive lock, scoped for
	// release by calling the returned func. See Lock.ScopedEnter.
	Enter(req LockRequest, holder LockID) (LockID, func(), error)

	// Put upserts a resource by URI. Fails with
	// *resource.NamespaceNotFoundError if the resource is namespaced and
	// its namespace has no Namespace resource in the store.
	Put(lock LockID, r resource.Resource) error

	// Get returns the resource at uri, or ok=false if absent.
	Get(lock LockID, uri resource.URI) (r resource.Resource, ok bool, err error)

	// Delete physically removes the resource at uri. Returns false if
	// absent. Deleting a Namespace fails with
	// *resource.NamespaceNotEmptyError while any resource in it exists.
	Delete(lock LockID, uri resource.URI) (bool, error)

	// Search returns URIs matching every non-empty field of req.
	Search(lock LockID, req SearchRequest) ([]resource.URI, error)

	// Namespaces enumerates all stored Namespace resources. May be
	// cached by implementations; callers must not rely on read-your-
	// writes ordering relative to a concurrent Put of a Namespace.
	Namespaces(lock LockID) ([]resource.Resource, error)
}

// NamespaceAPIVersion and NamespaceKind identify the built-in, cluster-
// scoped Namespace resource kind (v1/Namespace) whose existence is the
// precondition for writing any resource into that namespace.
const (
	NamespaceAPIVersion = "v1"
	NamespaceKind       = "Namespace"
)

// IsNamespaceType reports whether uri refers to a Namespace resource.
func IsNamespaceType(uri resource.URI) bool {
	return uri.APIVersion == NamespaceAPIVersion && uri.Kind == NamespaceKind
}
