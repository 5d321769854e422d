// Package resource implements Equilibrium's typed resource model: the
// universal envelope, its primary key (URI), its registration unit (Type),
// and the sum-typed spec payload that lets a resource travel between its
// generic, manifest-loaded form and its strongly typed, controller-facing
// form.
package resource

import "fmt"

// NotFoundError is returned when a resource is read or deleted by URI and
// no such resource exists in the store.
type NotFoundError struct {
	URI URI
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.URI)
}

// AdmissionFailedError wraps any error raised by an admission controller
// while processing a put.
type AdmissionFailedError struct {
	URI   URI
	Cause error
}

func (e *AdmissionFailedError) Error() string {
	return fmt.Sprintf("admission failed for %s: %v", e.URI, e.Cause)
}

func (e *AdmissionFailedError) Unwrap() error { return e.Cause }

// ValidationFailedError wraps the error returned by a spec type's Validate
// method.
type ValidationFailedError struct {
	URI   URI
	Cause error
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("validation failed for %s: %v", e.URI, e.Cause)
}

func (e *ValidationFailedError) Unwrap() error { return e.Cause }

// NamespaceNotFoundError is returned when a namespaced resource is put and
// its namespace has no corresponding Namespace resource.
type NamespaceNotFoundError struct {
	URI       URI
	Namespace string
}

func (e *NamespaceNotFoundError) Error() string {
	return fmt.Sprintf("namespace %q not found for resource %s", e.Namespace, e.URI)
}

// NamespaceNotEmptyError is returned when a Namespace resource is deleted
// while resources still exist within it.
type NamespaceNotEmptyError struct {
	Namespace string
}

func (e *NamespaceNotEmptyError) Error() string {
	return fmt.Sprintf("namespace %q is not empty", e.Namespace)
}

// LockTimeoutError is returned when a lock request exceeds its timeout, or
// when block=false and the lock is already held.
type LockTimeoutError struct {
	Request string
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("lock timeout: %s", e.Request)
}

// UnknownResourceTypeError is returned when a resource references a Type
// that has no registered SpecType.
type UnknownResourceTypeError struct {
	APIVersion string
	Kind       string
}

func (e *UnknownResourceTypeError) Error() string {
	return fmt.Sprintf("unknown resource type: %s/%s", e.APIVersion, e.Kind)
}

// InvalidURIError is returned when a URI component fails the grammar
// defined in the manifest spec.
type InvalidURIError struct {
	Component string
	Value     string
}

func (e *InvalidURIError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Component, e.Value)
}

// TypeConflictError is returned when a Type is registered twice with two
// different SpecType implementations.
type TypeConflictError struct {
	Type Type
}

func (e *TypeConflictError) Error() string {
	return fmt.Sprintf("type %s already registered with a different spec type", e.Type)
}
