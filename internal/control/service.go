package control

import (
	"fmt"
	"sync"

	"github.com/NiklasRosenstein/equilibrium/internal/resource"
)

// ServiceID discriminates multiple services registered against the same
// Type (e.g. a "default" vs a "dry-run" implementation).
type ServiceID string

type serviceKey struct {
	Type resource.Type
	ID   ServiceID
}

// ServiceRegistry maps (Type, ServiceId) to a service instance. Lookups
// are type-checked: a ServiceID registered under the wrong Go type is a
// hard error rather than a silent none, per §4.2.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[serviceKey]any
}

// NewServiceRegistry creates an empty registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{services: make(map[serviceKey]any)}
}

// Register binds svc under (t, id), replacing any prior binding.
func (s *ServiceRegistry) Register(t resource.Type, id ServiceID, svc any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[serviceKey{Type: t, ID: id}] = svc
}

// GetService resolves (t, id) as a T. Returns ok=false if nothing is
// registered; returns an error if something is registered but is not a T.
func GetService[T any](r *ServiceRegistry, t resource.Type, id ServiceID) (T, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	raw, ok := r.services[serviceKey{Type: t, ID: id}]
	if !ok {
		return zero, false, nil
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, false, fmt.Errorf("service %s/%s: registered as %T, requested as %T", t, id, raw, zero)
	}
	return typed, true, nil
}
