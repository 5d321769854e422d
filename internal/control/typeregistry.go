// Package control wires the resource store, the type/service/controller
// registries and the admission chain into the Context that drives
// reconcile sweeps — the equivalent of the teacher's
// internal/controller.GitDestinationReconciler wiring, generalized from
// one fixed Kubernetes CRD to an open, type-indexed registry.
package control

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/NiklasRosenstein/equilibrium/internal/resource"
)

// SpecCodec bundles a registered spec type with the conversions needed to
// move its payload between the generic (stored) and typed
// (controller-facing) forms.
//
// MinAPIVersion is optional: when set, Register rejects binding this
// codec under a Type whose apiVersion carries a semantic version
// suffix (e.g. "example.com/v1.2.0") older than MinAPIVersion, the way
// cappyzawa-score-orchestrator's backend selector ranks candidates by
// Masterminds/semver rather than string comparison. Types whose
// apiVersion has no semver suffix (e.g. the plain "v1" style used
// elsewhere in this spec) skip the check entirely.
type SpecCodec struct {
	SpecType      resource.SpecType
	Decode        func(map[string]any) (any, error)
	Encode        func(any) (map[string]any, error)
	MinAPIVersion string
}

// apiVersionSemver extracts a semantic version from the last "/"-
// separated segment of apiVersion, if that segment (minus a leading "v")
// is a full MAJOR.MINOR.PATCH version; a bare "v1" is not one.
func apiVersionSemver(apiVersion string) (*semver.Version, bool) {
	segments := strings.Split(apiVersion, "/")
	v, err := semver.StrictNewVersion(strings.TrimPrefix(segments[len(segments)-1], "v"))
	if err != nil {
		return nil, false
	}
	return v, true
}

// ResourceTypeRegistry maps Type to SpecType. Registration is idempotent
// only for the same SpecType; re-registering a different SpecType under
// an existing Type is an error, per §4.2.
type ResourceTypeRegistry struct {
	mu      sync.RWMutex
	entries map[resource.Type]SpecCodec
}

// NewResourceTypeRegistry creates an empty registry.
func NewResourceTypeRegistry() *ResourceTypeRegistry {
	return &ResourceTypeRegistry{entries: make(map[resource.Type]SpecCodec)}
}

// Register binds codec to t. A second registration of a SpecType with the
// same underlying Go type for t is a no-op; registering a different type
// under an already-bound t is an error.
func (r *ResourceTypeRegistry) Register(t resource.Type, codec SpecCodec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if codec.MinAPIVersion != "" {
		if actual, ok := apiVersionSemver(t.APIVersion); ok {
			min, err := semver.NewVersion(codec.MinAPIVersion)
			if err != nil {
				return fmt.Errorf("control: codec for %s declares invalid MinAPIVersion %q: %w", t, codec.MinAPIVersion, err)
			}
			if actual.LessThan(min) {
				return fmt.Errorf("control: %s is older than the codec's minimum supported version %s", t, codec.MinAPIVersion)
			}
		}
	}

	if existing, ok := r.entries[t]; ok {
		if reflect.TypeOf(existing.SpecType) != reflect.TypeOf(codec.SpecType) {
			return &resource.TypeConflictError{Type: t}
		}
		return nil
	}
	r.entries[t] = codec
	return nil
}

// Lookup resolves t's registered codec.
func (r *ResourceTypeRegistry) Lookup(t resource.Type) (SpecCodec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codec, ok := r.entries[t]
	if !ok {
		return SpecCodec{}, &resource.UnknownResourceTypeError{APIVersion: t.APIVersion, Kind: t.Kind}
	}
	return codec, nil
}

// Types returns every registered Type.
func (r *ResourceTypeRegistry) Types() []resource.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]resource.Type, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	return out
}
