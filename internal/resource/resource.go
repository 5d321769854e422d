package resource

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Metadata carries the envelope's identity and bookkeeping fields beyond
// the URI proper.
type Metadata struct {
	Namespace   string            `json:"namespace,omitempty"`
	Name        string            `json:"name"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// HasLabels reports whether m's labels are a superset of want (subset-match
// search semantics, per the store's search contract).
func (m Metadata) HasLabels(want map[string]string) bool {
	for k, v := range want {
		if got, ok := m.Labels[k]; !ok || got != v {
			return false
		}
	}
	return true
}

// Resource is the universal envelope: apiVersion, kind, metadata, a
// kind-specific (or generic) spec payload, an optional deletion marker and
// an optional controller-owned state blob.
type Resource struct {
	APIVersion     string
	Kind           string
	Metadata       Metadata
	Spec           Spec
	DeletionMarker *time.Time
	State          map[string]any
}

// URI returns the resource's primary key, derived from its envelope
// fields rather than stored separately — a resource's URI is always in
// sync with apiVersion/kind/metadata because there is no separate place
// to let it drift.
func (r Resource) URI() URI {
	return URI{
		APIVersion: r.APIVersion,
		Kind:       r.Kind,
		Namespace:  r.Metadata.Namespace,
		Name:       r.Metadata.Name,
	}
}

// Type returns the resource's (apiVersion, kind) registration unit.
func (r Resource) Type() Type {
	return Type{APIVersion: r.APIVersion, Kind: r.Kind}
}

// Deleted reports whether the deletion marker has been set.
func (r Resource) Deleted() bool {
	return r.DeletionMarker != nil
}

// serializedResource is the on-the-wire shape used by ToJSON/FromJSON
// (and, transitively, by any ResourceStore implementation): the envelope
// fields plus the generic spec tree and an RFC3339-UTC deletion_marker,
// per the persisted state layout in the manifest spec.
type serializedResource struct {
	APIVersion     string         `json:"apiVersion"`
	Kind           string         `json:"kind"`
	Metadata       Metadata       `json:"metadata"`
	Spec           map[string]any `json:"spec"`
	DeletionMarker *marker        `json:"deletion_marker,omitempty"`
	State          map[string]any `json:"state,omitempty"`
}

type marker struct {
	Timestamp time.Time `json:"timestamp"`
}

// ToJSON serializes the resource. The spec must already be in its generic
// form — the store persists the generic form only, per §3; callers holding
// a typed spec must call Spec.IntoGeneric first (ResourceRegistry does
// this on every write).
func (r Resource) ToJSON() ([]byte, error) {
	if r.Spec.IsTyped() {
		return nil, fmt.Errorf("resource %s: cannot serialize a typed spec directly, convert with IntoGeneric first", r.URI())
	}
	out := serializedResource{
		APIVersion: r.APIVersion,
		Kind:       r.Kind,
		Metadata:   r.Metadata,
		Spec:       r.Spec.Generic(),
		State:      r.State,
	}
	if r.DeletionMarker != nil {
		out.DeletionMarker = &marker{Timestamp: r.DeletionMarker.UTC()}
	}
	return json.MarshalIndent(out, "", "  ")
}

// FromJSON deserializes a resource previously produced by ToJSON. The
// resulting spec is always generic — admission later promotes it to the
// registered SpecType's typed form.
func FromJSON(data []byte) (Resource, error) {
	var in serializedResource
	if err := json.Unmarshal(data, &in); err != nil {
		return Resource{}, fmt.Errorf("decode resource: %w", err)
	}
	r := Resource{
		APIVersion: in.APIVersion,
		Kind:       in.Kind,
		Metadata:   in.Metadata,
		Spec:       NewGenericSpec(in.Spec),
		State:      in.State,
	}
	if in.DeletionMarker != nil {
		ts := in.DeletionMarker.Timestamp
		r.DeletionMarker = &ts
	}
	return r, nil
}

// SortedURIs sorts a slice of URIs by their string form, the deterministic
// per-sweep ordering CRUD controllers and search results rely on.
func SortedURIs(uris []URI) []URI {
	out := make([]URI, len(uris))
	copy(out, uris)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
