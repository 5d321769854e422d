package store

import "github.com/NiklasRosenstein/equilibrium/internal/resource"

// Matches reports whether r satisfies every non-empty field of req,
// implementing the filter semantics shared by every ResourceStore
// backend so jsonstore/gitstore/sqlstore don't each reinvent it:
// namespace="" matches all, NamespaceNone matches only cluster-scoped
// resources, and a concrete string matches that namespace exactly.
func Matches(r resource.Resource, req SearchRequest) bool {
	if req.APIVersion != "" && r.APIVersion != req.APIVersion {
		return false
	}
	if req.Kind != "" && r.Kind != req.Kind {
		return false
	}
	if req.Name != "" && r.Metadata.Name != req.Name {
		return false
	}
	switch req.Namespace {
	case "":
		// wildcard
	case NamespaceNone:
		if r.Metadata.Namespace != "" {
			return false
		}
	default:
		if r.Metadata.Namespace != req.Namespace {
			return false
		}
	}
	if len(req.Labels) > 0 && !r.Metadata.HasLabels(req.Labels) {
		return false
	}
	return true
}

// NamespaceExists reports whether namespaces contains one named ns.
func NamespaceExists(namespaces []resource.Resource, ns string) bool {
	for _, n := range namespaces {
		if n.Metadata.Name == ns {
			return true
		}
	}
	return false
}
