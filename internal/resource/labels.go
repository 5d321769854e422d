package resource

import "k8s.io/apimachinery/pkg/labels"

// MatchesSelector reports whether the resource's labels satisfy the given
// selector expression (e.g. "app=equilibrium,tier!=edge"). An empty
// selector matches everything. Store search does not use it:
// SearchRequest has no selector field, and its Labels filter is a plain
// subset match (Metadata.HasLabels). The selector grammar is the one the teacher's
// internal/rulestore.isExcludedByLabels builds on via
// k8s.io/apimachinery/pkg/labels, reused here rather than re-derived.
func MatchesSelector(m Metadata, selector string) (bool, error) {
	if selector == "" {
		return true, nil
	}
	sel, err := labels.Parse(selector)
	if err != nil {
		return false, err
	}
	return sel.Matches(labels.Set(m.Labels)), nil
}
