package rules

import (
	"reflect"
	"sort"
)

// RulesGraph holds a validated set of rules: unique ids, and an acyclic
// input→output dependency graph (an edge runs from each of a rule's
// input types to its output type). Node = type, edge = rule.
type RulesGraph struct {
	rules    []Rule
	byOutput map[reflect.Type][]Rule
	byID     map[string]Rule
}

// NewRulesGraph validates and constructs a RulesGraph. It fails with
// *DuplicateRuleIDError if two rules share an id, or *CyclicGraphError if
// the rule set's input→output edges contain a cycle.
func NewRulesGraph(rs ...Rule) (*RulesGraph, error) {
	g := &RulesGraph{
		byOutput: make(map[reflect.Type][]Rule),
		byID:     make(map[string]Rule),
	}
	for _, r := range rs {
		if _, exists := g.byID[r.ID()]; exists {
			return nil, &DuplicateRuleIDError{ID: r.ID()}
		}
		g.byID[r.ID()] = r
		g.rules = append(g.rules, r)
		sig := r.Signature()
		g.byOutput[sig.Output] = append(g.byOutput[sig.Output], r)
	}
	if cycle := g.findCycle(); cycle != nil {
		return nil, &CyclicGraphError{Cycle: cycle}
	}
	return g, nil
}

// candidatesForOutput returns every rule declaring output as its output
// type, in registration order.
func (g *RulesGraph) candidatesForOutput(output reflect.Type) []Rule {
	return g.byOutput[output]
}

const (
	colorWhite = iota
	colorGray
	colorBlack
)

// findCycle runs a standard DFS cycle check over the type graph induced
// by every rule's input→output edges. Returns the cyclic path of types,
// or nil if the graph is acyclic.
func (g *RulesGraph) findCycle() []reflect.Type {
	color := make(map[reflect.Type]int)
	var path []reflect.Type

	var visit func(t reflect.Type) []reflect.Type
	visit = func(t reflect.Type) []reflect.Type {
		color[t] = colorGray
		path = append(path, t)

		for _, r := range g.byOutput[t] {
			for _, in := range r.Signature().Inputs {
				switch color[in] {
				case colorWhite:
					if cyc := visit(in); cyc != nil {
						return cyc
					}
				case colorGray:
					// found the cycle: trim path down to the repeated node
					start := 0
					for i, p := range path {
						if p == in {
							start = i
							break
						}
					}
					cyc := append([]reflect.Type{}, path[start:]...)
					return append(cyc, in)
				}
			}
		}

		path = path[:len(path)-1]
		color[t] = colorBlack
		return nil
	}

	// Sort output types for deterministic traversal order (map iteration
	// order is randomized in Go; cycle reports should be reproducible).
	outputs := make([]reflect.Type, 0, len(g.byOutput))
	for t := range g.byOutput {
		outputs = append(outputs, t)
	}
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].String() < outputs[j].String() })

	for _, t := range outputs {
		if color[t] == colorWhite {
			if cyc := visit(t); cyc != nil {
				return cyc
			}
		}
	}
	return nil
}

// Resolve finds a topologically ordered rule sequence that produces
// outputType from the types already available, per §4.5: it fails with
// *NoMatchingRulesError if nothing resolves outputType, or
// *MultipleMatchingRulesError if more than one distinct resolution
// exists.
func (g *RulesGraph) Resolve(outputType reflect.Type, available []reflect.Type) ([]Rule, error) {
	have := make(map[reflect.Type]bool, len(available))
	for _, t := range available {
		have[t] = true
	}

	resolutions, err := g.resolveAll(outputType, have, map[reflect.Type]bool{})
	if err != nil {
		return nil, err
	}
	distinct := dedupeResolutions(resolutions)

	switch len(distinct) {
	case 0:
		return nil, &NoMatchingRulesError{OutputType: outputType, Candidates: g.candidatesForOutput(outputType)}
	case 1:
		return distinct[0], nil
	default:
		return nil, &MultipleMatchingRulesError{OutputType: outputType, Candidates: distinct}
	}
}

// resolveAll returns every distinct rule sequence that can produce
// target given have, recursively satisfying each candidate rule's
// missing inputs. visiting guards against re-entering a type currently
// being resolved higher up the call stack (construction-time acyclicity
// already rules out a true cycle; this also protects against a
// pathological available-set-dependent loop).
func (g *RulesGraph) resolveAll(target reflect.Type, have map[reflect.Type]bool, visiting map[reflect.Type]bool) ([][]Rule, error) {
	if have[target] {
		return [][]Rule{{}}, nil
	}
	if visiting[target] {
		return nil, nil
	}

	candidates := g.byOutput[target]
	if len(candidates) == 0 {
		return nil, nil
	}

	visiting[target] = true
	defer delete(visiting, target)

	var all [][]Rule
	for _, r := range candidates {
		missing := missingInputs(r, have)

		perInput := make([][][]Rule, 0, len(missing))
		satisfiable := true
		for _, m := range missing {
			subs, err := g.resolveAll(m, have, visiting)
			if err != nil {
				return nil, err
			}
			if len(subs) == 0 {
				satisfiable = false
				break
			}
			perInput = append(perInput, subs)
		}
		if !satisfiable {
			continue
		}

		for _, combo := range cartesian(perInput) {
			merged := mergeUnique(combo)
			merged = append(merged, r)
			all = append(all, merged)
		}
	}
	return all, nil
}

func missingInputs(r Rule, have map[reflect.Type]bool) []reflect.Type {
	var out []reflect.Type
	for _, t := range r.Signature().Inputs {
		if !have[t] {
			out = append(out, t)
		}
	}
	return out
}

// cartesian returns the cartesian product of sets, one choice per set.
// An empty input (no missing inputs) yields exactly one empty choice.
func cartesian(sets [][][]Rule) [][][]Rule {
	result := [][][]Rule{{}}
	for _, set := range sets {
		var next [][][]Rule
		for _, combo := range result {
			for _, choice := range set {
				extended := append(append([][]Rule{}, combo...), choice)
				next = append(next, extended)
			}
		}
		result = next
	}
	return result
}

// mergeUnique flattens a cartesian choice (one []Rule per missing input)
// into a single deduplicated, order-preserving sequence: a rule shared by
// two missing inputs' sub-resolutions appears only once, at its first
// occurrence.
func mergeUnique(choice [][]Rule) []Rule {
	seen := make(map[string]bool)
	var out []Rule
	for _, sub := range choice {
		for _, r := range sub {
			if !seen[r.ID()] {
				seen[r.ID()] = true
				out = append(out, r)
			}
		}
	}
	return out
}

func dedupeResolutions(resolutions [][]Rule) [][]Rule {
	seen := make(map[string]bool)
	var out [][]Rule
	for _, path := range resolutions {
		key := ""
		for _, r := range path {
			key += r.ID() + ">"
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, path)
		}
	}
	return out
}
